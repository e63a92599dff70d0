package notifier

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"caixa-imoveis/config"
	"caixa-imoveis/fetcher"
	"caixa-imoveis/models"
	"caixa-imoveis/parser"

	"go.uber.org/zap"
)

func sampleReport() *models.RunReport {
	start := time.Date(2024, 3, 13, 6, 0, 0, 0, time.UTC)
	return &models.RunReport{
		ID:         "0f8fad5b-d9cb-469f-a165-70867728950e",
		StartedAt:  start,
		FinishedAt: start.Add(3*time.Minute + 2*time.Second),
		Regions: []models.RegionResult{
			{Region: "RJ", Status: models.RegionDone, New: 4, Archived: 1},
			{Region: "SP", Status: models.RegionSkipped, Err: &fetcher.HTTPFailure{URL: "x", StatusCode: 403}},
			{Region: "MG", Status: models.RegionFailed, Err: &parser.RowError{Row: 2, ID: "7", Err: parser.ErrDivisionUndefined}},
		},
	}
}

func TestFormatReport(t *testing.T) {
	msg := FormatReport(sampleReport())

	for _, want := range []string{
		"⚠️ Sync <code>0f8fad5b</code> finished in 3m2s",
		"Regions: 1 done, 1 skipped, 1 failed",
		"New listings: 4",
		"Archived listings: 1",
		"<b>SP</b> skipped: request to x failed with status 403",
		"<b>MG</b> failed",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("report missing %q:\n%s", want, msg)
		}
	}
	if strings.Contains(msg, "<b>RJ</b>") {
		t.Error("successful regions should not be listed")
	}
}

func TestFormatReportEscapesErrors(t *testing.T) {
	report := &models.RunReport{Regions: []models.RegionResult{
		{Region: "BA", Status: models.RegionSkipped, Err: errors.New("page title <Manutenção>")},
	}}
	msg := FormatReport(report)
	if !strings.HasPrefix(msg, "❌") {
		t.Errorf("run without completed regions should be marked failed: %s", msg)
	}
	if !strings.Contains(msg, "&lt;Manutenção&gt;") {
		t.Errorf("error text not escaped: %s", msg)
	}
}

func TestTelegramNotifyRun(t *testing.T) {
	var sent struct {
		chatID, text, mode string
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Caixa","username":"caixa_bot"}}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			r.ParseForm()
			sent.chatID = r.FormValue("chat_id")
			sent.text = r.FormValue("text")
			sent.mode = r.FormValue("parse_mode")
			w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"}}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	cfg := config.TelegramConfig{Enabled: true, BotToken: "123:abc", ChatID: 42}
	tg, err := NewTelegramWithEndpoint(cfg, srv.URL+"/bot%s/%s", zap.NewNop())
	if err != nil {
		t.Fatalf("NewTelegramWithEndpoint() error = %v", err)
	}

	if err := tg.NotifyRun(context.Background(), sampleReport()); err != nil {
		t.Fatalf("NotifyRun() error = %v", err)
	}
	if sent.chatID != "42" || sent.mode != "HTML" || !strings.Contains(sent.text, "New listings: 4") {
		t.Errorf("sent = %+v", sent)
	}
}

func TestNewTelegramRequiresCredentials(t *testing.T) {
	if _, err := NewTelegram(config.TelegramConfig{Enabled: true}, zap.NewNop()); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("NewTelegram() error = %v, want ErrNotConfigured", err)
	}
}
