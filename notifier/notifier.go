package notifier

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"caixa-imoveis/config"
	"caixa-imoveis/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// ErrNotConfigured is returned when Telegram is enabled without a token or chat
var ErrNotConfigured = errors.New("telegram bot token and chat id are required")

// Telegram sends run reports to one chat
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *zap.Logger
}

// NewTelegram connects to the Bot API
func NewTelegram(cfg config.TelegramConfig, logger *zap.Logger) (*Telegram, error) {
	return NewTelegramWithEndpoint(cfg, tgbotapi.APIEndpoint, logger)
}

// NewTelegramWithEndpoint connects to a Bot API compatible endpoint, formatted like
// tgbotapi.APIEndpoint
func NewTelegramWithEndpoint(cfg config.TelegramConfig, endpoint string, logger *zap.Logger) (*Telegram, error) {
	if cfg.BotToken == "" || cfg.ChatID == 0 {
		return nil, ErrNotConfigured
	}

	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(cfg.BotToken, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	logger.Info("authorized telegram bot", zap.String("account", bot.Self.UserName))

	return &Telegram{bot: bot, chatID: cfg.ChatID, logger: logger}, nil
}

// NotifyRun sends the report of a finished run
func (t *Telegram) NotifyRun(ctx context.Context, report *models.RunReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(t.chatID, FormatReport(report))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send run report: %w", err)
	}
	return nil
}

// FormatReport renders a run report as a Telegram HTML message
func FormatReport(report *models.RunReport) string {
	counts := report.Counts()
	added, archived := report.Totals()

	icon := "✅"
	switch {
	case len(report.Regions) > 0 && counts[models.RegionDone] == 0:
		icon = "❌"
	case counts[models.RegionSkipped]+counts[models.RegionFailed] > 0:
		icon = "⚠️"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s Sync <code>%s</code> finished in %s\n", icon, shortID(report.ID),
		report.FinishedAt.Sub(report.StartedAt).Round(time.Second))
	fmt.Fprintf(&b, "Regions: %d done, %d skipped, %d failed\n",
		counts[models.RegionDone], counts[models.RegionSkipped], counts[models.RegionFailed])
	fmt.Fprintf(&b, "New listings: %d\nArchived listings: %d", added, archived)

	for _, res := range report.Regions {
		if res.Status == models.RegionDone {
			continue
		}
		mark := "⏭"
		if res.Status == models.RegionFailed {
			mark = "❌"
		}
		reason := "unknown error"
		if res.Err != nil {
			reason = res.Err.Error()
		}
		fmt.Fprintf(&b, "\n%s <b>%s</b> %s: %s", mark, res.Region, res.Status, html.EscapeString(reason))
	}
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
