package geoloc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"caixa-imoveis/models"

	"go.uber.org/zap"
	"googlemaps.github.io/maps"
)

type fakeGeocoder struct {
	calls  []string
	fail   map[string]bool
	onCall func()
}

func (f *fakeGeocoder) Geocode(ctx context.Context, address string) (float64, float64, error) {
	f.calls = append(f.calls, address)
	if f.onCall != nil {
		f.onCall()
	}
	if f.fail[address] {
		return 0, 0, ErrNoResults
	}
	return -23.5, -46.6, nil
}

func sampleListings(n int) []models.Listing {
	out := make([]models.Listing, n)
	for i := range out {
		out[i] = models.Listing{
			ID:           fmt.Sprint(i),
			Region:       "SP",
			City:         "SAO PAULO",
			Neighborhood: "CENTRO",
			Address:      fmt.Sprintf("RUA %d", i),
		}
	}
	return out
}

func TestEnrichBatchesWithDelay(t *testing.T) {
	geo := &fakeGeocoder{fail: map[string]bool{"RUA 3, CENTRO, SAO PAULO, SP": true}}
	e := NewEnricher(geo, 2, time.Minute, zap.NewNop())
	var slept []time.Duration
	e.sleep = func(d time.Duration) { slept = append(slept, d) }

	listings := sampleListings(5)
	listings[1].Latitude = models.Float(1)
	listings[1].Longitude = models.Float(2)

	report, err := e.Enrich(context.Background(), listings)
	if err != nil {
		t.Fatalf("Enrich() error = %v", err)
	}

	// 4 pending listings in batches of 2, so one pause between them
	if len(slept) != 1 || slept[0] != time.Minute {
		t.Errorf("sleeps = %v, want one minute pause", slept)
	}
	if report.Batches != 2 {
		t.Errorf("Batches = %d, want 2", report.Batches)
	}
	if len(geo.calls) != 4 {
		t.Errorf("geocoder called %d times, want 4", len(geo.calls))
	}
	if report.Geocoded != 3 {
		t.Errorf("Geocoded = %d, want 3", report.Geocoded)
	}
	if len(report.Failures) != 1 || report.Failures[0].ID != "3" || !errors.Is(report.Failures[0], ErrNoResults) {
		t.Errorf("Failures = %+v", report.Failures)
	}
	if listings[3].Latitude != nil || listings[3].Longitude != nil {
		t.Error("failed listing must keep nil coordinates")
	}
	if *listings[1].Latitude != 1 {
		t.Error("listing with coordinates must not be geocoded again")
	}
	if !listings[4].HasCoordinates() {
		t.Error("listing 4 should have coordinates")
	}
}

func TestEnrichStopsBetweenBatchesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	geo := &fakeGeocoder{}
	// cancellation during the first batch must not interrupt it
	geo.onCall = func() {
		if len(geo.calls) == 1 {
			cancel()
		}
	}
	e := NewEnricher(geo, 3, time.Second, zap.NewNop())
	e.sleep = func(time.Duration) { t.Error("no pause expected after cancellation") }

	listings := sampleListings(7)
	report, err := e.Enrich(ctx, listings)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Enrich() error = %v, want context.Canceled", err)
	}
	if report.Geocoded != 3 || report.Batches != 1 {
		t.Errorf("report = %+v, want first batch of 3 completed", report)
	}
	for i := 0; i < 3; i++ {
		if !listings[i].HasCoordinates() {
			t.Errorf("listing %d from the completed batch lost its coordinates", i)
		}
	}
	if listings[3].HasCoordinates() {
		t.Error("listing from an unstarted batch should stay empty")
	}
}

func TestEnrichNothingPending(t *testing.T) {
	e := NewEnricher(&fakeGeocoder{}, 0, time.Second, zap.NewNop())
	e.sleep = func(time.Duration) { t.Error("unexpected pause") }
	report, err := e.Enrich(context.Background(), nil)
	if err != nil || report.Geocoded != 0 || report.Batches != 0 {
		t.Errorf("Enrich(nil) = %+v, %v", report, err)
	}
}

func TestGoogleGeocoder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/geocode/json") {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("region") != "br" {
			t.Errorf("region = %q, want br", r.URL.Query().Get("region"))
		}
		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(r.URL.Query().Get("address"), "NOWHERE") {
			w.Write([]byte(`{"results":[],"status":"ZERO_RESULTS"}`))
			return
		}
		w.Write([]byte(`{"results":[{"geometry":{"location":{"lat":-22.9068,"lng":-43.1729}}}],"status":"OK"}`))
	}))
	defer srv.Close()

	g, err := NewGoogleGeocoder("test-key", maps.WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewGoogleGeocoder() error = %v", err)
	}

	lat, lng, err := g.Geocode(context.Background(), "AV RIO BRANCO, CENTRO, RIO DE JANEIRO, RJ")
	if err != nil {
		t.Fatalf("Geocode() error = %v", err)
	}
	if lat != -22.9068 || lng != -43.1729 {
		t.Errorf("Geocode() = %v, %v", lat, lng)
	}

	if _, _, err := g.Geocode(context.Background(), "NOWHERE"); !errors.Is(err, ErrNoResults) {
		t.Errorf("Geocode(NOWHERE) error = %v, want ErrNoResults", err)
	}

	if _, err := NewGoogleGeocoder(""); err == nil {
		t.Error("NewGoogleGeocoder(\"\") should fail")
	}
}
