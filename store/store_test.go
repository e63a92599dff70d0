package store

import (
	"context"
	"testing"

	"caixa-imoveis/models"
)

func TestMemoryCopiesOnReadAndWrite(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	rows := []models.Listing{{ID: "1", Latitude: models.Float(-23.5)}}
	if err := m.Append(ctx, "SP", rows); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	rows[0].ID = "mutated"
	*rows[0].Latitude = 0

	got, err := m.ReadAll(ctx, "SP")
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if got[0].ID != "1" || *got[0].Latitude != -23.5 {
		t.Fatalf("stored row changed through caller slice: %+v", got[0])
	}

	got[0].ID = "changed"
	again, _ := m.ReadAll(ctx, "SP")
	if again[0].ID != "1" {
		t.Errorf("stored row changed through read slice: %q", again[0].ID)
	}
}

func TestMemoryOperations(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	m.Append(ctx, "RJ", []models.Listing{{ID: "a"}, {ID: "b"}})
	m.Append(ctx, "RJ", []models.Listing{{ID: "c"}})
	m.Append(ctx, "RJ", nil)

	got, _ := m.ReadAll(ctx, "RJ")
	if len(got) != 3 || got[2].ID != "c" {
		t.Fatalf("after appends = %v", ids(got))
	}

	if err := m.ReplaceAll(ctx, "RJ", []models.Listing{{ID: "z"}}); err != nil {
		t.Fatalf("ReplaceAll() error = %v", err)
	}
	got, _ = m.ReadAll(ctx, "RJ")
	if len(got) != 1 || got[0].ID != "z" {
		t.Fatalf("after replace = %v", ids(got))
	}

	if err := m.Clear(ctx, "RJ"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	got, _ = m.ReadAll(ctx, "RJ")
	if len(got) != 0 {
		t.Errorf("after clear = %v", ids(got))
	}
	if len(m.Tables()) != 0 {
		t.Errorf("Tables() = %v, want none", m.Tables())
	}
}

func TestMemoryHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewMemory().Append(ctx, "SP", []models.Listing{{ID: "1"}}); err == nil {
		t.Error("Append() with cancelled context should fail")
	}
}

func ids(rows []models.Listing) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}
