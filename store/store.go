package store

import (
	"context"
	"sync"

	"caixa-imoveis/models"
)

// Store is the snapshot backend: one table per region plus the shared archive.
// ReplaceAll must be table-level so readers never see a partially written table.
type Store interface {
	ReadAll(ctx context.Context, table string) ([]models.Listing, error)
	Append(ctx context.Context, table string, rows []models.Listing) error
	ReplaceAll(ctx context.Context, table string, rows []models.Listing) error
	Clear(ctx context.Context, table string) error
}

// Memory keeps tables in process. Used for dry runs and tests.
type Memory struct {
	mu     sync.RWMutex
	tables map[string][]models.Listing
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{tables: make(map[string][]models.Listing)}
}

func (m *Memory) ReadAll(ctx context.Context, table string) ([]models.Listing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return clone(m.tables[table]), nil
}

func (m *Memory) Append(ctx context.Context, table string, rows []models.Listing) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[table] = append(m.tables[table], clone(rows)...)
	return nil
}

func (m *Memory) ReplaceAll(ctx context.Context, table string, rows []models.Listing) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[table] = clone(rows)
	return nil
}

func (m *Memory) Clear(ctx context.Context, table string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tables, table)
	return nil
}

// Tables lists the tables that currently hold rows
func (m *Memory) Tables() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.tables))
	for name, rows := range m.tables {
		if len(rows) > 0 {
			names = append(names, name)
		}
	}
	return names
}

// clone copies rows including the optional values behind pointers
func clone(rows []models.Listing) []models.Listing {
	if rows == nil {
		return nil
	}
	out := make([]models.Listing, len(rows))
	for i, l := range rows {
		l.TotalArea = copyFloat(l.TotalArea)
		l.PrivateArea = copyFloat(l.PrivateArea)
		l.LandArea = copyFloat(l.LandArea)
		l.Latitude = copyFloat(l.Latitude)
		l.Longitude = copyFloat(l.Longitude)
		out[i] = l
	}
	return out
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
