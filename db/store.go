package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"caixa-imoveis/models"

	"go.uber.org/zap"
)

const listingColumns = `id_imovel, uf, cidade, bairro, endereco, preco, valor_avaliacao, desconto,
	descricao, modalidade_venda, link_acesso, tipo_imovel, area_total, area_privativa,
	area_terreno, data_inclusao, latitude, longitude`

// ReadAll returns the rows of a table in insertion order
func (db *DB) ReadAll(ctx context.Context, table string) ([]models.Listing, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+listingColumns+`
		FROM listings
		WHERE table_name = $1
		ORDER BY seq ASC
	`, table)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", table, err)
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		var (
			l                    models.Listing
			region               string
			total, private, land sql.NullFloat64
			latitude, longitude  sql.NullFloat64
			included             time.Time
		)
		err := rows.Scan(
			&l.ID, &region, &l.City, &l.Neighborhood, &l.Address, &l.Price, &l.AppraisalValue, &l.DiscountPct,
			&l.Description, &l.SaleMode, &l.AccessLink, &l.PropertyType, &total, &private,
			&land, &included, &latitude, &longitude,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		l.Region = models.Region(region)
		l.TotalArea = floatPtr(total)
		l.PrivateArea = floatPtr(private)
		l.LandArea = floatPtr(land)
		l.Latitude = floatPtr(latitude)
		l.Longitude = floatPtr(longitude)
		l.InclusionDate = models.CalendarDay(included)
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// Append inserts rows at the end of a table
func (db *DB) Append(ctx context.Context, table string, rows []models.Listing) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertListings(ctx, tx, table, rows); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	db.logger.Info("appended listings", zap.String("table", table), zap.Int("rows", len(rows)))
	return nil
}

// ReplaceAll swaps the contents of a table inside one transaction
func (db *DB) ReplaceAll(ctx context.Context, table string, rows []models.Listing) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM listings WHERE table_name = $1`, table); err != nil {
		return fmt.Errorf("failed to delete %s rows: %w", table, err)
	}
	if err := insertListings(ctx, tx, table, rows); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	db.logger.Info("replaced table", zap.String("table", table), zap.Int("rows", len(rows)))
	return nil
}

// Clear removes every row of a table
func (db *DB) Clear(ctx context.Context, table string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM listings WHERE table_name = $1`, table); err != nil {
		return fmt.Errorf("failed to clear %s: %w", table, err)
	}
	return nil
}

func insertListings(ctx context.Context, tx *sql.Tx, table string, rows []models.Listing) error {
	if len(rows) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO listings (table_name, `+listingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, l := range rows {
		_, err := stmt.ExecContext(ctx, table,
			l.ID, string(l.Region), l.City, l.Neighborhood, l.Address, l.Price, l.AppraisalValue, l.DiscountPct,
			l.Description, l.SaleMode, l.AccessLink, l.PropertyType, nullFloat(l.TotalArea), nullFloat(l.PrivateArea),
			nullFloat(l.LandArea), dateValue(l.InclusionDate), nullFloat(l.Latitude), nullFloat(l.Longitude),
		)
		if err != nil {
			return fmt.Errorf("failed to insert listing %s into %s: %w", l.ID, table, err)
		}
	}
	return nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// dateValue renders the calendar date so the DATE column never shifts with the session time zone
func dateValue(t time.Time) string {
	if t.IsZero() {
		t = models.Day(time.Now())
	}
	return t.Format(models.DateLayout)
}
