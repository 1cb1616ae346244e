package export

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/gyeh/tarifcheck/internal/dataload"
	"github.com/gyeh/tarifcheck/internal/parquetio"
	embedsql "github.com/gyeh/tarifcheck/internal/sql"
)

// sourceData holds everything extracted from the tariff source, already in
// artifact row form.
type sourceData struct {
	Services   []dataload.ServiceRow
	Bundles    []dataload.BundleRow
	Conditions []dataload.ConditionJSONRow
	Tables     []parquetio.TableRow
}

func extract(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger) (*sourceData, error) {
	start := time.Now()
	data := &sourceData{}

	rows, err := pool.Query(ctx, embedsql.SelectServices)
	if err != nil {
		return nil, fmt.Errorf("query services: %w", err)
	}
	for rows.Next() {
		var r dataload.ServiceRow
		var sex *string
		if err := rows.Scan(&r.Code, &r.Text, &r.MinAge, &r.MaxAge, &sex, &r.MaxQuantity, &r.Excludes); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan service row: %w", err)
		}
		if sex != nil {
			r.Sex = *sex
		}
		data.Services = append(data.Services, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read services: %w", err)
	}

	rows, err = pool.Query(ctx, embedsql.SelectBundles)
	if err != nil {
		return nil, fmt.Errorf("query bundles: %w", err)
	}
	for rows.Next() {
		var r dataload.BundleRow
		if err := rows.Scan(&r.Code, &r.Text, &r.Points); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan bundle row: %w", err)
		}
		data.Bundles = append(data.Bundles, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read bundles: %w", err)
	}

	rows, err = pool.Query(ctx, embedsql.SelectConditions)
	if err != nil {
		return nil, fmt.Errorf("query conditions: %w", err)
	}
	for rows.Next() {
		var r dataload.ConditionJSONRow
		var sex *string
		if err := rows.Scan(&r.Bundle, &r.Group, &r.Level, &r.GroupOp, &r.Kind, &r.Op,
			&r.Values, &r.Threshold, &r.MinAge, &r.MaxAge, &sex, &r.ConnectorTarget, &r.Position); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan condition row: %w", err)
		}
		if sex != nil {
			r.Sex = *sex
		}
		data.Conditions = append(data.Conditions, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read conditions: %w", err)
	}

	rows, err = pool.Query(ctx, embedsql.SelectTables)
	if err != nil {
		return nil, fmt.Errorf("query reference tables: %w", err)
	}
	for rows.Next() {
		var r parquetio.TableRow
		if err := rows.Scan(&r.TableName, &r.TableType, &r.Code, &r.Text); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan table row: %w", err)
		}
		data.Tables = append(data.Tables, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read reference tables: %w", err)
	}

	log.Info().
		Int("services", len(data.Services)).
		Int("bundles", len(data.Bundles)).
		Int("condition_rows", len(data.Conditions)).
		Int("table_entries", len(data.Tables)).
		Dur("duration", time.Since(start)).
		Msg("extract complete")

	return data, nil
}
