// Package dataload reads the static artifact directory produced by the
// export pipeline and assembles the read-only Catalog the engine evaluates
// against.
package dataload

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/gyeh/tarifcheck/internal/normalize"
	"github.com/gyeh/tarifcheck/internal/parquetio"
	"github.com/gyeh/tarifcheck/internal/tarif"
)

// Artifact file names inside a data directory.
const (
	CatalogFile       = "catalog.json"
	BundlesFile       = "bundles.json"
	ConditionsFile    = "conditions.json"
	TablesParquetFile = "tables.parquet"
	TablesJSONFile    = "tables.json"
	ManifestFile      = "manifest.json"
)

// Manifest describes one export run: which artifacts it wrote and their
// SHA-256 digests. The loader verifies digests when a manifest is present.
type Manifest struct {
	ExportID  string            `json:"export_id"`
	CreatedAt time.Time         `json:"created_at"`
	Source    string            `json:"source,omitempty"`
	Files     map[string]string `json:"files"`
}

// ServiceRow is the JSON form of one catalog entry.
type ServiceRow struct {
	Code        string   `json:"code"`
	Text        string   `json:"text,omitempty"`
	MinAge      *int     `json:"min_age,omitempty"`
	MaxAge      *int     `json:"max_age,omitempty"`
	Sex         string   `json:"sex,omitempty"`
	MaxQuantity *int     `json:"max_quantity,omitempty"`
	Excludes    []string `json:"excludes,omitempty"`
}

// BundleRow is the JSON form of one Pauschale.
type BundleRow struct {
	Code   string  `json:"code"`
	Text   string  `json:"text,omitempty"`
	Points float64 `json:"points"`
}

// ConditionJSONRow is the JSON form of one flat condition row.
type ConditionJSONRow struct {
	Bundle          string   `json:"bundle"`
	Group           int      `json:"group"`
	Level           int      `json:"level"`
	GroupOp         string   `json:"group_op"`
	Kind            string   `json:"kind"`
	Op              string   `json:"op"`
	Values          []string `json:"values,omitempty"`
	Threshold       *int     `json:"threshold,omitempty"`
	MinAge          *int     `json:"min_age,omitempty"`
	MaxAge          *int     `json:"max_age,omitempty"`
	Sex             string   `json:"sex,omitempty"`
	ConnectorTarget int      `json:"connector_target,omitempty"`
	Position        int      `json:"position"`
}

// TableJSONRow is the JSON fallback form of one reference-table entry,
// matching the Parquet schema.
type TableJSONRow struct {
	TableName string `json:"table_name"`
	TableType string `json:"table_type"`
	Code      string `json:"code"`
	Text      string `json:"text,omitempty"`
}

// Load reads all artifacts from dir and assembles the catalog. Per-bundle
// structural defects do not fail the load; they surface later as index
// build warnings. Load fails only when a required artifact is missing,
// unreadable, or contradicts the manifest.
func Load(dir string, log zerolog.Logger) (*tarif.Catalog, error) {
	start := time.Now()

	if err := verifyManifest(dir, log); err != nil {
		return nil, err
	}

	var services []ServiceRow
	if err := readJSON(filepath.Join(dir, CatalogFile), &services); err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	var bundles []BundleRow
	if err := readJSON(filepath.Join(dir, BundlesFile), &bundles); err != nil {
		return nil, fmt.Errorf("load bundles: %w", err)
	}
	var conds []ConditionJSONRow
	if err := readJSON(filepath.Join(dir, ConditionsFile), &conds); err != nil {
		return nil, fmt.Errorf("load conditions: %w", err)
	}
	tables, err := loadTables(dir)
	if err != nil {
		return nil, fmt.Errorf("load tables: %w", err)
	}

	cat := &tarif.Catalog{
		Services: make(map[string]*tarif.ServiceCode, len(services)),
		Tables:   make(map[string]*tarif.ReferenceTable),
		Bundles:  make(map[string]*tarif.Bundle, len(bundles)),
	}

	for _, row := range services {
		code := normalize.Service(row.Code)
		if code == "" {
			log.Warn().Str("code", row.Code).Msg("catalog entry with empty code skipped")
			continue
		}
		cat.Services[code] = &tarif.ServiceCode{
			Code:        code,
			Text:        row.Text,
			MinAge:      row.MinAge,
			MaxAge:      row.MaxAge,
			Sex:         row.Sex,
			MaxQuantity: row.MaxQuantity,
			Excludes:    row.Excludes,
		}
	}

	for _, row := range tables {
		name := normalize.TableName(row.TableName)
		if name == "" || row.Code == "" {
			continue
		}
		tbl := cat.Tables[name]
		if tbl == nil {
			tbl = &tarif.ReferenceTable{
				Name:    name,
				Type:    tarif.TableType(row.TableType),
				Entries: make(map[string]string),
			}
			cat.Tables[name] = tbl
		}
		tbl.Entries[entryKey(tbl.Type, row.Code)] = row.Text
	}

	for _, row := range bundles {
		if row.Code == "" {
			continue
		}
		cat.Bundles[row.Code] = &tarif.Bundle{
			Code:   row.Code,
			Text:   row.Text,
			Points: row.Points,
		}
	}

	dropped := 0
	for _, row := range conds {
		b := cat.Bundles[row.Bundle]
		if b == nil {
			dropped++
			log.Warn().Str("bundle", row.Bundle).Msg("condition row references unknown bundle, dropped")
			continue
		}
		b.Conditions = append(b.Conditions, tarif.ConditionRow{
			Bundle:          row.Bundle,
			Group:           row.Group,
			Level:           row.Level,
			GroupOp:         tarif.GroupOp(row.GroupOp),
			Kind:            tarif.ConditionKind(row.Kind),
			Op:              tarif.CompareOp(row.Op),
			Values:          row.Values,
			Threshold:       row.Threshold,
			MinAge:          row.MinAge,
			MaxAge:          row.MaxAge,
			Sex:             row.Sex,
			ConnectorTarget: row.ConnectorTarget,
			Position:        row.Position,
		})
	}

	log.Info().
		Int("services", len(cat.Services)).
		Int("tables", len(cat.Tables)).
		Int("bundles", len(cat.Bundles)).
		Int("condition_rows", len(conds)-dropped).
		Dur("duration", time.Since(start)).
		Msg("reference data loaded")

	return cat, nil
}

// entryKey canonicalizes a table entry code according to the table's type.
func entryKey(t tarif.TableType, code string) string {
	switch t {
	case tarif.TableDiagnosis:
		return normalize.Diagnosis(code)
	case tarif.TableMedication:
		return normalize.ATC(code)
	default:
		return normalize.Service(code)
	}
}

// loadTables prefers the Parquet artifact and falls back to JSON.
func loadTables(dir string) ([]parquetio.TableRow, error) {
	pq := filepath.Join(dir, TablesParquetFile)
	if _, err := os.Stat(pq); err == nil {
		return parquetio.ReadAll(pq)
	}

	var rows []TableJSONRow
	if err := readJSON(filepath.Join(dir, TablesJSONFile), &rows); err != nil {
		return nil, fmt.Errorf("neither %s nor %s readable: %w", TablesParquetFile, TablesJSONFile, err)
	}
	out := make([]parquetio.TableRow, len(rows))
	for i, r := range rows {
		out[i] = parquetio.TableRow{
			TableName: r.TableName,
			TableType: r.TableType,
			Code:      r.Code,
			Text:      r.Text,
		}
	}
	return out, nil
}

// verifyManifest checks artifact digests when a manifest is present.
// A missing manifest is fine (hand-built data dirs); a digest mismatch is
// not, since it means the artifacts drifted apart.
func verifyManifest(dir string, log zerolog.Logger) error {
	path := filepath.Join(dir, ManifestFile)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("parse manifest: %w", err)
	}

	for name, want := range m.Files {
		got, err := normalize.FileHash(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("manifest lists %s: %w", name, err)
		}
		if got != want {
			return fmt.Errorf("artifact %s does not match manifest digest (got %s, want %s)", name, got, want)
		}
	}
	log.Info().Str("export_id", m.ExportID).Time("created_at", m.CreatedAt).Msg("manifest verified")
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}
