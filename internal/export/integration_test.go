package export_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gyeh/tarifcheck/internal/dataload"
	"github.com/gyeh/tarifcheck/internal/db"
	"github.com/gyeh/tarifcheck/internal/engine"
	"github.com/gyeh/tarifcheck/internal/export"
	"github.com/gyeh/tarifcheck/internal/logging"
	"github.com/gyeh/tarifcheck/internal/tarif"
)

const (
	testPort     = 15433
	testDB       = "tariftest"
	testUser     = "postgres"
	testPassword = "postgres"
)

var (
	testDSN string
	pg      *embeddedpostgres.EmbeddedPostgres
)

func TestMain(m *testing.M) {
	testDSN = fmt.Sprintf("postgresql://%s:%s@localhost:%d/%s?sslmode=disable",
		testUser, testPassword, testPort, testDB)

	pg = embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(uint32(testPort)).
			Database(testDB).
			Username(testUser).
			Password(testPassword).
			Version(embeddedpostgres.V16).
			StartTimeout(30 * time.Second),
	)

	if err := pg.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start embedded postgres: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()

	if err := pg.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to stop embedded postgres: %v\n", err)
	}

	os.Exit(code)
}

// setupDB connects, resets the tarif schema and applies migrations.
func setupDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, testDSN)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := pool.Exec(ctx, "DROP SCHEMA IF EXISTS tarif CASCADE"); err != nil {
		t.Fatalf("drop schema: %v", err)
	}

	log := logging.Setup("text", false)
	if err := db.ApplyMigrations(ctx, pool, log); err != nil {
		pool.Close()
		t.Fatalf("migrations: %v", err)
	}

	t.Cleanup(func() { pool.Close() })
	return pool
}

// seedSource loads a small but complete tariff data set: two catalog codes,
// one exclusion, two reference tables and one bundle with a service and a
// diagnosis condition.
func seedSource(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()

	stmts := []string{
		`INSERT INTO tarif.service_catalog (code, descr, max_quantity)
		 VALUES ('C03.AH.0010', 'Appendectomy open', NULL),
		        ('AA.00.0010', 'Consultation, first 5 min', 6)`,
		`INSERT INTO tarif.service_exclusions (code, excluded_code)
		 VALUES ('C03.AH.0010', 'C03.AH.0020')`,
		`INSERT INTO tarif.bundles (code, descr, points)
		 VALUES ('C03.05A', 'Appendectomy flat rate', 3650)`,
		`INSERT INTO tarif.bundle_conditions
		 (bundle_code, group_id, level, group_op, kind, op, vals, connector_target, position)
		 VALUES
		 ('C03.05A', 1, 1, 'AND', 'SERVICE_IN_TABLE', 'IN', '{CAP01_APP}', 0, 1),
		 ('C03.05A', 1, 1, 'AND', 'DIAGNOSIS_IN_TABLE', 'IN', '{CAP01_DIAG}', 0, 2)`,
		`INSERT INTO tarif.reference_tables (table_name, table_type, code, descr)
		 VALUES ('CAP01_APP', 'service', 'C03.AH.0010', 'Appendectomy open'),
		        ('CAP01_DIAG', 'diagnosis', 'K35.2', 'Acute appendicitis')`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func TestExportEndToEnd(t *testing.T) {
	pool := setupDB(t)
	seedSource(t, pool)
	log := logging.Setup("text", false)
	outDir := filepath.Join(t.TempDir(), "data")

	summary, err := export.Run(context.Background(), pool, log, outDir)
	if err != nil {
		t.Fatalf("export.Run: %v", err)
	}

	t.Run("summary_metrics", func(t *testing.T) {
		if summary.Services != 2 {
			t.Errorf("Services = %d, want 2", summary.Services)
		}
		if summary.Bundles != 1 {
			t.Errorf("Bundles = %d, want 1", summary.Bundles)
		}
		if summary.ConditionRows != 2 {
			t.Errorf("ConditionRows = %d, want 2", summary.ConditionRows)
		}
		if summary.TableEntries != 2 {
			t.Errorf("TableEntries = %d, want 2", summary.TableEntries)
		}
		if summary.ExportID == "" {
			t.Error("ExportID is empty")
		}
	})

	t.Run("artifacts_on_disk", func(t *testing.T) {
		for _, name := range []string{
			dataload.CatalogFile,
			dataload.BundlesFile,
			dataload.ConditionsFile,
			dataload.TablesParquetFile,
			dataload.ManifestFile,
		} {
			if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
				t.Errorf("artifact %s: %v", name, err)
			}
		}
	})

	// the loader re-verifies the manifest digests written by the export
	cat, err := dataload.Load(outDir, log)
	if err != nil {
		t.Fatalf("dataload.Load: %v", err)
	}

	t.Run("catalog_round_trip", func(t *testing.T) {
		svc := cat.Services["C03.AH.0010"]
		if svc == nil || svc.Text != "Appendectomy open" {
			t.Fatalf("service missing after round trip: %+v", cat.Services)
		}
		if len(svc.Excludes) != 1 || svc.Excludes[0] != "C03.AH.0020" {
			t.Errorf("Excludes = %v", svc.Excludes)
		}
		cons := cat.Services["AA.00.0010"]
		if cons == nil || cons.MaxQuantity == nil || *cons.MaxQuantity != 6 {
			t.Errorf("max quantity lost: %+v", cons)
		}
		if tbl := cat.Table("CAP01_DIAG"); tbl == nil || !tbl.Contains("K35.2") {
			t.Error("diagnosis table missing after round trip")
		}
		b := cat.Bundles["C03.05A"]
		if b == nil || b.Points != 3650 || len(b.Conditions) != 2 {
			t.Fatalf("bundle missing or incomplete: %+v", b)
		}
	})

	t.Run("engine_selects_from_exported_data", func(t *testing.T) {
		eng := engine.New(cat, log)
		res := eng.Check(&tarif.Context{
			Services:  []tarif.ServiceInput{{Code: "C03.AH.0010", Quantity: 1}},
			Diagnoses: []string{"K35.2"},
		})
		if res.Type != tarif.ResultPauschale || res.Bundle == nil || res.Bundle.Code != "C03.05A" {
			t.Fatalf("result = %+v", res)
		}
	})
}

func TestExport_PreflightFailsOnEmptySchema(t *testing.T) {
	pool := setupDB(t)
	ctx := context.Background()
	if _, err := pool.Exec(ctx, "DROP SCHEMA tarif CASCADE"); err != nil {
		t.Fatal(err)
	}

	_, err := export.Run(ctx, pool, logging.Setup("text", false), t.TempDir())
	if err == nil {
		t.Fatal("expected preflight failure")
	}
	pe, ok := err.(*export.PipelineError)
	if !ok || pe.Phase != "preflight" {
		t.Fatalf("error = %v", err)
	}
}

func TestExport_Idempotent(t *testing.T) {
	pool := setupDB(t)
	seedSource(t, pool)
	log := logging.Setup("text", false)
	outDir := filepath.Join(t.TempDir(), "data")

	if _, err := export.Run(context.Background(), pool, log, outDir); err != nil {
		t.Fatalf("first run: %v", err)
	}
	// a second run overwrites the artifacts in place
	summary, err := export.Run(context.Background(), pool, log, outDir)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if summary.Bundles != 1 {
		t.Errorf("Bundles = %d, want 1", summary.Bundles)
	}
	if _, err := dataload.Load(outDir, log); err != nil {
		t.Fatalf("load after rewrite: %v", err)
	}
}
