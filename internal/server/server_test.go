package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/gyeh/tarifcheck/internal/dataload"
	"github.com/gyeh/tarifcheck/internal/engine"
	"github.com/gyeh/tarifcheck/internal/tarif"
)

func testCatalog() *tarif.Catalog {
	return &tarif.Catalog{
		Services: map[string]*tarif.ServiceCode{
			"C03.AH.0010": {Code: "C03.AH.0010", Text: "Appendectomy open"},
		},
		Tables: map[string]*tarif.ReferenceTable{
			"CAP01_APP": {Name: "CAP01_APP", Type: tarif.TableService, Entries: map[string]string{"C03.AH.0010": ""}},
		},
		Bundles: map[string]*tarif.Bundle{
			"C03.05A": {Code: "C03.05A", Points: 3650, Conditions: []tarif.ConditionRow{
				{Bundle: "C03.05A", Group: 1, Level: 1, GroupOp: tarif.GroupAnd, Kind: tarif.KindServiceInTable, Op: tarif.OpIn, Values: []string{"CAP01_APP"}, Position: 1},
			}},
		},
	}
}

func newTestServer(t *testing.T, dataDir string) http.Handler {
	t.Helper()
	store := engine.NewStore(engine.New(testCatalog(), zerolog.Nop()))
	return New(store, dataDir, zerolog.Nop()).Router()
}

func TestHandleHealth(t *testing.T) {
	h := newTestServer(t, t.TempDir())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestHandleCheck(t *testing.T) {
	h := newTestServer(t, t.TempDir())
	req := httptest.NewRequest(http.MethodPost, "/api/check",
		strings.NewReader(`{"services":[{"code":"C03.AH.0010","quantity":1}]}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var result tarif.BillingResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if result.Type != tarif.ResultPauschale {
		t.Errorf("Type = %s, want pauschale", result.Type)
	}
	if result.RequestID == "" {
		t.Error("request id missing from response")
	}
}

func TestHandleCheck_BadBody(t *testing.T) {
	h := newTestServer(t, t.TempDir())
	req := httptest.NewRequest(http.MethodPost, "/api/check", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleReload(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, dataload.CatalogFile, `[{"code":"AA.00.0010","text":"Consultation"}]`)
	writeArtifact(t, dir, dataload.BundlesFile, `[]`)
	writeArtifact(t, dir, dataload.ConditionsFile, `[]`)
	writeArtifact(t, dir, dataload.TablesJSONFile, `[]`)

	store := engine.NewStore(engine.New(testCatalog(), zerolog.Nop()))
	h := New(store, dir, zerolog.Nop()).Router()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/reload", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	// the swapped engine reflects the reloaded, bundle-free data set
	if got := len(store.Current().Catalog().Bundles); got != 0 {
		t.Errorf("bundles after reload = %d, want 0", got)
	}
}

func TestHandleReload_BadDataDir(t *testing.T) {
	store := engine.NewStore(engine.New(testCatalog(), zerolog.Nop()))
	h := New(store, filepath.Join(t.TempDir(), "missing"), zerolog.Nop()).Router()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/reload", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	// the previous engine stays published
	if got := len(store.Current().Catalog().Bundles); got != 1 {
		t.Errorf("bundles after failed reload = %d, want 1", got)
	}
}

func writeArtifact(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
