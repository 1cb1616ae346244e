package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gyeh/tarifcheck/internal/dataload"
	"github.com/gyeh/tarifcheck/internal/normalize"
	"github.com/gyeh/tarifcheck/internal/parquetio"
)

// writeArtifacts writes all artifact files plus the manifest. The manifest
// is written last so a directory with a manifest is always complete.
func writeArtifacts(outDir string, data *sourceData, exportID uuid.UUID, log zerolog.Logger) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	files := map[string]any{
		dataload.CatalogFile:    data.Services,
		dataload.BundlesFile:    data.Bundles,
		dataload.ConditionsFile: data.Conditions,
	}
	for name, v := range files {
		if err := writeJSON(filepath.Join(outDir, name), v); err != nil {
			return err
		}
		log.Info().Str("artifact", name).Msg("artifact written")
	}

	pq := filepath.Join(outDir, dataload.TablesParquetFile)
	if err := parquetio.WriteFile(pq, data.Tables); err != nil {
		return fmt.Errorf("write %s: %w", dataload.TablesParquetFile, err)
	}
	log.Info().Str("artifact", dataload.TablesParquetFile).Int("rows", len(data.Tables)).Msg("artifact written")

	manifest := dataload.Manifest{
		ExportID:  exportID.String(),
		CreatedAt: time.Now().UTC(),
		Files:     make(map[string]string, 4),
	}
	for _, name := range []string{
		dataload.CatalogFile,
		dataload.BundlesFile,
		dataload.ConditionsFile,
		dataload.TablesParquetFile,
	} {
		sha, err := normalize.FileHash(filepath.Join(outDir, name))
		if err != nil {
			return fmt.Errorf("hash artifact %s: %w", name, err)
		}
		manifest.Files[name] = sha
	}
	if err := writeJSON(filepath.Join(outDir, dataload.ManifestFile), manifest); err != nil {
		return err
	}
	log.Info().Str("artifact", dataload.ManifestFile).Msg("manifest written")

	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
