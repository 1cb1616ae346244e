package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tarifcheck.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFromFile_FillsUnsetFields(t *testing.T) {
	path := writeConfig(t, "data_dir: /srv/tarif\nlisten_addr: \":9090\"\nmax_near_misses: 5\n")

	var c Config
	if err := c.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if c.DataDir != "/srv/tarif" || c.ListenAddr != ":9090" || c.MaxNearMisses != 5 {
		t.Errorf("config = %+v", c)
	}
}

func TestLoadFromFile_FlagsTakePrecedence(t *testing.T) {
	path := writeConfig(t, "data_dir: /srv/tarif\nlisten_addr: \":9090\"\n")

	c := Config{DataDir: "/flag/dir"}
	if err := c.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if c.DataDir != "/flag/dir" {
		t.Errorf("flag value overwritten: %q", c.DataDir)
	}
	if c.ListenAddr != ":9090" {
		t.Errorf("unset field not filled: %q", c.ListenAddr)
	}
}

func TestLoadFromFile_NegativeNearMisses(t *testing.T) {
	path := writeConfig(t, "max_near_misses: -1\n")
	var c Config
	if err := c.LoadFromFile(path); err == nil {
		t.Fatal("expected error for negative max_near_misses")
	}
}

func TestLoadFromFile_BadYAML(t *testing.T) {
	path := writeConfig(t, "data_dir: [unterminated\n")
	var c Config
	if err := c.LoadFromFile(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Error("empty data dir must fail validation")
	}

	c.DataDir = filepath.Join(t.TempDir(), "missing")
	if err := c.Validate(); err == nil {
		t.Error("nonexistent data dir must fail validation")
	}

	c.DataDir = t.TempDir()
	if err := c.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestValidateWithDSN(t *testing.T) {
	c := Config{}
	if err := c.ValidateWithDSN(); err == nil {
		t.Error("empty DSN must fail validation")
	}
	c.DSN = "postgres://localhost/tarif"
	if err := c.ValidateWithDSN(); err != nil {
		t.Errorf("ValidateWithDSN: %v", err)
	}
}
