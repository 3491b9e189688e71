package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "edgeward.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaultsForAbsentKeys(t *testing.T) {
	path := writeConfigFile(t, "port: 9000\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 9000 {
		t.Fatalf("Port = %d, want 9000", cfg.Port)
	}
	if cfg.WorkerProcesses != Defaults().WorkerProcesses {
		t.Fatalf("WorkerProcesses = %d, want default %d", cfg.WorkerProcesses, Defaults().WorkerProcesses)
	}
}

func TestLoadRejectsInvalidPort(t *testing.T) {
	path := writeConfigFile(t, "port: 0\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for port: 0")
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/edgeward.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestStoreReloadSwapsAtomically(t *testing.T) {
	path := writeConfigFile(t, "port: 7000\n")
	s, err := NewStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if s.Get().Port != 7000 {
		t.Fatalf("Port = %d, want 7000", s.Get().Port)
	}

	if err := os.WriteFile(path, []byte("port: 7001\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := s.Reload(); err != nil {
		t.Fatal(err)
	}
	if s.Get().Port != 7001 {
		t.Fatalf("Port after reload = %d, want 7001", s.Get().Port)
	}
}

func TestStoreReloadKeepsPreviousOnFailure(t *testing.T) {
	path := writeConfigFile(t, "port: 7000\n")
	s, err := NewStore(path)
	if err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte("port: -1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := s.Reload(); err == nil {
		t.Fatal("expected reload to fail on invalid port")
	}
	if s.Get().Port != 7000 {
		t.Fatalf("Port after failed reload = %d, want unchanged 7000", s.Get().Port)
	}
}

func TestParseCLIPositionalAndFlags(t *testing.T) {
	cli, err := ParseCLI([]string{"-dev", "myconfig.yaml"})
	if err != nil {
		t.Fatal(err)
	}
	if !cli.DevMode {
		t.Fatal("DevMode should be true")
	}
	if cli.ConfigPath != "myconfig.yaml" {
		t.Fatalf("ConfigPath = %q, want myconfig.yaml", cli.ConfigPath)
	}
}
