package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigEmptyPathGivesDefaults(t *testing.T) {
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BatchSize != 256 || cfg.TrainEpochs != 100 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadConfigParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	doc := `
batch_size: 64
train_epochs: 10
seed: 42
weights:
  rec: 25
generator:
  hidden_dims: [128, 64]
  memory_slots: 256
critic_hidden: [128]
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BatchSize != 64 || cfg.TrainEpochs != 10 || cfg.Seed != 42 {
		t.Errorf("scalar fields: %+v", cfg)
	}
	if cfg.Weights["rec"] != 25 {
		t.Errorf("weights: %v", cfg.Weights)
	}
	if len(cfg.Generator.HiddenDims) != 2 || cfg.Generator.MemorySlots != 256 {
		t.Errorf("generator: %+v", cfg.Generator)
	}
	if len(cfg.CriticHidden) != 1 || cfg.CriticHidden[0] != 128 {
		t.Errorf("critic: %v", cfg.CriticHidden)
	}
}

func TestLoadConfigRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("batch_size: [not a number"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfig(path); err == nil {
		t.Error("expected a parse error")
	}
}

func TestReadMatrix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "expr.csv")
	doc := "gA,gB,gC\n1,2,3\n4.5,0,6\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	d, err := readMatrix(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if d.Rows() != 2 || d.Cols() != 3 {
		t.Errorf("dims = %dx%d, want 2x3", d.Rows(), d.Cols())
	}
	if got := d.X.At(1, 0); got != 4.5 {
		t.Errorf("X[1,0] = %v, want 4.5", got)
	}
}

func TestReadMatrixRejectsNonNumeric(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	if err := os.WriteFile(path, []byte("gA,gB\n1,oops\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := readMatrix(path); err == nil {
		t.Error("expected a parse error")
	}
}
