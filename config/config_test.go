package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsNil(t *testing.T) {
	f, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if f != nil {
		t.Errorf("Load = %+v, want nil for missing file", f)
	}
}

func TestLoadFullFile(t *testing.T) {
	dir := t.TempDir()
	content := `catalog: Sources/Localizable.xcstrings
languages: [de, fr, it]
context: "A timer app for climbers"
concurrency: 5
provider:
  id: openai
  model: gpt-4o-mini
  base_url: https://example.com/v1
  timeout: 90s
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	f, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if f.Catalog != "Sources/Localizable.xcstrings" {
		t.Errorf("Catalog = %q", f.Catalog)
	}
	if len(f.Languages) != 3 || f.Languages[0] != "de" {
		t.Errorf("Languages = %v", f.Languages)
	}
	if f.Concurrency != 5 {
		t.Errorf("Concurrency = %d", f.Concurrency)
	}
	if f.Provider.ID != "openai" || f.Provider.Model != "gpt-4o-mini" {
		t.Errorf("Provider = %+v", f.Provider)
	}
	if f.Provider.Timeout != Duration(90*time.Second) {
		t.Errorf("Timeout = %v", f.Provider.Timeout)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("languages: ["), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatal("Load accepted malformed YAML")
	}
}

func TestLoadRejectsNegativeConcurrency(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("concurrency: -2"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatal("Load accepted negative concurrency")
	}
}

func TestParseEnv(t *testing.T) {
	t.Setenv("AITRANSLATE_API_KEY", "sk-test")
	t.Setenv("AITRANSLATE_MODEL", "gpt-4o")
	t.Setenv("AITRANSLATE_TIMEOUT", "45s")

	e, err := ParseEnv()
	if err != nil {
		t.Fatalf("ParseEnv: %v", err)
	}
	if e.APIKey != "sk-test" {
		t.Errorf("APIKey = %q", e.APIKey)
	}
	if e.Model != "gpt-4o" {
		t.Errorf("Model = %q", e.Model)
	}
	if e.Timeout != 45*time.Second {
		t.Errorf("Timeout = %v", e.Timeout)
	}
}
