package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadExpandsEnvAndAppliesDefaults(t *testing.T) {
	t.Setenv("STEWARD_TEST_KEY", "sk-test-123")

	dir := t.TempDir()
	path := filepath.Join(dir, "steward.yaml")
	data := `
llm:
  default_provider: openai
  providers:
    openai:
      api_key: ${STEWARD_TEST_KEY}
      default_model: gpt-4o
memory:
  database_path: /tmp/steward-test.db
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.DefaultProvider != "openai" {
		t.Errorf("default provider = %q, want openai", cfg.LLM.DefaultProvider)
	}
	if got := cfg.LLM.Providers["openai"].APIKey; got != "sk-test-123" {
		t.Errorf("api key = %q, want expanded env value", got)
	}
	if cfg.Agent.MaxIterations != 10 {
		t.Errorf("max iterations default = %d, want 10", cfg.Agent.MaxIterations)
	}
	if cfg.Memory.CompactionThreshold != 30 || cfg.Memory.KeepRecent != 20 {
		t.Errorf("compaction defaults = %d/%d, want 30/20",
			cfg.Memory.CompactionThreshold, cfg.Memory.KeepRecent)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidateRejectsBadCompactionBounds(t *testing.T) {
	cfg := Default()
	cfg.Memory.KeepRecent = 30
	cfg.Memory.CompactionThreshold = 30
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected keep_recent >= threshold to fail validation")
	}
}

func TestValidateRejectsIncompleteWorkflow(t *testing.T) {
	cfg := Default()
	cfg.Workflows.Entries = []WorkflowConfig{{Name: "morning"}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected workflow without schedule to fail validation")
	}
}
