package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("CONFIG_FILE", filepath.Join(dir, "config.yaml"))
	// empty values count as unset
	for _, k := range []string{"PORT", "ELEVENLABS_AGENT_ID", "PLATFORM_PAGE_SIZE", "PLATFORM_TIMEZONE",
		"OLLAMA_MODEL", "OLLAMA_TEMPERATURE", "ANALYSIS_TIMEOUT", "ANALYSIS_BATCH_SIZE", "ANALYSIS_BATCH_PAUSE", "ENRICH_CONCURRENCY"} {
		t.Setenv(k, "")
	}
	return dir
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Analysis.BatchSize != 5 || cfg.Analysis.BatchPause != time.Second {
		t.Fatalf("unexpected batch defaults: %+v", cfg.Analysis)
	}
	if cfg.Inference.Model != "callAnalyser" || cfg.Inference.Temperature != 0.3 {
		t.Fatalf("unexpected inference defaults: %+v", cfg.Inference)
	}
	if cfg.Platform.PageSize != 100 || cfg.Location() != time.UTC {
		t.Fatalf("unexpected platform defaults: %+v", cfg.Platform)
	}
}

func TestLoadYAMLThenEnv(t *testing.T) {
	dir := isolate(t)
	yml := []byte(`
port: "9090"
platform:
  agent_id: from-file
  page_size: 50
  timezone: Europe/Madrid
inference:
  model: other
  timeout: 45s
analysis:
  batch_size: 3
`)
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), yml, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("OLLAMA_MODEL", "from-env")
	t.Setenv("ANALYSIS_BATCH_PAUSE", "250")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Port != "9090" || cfg.Platform.AgentID != "from-file" || cfg.Platform.PageSize != 50 {
		t.Fatalf("yaml not applied: %+v", cfg)
	}
	if cfg.Inference.Model != "from-env" {
		t.Fatalf("env should override yaml, got %q", cfg.Inference.Model)
	}
	if cfg.Inference.Timeout != 45*time.Second || cfg.Analysis.BatchSize != 3 {
		t.Fatalf("unexpected values: timeout=%v batch=%d", cfg.Inference.Timeout, cfg.Analysis.BatchSize)
	}
	if cfg.Analysis.BatchPause != 250*time.Millisecond {
		t.Fatalf("pause = %v", cfg.Analysis.BatchPause)
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	dir := isolate(t)
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("platform: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestClamp(t *testing.T) {
	isolate(t)
	t.Setenv("PLATFORM_PAGE_SIZE", "1000")
	t.Setenv("ANALYSIS_BATCH_SIZE", "0")
	t.Setenv("ENRICH_CONCURRENCY", "500")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Platform.PageSize != 100 || cfg.Analysis.BatchSize != 1 || cfg.Platform.EnrichConcurrency != 32 {
		t.Fatalf("clamp failed: page=%d batch=%d enrich=%d",
			cfg.Platform.PageSize, cfg.Analysis.BatchSize, cfg.Platform.EnrichConcurrency)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected missing credentials error")
	}
	cfg.Platform.APIKey = "k"
	cfg.Platform.AgentID = "a"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg.Platform.Timezone = "Mars/Olympus"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected timezone error")
	}
}

func TestZeroBatchPauseMeansNoPause(t *testing.T) {
	isolate(t)
	t.Setenv("ANALYSIS_BATCH_PAUSE", "0")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Analysis.BatchPause >= 0 {
		t.Fatalf("pause = %v, want negative", cfg.Analysis.BatchPause)
	}
}
