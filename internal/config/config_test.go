package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"fortuna/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantWorkspace := filepath.Join(tempHome, ".local", "share", "fortuna")
	if cfg.Paths.WorkspaceDir != wantWorkspace {
		t.Fatalf("unexpected workspace dir: got %q want %q", cfg.Paths.WorkspaceDir, wantWorkspace)
	}
	if cfg.Paths.OutputDir != filepath.Join(tempHome, "fortuna", "output") {
		t.Fatalf("unexpected output dir: %q", cfg.Paths.OutputDir)
	}
	if cfg.Analysis.MinWords != 3 {
		t.Fatalf("unexpected min words default: %d", cfg.Analysis.MinWords)
	}
	if len(cfg.Analysis.RollingWindows) != 2 || cfg.Analysis.RollingWindows[0] != 20 || cfg.Analysis.RollingWindows[1] != 100 {
		t.Fatalf("unexpected rolling windows default: %v", cfg.Analysis.RollingWindows)
	}
	if len(cfg.Analysis.SavGol) != 2 || cfg.Analysis.SavGol[0].Window != 51 || cfg.Analysis.SavGol[1].Window != 201 {
		t.Fatalf("unexpected savgol defaults: %v", cfg.Analysis.SavGol)
	}
	if cfg.Scoring.Backend != "inference" {
		t.Fatalf("unexpected scoring backend default: %q", cfg.Scoring.Backend)
	}
	if cfg.Workflow.Workers != 5 {
		t.Fatalf("unexpected workers default: %d", cfg.Workflow.Workers)
	}
	if cfg.LedgerPath() != filepath.Join(wantWorkspace, "fortuna.db") {
		t.Fatalf("unexpected ledger path: %q", cfg.LedgerPath())
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}

	for _, dir := range []string{cfg.Paths.WorkspaceDir, cfg.Paths.OutputDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "fortuna.toml")

	type payload struct {
		Analysis struct {
			MinWords       int   `toml:"min_words"`
			RollingWindows []int `toml:"rolling_windows"`
		} `toml:"analysis"`
		Scoring struct {
			Backend   string `toml:"backend"`
			BatchSize int    `toml:"batch_size"`
		} `toml:"scoring"`
		Workflow struct {
			Workers int `toml:"workers"`
		} `toml:"workflow"`
	}
	custom := payload{}
	custom.Analysis.MinWords = 5
	custom.Analysis.RollingWindows = []int{10, 50}
	custom.Scoring.Backend = "openai"
	custom.Scoring.BatchSize = 8
	custom.Workflow.Workers = 2
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Analysis.MinWords != 5 {
		t.Fatalf("expected min words 5, got %d", cfg.Analysis.MinWords)
	}
	if len(cfg.Analysis.RollingWindows) != 2 || cfg.Analysis.RollingWindows[0] != 10 {
		t.Fatalf("expected rolling windows override, got %v", cfg.Analysis.RollingWindows)
	}
	if cfg.Scoring.Backend != "openai" {
		t.Fatalf("expected backend openai, got %q", cfg.Scoring.Backend)
	}
	if cfg.Scoring.BatchSize != 8 {
		t.Fatalf("expected batch size 8, got %d", cfg.Scoring.BatchSize)
	}
	if cfg.Workflow.Workers != 2 {
		t.Fatalf("expected workers 2, got %d", cfg.Workflow.Workers)
	}
	// Unset sections keep defaults.
	if cfg.Analysis.MacroWindow != 201 {
		t.Fatalf("expected macro window default, got %d", cfg.Analysis.MacroWindow)
	}
}

func TestEnvFillsMissingLLMKey(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "fortuna.toml")
	if err := os.WriteFile(configPath, []byte("[llm]\napi_key = \"\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("OPENAI_API_KEY", "env-key")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LLM.APIKey != "env-key" {
		t.Fatalf("expected LLM key from env, got %q", cfg.LLM.APIKey)
	}
}

func TestConfigFileLLMKeyWinsOverEnv(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "fortuna.toml")
	if err := os.WriteFile(configPath, []byte("[llm]\napi_key = \"file-key\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("OPENAI_API_KEY", "env-key")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LLM.APIKey != "file-key" {
		t.Fatalf("expected LLM key from file, got %q", cfg.LLM.APIKey)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "[analysis]") {
		t.Fatalf("sample config missing analysis section: %s", contents)
	}

	// Validate it decodes
	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if cfg.Analysis.MinWords != 3 {
		t.Fatalf("expected sample min words 3, got %d", cfg.Analysis.MinWords)
	}
	if len(cfg.Analysis.SavGol) != 2 {
		t.Fatalf("expected sample savgol pairs, got %v", cfg.Analysis.SavGol)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cfg := config.Default()
	cfg.Scoring.Backend = "magic"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown scoring backend")
	}

	cfg = config.Default()
	cfg.Analysis.MinWords = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative min words")
	}

	cfg = config.Default()
	cfg.Analysis.RollingWindows = []int{1}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for rolling window below 2")
	}

	cfg = config.Default()
	cfg.Analysis.SavGol = []config.SavGol{{Window: 3, Degree: 3}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when savgol window does not exceed degree")
	}

	cfg = config.Default()
	cfg.Workflow.Workers = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero workers")
	}

	cfg = config.Default()
	cfg.Workflow.HeartbeatInterval = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero heartbeat interval")
	}

	cfg = config.Default()
	cfg.Workflow.HeartbeatTimeout = cfg.Workflow.HeartbeatInterval
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when heartbeat timeout does not exceed interval")
	}

	cfg = config.Default()
	cfg.Notifications.NtfyTopic = "two words"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for whitespace in ntfy topic")
	}
}

func TestNormalizeDropsBadRollingWindows(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "fortuna.toml")
	if err := os.WriteFile(configPath, []byte("[analysis]\nrolling_windows = [20, 20, 0, 100]\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(cfg.Analysis.RollingWindows) != 2 || cfg.Analysis.RollingWindows[0] != 20 || cfg.Analysis.RollingWindows[1] != 100 {
		t.Fatalf("expected deduped windows [20 100], got %v", cfg.Analysis.RollingWindows)
	}
}
