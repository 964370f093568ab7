package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAnalysis()
	c.normalizeScoring()
	c.normalizeInference()
	c.normalizeLLM()
	c.normalizeWorkflow()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkspaceDir) == "" {
		c.Paths.WorkspaceDir = defaultWorkspaceDir
	}
	if c.Paths.WorkspaceDir, err = expandPath(c.Paths.WorkspaceDir); err != nil {
		return fmt.Errorf("paths.workspace_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeAnalysis() {
	if len(c.Analysis.RollingWindows) == 0 {
		c.Analysis.RollingWindows = defaultRollingWindows()
	} else {
		windows := make([]int, 0, len(c.Analysis.RollingWindows))
		seen := make(map[int]struct{}, len(c.Analysis.RollingWindows))
		for _, w := range c.Analysis.RollingWindows {
			if w <= 0 {
				continue
			}
			if _, exists := seen[w]; exists {
				continue
			}
			seen[w] = struct{}{}
			windows = append(windows, w)
		}
		if len(windows) == 0 {
			windows = defaultRollingWindows()
		}
		c.Analysis.RollingWindows = windows
	}
	if len(c.Analysis.SavGol) == 0 {
		c.Analysis.SavGol = defaultSavGol()
	}
	if c.Analysis.MacroWindow <= 0 {
		c.Analysis.MacroWindow = defaultMacroWindow
	}
	if c.Analysis.MacroDegree <= 0 {
		c.Analysis.MacroDegree = defaultMacroDegree
	}
}

func (c *Config) normalizeScoring() {
	c.Scoring.Backend = strings.ToLower(strings.TrimSpace(c.Scoring.Backend))
	if c.Scoring.Backend == "" {
		c.Scoring.Backend = defaultScoringBackend
	}
	if c.Scoring.BatchSize <= 0 {
		c.Scoring.BatchSize = defaultScoringBatchSize
	}
	if c.Scoring.MaxAttempts <= 0 {
		c.Scoring.MaxAttempts = defaultScoringMaxAttempts
	}
	if c.Scoring.RetryDelaySeconds <= 0 {
		c.Scoring.RetryDelaySeconds = defaultScoringRetryDelaySeconds
	}
}

func (c *Config) normalizeInference() {
	c.Inference.BaseURL = strings.TrimSpace(c.Inference.BaseURL)
	if c.Inference.BaseURL == "" {
		c.Inference.BaseURL = defaultInferenceBaseURL
	}
	c.Inference.BaseURL = strings.TrimRight(c.Inference.BaseURL, "/")
	if c.Inference.TimeoutSeconds <= 0 {
		c.Inference.TimeoutSeconds = defaultInferenceTimeoutSeconds
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.Workers <= 0 {
		c.Workflow.Workers = defaultWorkers
	}
	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = defaultQueuePollInterval
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
