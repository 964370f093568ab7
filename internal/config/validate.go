package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAnalysis(); err != nil {
		return err
	}
	if err := c.validateScoring(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateAnalysis() error {
	if c.Analysis.MinWords < 0 {
		return errors.New("analysis.min_words must be >= 0")
	}
	if len(c.Analysis.RollingWindows) == 0 {
		return errors.New("analysis.rolling_windows must include at least one window")
	}
	for _, w := range c.Analysis.RollingWindows {
		if w < 2 {
			return fmt.Errorf("analysis.rolling_windows entries must be >= 2, got %d", w)
		}
	}
	for i, sg := range c.Analysis.SavGol {
		if sg.Degree < 1 {
			return fmt.Errorf("analysis.savgol[%d].degree must be >= 1", i)
		}
		if sg.Window <= sg.Degree {
			return fmt.Errorf("analysis.savgol[%d].window must be greater than its degree", i)
		}
	}
	if c.Analysis.MacroDegree < 1 {
		return errors.New("analysis.macro_degree must be >= 1")
	}
	if c.Analysis.MacroWindow <= c.Analysis.MacroDegree {
		return errors.New("analysis.macro_window must be greater than analysis.macro_degree")
	}
	return nil
}

func (c *Config) validateScoring() error {
	switch c.Scoring.Backend {
	case BackendInference, BackendOpenAI:
	default:
		return fmt.Errorf("scoring.backend must be %q or %q, got %q", BackendInference, BackendOpenAI, c.Scoring.Backend)
	}
	if c.Scoring.Backend == BackendInference && strings.TrimSpace(c.Inference.BaseURL) == "" {
		return fmt.Errorf("inference.base_url must be set when scoring.backend is %q", BackendInference)
	}
	if c.Scoring.Backend == BackendOpenAI && strings.TrimSpace(c.LLM.Model) == "" {
		return fmt.Errorf("llm.model must be set when scoring.backend is %q", BackendOpenAI)
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"scoring.batch_size":            c.Scoring.BatchSize,
		"scoring.max_attempts":          c.Scoring.MaxAttempts,
		"scoring.retry_delay_seconds":   c.Scoring.RetryDelaySeconds,
		"inference.timeout_seconds":     c.Inference.TimeoutSeconds,
		"llm.timeout_seconds":           c.LLM.TimeoutSeconds,
		"workflow.workers":              c.Workflow.Workers,
		"workflow.queue_poll_interval":  c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	}); err != nil {
		return err
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		return errors.New("workflow.heartbeat_interval must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		return errors.New("workflow.heartbeat_timeout must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must exceed workflow.heartbeat_interval")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.NtfyTopic != "" && strings.ContainsAny(c.Notifications.NtfyTopic, " \t") {
		return errors.New("notifications.ntfy_topic must not contain whitespace")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
