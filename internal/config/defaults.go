package config

const (
	defaultWorkspaceDir             = "~/.local/share/fortuna"
	defaultOutputDir                = "~/fortuna/output"
	defaultLogDir                   = "~/.local/share/fortuna/logs"
	defaultLogRetentionDays         = 60
	defaultLogFormat                = "console"
	defaultLogLevel                 = "info"
	defaultMinWords                 = 3
	defaultMacroWindow              = 201
	defaultMacroDegree              = 3
	defaultScoringBackend           = BackendInference
	defaultScoringBatchSize         = 32
	defaultScoringMaxAttempts       = 4
	defaultScoringRetryDelaySeconds = 2
	defaultInferenceBaseURL         = "http://127.0.0.1:8090"
	defaultInferenceTimeoutSeconds  = 60
	defaultLLMModel                 = "gpt-5-mini"
	defaultLLMTimeoutSeconds        = 120
	defaultWorkers                  = 5
	defaultQueuePollInterval        = 1
	defaultErrorRetryInterval       = 10
	defaultHeartbeatInterval        = 15
	defaultHeartbeatTimeout         = 120
	defaultNotifyRequestTimeout     = 10
)

func defaultRollingWindows() []int {
	return []int{20, 100}
}

func defaultSavGol() []SavGol {
	return []SavGol{
		{Window: 51, Degree: 3},
		{Window: 201, Degree: 3},
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkspaceDir: defaultWorkspaceDir,
			OutputDir:    defaultOutputDir,
			LogDir:       defaultLogDir,
		},
		Analysis: Analysis{
			MinWords:       defaultMinWords,
			RollingWindows: defaultRollingWindows(),
			SavGol:         defaultSavGol(),
			MacroWindow:    defaultMacroWindow,
			MacroDegree:    defaultMacroDegree,
		},
		Scoring: Scoring{
			Backend:           defaultScoringBackend,
			BatchSize:         defaultScoringBatchSize,
			MaxAttempts:       defaultScoringMaxAttempts,
			RetryDelaySeconds: defaultScoringRetryDelaySeconds,
		},
		Inference: Inference{
			BaseURL:        defaultInferenceBaseURL,
			TimeoutSeconds: defaultInferenceTimeoutSeconds,
		},
		LLM: LLM{
			Model:          defaultLLMModel,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Workflow: Workflow{
			Workers:            defaultWorkers,
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			HeartbeatInterval:  defaultHeartbeatInterval,
			HeartbeatTimeout:   defaultHeartbeatTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			RunComplete:    true,
			Errors:         true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
