package config

const (
	defaultConfigPath            = "~/.config/pixelpost/config.toml"
	defaultQueueFile             = "~/.local/share/pixelpost/queue.csv"
	defaultArchiveDir            = "~/.local/share/pixelpost/archive"
	defaultLogDir                = "~/.local/share/pixelpost/logs"
	defaultStateDir              = "~/.local/state/pixelpost"
	defaultLedgerFile            = "ledger.db"
	defaultDelimiter             = ";"
	defaultVisibility            = "public"
	defaultPixelfedTimeout       = 60
	defaultMaxAltLength          = 300
	defaultLLMBaseURL            = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel              = "google/gemini-3-flash-preview"
	defaultLLMTitle              = "pixelpost"
	defaultLLMTimeoutSeconds     = 60
	defaultLLMPrompt             = "Describe this image in one short sentence suitable as alt text. Reply with the description only."
	defaultArchiveCollision      = CollisionOverwrite
	defaultNotifyRequestTimeout  = 10
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultLogRetentionDays      = 30
	defaultPixelfedAccessTokenEV = "PIXELFED_ACCESS_TOKEN"
	defaultLLMAPIKeyEV           = "OPENROUTER_API_KEY"
)

// Archive collision policies.
const (
	CollisionOverwrite = "overwrite"
	CollisionSuffix    = "suffix"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			QueueFile:  defaultQueueFile,
			ArchiveDir: defaultArchiveDir,
			LogDir:     defaultLogDir,
			StateDir:   defaultStateDir,
		},
		Queue: Queue{
			Delimiter: defaultDelimiter,
			Lock:      true,
		},
		Pixelfed: Pixelfed{
			Visibility:     defaultVisibility,
			TimeoutSeconds: defaultPixelfedTimeout,
		},
		Alt: Alt{
			AutoAlt:      true,
			MaxAltLength: defaultMaxAltLength,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
			Prompt:         defaultLLMPrompt,
		},
		Archive: Archive{
			Collision: defaultArchiveCollision,
		},
		Ledger: Ledger{
			Enabled: true,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Published:      true,
			Errors:         true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
