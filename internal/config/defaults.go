package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:            "info",
			MaxConcurrentEvents: 5,
			FallbackReply:       "Sorry, I couldn't come up with an answer just now. Please try again in a moment.",
			NoReplyText:         "Sorry, no reply generated.",
		},
		Messenger: MessengerConfig{
			ListenAddr:         ":8080",
			WebhookPath:        "/webhook",
			VerifyToken:        "${VERIFY_TOKEN}",
			GraphAPIBase:       "https://graph.facebook.com/v19.0",
			SendTimeoutSeconds: 10,
		},
		Backend: BackendConfig{
			APIBase:               "https://api.openai.com/v1",
			APIKey:                "${OPENAI_API_KEY}",
			Model:                 "gpt-4o-mini",
			PollIntervalMs:        1000,
			MaxPollAttempts:       30,
			RequestTimeoutSeconds: 30,
		},
		Store: StoreConfig{
			DBPath:          "~/.pagebot/pages.db",
			CacheTTLSeconds: 300,
		},
		Metrics: MetricsConfig{
			Enabled:  false,
			Endpoint: "/metrics",
		},
	}
}
