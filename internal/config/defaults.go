package config

// applyDefaults fills unset fields so a minimal config file is runnable.
func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}

	if cfg.NATS.URL == "" {
		cfg.NATS.URL = "nats://127.0.0.1:4222"
	}
	if cfg.NATS.RenderStream == "" {
		cfg.NATS.RenderStream = "DOCWEAVER_RENDER"
	}
	if cfg.NATS.RenderSubject == "" {
		cfg.NATS.RenderSubject = "docweaver.render"
	}
	if cfg.NATS.RenderDurable == "" {
		cfg.NATS.RenderDurable = "docweaver-worker"
	}
	if cfg.NATS.NotifyStream == "" {
		cfg.NATS.NotifyStream = "DOCWEAVER_EVENTS"
	}
	if cfg.NATS.NotifyPrefix == "" {
		cfg.NATS.NotifyPrefix = "docweaver.events"
	}

	if cfg.Storage.BasePath == "" {
		cfg.Storage.BasePath = "./data/objects"
	}
	if cfg.Storage.Bucket == "" {
		cfg.Storage.Bucket = "contributions"
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "./data/docweaver.db"
	}

	if cfg.Retry.Backoff == "" {
		cfg.Retry.Backoff = "linear"
	}
	if cfg.Retry.InitialDelay == "" {
		cfg.Retry.InitialDelay = "1s"
	}
	if cfg.Retry.MaxDelay == "" {
		cfg.Retry.MaxDelay = "30s"
	}
	if cfg.Retry.MaxRetries == 0 {
		// Default 2 retries (3 total attempts) unless explicitly set.
		cfg.Retry.MaxRetries = 2
	}
	if cfg.Retry.MaxRetries < 0 {
		cfg.Retry.MaxRetries = 0
	}

	if cfg.Templates.Dir == "" {
		cfg.Templates.Dir = "./templates"
	}

	if cfg.Metrics.Listen == "" {
		cfg.Metrics.Listen = ":9090"
	}

	if cfg.Sweep.Interval == "" {
		cfg.Sweep.Interval = "5m"
	}
	if cfg.Sweep.Window == "" {
		cfg.Sweep.Window = "30m"
	}
}
