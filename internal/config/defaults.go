package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8090
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/omnisearch/data/chat.db"
	}
	if cfg.Storage.MessageIndex == "" {
		cfg.Storage.MessageIndex = MessageIndexSQLite
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = "/usr/local/var/omnisearch/data/indices/messages"
	}
	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 20
	}
	if cfg.Search.MaxLimit == 0 {
		cfg.Search.MaxLimit = 100
	}
	if cfg.Search.PerSourceLimit == 0 {
		cfg.Search.PerSourceLimit = 25
	}
	if cfg.Search.SourceTimeoutMs == 0 {
		cfg.Search.SourceTimeoutMs = 2000
	}
	if cfg.Search.SuggestionLimit == 0 {
		cfg.Search.SuggestionLimit = 10
	}
	if cfg.Search.FrequentWindowDays == 0 {
		cfg.Search.FrequentWindowDays = 30
	}
}
