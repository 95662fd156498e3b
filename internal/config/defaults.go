package config

const (
	defaultConfigPath            = "~/.config/oszshare/config.toml"
	defaultServerBaseURL         = "https://168.107.57.128.sslip.io"
	defaultExpiryMinutes         = 5
	defaultMinExpiryMinutes      = 1
	defaultMaxExpiryMinutes      = 60
	defaultStateDir              = "~/.local/share/oszshare"
	defaultAPIBind               = "127.0.0.1:7490"
	defaultDetectIntervalSeconds = 2
	defaultLiveStateURL          = "ws://127.0.0.1:24050/ws"
	defaultLiveStateStaleSeconds = 5
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultLogRetentionDays      = 7
	envUploadKey                 = "OSZSHARE_UPLOAD_KEY"
	envServerURL                 = "OSZSHARE_SERVER_URL"
	envAPIToken                  = "OSZSHARE_API_TOKEN"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Server: Server{
			BaseURL:    defaultServerBaseURL,
			AutoDetect: true,
		},
		Expiry: Expiry{
			DefaultMinutes: defaultExpiryMinutes,
			MinMinutes:     defaultMinExpiryMinutes,
			MaxMinutes:     defaultMaxExpiryMinutes,
		},
		Paths: Paths{
			StateDir: defaultStateDir,
			APIBind:  defaultAPIBind,
		},
		Detection: Detection{
			IntervalSeconds:   defaultDetectIntervalSeconds,
			LiveStateURL:      defaultLiveStateURL,
			StaleAfterSeconds: defaultLiveStateStaleSeconds,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
