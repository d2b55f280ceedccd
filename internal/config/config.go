package config

type Config interface {
	EnvConfig
	CorsConfig
	SessionConfig
	APIConfig
	RedisConfig
	AccessConfig
	TelemetryConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	Session
	API
	Redis
	Access
	Telemetry
}

func New() Config {
	return mainConfig{}
}
