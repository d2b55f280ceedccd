package config

type TelemetryConfig interface {
	GetOTLPEndpoint() string
	GetVersion() string
}

type Telemetry struct{}

var _ TelemetryConfig = Telemetry{}

// GetOTLPEndpoint is the collector address. Empty disables tracing.
func (Telemetry) GetOTLPEndpoint() string {
	return GetEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
}

func (Telemetry) GetVersion() string {
	return GetEnv("APP_VERSION", "0.1.0")
}
