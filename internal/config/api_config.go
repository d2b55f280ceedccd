package config

import "time"

type APIConfig interface {
	GetAPIBaseURL() string
	GetAPITimeout() time.Duration
	GetSiteID() string
	GetSiteKey() string
}

type API struct{}

var _ APIConfig = API{}

func (API) GetAPIBaseURL() string {
	return GetEnv("API_BASE_URL", "http://localhost:5000/api/")
}

func (API) GetAPITimeout() time.Duration {
	return GetEnvDuration("API_TIMEOUT", 30*time.Second)
}

func (API) GetSiteID() string {
	return GetEnv("API_SITE_ID", "")
}

func (API) GetSiteKey() string {
	return GetEnv("API_SITE_KEY", "")
}
