// pkg/config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// ProviderOAuth holds the client credentials for one upstream provider's
// token endpoint.
type ProviderOAuth struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	AuthURL      string
}

type Config struct {
	Env string

	// Service listen addresses
	OrchestratorAddr string
	BooksAddr        string
	FieldOpsAddr     string
	CommsAddr        string

	// Session tokens minted by the orchestrator and verified by tool servers.
	SessionSecret string
	SessionIssuer string
	SessionTTL    time.Duration

	// Upstream provider OAuth apps, keyed by provider name.
	Providers map[string]ProviderOAuth

	// Redis & Postgres
	RedisURL    string
	DatabaseURL string
}

func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		Env:              env("TOOLGATE_ENV", "dev"),
		OrchestratorAddr: env("TOOLGATE_ORCH_ADDR", ":8080"),
		BooksAddr:        env("TOOLGATE_BOOKS_ADDR", ":8081"),
		FieldOpsAddr:     env("TOOLGATE_FIELDOPS_ADDR", ":8082"),
		CommsAddr:        env("TOOLGATE_COMMS_ADDR", ":8083"),
		SessionSecret:    env("SESSION_SECRET", ""),
		SessionIssuer:    env("SESSION_ISSUER", "toolgate-orchestrator"),
		SessionTTL:       envDur("SESSION_TTL_SEC", 3600) * time.Second,
		Providers: map[string]ProviderOAuth{
			"quickbooks": {
				ClientID:     env("QBO_CLIENT_ID", ""),
				ClientSecret: env("QBO_CLIENT_SECRET", ""),
				TokenURL:     env("QBO_TOKEN_URL", "https://oauth.platform.intuit.com/oauth2/v1/tokens/bearer"),
				AuthURL:      env("QBO_AUTH_URL", "https://appcenter.intuit.com/connect/oauth2"),
			},
			"jobber": {
				ClientID:     env("JOBBER_CLIENT_ID", ""),
				ClientSecret: env("JOBBER_CLIENT_SECRET", ""),
				TokenURL:     env("JOBBER_TOKEN_URL", "https://api.getjobber.com/api/oauth/token"),
				AuthURL:      env("JOBBER_AUTH_URL", "https://api.getjobber.com/api/oauth/authorize"),
			},
			"nylas": {
				ClientID:     env("NYLAS_CLIENT_ID", ""),
				ClientSecret: env("NYLAS_CLIENT_SECRET", ""),
				TokenURL:     env("NYLAS_TOKEN_URL", "https://api.us.nylas.com/v3/connect/token"),
				AuthURL:      env("NYLAS_AUTH_URL", "https://api.us.nylas.com/v3/connect/auth"),
			},
			"telnyx": {
				ClientID:     env("TELNYX_CLIENT_ID", ""),
				ClientSecret: env("TELNYX_CLIENT_SECRET", ""),
				TokenURL:     env("TELNYX_TOKEN_URL", "https://api.telnyx.com/oauth/token"),
				AuthURL:      env("TELNYX_AUTH_URL", "https://api.telnyx.com/oauth/authorize"),
			},
		},
		RedisURL:    env("REDIS_URL", ""),
		DatabaseURL: env("DATABASE_URL", ""),
	}
	if cfg.SessionSecret == "" && cfg.Env == "dev" {
		cfg.SessionSecret = "dev-session-secret"
		log.Println("[WARN] SESSION_SECRET not set — using dev default")
	}
	if cfg.DatabaseURL == "" {
		log.Println("[WARN] DATABASE_URL not set — using in-memory credential store for dev")
	}
	return cfg
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envDur(k string, def int) time.Duration {
	if v := os.Getenv(k); v != "" {
		i, _ := strconv.Atoi(v)
		return time.Duration(i)
	}
	return time.Duration(def)
}
