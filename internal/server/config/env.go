package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/workflow/internal/flagx"
)

// parseEnv overlays environment variables. The first name in each list is
// the canonical one; later names are accepted for compatibility with common
// deployment conventions.
func parseEnv(config *Config) error {
	if v, ok := flagx.LookupEnv("WORKFLOW_STORAGE_BACKEND"); ok {
		config.StorageBackend = v
	}
	if v, ok := flagx.LookupEnv("WORKFLOW_DATABASE_URI", "DATABASE_URL"); ok {
		config.DatabaseURI = v
	}
	if v, ok := flagx.LookupEnv("WORKFLOW_SECRET_KEY", "SECRET_KEY"); ok {
		config.SecretKey = v
	}
	if v, ok := flagx.LookupEnv("WORKFLOW_JWT_ALGORITHM", "ALGORITHM"); ok {
		config.JWTAlgorithm = v
	}
	if v, ok := flagx.LookupEnv("WORKFLOW_ACCESS_TOKEN_EXPIRE_MINUTES", "ACCESS_TOKEN_EXPIRE_MINUTES"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ACCESS_TOKEN_EXPIRE_MINUTES: %w", err)
		}
		config.AccessTokenValidityDuration = time.Duration(n) * time.Minute
	}
	if v, ok := flagx.LookupEnv("WORKFLOW_REDIS_ADDR", "REDIS_ADDR"); ok {
		config.RedisAddr = v
	}
	if v, ok := flagx.LookupEnv("WORKFLOW_REDIS_PASSWORD", "REDIS_PASSWORD"); ok {
		config.RedisPassword = v
	}
	if v, ok := flagx.LookupEnv("WORKFLOW_SMTP_USER", "GMAIL_EMAIL"); ok {
		config.SMTPUser = v
		if config.SMTPFrom == "" {
			config.SMTPFrom = v
		}
	}
	if v, ok := flagx.LookupEnv("WORKFLOW_SMTP_PASSWORD", "GMAIL_APP_PASSWORD"); ok {
		config.SMTPPassword = v
	}
	return nil
}
