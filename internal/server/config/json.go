package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/workflow/internal/flagx"
	"github.com/dmitrijs2005/workflow/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations use
// timex.Duration so both "1h" strings and integer nanoseconds are accepted.
// Only keys present (non-zero) in the file override the current values.
type JsonConfig struct {
	EndpointAddrHTTP            string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC            string         `json:"endpoint_addr_grpc"`
	StorageBackend              string         `json:"storage_backend"`
	DatabaseURI                 string         `json:"database_uri"`
	ConnectTimeout              timex.Duration `json:"connect_timeout"`
	SecretKey                   string         `json:"secret_key"`
	JWTAlgorithm                string         `json:"jwt_algorithm"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`
	ResetTokenValidityDuration  timex.Duration `json:"reset_token_validity_duration"`
	BcryptCost                  int            `json:"bcrypt_cost"`
	ResetTokenBackend           string         `json:"reset_token_backend"`
	RedisAddr                   string         `json:"redis_addr"`
	RedisPassword               string         `json:"redis_password"`
	RedisDB                     int            `json:"redis_db"`
	MailBackend                 string         `json:"mail_backend"`
	SMTPHost                    string         `json:"smtp_host"`
	SMTPPort                    int            `json:"smtp_port"`
	SMTPUser                    string         `json:"smtp_user"`
	SMTPPassword                string         `json:"smtp_password"`
	SMTPFrom                    string         `json:"smtp_from"`
	LogLevel                    string         `json:"log_level"`
}

// parseJson loads the file named by -c/-config, if any, into config.
func parseJson(config *Config) error {

	// try flags
	jsonConfigFile := flagx.ConfigFileFlag()

	// nothing to load
	if jsonConfigFile == "" {
		return nil
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	c.applyTo(config)
	return nil
}

func (c *JsonConfig) applyTo(config *Config) {
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.StorageBackend, c.StorageBackend)
	setString(&config.DatabaseURI, c.DatabaseURI)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.JWTAlgorithm, c.JWTAlgorithm)
	setString(&config.ResetTokenBackend, c.ResetTokenBackend)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.RedisPassword, c.RedisPassword)
	setString(&config.MailBackend, c.MailBackend)
	setString(&config.SMTPHost, c.SMTPHost)
	setString(&config.SMTPUser, c.SMTPUser)
	setString(&config.SMTPPassword, c.SMTPPassword)
	setString(&config.SMTPFrom, c.SMTPFrom)
	setString(&config.LogLevel, c.LogLevel)

	if c.ConnectTimeout.Duration > 0 {
		config.ConnectTimeout = c.ConnectTimeout.Duration
	}
	if c.AccessTokenValidityDuration.Duration > 0 {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.ResetTokenValidityDuration.Duration > 0 {
		config.ResetTokenValidityDuration = c.ResetTokenValidityDuration.Duration
	}
	if c.BcryptCost > 0 {
		config.BcryptCost = c.BcryptCost
	}
	if c.RedisDB > 0 {
		config.RedisDB = c.RedisDB
	}
	if c.SMTPPort > 0 {
		config.SMTPPort = c.SMTPPort
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
