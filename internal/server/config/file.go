package config

import (
	"strings"

	"github.com/dmitrijs2005/authkeeper/internal/flagx"
	"github.com/spf13/viper"
)

// parseFile loads configuration from the file named by -c / -config, if any.
// JSON and YAML are accepted (by extension). Durations are strings such as
// "60m" or "8760h". Only keys present in the file override the target.
// An unreadable or invalid file panics.
func parseFile(config *Config) {
	path := flagx.ConfigFileFlag()

	// nothing to load
	if path == "" {
		return
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		panic(err)
	}
	apply(v, config)
}

// apply copies every key set in v into config. The same key names serve the
// config file and (upper-cased, AUTHKEEPER_ prefixed) the environment.
func apply(v *viper.Viper, c *Config) {
	setString(v, "endpoint_addr_grpc", &c.EndpointAddrGRPC)
	setString(v, "endpoint_addr_http", &c.EndpointAddrHTTP)
	setString(v, "database_dsn", &c.DatabaseDSN)

	setString(v, "secret_key", &c.SecretKey)
	setString(v, "access_token_key", &c.AccessTokenKey)
	setString(v, "refresh_token_key", &c.RefreshTokenKey)
	setString(v, "token_issuer", &c.TokenIssuer)
	if v.IsSet("access_token_validity_duration") {
		c.AccessTokenValidityDuration = v.GetDuration("access_token_validity_duration")
	}
	if v.IsSet("refresh_token_validity_duration") {
		c.RefreshTokenValidityDuration = v.GetDuration("refresh_token_validity_duration")
	}

	setString(v, "cookie_domain", &c.CookieDomain)
	if v.IsSet("cookie_secure") {
		c.CookieSecure = v.GetBool("cookie_secure")
	}
	setList(v, "cors_allowed_origins", &c.CORSAllowedOrigins)

	setString(v, "refresh_token_store", &c.RefreshTokenStore)
	setString(v, "redis_addr", &c.RedisAddr)
	setString(v, "redis_password", &c.RedisPassword)
	if v.IsSet("redis_db") {
		c.RedisDB = v.GetInt("redis_db")
	}

	setString(v, "s3_root_user", &c.S3RootUser)
	setString(v, "s3_root_password", &c.S3RootPassword)
	setString(v, "s3_bucket", &c.S3Bucket)
	setString(v, "s3_region", &c.S3Region)
	setString(v, "s3_base_endpoint", &c.S3BaseEndpoint)

	setList(v, "kafka_brokers", &c.KafkaBrokers)
	setString(v, "kafka_audit_topic", &c.KafkaAuditTopic)

	setString(v, "otlp_endpoint", &c.OTLPEndpoint)

	setString(v, "log_backend", &c.LogBackend)
	setString(v, "log_level", &c.LogLevel)

	setString(v, "password_hasher", &c.PasswordHasher)
	if v.IsSet("bcrypt_cost") {
		c.BcryptCost = v.GetInt("bcrypt_cost")
	}
	if v.IsSet("login_rate_limit") {
		c.LoginRateLimit = v.GetInt("login_rate_limit")
	}
	if v.IsSet("revoker_sweep_interval") {
		c.RevokerSweepInterval = v.GetDuration("revoker_sweep_interval")
	}
	if v.IsSet("revoker_retry_attempts") {
		c.RevokerRetryAttempts = v.GetInt("revoker_retry_attempts")
	}
	if v.IsSet("shutdown_timeout") {
		c.ShutdownTimeout = v.GetDuration("shutdown_timeout")
	}
}

func setString(v *viper.Viper, key string, dst *string) {
	if v.IsSet(key) {
		*dst = v.GetString(key)
	}
}

// setList accepts both real lists (files) and comma-separated strings (env).
func setList(v *viper.Viper, key string, dst *[]string) {
	if !v.IsSet(key) {
		return
	}
	if s, ok := v.Get(key).(string); ok {
		*dst = splitList(s)
		return
	}
	*dst = v.GetStringSlice(key)
}

func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
