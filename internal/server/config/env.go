package config

import (
	"strings"

	"github.com/dmitrijs2005/authkeeper/internal/flagx"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "AUTHKEEPER"

// parseEnv overlays AUTHKEEPER_* environment variables, e.g.
// AUTHKEEPER_DATABASE_DSN or AUTHKEEPER_KAFKA_BROKERS=a:9092,b:9092.
//
// A dotenv file is loaded first: the one named by -env-file (which must
// exist), otherwise ./.env when present. Variables already set in the
// process environment are never overwritten by the file.
func parseEnv(config *Config) {
	if path := flagx.EnvFileFlag(); path != "" {
		if err := godotenv.Load(path); err != nil {
			panic(err)
		}
	} else {
		_ = godotenv.Load()
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	apply(v, config)
}
