package config

import "time"

// Config holds runtime settings for the authkeeper CLI.
type Config struct {
	ServerEndpointAddr string
	// DataDir is resolved relative to the working directory and created on
	// start; the session database lives inside it.
	DataDir        string
	RequestTimeout time.Duration
}

const DatabaseFile = "session.db"

func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.DataDir = ".authkeeper"
	c.RequestTimeout = 10 * time.Second
}

// LoadConfig applies defaults, then the config file (if any), then flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseFile(cfg)
	parseFlags(cfg)
	return cfg
}
