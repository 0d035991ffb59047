package config

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/flagx"
)

// serverFlags are the short flags parseFlags owns. Everything else on the
// command line (-c, -env-file) belongs to other loaders.
var serverFlags = []string{
	"-a", "-l", "-d", "-s", "-t", "-r",
	"-u", "-p", "-b", "-g", "-e",
	"-store", "-redis", "-kafka", "-otlp",
}

// minutes is a time.Duration flag given as a whole number of minutes.
type minutes struct{ d *time.Duration }

func (m minutes) String() string {
	if m.d == nil {
		return "0"
	}
	return strconv.Itoa(int(m.d.Minutes()))
}

func (m minutes) Set(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*m.d = time.Duration(n) * time.Minute
	return nil
}

// csv is a []string flag given as a comma separated list.
type csv struct{ v *[]string }

func (c csv) String() string {
	if c.v == nil {
		return ""
	}
	return strings.Join(*c.v, ",")
}

func (c csv) Set(s string) error {
	*c.v = splitList(s)
	return nil
}

// parseFlags overlays command-line flags on config:
//
//	-a      gRPC listen address        -l      HTTP listen address
//	-d      PostgreSQL DSN             -s      master secret
//	-t      access token TTL, minutes  -r      refresh token TTL, minutes
//	-u, -p  S3 credentials             -b      S3 bucket (empty disables uploads)
//	-g      S3 region                  -e      S3 endpoint
//	-store  postgres | redis           -redis  Redis address
//	-kafka  audit brokers, comma separated
//	-otlp   OTLP/gRPC collector endpoint
//
// A malformed value panics, like the other loaders.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], serverFlags)

	fs := flag.NewFlagSet("authkeeper-server", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "gRPC listen address")
	fs.StringVar(&config.EndpointAddrHTTP, "l", config.EndpointAddrHTTP, "HTTP listen address")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "master secret")
	fs.Var(minutes{&config.AccessTokenValidityDuration}, "t", "access token TTL in minutes")
	fs.Var(minutes{&config.RefreshTokenValidityDuration}, "r", "refresh token TTL in minutes")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 access key")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 secret key")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket for profile images")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 endpoint")

	fs.StringVar(&config.RefreshTokenStore, "store", config.RefreshTokenStore, "refresh token store: postgres or redis")
	fs.StringVar(&config.RedisAddr, "redis", config.RedisAddr, "Redis address")
	fs.Var(csv{&config.KafkaBrokers}, "kafka", "Kafka brokers for the audit stream")
	fs.StringVar(&config.OTLPEndpoint, "otlp", config.OTLPEndpoint, "OTLP collector endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
