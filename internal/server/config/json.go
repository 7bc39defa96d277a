package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/birdwatch/internal/flagx"
	"github.com/dmitrijs2005/birdwatch/internal/timex"
)

// JsonConfig is an intermediate DTO used only for reading JSON configuration
// files. It uses timex.Duration, so intervals can be "10s" or integer
// nanoseconds.
type JsonConfig struct {
	EndpointAddr    string         `json:"endpoint_addr"`
	DatabaseDSN     string         `json:"database_dsn"`
	S3RootUser      string         `json:"s3_root_user"`
	S3RootPassword  string         `json:"s3_root_password"`
	S3Bucket        string         `json:"s3_bucket"`
	S3Region        string         `json:"s3_region"`
	S3BaseEndpoint  string         `json:"s3_base_endpoint"`
	SparqlEndpoint  string         `json:"sparql_endpoint"`
	MapURLTemplate  string         `json:"map_url_template"`
	LookupTimeout   timex.Duration `json:"lookup_timeout"`
	WriteRateLimit  int            `json:"write_rate_limit"`
	MaxRequestBytes int64          `json:"max_request_bytes"`
}

// parseJson loads the file named by -c/-config into config. Keys missing
// from the file keep their earlier value. It panics if the file cannot be
// read or decoded.
func parseJson(config *Config) {
	path := flagx.ConfigPath(os.Args[1:])
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddr, c.EndpointAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.SparqlEndpoint, c.SparqlEndpoint)
	setString(&config.MapURLTemplate, c.MapURLTemplate)
	if c.LookupTimeout.Duration > 0 {
		config.LookupTimeout = c.LookupTimeout.Duration
	}
	if c.WriteRateLimit > 0 {
		config.WriteRateLimit = c.WriteRateLimit
	}
	if c.MaxRequestBytes > 0 {
		config.MaxRequestBytes = c.MaxRequestBytes
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
