package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/birdwatch/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-q string   SPARQL endpoint for species metadata
//	-m string   static map URL template
//	-t int      lookup timeout, seconds
//	-l int      write requests per minute per client IP
//	-n int      maximum request body, KiB
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-u", "-p", "-b", "-g", "-e", "-q", "-m", "-t", "-l", "-n"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 root bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 root region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	fs.StringVar(&config.SparqlEndpoint, "q", config.SparqlEndpoint, "SPARQL endpoint")
	fs.StringVar(&config.MapURLTemplate, "m", config.MapURLTemplate, "static map URL template")
	lookupTimeout := fs.Int("t", int(config.LookupTimeout.Seconds()), "lookup timeout (in seconds)")

	fs.IntVar(&config.WriteRateLimit, "l", config.WriteRateLimit, "write requests per minute per client")
	maxKiB := fs.Int64("n", config.MaxRequestBytes>>10, "maximum request body (in KiB)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.LookupTimeout = time.Duration(*lookupTimeout) * time.Second
	config.MaxRequestBytes = *maxKiB << 10
}
