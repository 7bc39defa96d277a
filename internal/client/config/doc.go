// Package config loads runtime configuration for the birdwatch CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the birdwatch server
//	-i int      online status check interval (seconds)
//	-d string   local data directory
//	-u string   username to record at startup
//
// # JSON schema
//
// Intervals use timex.Duration, so values can be either strings like "3s"
// or integer nanoseconds. Missing keys keep their earlier value:
//
//	{
//	  "server_endpoint_addr": "http://127.0.0.1:8080",
//	  "online_check_interval": "3s",
//	  "data_dir": "/home/me/.config/birdwatch",
//	  "username": "alice"
//	}
package config
