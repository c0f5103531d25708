// Package config defines configuration structures for the cfpack CLI.
//
// Configuration can be provided via:
//   - Command-line flags
//   - Environment variables (CFPACK_ prefix, optionally from a .env file)
//   - YAML configuration file
//
// # Structure
//
//	type Config struct {
//	    APIKey     string
//	    BaseURL    string
//	    GameDir    string
//	    Instance   string
//	    Workers    int
//	    Timeout    time.Duration
//	    Cache      CacheConfig
//	    Backup     bool
//	    KeepBackup bool
//	    Overwrite  bool
//	    Retry      RetryConfig
//	}
//
//	type RetryConfig struct {
//	    Attempts   int
//	    Backoff    time.Duration
//	    MaxBackoff time.Duration
//	}
package config
