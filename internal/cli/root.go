package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/hallgren/cfpack/internal/config"
	"github.com/hallgren/cfpack/internal/httpcache"
	"github.com/hallgren/cfpack/pkg/cfapi"
)

var (
	version string // semantic version (e.g., "v1.2.3")
	commit  string // git commit SHA
	date    string // build timestamp
)

// SetVersion sets the version information displayed by --version.
// Typically called by the main package with values injected via
// ldflags at build time.
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// Execute runs the cfpack CLI and returns an error if any command fails.
func Execute() error {
	var (
		verbose    bool
		configPath string
	)

	root := &cobra.Command{
		Use:          "cfpack",
		Short:        "cfpack installs CurseForge modpacks into game instances",
		Long:         `cfpack downloads, verifies and installs CurseForge modpacks, with resumable transfers, checksum verification and instance backups.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := charmlog.InfoLevel
			if verbose {
				level = charmlog.DebugLevel
			}
			ctx := withLogger(cmd.Context(), newLogger(os.Stderr, level))

			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			cmd.SetContext(withConfig(ctx, cfg))
			return nil
		},
	}

	root.SetVersionTemplate(fmt.Sprintf("cfpack %s\ncommit: %s\nbuilt: %s\n", version, commit, date))
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")

	root.AddCommand(newInstallCmd())
	root.AddCommand(newFetchCmd())
	root.AddCommand(newInspectCmd())
	root.AddCommand(newSearchCmd())
	root.AddCommand(newInstancesCmd())

	return root.ExecuteContext(context.Background())
}

// loadConfig layers configuration: defaults, then the YAML file when
// given, then a .env file, then CFPACK_ environment variables.
func loadConfig(path string) (config.Config, error) {
	cfg := config.Default()
	if path != "" {
		fileCfg, err := config.LoadFromFile(path)
		if err != nil {
			return config.Config{}, err
		}
		cfg = fileCfg
	}
	if err := config.LoadDotEnv(); err != nil {
		return config.Config{}, err
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

const configKey ctxKey = 1

func withConfig(ctx context.Context, cfg config.Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

func configFromContext(ctx context.Context) config.Config {
	if cfg, ok := ctx.Value(configKey).(config.Config); ok {
		return cfg
	}
	return config.Default()
}

// newAPIClient builds the API client from cfg, wiring the metadata
// cache when a cache directory is configured.
func newAPIClient(cfg config.Config) (*cfapi.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts := cfapi.Options{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
	}
	if cfg.Cache.Dir != "" {
		ttl := cfg.Cache.TTL
		if ttl <= 0 {
			ttl = 15 * time.Minute
		}
		cache, err := httpcache.New(cfg.Cache.Dir, ttl)
		if err != nil {
			return nil, fmt.Errorf("open metadata cache: %w", err)
		}
		opts.Cache = cache
	}
	return cfapi.NewClient(opts), nil
}
