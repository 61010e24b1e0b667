package main

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	anyworld "github.com/anythingworld/anything-world-go"
	"github.com/anythingworld/anything-world-go/internal/config"
	"github.com/anythingworld/anything-world-go/internal/history"
	"github.com/anythingworld/anything-world-go/internal/retry"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "anyworld",
	Short: "Animate and generate 3D models from the command line",
	Long:  "anyworld wraps the Anything World API: search the model catalog, upload models for animation, generate models from text or images, and wait for the remote pipeline to finish.",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: ANYWORLD_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig resolves the config path and parses it.
// Priority: explicit path arg > ANYWORLD_CONFIG env var > "./config.yaml".
// A missing default file is fine: the API key then comes from the environment.
func loadConfig(path string) (*config.Config, error) {
	explicit := path != ""
	if path == "" {
		if env := os.Getenv("ANYWORLD_CONFIG"); env != "" {
			path = env
			explicit = true
		} else {
			path = "config.yaml"
		}
	}

	cfg, err := config.Load(path)
	if err != nil && !explicit && errors.Is(err, fs.ErrNotExist) {
		return config.Default(), nil
	}
	return cfg, err
}

func setupLogger(dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}

// buildClient assembles the API client from the config file, falling back to
// the environment (.env included) for anything the file does not set.
func buildClient(cfg *config.Config, logger *slog.Logger) (*anyworld.Client, error) {
	awCfg := anyworld.Config{
		APIKey:              cfg.API.Key,
		APIURL:              cfg.API.BaseURL,
		PollingURL:          cfg.API.PollingURL,
		GeneratedPollingURL: cfg.API.GeneratedPollingURL,
		Staging:             cfg.Staging(),
		Timeout:             cfg.API.Timeout,
		Logger:              logger,
	}

	if awCfg.APIKey == "" {
		envCfg, err := anyworld.ConfigFromEnv()
		if err != nil {
			return nil, err
		}
		awCfg.APIKey = envCfg.APIKey
		if awCfg.APIURL == "" {
			awCfg.APIURL = envCfg.APIURL
		}
		if awCfg.PollingURL == "" {
			awCfg.PollingURL = envCfg.PollingURL
		}
		if awCfg.GeneratedPollingURL == "" {
			awCfg.GeneratedPollingURL = envCfg.GeneratedPollingURL
		}
		awCfg.Staging = awCfg.Staging || envCfg.Staging
	}

	return anyworld.NewClient(awCfg)
}

func openHistory(cfg *config.Config, logger *slog.Logger) *history.Store {
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		logger.Error("failed to open history store", "path", cfg.History.Path, "error", err)
		os.Exit(1)
	}
	return store
}

// pollConfig maps the config file's poll section onto the library's.
func pollConfig(cfg *config.Config, verbose bool) anyworld.PollConfig {
	return anyworld.PollConfig{
		Warmup:   cfg.Poll.Warmup,
		Interval: cfg.Poll.Interval,
		Deadline: cfg.Poll.Deadline,
		Verbose:  verbose,
	}
}

// statusFuncFor picks the status capability for a pipeline, optionally
// wrapped with the transient-failure retry decorator.
func statusFuncFor(client *anyworld.Client, kind string, retries int, logger *slog.Logger) anyworld.StatusFunc {
	var check anyworld.StatusFunc
	if kind == history.KindGenerate {
		check = client.GenerateStatus()
	} else {
		check = client.AnimateStatus()
	}
	if retries > 0 {
		check = retry.NewStatusFunc(check, retries, 2*time.Second, logger)
	}
	return check
}

func doneFor(kind string, extraFormats bool) func(*anyworld.Model) bool {
	if kind == history.KindGenerate {
		return anyworld.GenerateDone()
	}
	return anyworld.AnimateDone(extraFormats)
}
