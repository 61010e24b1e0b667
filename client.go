// Package anyworld is a Go client for the Anything World API: searching the
// model catalog, uploading models for animation, generating models from text
// or image prompts, and polling for completion of the remote pipeline.
package anyworld

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAPIURL              = "https://api.anything.world"
	defaultPollingURL          = "https://api.anything.world/user-processed-model"
	defaultGeneratedPollingURL = "https://api.anything.world/user-generated-model"

	// Uploads of large model archives can legitimately take minutes.
	defaultTimeout = 500 * time.Second
)

// Config holds everything a Client needs. It is read once by NewClient;
// concurrent clients with different credentials are fine.
type Config struct {
	APIKey              string
	APIURL              string // defaults to the production API
	PollingURL          string // processed-model status endpoint
	GeneratedPollingURL string // generated-model status endpoint
	Staging             bool   // route requests to the staging pipeline
	Timeout             time.Duration
	HTTPClient          *http.Client // optional; a timeout-capped client is built when nil
	Logger              *slog.Logger // optional; discard when nil
}

// ConfigFromEnv builds a Config from the environment, loading a .env file
// first if one is present. AW_API_KEY is required; AW_API_URL, AW_POLLING_URL
// and AW_GENERATED_POLLING_URL override the production endpoints, and
// AW_MODE=staging switches to the staging pipeline.
func ConfigFromEnv() (Config, error) {
	// Best effort: absence of a .env file is not an error.
	_ = godotenv.Load()

	key := os.Getenv("AW_API_KEY")
	if key == "" {
		return Config{}, fmt.Errorf("environment variable AW_API_KEY is not set")
	}

	return Config{
		APIKey:              key,
		APIURL:              os.Getenv("AW_API_URL"),
		PollingURL:          os.Getenv("AW_POLLING_URL"),
		GeneratedPollingURL: os.Getenv("AW_GENERATED_POLLING_URL"),
		Staging:             os.Getenv("AW_MODE") == "staging",
	}, nil
}

// Client talks to the Anything World API. All methods are safe for
// concurrent use; the only shared state is the underlying http.Client.
type Client struct {
	apiKey              string
	apiURL              string
	pollingURL          string
	generatedPollingURL string
	staging             bool
	httpClient          *http.Client
	logger              *slog.Logger
}

// NewClient validates cfg, fills defaults, and returns a ready Client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anyworld: API key is required")
	}
	if cfg.APIURL == "" {
		cfg.APIURL = defaultAPIURL
	}
	if cfg.PollingURL == "" {
		cfg.PollingURL = defaultPollingURL
	}
	if cfg.GeneratedPollingURL == "" {
		cfg.GeneratedPollingURL = defaultGeneratedPollingURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	return &Client{
		apiKey:              cfg.APIKey,
		apiURL:              cfg.APIURL,
		pollingURL:          cfg.PollingURL,
		generatedPollingURL: cfg.GeneratedPollingURL,
		staging:             cfg.Staging,
		httpClient:          cfg.HTTPClient,
		logger:              cfg.Logger,
	}, nil
}
