// Package freta is a client library for the Freta volatile memory
// inspection service. It authenticates users, uploads memory images for
// analysis, tracks asynchronous analysis jobs, and retrieves the resulting
// artifacts.
package freta

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/microsoft/project-freta/internal/infrastructure/auth"
	"github.com/microsoft/project-freta/internal/infrastructure/backend"
	"github.com/microsoft/project-freta/internal/infrastructure/storage"
)

// Error types surfaced by API calls, re-exported for errors.As use.
type (
	// ServiceError is a non-2xx response from the service.
	ServiceError = backend.ServiceError
	// ExhaustedError means no response was obtained after all retries.
	ExhaustedError = backend.ExhaustedError
)

// authority is the credential surface the client needs; satisfied by
// auth.Provider.
type authority interface {
	backend.AuthProvider
	OwnerID(ctx context.Context) (string, error)
	Login(ctx context.Context) error
	Logout() error
}

// Client talks to the Freta service.
type Client struct {
	cfg     *Config
	backend *backend.Backend
	auth    authority
	logger  *slog.Logger

	// blob transfer functions, replaceable in tests
	blobUpload   func(ctx context.Context, sasURL, path string) error
	blobDownload func(ctx context.Context, sasURL, path string) error

	Images    *ImagesService
	Artifacts *ArtifactsService
}

// New creates a client using the config file from the default location.
func New(logger *slog.Logger) (*Client, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	return NewWithConfig(cfg, logger)
}

// NewWithConfig creates a client from an explicit configuration.
func NewWithConfig(cfg *Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	tokenPath, err := TokenCachePath()
	if err != nil {
		return nil, err
	}
	provider, err := auth.NewProvider(auth.Options{
		ClientID:       cfg.ClientID,
		ClientSecret:   cfg.ClientSecret,
		Authority:      cfg.Authority,
		Scopes:         cfg.Scopes,
		TokenCachePath: tokenPath,
	}, logger)
	if err != nil {
		return nil, err
	}

	return newClient(cfg, provider, logger), nil
}

func newClient(cfg *Config, auth authority, logger *slog.Logger) *Client {
	c := &Client{
		cfg:          cfg,
		backend:      backend.New(cfg.Endpoint, auth, logger),
		auth:         auth,
		logger:       logger,
		blobUpload:   storage.Upload,
		blobDownload: storage.Download,
	}
	c.Images = &ImagesService{client: c}
	c.Artifacts = &ArtifactsService{client: c}
	return c
}

// Config returns the configuration the client was built with.
func (c *Client) Config() *Config { return c.cfg }

// Login authenticates eagerly, prompting for device login if needed.
func (c *Client) Login(ctx context.Context) error {
	return c.auth.Login(ctx)
}

// Logout forgets any saved access token.
func (c *Client) Logout() error {
	c.logger.Debug("logout")
	return c.auth.Logout()
}

// OwnerID returns the current user's owner identifier.
func (c *Client) OwnerID(ctx context.Context) (string, error) {
	return c.auth.OwnerID(ctx)
}

// Regions lists the Azure regions available for image storage and analysis.
func (c *Client) Regions(ctx context.Context) (map[string]Region, error) {
	c.logger.Debug("regions")
	var regions map[string]Region
	if err := c.backend.RequestInto(ctx, http.MethodGet, "regions", nil, nil, &regions); err != nil {
		return nil, err
	}
	return regions, nil
}

// Versions reports the versions of the service components.
func (c *Client) Versions(ctx context.Context) (map[string]string, error) {
	c.logger.Debug("versions")
	var versions map[string]string
	if err := c.backend.RequestInto(ctx, http.MethodGet, "versions", nil, nil, &versions); err != nil {
		return nil, err
	}
	return versions, nil
}

// SearchFilters lists the filters accepted by Images.List.
func (c *Client) SearchFilters(ctx context.Context) ([]string, error) {
	c.logger.Debug("search_filters")
	var filters []string
	if err := c.backend.RequestInto(ctx, http.MethodGet, "search_filters", nil, nil, &filters); err != nil {
		return nil, err
	}
	return filters, nil
}

// Raw performs an arbitrary API call, returning the undecoded payload.
// Useful for fields this library does not model yet.
func (c *Client) Raw(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	return c.backend.Request(ctx, method, path, body, nil)
}

// ownerOrSelf substitutes the caller's identity when no owner is given.
func (c *Client) ownerOrSelf(ctx context.Context, ownerID string) (string, error) {
	if ownerID != "" {
		return ownerID, nil
	}
	return c.auth.OwnerID(ctx)
}
