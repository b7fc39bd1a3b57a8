// Package auth acquires and caches OAuth2 access tokens for the Freta
// service, using the device-code flow for interactive users and the
// client-credentials flow for service principals.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/confidential"
	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/public"
)

// Options configures a Provider.
type Options struct {
	ClientID string
	// ClientSecret selects the confidential client-credentials flow when
	// set; otherwise the interactive device-code flow is used.
	ClientSecret string
	Authority    string
	Scopes       []string
	// TokenCachePath is where acquired tokens are persisted between runs.
	TokenCachePath string
}

// Provider produces Authorization header values per request, serving tokens
// from the on-disk cache when possible and prompting (or re-authenticating
// silently) when not.
type Provider struct {
	opts   Options
	cache  *fileTokenCache
	logger *slog.Logger

	publicClient       *public.Client
	confidentialClient *confidential.Client
}

// NewProvider creates a token provider. No network I/O happens until a
// token is requested.
func NewProvider(opts Options, logger *slog.Logger) (*Provider, error) {
	if opts.ClientID == "" {
		return nil, fmt.Errorf("client_id not configured")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		opts:   opts,
		cache:  newFileTokenCache(opts.TokenCachePath),
		logger: logger,
	}, nil
}

// Authorization returns the header value for the next request. Tokens are
// recomputed per request; MSAL serves them from cache until they near
// expiry.
func (p *Provider) Authorization(ctx context.Context) (string, error) {
	token, err := p.AccessToken(ctx)
	if err != nil {
		return "", err
	}
	return "Bearer " + token, nil
}

// Login acquires a token eagerly, prompting for interactive authentication
// if no cached credentials exist.
func (p *Provider) Login(ctx context.Context) error {
	_, err := p.AccessToken(ctx)
	return err
}

// Logout forgets any saved credentials by deleting the token cache file.
func (p *Provider) Logout() error {
	p.publicClient = nil
	p.confidentialClient = nil
	return p.cache.clear()
}

// AccessToken returns a raw access token for the configured scopes.
func (p *Provider) AccessToken(ctx context.Context) (string, error) {
	if p.opts.ClientSecret != "" {
		return p.clientSecretToken(ctx)
	}
	return p.deviceLoginToken(ctx)
}

func (p *Provider) clientSecretToken(ctx context.Context) (string, error) {
	if p.confidentialClient == nil {
		cred, err := confidential.NewCredFromSecret(p.opts.ClientSecret)
		if err != nil {
			return "", fmt.Errorf("create client credential: %w", err)
		}
		client, err := confidential.New(p.opts.Authority, p.opts.ClientID, cred,
			confidential.WithCache(p.cache))
		if err != nil {
			return "", fmt.Errorf("create confidential client: %w", err)
		}
		p.confidentialClient = &client
	}

	if result, err := p.confidentialClient.AcquireTokenSilent(ctx, p.opts.Scopes); err == nil {
		return result.AccessToken, nil
	}

	result, err := p.confidentialClient.AcquireTokenByCredential(ctx, p.opts.Scopes)
	if err != nil {
		return "", fmt.Errorf("client credential authentication failed: %w", err)
	}
	return result.AccessToken, nil
}

func (p *Provider) deviceLoginToken(ctx context.Context) (string, error) {
	if p.publicClient == nil {
		client, err := public.New(p.opts.ClientID,
			public.WithAuthority(p.opts.Authority),
			public.WithCache(p.cache))
		if err != nil {
			return "", fmt.Errorf("create public client: %w", err)
		}
		p.publicClient = &client
	}

	accounts, err := p.publicClient.Accounts(ctx)
	if err == nil && len(accounts) > 0 {
		result, err := p.publicClient.AcquireTokenSilent(ctx, p.opts.Scopes,
			public.WithSilentAccount(accounts[0]))
		if err == nil {
			return result.AccessToken, nil
		}
		p.logger.Debug("silent token acquisition failed, falling back to device login", "error", err)
	}

	p.logger.Info("attempting interactive device login")
	flow, err := p.publicClient.AcquireTokenByDeviceCode(ctx, p.opts.Scopes)
	if err != nil {
		return "", fmt.Errorf("initiate device login: %w", err)
	}

	// The message carries the verification URL and user code.
	fmt.Fprintln(os.Stderr, "Please login")
	fmt.Fprintln(os.Stderr, flow.Result.Message)

	result, err := flow.AuthenticationResult(ctx)
	if err != nil {
		return "", fmt.Errorf("device login failed: %w", err)
	}

	p.logger.Info("interactive device login succeeded")
	fmt.Fprintln(os.Stderr, "Login succeeded")
	return result.AccessToken, nil
}
