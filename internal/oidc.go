package internal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssooidc"
	oidctypes "github.com/aws/aws-sdk-go-v2/service/ssooidc/types"
	"github.com/charmbracelet/log"
)

const (
	oidcClientName = "leapp"
	oidcClientType = "public"
	oidcGrantType  = "urn:ietf:params:oauth:grant-type:device_code"

	defaultPollInterval = 5 * time.Second
)

// loginSuccessURLPattern marks the provider callback that tells an in-app
// window the user completed verification.
const loginSuccessURLPattern = "device?user_code"

// SsoToken is a bearer token minted by the device-authorization flow.
type SsoToken struct {
	AccessToken string
	ExpiresAt   time.Time
}

type clientRegistration struct {
	clientID     string
	clientSecret string
	expiresAt    time.Time
}

type deviceAuthorization struct {
	deviceCode              string
	userCode                string
	verificationURIComplete string
	interval                time.Duration
	expiresAt               time.Time
}

// loginAttempt is the future shared by every caller of an in-flight login.
type loginAttempt struct {
	done   chan struct{}
	cancel context.CancelFunc

	token *SsoToken
	err   error
}

// OidcDeviceClient drives the OAuth2 device-authorization flow against an
// SSO portal. Client registrations and device authorizations are cached in
// memory per (region, portal URL) pair and re-issued once expired.
//
// Only one login sequence is ever in flight per process: concurrent
// callers share the in-flight attempt's result instead of spawning a
// second browser window or device-code challenge.
type OidcDeviceClient struct {
	mu            sync.Mutex
	current       *loginAttempt
	registrations map[string]*clientRegistration
	deviceAuths   map[string]*deviceAuthorization

	window      WindowPresenter
	openBrowser func(string) error

	pollInterval time.Duration
}

// NewOidcDeviceClient creates a device client. window may be nil, in which
// case every login falls back to the system browser.
func NewOidcDeviceClient(window WindowPresenter) *OidcDeviceClient {
	return &OidcDeviceClient{
		registrations: make(map[string]*clientRegistration),
		deviceAuths:   make(map[string]*deviceAuthorization),
		window:        window,
		openBrowser:   OpenSystemBrowser,
		pollInterval:  defaultPollInterval,
	}
}

// Login runs (or joins) the device-authorization flow for the given portal
// and returns its bearer token. browserOpening selects in-app interception
// or plain system-browser verification.
func (c *OidcDeviceClient) Login(ctx context.Context, region, portalURL, browserOpening string) (*SsoToken, error) {
	c.mu.Lock()
	if att := c.current; att != nil {
		c.mu.Unlock()
		return waitAttempt(ctx, att)
	}

	loginCtx, cancel := context.WithCancel(context.Background())
	att := &loginAttempt{done: make(chan struct{}), cancel: cancel}
	c.current = att
	c.mu.Unlock()

	att.token, att.err = c.runLogin(loginCtx, region, portalURL, browserOpening)

	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
	cancel()
	close(att.done)

	return att.token, att.err
}

// Interrupt cancels the in-flight login sequence, if any. Every waiter
// rejects with ErrInterrupted and the client is immediately free for a
// fresh login.
func (c *OidcDeviceClient) Interrupt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		c.current.cancel()
	}
}

func waitAttempt(ctx context.Context, att *loginAttempt) (*SsoToken, error) {
	select {
	case <-att.done:
		return att.token, att.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *OidcDeviceClient) runLogin(ctx context.Context, region, portalURL, browserOpening string) (*SsoToken, error) {
	client, err := newOidcAPI(ctx, region)
	if err != nil {
		return nil, fmt.Errorf("load oidc client: %w", err)
	}

	reg, err := c.registration(ctx, client, region, portalURL)
	if err != nil {
		return nil, err
	}
	auth, err := c.deviceAuthorization(ctx, client, reg, region, portalURL)
	if err != nil {
		return nil, err
	}

	if err := c.presentVerification(ctx, auth, browserOpening); err != nil {
		return nil, err
	}

	token, err := c.pollToken(ctx, client, reg, auth)
	if err != nil {
		return nil, err
	}
	// Device codes are single use
	c.mu.Lock()
	delete(c.deviceAuths, cacheKey(region, portalURL))
	c.mu.Unlock()
	return token, nil
}

func cacheKey(region, portalURL string) string {
	return region + "|" + portalURL
}

func (c *OidcDeviceClient) registration(ctx context.Context, client oidcAPI, region, portalURL string) (*clientRegistration, error) {
	key := cacheKey(region, portalURL)
	c.mu.Lock()
	reg := c.registrations[key]
	c.mu.Unlock()
	if reg != nil && reg.expiresAt.After(time.Now()) {
		return reg, nil
	}

	out, err := client.RegisterClient(ctx, &ssooidc.RegisterClientInput{
		ClientName: aws.String(oidcClientName),
		ClientType: aws.String(oidcClientType),
	})
	if err != nil {
		return nil, fmt.Errorf("register oidc client: %w", err)
	}
	reg = &clientRegistration{
		clientID:     aws.ToString(out.ClientId),
		clientSecret: aws.ToString(out.ClientSecret),
		expiresAt:    time.Unix(out.ClientSecretExpiresAt, 0),
	}
	c.mu.Lock()
	c.registrations[key] = reg
	c.mu.Unlock()
	return reg, nil
}

func (c *OidcDeviceClient) deviceAuthorization(ctx context.Context, client oidcAPI, reg *clientRegistration, region, portalURL string) (*deviceAuthorization, error) {
	key := cacheKey(region, portalURL)
	c.mu.Lock()
	auth := c.deviceAuths[key]
	c.mu.Unlock()
	if auth != nil && auth.expiresAt.After(time.Now()) {
		return auth, nil
	}

	out, err := client.StartDeviceAuthorization(ctx, &ssooidc.StartDeviceAuthorizationInput{
		ClientId:     aws.String(reg.clientID),
		ClientSecret: aws.String(reg.clientSecret),
		StartUrl:     aws.String(portalURL),
	})
	if err != nil {
		return nil, fmt.Errorf("start device authorization: %w", err)
	}
	interval := time.Duration(out.Interval) * time.Second
	if interval <= 0 {
		interval = c.pollInterval
	}
	auth = &deviceAuthorization{
		deviceCode:              aws.ToString(out.DeviceCode),
		userCode:                aws.ToString(out.UserCode),
		verificationURIComplete: aws.ToString(out.VerificationUriComplete),
		interval:                interval,
		expiresAt:               time.Now().Add(time.Duration(out.ExpiresIn) * time.Second),
	}
	c.mu.Lock()
	c.deviceAuths[key] = auth
	c.mu.Unlock()
	return auth, nil
}

// presentVerification shows the verification page. In-app windows report
// the login-success callback and closing them interrupts the whole login;
// the system browser gives no completion signal, polling is the only
// termination condition there.
func (c *OidcDeviceClient) presentVerification(ctx context.Context, auth *deviceAuthorization, browserOpening string) error {
	if browserOpening == BrowserOpeningInApp && c.window != nil {
		w, err := c.window.Open(auth.verificationURIComplete, true, "SSO verification")
		if err != nil {
			return fmt.Errorf("open verification window: %w", err)
		}
		go c.watchVerificationWindow(ctx, w)
		return nil
	}

	if err := c.openBrowser(auth.verificationURIComplete); err != nil {
		log.Debug("could not open system browser", "error", err)
		fmt.Printf("🔐 Please visit %s and enter code: %s\n", auth.verificationURIComplete, auth.userCode)
	}
	return nil
}

func (c *OidcDeviceClient) watchVerificationWindow(ctx context.Context, w BrowserWindow) {
	defer w.Close()
	for {
		select {
		case nav, ok := <-w.Navigations():
			if !ok {
				return
			}
			if strings.Contains(nav.URL, loginSuccessURLPattern) {
				log.Debug("verification completed", "url", nav.URL)
				return
			}
		case <-w.Closed():
			// User dismissed the window: abort the whole login so every
			// waiter observes the interruption.
			c.Interrupt()
			return
		case <-ctx.Done():
			return
		}
	}
}

func (c *OidcDeviceClient) pollToken(ctx context.Context, client oidcAPI, reg *clientRegistration, auth *deviceAuthorization) (*SsoToken, error) {
	interval := c.pollInterval
	if auth.interval > 0 {
		interval = auth.interval
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ErrInterrupted
		case <-time.After(interval):
		}

		if time.Now().After(auth.expiresAt) {
			return nil, ErrDeviceFlowTimeout
		}

		out, err := client.CreateToken(ctx, &ssooidc.CreateTokenInput{
			ClientId:     aws.String(reg.clientID),
			ClientSecret: aws.String(reg.clientSecret),
			DeviceCode:   aws.String(auth.deviceCode),
			GrantType:    aws.String(oidcGrantType),
		})
		if err == nil {
			return &SsoToken{
				AccessToken: aws.ToString(out.AccessToken),
				ExpiresAt:   time.Now().Add(time.Duration(out.ExpiresIn) * time.Second),
			}, nil
		}

		var pending *oidctypes.AuthorizationPendingException
		var slowDown *oidctypes.SlowDownException
		switch {
		case errors.As(err, &pending):
			continue
		case errors.As(err, &slowDown):
			interval += c.pollInterval
			continue
		case ctx.Err() != nil:
			return nil, ErrInterrupted
		default:
			return nil, fmt.Errorf("create token: %w", err)
		}
	}
}
