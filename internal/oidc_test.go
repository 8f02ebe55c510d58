package internal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssooidc"
	oidctypes "github.com/aws/aws-sdk-go-v2/service/ssooidc/types"
)

func newTestOidcClient() *OidcDeviceClient {
	c := NewOidcDeviceClient(nil)
	c.pollInterval = 10 * time.Millisecond
	c.openBrowser = func(string) error { return nil }
	return c
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

func TestLoginReturnsToken(t *testing.T) {
	fake := &fakeOidcAPI{}
	fake.onCreateToken = func(*ssooidc.CreateTokenInput) (*ssooidc.CreateTokenOutput, error) {
		return &ssooidc.CreateTokenOutput{AccessToken: aws.String("bearer"), ExpiresIn: 3600}, nil
	}
	installFakeOidc(t, fake)

	c := newTestOidcClient()
	token, err := c.Login(context.Background(), "us-east-1", "https://portal.awsapps.com/start", BrowserOpeningInBrowser)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if token.AccessToken != "bearer" {
		t.Errorf("Expected token 'bearer', got %q", token.AccessToken)
	}
	if !token.ExpiresAt.After(time.Now()) {
		t.Error("Expected token expiry in the future")
	}
}

func TestConcurrentLoginsShareOneFlow(t *testing.T) {
	// The poll succeeds only once the second caller has joined the
	// in-flight attempt, plus one spare poll cycle for it to reach Login.
	var joined atomic.Bool
	var sparePolls atomic.Int32
	fake := &fakeOidcAPI{}
	fake.onCreateToken = func(*ssooidc.CreateTokenInput) (*ssooidc.CreateTokenOutput, error) {
		if !joined.Load() || sparePolls.Add(1) < 2 {
			return nil, &oidctypes.AuthorizationPendingException{}
		}
		return &ssooidc.CreateTokenOutput{AccessToken: aws.String("shared"), ExpiresIn: 3600}, nil
	}
	installFakeOidc(t, fake)

	c := newTestOidcClient()
	type result struct {
		token *SsoToken
		err   error
	}
	results := make(chan result, 2)
	login := func() {
		token, err := c.Login(context.Background(), "us-east-1", "https://portal.awsapps.com/start", BrowserOpeningInBrowser)
		results <- result{token, err}
	}

	go login()
	waitFor(t, "first device authorization", func() bool {
		fake.mu.Lock()
		defer fake.mu.Unlock()
		return fake.deviceAuths == 1
	})
	go func() {
		joined.Store(true)
		login()
	}()

	for i := 0; i < 2; i++ {
		r := <-results
		if r.err != nil {
			t.Fatalf("Login %d failed: %v", i, r.err)
		}
		if r.token.AccessToken != "shared" {
			t.Errorf("Login %d got token %q, expected 'shared'", i, r.token.AccessToken)
		}
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.registrations != 1 {
		t.Errorf("Expected one client registration, got %d", fake.registrations)
	}
	if fake.deviceAuths != 1 {
		t.Errorf("Expected one device authorization, got %d", fake.deviceAuths)
	}
}

func TestInterruptRejectsAllWaiters(t *testing.T) {
	fake := &fakeOidcAPI{}
	fake.onCreateToken = func(*ssooidc.CreateTokenInput) (*ssooidc.CreateTokenOutput, error) {
		return nil, &oidctypes.AuthorizationPendingException{}
	}
	installFakeOidc(t, fake)

	c := newTestOidcClient()
	errs := make(chan error, 2)
	login := func() {
		_, err := c.Login(context.Background(), "us-east-1", "https://portal.awsapps.com/start", BrowserOpeningInBrowser)
		errs <- err
	}

	go login()
	waitFor(t, "polling to begin", func() bool {
		fake.mu.Lock()
		defer fake.mu.Unlock()
		return fake.tokenCalls >= 1
	})
	go login()
	time.Sleep(20 * time.Millisecond)

	c.Interrupt()

	for i := 0; i < 2; i++ {
		select {
		case err := <-errs:
			if !errors.Is(err, ErrInterrupted) {
				t.Errorf("Expected ErrInterrupted, got %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Waiter did not return after Interrupt")
		}
	}
}

func TestLoginAfterInterruptStartsFresh(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	fake := &fakeOidcAPI{}
	fake.onCreateToken = func(*ssooidc.CreateTokenInput) (*ssooidc.CreateTokenOutput, error) {
		if fail.Load() {
			return nil, &oidctypes.AuthorizationPendingException{}
		}
		return &ssooidc.CreateTokenOutput{AccessToken: aws.String("second-try"), ExpiresIn: 3600}, nil
	}
	installFakeOidc(t, fake)

	c := newTestOidcClient()
	errs := make(chan error, 1)
	go func() {
		_, err := c.Login(context.Background(), "us-east-1", "https://portal.awsapps.com/start", BrowserOpeningInBrowser)
		errs <- err
	}()
	waitFor(t, "polling to begin", func() bool {
		fake.mu.Lock()
		defer fake.mu.Unlock()
		return fake.tokenCalls >= 1
	})
	c.Interrupt()
	if err := <-errs; !errors.Is(err, ErrInterrupted) {
		t.Fatalf("Expected ErrInterrupted, got %v", err)
	}

	fail.Store(false)
	token, err := c.Login(context.Background(), "us-east-1", "https://portal.awsapps.com/start", BrowserOpeningInBrowser)
	if err != nil {
		t.Fatalf("Fresh login failed: %v", err)
	}
	if token.AccessToken != "second-try" {
		t.Errorf("Expected token 'second-try', got %q", token.AccessToken)
	}
}

func TestDeviceFlowTimeout(t *testing.T) {
	fake := &fakeOidcAPI{expiresIn: -1}
	installFakeOidc(t, fake)

	c := newTestOidcClient()
	_, err := c.Login(context.Background(), "us-east-1", "https://portal.awsapps.com/start", BrowserOpeningInBrowser)
	if !errors.Is(err, ErrDeviceFlowTimeout) {
		t.Fatalf("Expected ErrDeviceFlowTimeout, got %v", err)
	}
}

func TestFatalTokenErrorSurfaces(t *testing.T) {
	fake := &fakeOidcAPI{}
	fake.onCreateToken = func(*ssooidc.CreateTokenInput) (*ssooidc.CreateTokenOutput, error) {
		return nil, fmt.Errorf("access denied")
	}
	installFakeOidc(t, fake)

	c := newTestOidcClient()
	_, err := c.Login(context.Background(), "us-east-1", "https://portal.awsapps.com/start", BrowserOpeningInBrowser)
	if err == nil || !strings.Contains(err.Error(), "access denied") {
		t.Fatalf("Expected fatal token error, got %v", err)
	}
}

func TestClosingVerificationWindowInterruptsLogin(t *testing.T) {
	fake := &fakeOidcAPI{}
	fake.onCreateToken = func(*ssooidc.CreateTokenInput) (*ssooidc.CreateTokenOutput, error) {
		return nil, &oidctypes.AuthorizationPendingException{}
	}
	installFakeOidc(t, fake)

	window := newFakeWindow()
	presenter := &fakePresenter{window: window}
	c := NewOidcDeviceClient(presenter)
	c.pollInterval = 10 * time.Millisecond

	errs := make(chan error, 1)
	go func() {
		_, err := c.Login(context.Background(), "us-east-1", "https://portal.awsapps.com/start", BrowserOpeningInApp)
		errs <- err
	}()
	waitFor(t, "window to open", func() bool { return presenter.opens == 1 })

	window.Close()

	select {
	case err := <-errs:
		if !errors.Is(err, ErrInterrupted) {
			t.Errorf("Expected ErrInterrupted, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Login did not return after window closed")
	}
}

func TestVerificationWindowSuccessLetsPollFinish(t *testing.T) {
	var verified atomic.Bool
	fake := &fakeOidcAPI{}
	fake.onCreateToken = func(*ssooidc.CreateTokenInput) (*ssooidc.CreateTokenOutput, error) {
		if !verified.Load() {
			return nil, &oidctypes.AuthorizationPendingException{}
		}
		return &ssooidc.CreateTokenOutput{AccessToken: aws.String("verified"), ExpiresIn: 3600}, nil
	}
	installFakeOidc(t, fake)

	window := newFakeWindow()
	presenter := &fakePresenter{window: window}
	c := NewOidcDeviceClient(presenter)
	c.pollInterval = 10 * time.Millisecond

	type result struct {
		token *SsoToken
		err   error
	}
	results := make(chan result, 1)
	go func() {
		token, err := c.Login(context.Background(), "us-east-1", "https://portal.awsapps.com/start", BrowserOpeningInApp)
		results <- result{token, err}
	}()
	waitFor(t, "window to open", func() bool { return presenter.opens == 1 })

	window.navs <- Navigation{URL: "https://device.sso.test/device?user_code=USER-CODE"}
	verified.Store(true)

	select {
	case r := <-results:
		if r.err != nil {
			t.Fatalf("Login failed: %v", r.err)
		}
		if r.token.AccessToken != "verified" {
			t.Errorf("Expected token 'verified', got %q", r.token.AccessToken)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Login did not complete after verification")
	}
}
