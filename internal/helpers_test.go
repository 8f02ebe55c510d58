package internal

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sso"
	"github.com/aws/aws-sdk-go-v2/service/ssooidc"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// setupTestDirs points every package-level path at a temp directory and
// restores the originals when the test finishes.
func setupTestDirs(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "leapp-test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	originalWorkspace := workspacePath
	originalVault := vaultPath
	originalCreds := awsCredentialsPath
	workspacePath = filepath.Join(dir, "workspace.json")
	vaultPath = filepath.Join(dir, "secrets.json")
	awsCredentialsPath = filepath.Join(dir, "credentials")

	t.Cleanup(func() {
		os.RemoveAll(dir)
		workspacePath = originalWorkspace
		vaultPath = originalVault
		awsCredentialsPath = originalCreds
	})

	return dir
}

// memVault is an in-memory SecretVault for tests.
type memVault struct {
	mu      sync.Mutex
	secrets map[string]string
}

func newMemVault() *memVault {
	return &memVault{secrets: make(map[string]string)}
}

func (v *memVault) GetSecret(service, key string) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	value, ok := v.secrets[service+"/"+key]
	if !ok {
		return "", fmt.Errorf("%w: %s/%s", ErrSecretNotFound, service, key)
	}
	return value, nil
}

func (v *memVault) SaveSecret(service, key, value string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.secrets[service+"/"+key] = value
	return nil
}

func (v *memVault) DeletePassword(service, key string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.secrets[service+"/"+key]; !ok {
		return fmt.Errorf("%w: %s/%s", ErrSecretNotFound, service, key)
	}
	delete(v.secrets, service+"/"+key)
	return nil
}

// recordingWriter records credentials-file operations instead of touching
// the filesystem.
type recordingWriter struct {
	mu      sync.Mutex
	written map[string]*CredentialsInfo
	removed []string
}

func newRecordingWriter() *recordingWriter {
	return &recordingWriter{written: make(map[string]*CredentialsInfo)}
}

func (w *recordingWriter) Write(profileName string, creds *CredentialsInfo, region string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.written[profileName] = creds
	return nil
}

func (w *recordingWriter) Remove(profileName string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.written, profileName)
	w.removed = append(w.removed, profileName)
	return nil
}

// noopMfa returns a fixed code without prompting.
type noopMfa struct{ code string }

func (m noopMfa) Ask(title, placeholder, message string) (string, error) {
	return m.code, nil
}

// cancelledMfa simulates the user dismissing the prompt.
type cancelledMfa struct{}

func (cancelledMfa) Ask(title, placeholder, message string) (string, error) {
	return "", fmt.Errorf("cancelled")
}

// fakeStsAPI dispatches to optional func fields and counts calls.
type fakeStsAPI struct {
	mu             sync.Mutex
	sessionTokens  int
	assumeRoles    int
	samlCalls      int
	onSessionToken func(*sts.GetSessionTokenInput) (*sts.GetSessionTokenOutput, error)
	onAssumeRole   func(*sts.AssumeRoleInput) (*sts.AssumeRoleOutput, error)
	onSaml         func(*sts.AssumeRoleWithSAMLInput) (*sts.AssumeRoleWithSAMLOutput, error)
}

func (f *fakeStsAPI) GetSessionToken(ctx context.Context, params *sts.GetSessionTokenInput, optFns ...func(*sts.Options)) (*sts.GetSessionTokenOutput, error) {
	f.mu.Lock()
	f.sessionTokens++
	f.mu.Unlock()
	if f.onSessionToken == nil {
		return nil, fmt.Errorf("unexpected GetSessionToken call")
	}
	return f.onSessionToken(params)
}

func (f *fakeStsAPI) AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error) {
	f.mu.Lock()
	f.assumeRoles++
	f.mu.Unlock()
	if f.onAssumeRole == nil {
		return nil, fmt.Errorf("unexpected AssumeRole call")
	}
	return f.onAssumeRole(params)
}

func (f *fakeStsAPI) AssumeRoleWithSAML(ctx context.Context, params *sts.AssumeRoleWithSAMLInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleWithSAMLOutput, error) {
	f.mu.Lock()
	f.samlCalls++
	f.mu.Unlock()
	if f.onSaml == nil {
		return nil, fmt.Errorf("unexpected AssumeRoleWithSAML call")
	}
	return f.onSaml(params)
}

// installFakeSts swaps the STS factory for the given fake.
func installFakeSts(t *testing.T, fake *fakeStsAPI) {
	t.Helper()
	original := newStsAPI
	newStsAPI = func(ctx context.Context, region string, provider aws.CredentialsProvider) (stsAPI, error) {
		return fake, nil
	}
	t.Cleanup(func() { newStsAPI = original })
}

// fakeSsoAPI dispatches to optional func fields.
type fakeSsoAPI struct {
	mu                sync.Mutex
	logouts           int
	onRoleCredentials func(*sso.GetRoleCredentialsInput) (*sso.GetRoleCredentialsOutput, error)
	onListAccounts    func(*sso.ListAccountsInput) (*sso.ListAccountsOutput, error)
	onListRoles       func(*sso.ListAccountRolesInput) (*sso.ListAccountRolesOutput, error)
	onLogout          func(*sso.LogoutInput) (*sso.LogoutOutput, error)
}

func (f *fakeSsoAPI) GetRoleCredentials(ctx context.Context, params *sso.GetRoleCredentialsInput, optFns ...func(*sso.Options)) (*sso.GetRoleCredentialsOutput, error) {
	if f.onRoleCredentials == nil {
		return nil, fmt.Errorf("unexpected GetRoleCredentials call")
	}
	return f.onRoleCredentials(params)
}

func (f *fakeSsoAPI) ListAccounts(ctx context.Context, params *sso.ListAccountsInput, optFns ...func(*sso.Options)) (*sso.ListAccountsOutput, error) {
	if f.onListAccounts == nil {
		return nil, fmt.Errorf("unexpected ListAccounts call")
	}
	return f.onListAccounts(params)
}

func (f *fakeSsoAPI) ListAccountRoles(ctx context.Context, params *sso.ListAccountRolesInput, optFns ...func(*sso.Options)) (*sso.ListAccountRolesOutput, error) {
	if f.onListRoles == nil {
		return nil, fmt.Errorf("unexpected ListAccountRoles call")
	}
	return f.onListRoles(params)
}

func (f *fakeSsoAPI) Logout(ctx context.Context, params *sso.LogoutInput, optFns ...func(*sso.Options)) (*sso.LogoutOutput, error) {
	f.mu.Lock()
	f.logouts++
	f.mu.Unlock()
	if f.onLogout == nil {
		return &sso.LogoutOutput{}, nil
	}
	return f.onLogout(params)
}

func installFakeSso(t *testing.T, fake *fakeSsoAPI) {
	t.Helper()
	original := newSsoAPI
	newSsoAPI = func(ctx context.Context, region string) (ssoAPI, error) {
		return fake, nil
	}
	t.Cleanup(func() { newSsoAPI = original })
}

// fakeOidcAPI counts registration and device-authorization requests.
type fakeOidcAPI struct {
	mu            sync.Mutex
	registrations int
	deviceAuths   int
	tokenCalls    int
	onCreateToken func(*ssooidc.CreateTokenInput) (*ssooidc.CreateTokenOutput, error)
	expiresIn     int32
}

func (f *fakeOidcAPI) RegisterClient(ctx context.Context, params *ssooidc.RegisterClientInput, optFns ...func(*ssooidc.Options)) (*ssooidc.RegisterClientOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registrations++
	return &ssooidc.RegisterClientOutput{
		ClientId:              aws.String("client-id"),
		ClientSecret:          aws.String("client-secret"),
		ClientSecretExpiresAt: time.Now().Add(time.Hour).Unix(),
	}, nil
}

func (f *fakeOidcAPI) StartDeviceAuthorization(ctx context.Context, params *ssooidc.StartDeviceAuthorizationInput, optFns ...func(*ssooidc.Options)) (*ssooidc.StartDeviceAuthorizationOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deviceAuths++
	expiresIn := f.expiresIn
	if expiresIn == 0 {
		expiresIn = 600
	}
	return &ssooidc.StartDeviceAuthorizationOutput{
		DeviceCode:              aws.String("device-code"),
		UserCode:                aws.String("USER-CODE"),
		VerificationUri:         aws.String("https://device.sso.test/verify"),
		VerificationUriComplete: aws.String("https://device.sso.test/verify?user_code=USER-CODE"),
		ExpiresIn:               expiresIn,
		Interval:                0,
	}, nil
}

func (f *fakeOidcAPI) CreateToken(ctx context.Context, params *ssooidc.CreateTokenInput, optFns ...func(*ssooidc.Options)) (*ssooidc.CreateTokenOutput, error) {
	f.mu.Lock()
	f.tokenCalls++
	f.mu.Unlock()
	if f.onCreateToken == nil {
		return nil, fmt.Errorf("unexpected CreateToken call")
	}
	return f.onCreateToken(params)
}

func installFakeOidc(t *testing.T, fake *fakeOidcAPI) {
	t.Helper()
	original := newOidcAPI
	newOidcAPI = func(ctx context.Context, region string) (oidcAPI, error) {
		return fake, nil
	}
	t.Cleanup(func() { newOidcAPI = original })
}

// disablePortalResolution keeps tests off the network.
func disablePortalResolution(t *testing.T) {
	t.Helper()
	original := resolvePortalURL
	resolvePortalURL = func(ctx context.Context, portalURL string) (string, error) {
		return portalURL, nil
	}
	t.Cleanup(func() { resolvePortalURL = original })
}

// fakeWindow feeds scripted navigations to interception code.
type fakeWindow struct {
	navs   chan Navigation
	closed chan struct{}
	shown  bool
	once   sync.Once
}

func newFakeWindow() *fakeWindow {
	return &fakeWindow{navs: make(chan Navigation, 8), closed: make(chan struct{})}
}

func (w *fakeWindow) Navigations() <-chan Navigation { return w.navs }
func (w *fakeWindow) Closed() <-chan struct{}        { return w.closed }
func (w *fakeWindow) Show()                          { w.shown = true }
func (w *fakeWindow) Close()                         { w.once.Do(func() { close(w.closed) }) }

type fakePresenter struct {
	window *fakeWindow
	opens  int
}

func (p *fakePresenter) Open(url string, visible bool, title string) (BrowserWindow, error) {
	p.opens++
	return p.window, nil
}

// testEnv bundles the collaborators most tests need.
type testEnv struct {
	workspace *Workspace
	vault     *memVault
	writer    *recordingWriter
	factory   *StrategyFactory
	sessions  *SessionService
	oidc      *OidcDeviceClient
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	setupTestDirs(t)

	workspace := NewWorkspace()
	vault := newMemVault()
	writer := newRecordingWriter()
	oidc := NewOidcDeviceClient(nil)
	oidc.pollInterval = 10 * time.Millisecond
	oidc.openBrowser = func(string) error { return nil }
	factory := NewStrategyFactory(workspace, vault, writer, noopMfa{code: "123456"}, nil, oidc)
	sessions := NewSessionService(workspace, vault, factory)

	return &testEnv{
		workspace: workspace,
		vault:     vault,
		writer:    writer,
		factory:   factory,
		sessions:  sessions,
		oidc:      oidc,
	}
}

// cacheSessionToken vaults a session token so the IAM user strategy can
// generate credentials without touching the network.
func cacheSessionToken(t *testing.T, vault *memVault, sessionID string, creds *CredentialsInfo, expiry time.Time) {
	t.Helper()
	raw := fmt.Sprintf(`{"accessKeyId":%q,"secretAccessKey":%q,"sessionToken":%q}`,
		creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken)
	if err := vault.SaveSecret(VaultService, sessionID+vaultKeySessionToken, raw); err != nil {
		t.Fatalf("SaveSecret failed: %v", err)
	}
	if err := vault.SaveSecret(VaultService, sessionID+vaultKeySessionTokenExpiry, expiry.Format(time.RFC3339)); err != nil {
		t.Fatalf("SaveSecret failed: %v", err)
	}
}

func postNavigation(rawURL string, form url.Values) Navigation {
	return Navigation{URL: rawURL, PostData: form}
}
