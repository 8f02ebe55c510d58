package cmd

import (
	"fmt"

	"github.com/Noovolari/leapp-sub001/internal"
)

// app is the composition root: every command builds its services here
// instead of reaching for globals.
type app struct {
	workspace  *internal.Workspace
	vault      internal.SecretVault
	sessions   *internal.SessionService
	oidc       *internal.OidcDeviceClient
	reconciler *internal.Reconciler
}

func newApp(explicitSecret string) (*app, error) {
	masterKey, err := internal.GetMasterKey(explicitSecret)
	if err != nil {
		return nil, fmt.Errorf("encryption secret required: %w", err)
	}
	vault, err := internal.NewFileVault(masterKey)
	if err != nil {
		return nil, err
	}

	workspace := internal.NewWorkspace()
	// No embedded browser in the CLI: SSO verification always goes
	// through the system browser, SAML federation needs an external
	// presenter.
	oidc := internal.NewOidcDeviceClient(nil)
	factory := internal.NewStrategyFactory(workspace, vault, internal.IniFileWriter{}, mfaPrompter{}, nil, oidc)
	sessions := internal.NewSessionService(workspace, vault, factory)
	reconciler := internal.NewReconciler(workspace, vault, oidc, sessions)

	return &app{
		workspace:  workspace,
		vault:      vault,
		sessions:   sessions,
		oidc:       oidc,
		reconciler: reconciler,
	}, nil
}

func printSecretHint() {
	fmt.Println("❌ Encryption secret required")
	fmt.Println("\n💡 Set the secret:")
	fmt.Println("   export LEAPP_SECRET=\"your-32-char-encryption-key\"")
	fmt.Println("   or run: leapp secret setup")
}
