package internal

import (
	"context"
	"fmt"
	"time"
)

// MfaPrompter asks the user for a one-time MFA code. Returning
// ErrMissingMfaToken means the user cancelled.
type MfaPrompter interface {
	Ask(title, placeholder, message string) (string, error)
}

// CredentialsStrategy is the per-session-type algorithm for producing and
// materializing temporary credentials.
type CredentialsStrategy interface {
	GenerateCredentials(ctx context.Context, sess *Session) (*CredentialsInfo, error)
	ApplyCredentials(sess *Session, creds *CredentialsInfo) error
	DeApplyCredentials(sess *Session) error
	RemoveSecrets(sessionID string) error
}

// StrategyFactory resolves the strategy for a session type. The chained
// strategy holds the factory itself so it can recursively resolve its
// parent's strategy.
type StrategyFactory struct {
	workspace *Workspace
	vault     SecretVault
	writer    CredentialsFileWriter
	mfa       MfaPrompter
	window    WindowPresenter
	oidc      *OidcDeviceClient

	// TokenDuration bounds GetSessionToken/AssumeRole credentials.
	TokenDuration time.Duration
	// RoleSessionName names chained assume-role sessions.
	RoleSessionName string
}

// NewStrategyFactory wires the collaborators shared by every strategy.
func NewStrategyFactory(workspace *Workspace, vault SecretVault, writer CredentialsFileWriter, mfa MfaPrompter, window WindowPresenter, oidc *OidcDeviceClient) *StrategyFactory {
	return &StrategyFactory{
		workspace:       workspace,
		vault:           vault,
		writer:          writer,
		mfa:             mfa,
		window:          window,
		oidc:            oidc,
		TokenDuration:   time.Hour,
		RoleSessionName: "leapp-session",
	}
}

// ForType returns the strategy implementing the given session type.
func (f *StrategyFactory) ForType(t SessionType) (CredentialsStrategy, error) {
	base := baseStrategy{workspace: f.workspace, writer: f.writer}
	switch t {
	case SessionTypeIamUser:
		return &iamUserStrategy{baseStrategy: base, vault: f.vault, mfa: f.mfa, tokenDuration: f.TokenDuration}, nil
	case SessionTypeIamRoleChained:
		return &iamChainedStrategy{baseStrategy: base, factory: f, roleSessionName: f.RoleSessionName, tokenDuration: f.TokenDuration}, nil
	case SessionTypeIamRoleFederated:
		return &iamFederatedStrategy{baseStrategy: base, window: f.window, tokenDuration: f.TokenDuration}, nil
	case SessionTypeSsoRole:
		return &ssoRoleStrategy{baseStrategy: base, vault: f.vault, oidc: f.oidc}, nil
	case SessionTypeAzureSubscription:
		return &azureStrategy{workspace: f.workspace, vault: f.vault}, nil
	default:
		return nil, fmt.Errorf("unknown session type %q", t)
	}
}

// baseStrategy carries the credentials-file plumbing shared by the AWS
// strategies.
type baseStrategy struct {
	workspace *Workspace
	writer    CredentialsFileWriter
}

func (b baseStrategy) ApplyCredentials(sess *Session, creds *CredentialsInfo) error {
	profileName, err := b.workspace.GetProfileName(sess.ProfileID)
	if err != nil {
		return err
	}
	return b.writer.Write(profileName, creds, sess.Region)
}

func (b baseStrategy) DeApplyCredentials(sess *Session) error {
	profileName, err := b.workspace.GetProfileName(sess.ProfileID)
	if err != nil {
		return err
	}
	return b.writer.Remove(profileName)
}

func (b baseStrategy) RemoveSecrets(sessionID string) error {
	return nil
}
