package internal

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SessionType identifies which credential strategy a session uses.
type SessionType string

const (
	SessionTypeIamUser           SessionType = "iam-user"
	SessionTypeIamRoleFederated  SessionType = "iam-role-federated"
	SessionTypeIamRoleChained    SessionType = "iam-role-chained"
	SessionTypeSsoRole           SessionType = "sso-role"
	SessionTypeAzureSubscription SessionType = "azure-subscription"
)

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

const (
	StatusInactive SessionStatus = "inactive"
	StatusPending  SessionStatus = "pending"
	StatusActive   SessionStatus = "active"
)

// BrowserOpening selects how the SSO verification page is presented.
const (
	BrowserOpeningInApp     = "in-app"
	BrowserOpeningInBrowser = "in-browser"
)

// Session is a named, typed cloud identity the user can activate or deactivate.
// Only the state machine mutates Status and StartDateTime.
type Session struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Type          SessionType   `json:"type"`
	Region        string        `json:"region"`
	Status        SessionStatus `json:"status"`
	StartDateTime *time.Time    `json:"startDateTime,omitempty"`

	ProfileID string `json:"profileId,omitempty"`

	// IAM role fields (federated and chained)
	RoleARN  string `json:"roleArn,omitempty"`
	IdpARN   string `json:"idpArn,omitempty"`
	IdpURLID string `json:"idpUrlId,omitempty"`

	// Chained role
	ParentSessionID string `json:"parentSessionId,omitempty"`

	// SSO role
	SsoIntegrationID string `json:"ssoIntegrationId,omitempty"`
	Email            string `json:"email,omitempty"`

	// IAM user
	MfaDevice string `json:"mfaDevice,omitempty"`

	// Azure
	SubscriptionID string `json:"subscriptionId,omitempty"`
	TenantID       string `json:"tenantId,omitempty"`
}

// NewSession creates a session with a generated id and inactive status.
func NewSession(name string, sessionType SessionType, region string) *Session {
	return &Session{
		ID:     uuid.NewString(),
		Name:   name,
		Type:   sessionType,
		Region: region,
		Status: StatusInactive,
	}
}

// CredentialsInfo holds short-lived credentials. Never persisted to the
// workspace; only written to the credentials file or cached in the vault.
type CredentialsInfo struct {
	AccessKeyID     string `json:"accessKeyId"`
	SecretAccessKey string `json:"secretAccessKey"`
	SessionToken    string `json:"sessionToken"`
}

// NamedProfile maps a profile id to the stanza name used in the
// credentials file.
type NamedProfile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// IdpURL is a stored identity-provider URL reusable across federated sessions.
type IdpURL struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// SsoIntegration is a configured SSO portal from which accounts and roles
// are enumerated. AccessTokenExpiration is nil whenever no valid bearer
// token is cached in the vault.
type SsoIntegration struct {
	ID                    string     `json:"id"`
	Alias                 string     `json:"alias"`
	PortalURL             string     `json:"portalUrl"`
	Region                string     `json:"region"`
	BrowserOpening        string     `json:"browserOpening"`
	AccessTokenExpiration *time.Time `json:"accessTokenExpiration,omitempty"`
}

// Vault key suffixes for per-session cached secrets.
const (
	vaultKeyAccessKeyID        = "-access-key-id"
	vaultKeySecretAccessKey    = "-secret-access-key"
	vaultKeySessionToken       = "-session-token"
	vaultKeySessionTokenExpiry = "-session-token-expiration"

	vaultKeyIntegrationTokenPrefix = "integration-access-token-"
	vaultKeyAzureTokenPrefix       = "azure-access-token-"
)

// IntegrationTokenKey is the vault key holding an integration's bearer token.
func IntegrationTokenKey(integrationID string) string {
	return vaultKeyIntegrationTokenPrefix + integrationID
}

// ParseRoleARN splits an IAM role ARN into account id and role name.
// Expected shape: arn:aws:iam::123456789012:role/RoleName
func ParseRoleARN(roleARN string) (accountID, roleName string, err error) {
	parts := strings.Split(roleARN, ":")
	if len(parts) != 6 || !strings.HasPrefix(parts[5], "role/") {
		return "", "", fmt.Errorf("malformed role ARN %q", roleARN)
	}
	return parts[4], strings.TrimPrefix(parts[5], "role/"), nil
}

// SsoRoleARN builds the role ARN for an SSO-provisioned (accountID, roleName) pair.
func SsoRoleARN(accountID, roleName string) string {
	return fmt.Sprintf("arn:aws:iam::%s:role/%s", accountID, roleName)
}
