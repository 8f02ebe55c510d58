package internal

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sso"
	"github.com/charmbracelet/log"
)

// Reconciler logs integrations in and out and reconciles the portal's
// account/role catalog against locally persisted sessions.
type Reconciler struct {
	workspace *Workspace
	vault     SecretVault
	oidc      *OidcDeviceClient
	sessions  *SessionService
}

// NewReconciler wires the reconciler.
func NewReconciler(workspace *Workspace, vault SecretVault, oidc *OidcDeviceClient, sessions *SessionService) *Reconciler {
	return &Reconciler{workspace: workspace, vault: vault, oidc: oidc, sessions: sessions}
}

// Login makes sure the integration holds a valid bearer token, running the
// device-authorization flow when forced or when the cached token expired.
func (r *Reconciler) Login(ctx context.Context, integrationID string, force bool) (string, error) {
	integ, err := r.workspace.GetIntegration(integrationID)
	if err != nil {
		return "", err
	}
	return ensureSsoToken(ctx, r.workspace, r.vault, r.oidc, integ, force)
}

// remoteRole is one (account, role) pair enumerated from the portal.
type remoteRole struct {
	accountID   string
	accountName string
	email       string
	roleName    string
}

// sessionTuple identifies an SSO session across local and remote catalogs.
type sessionTuple struct {
	name    string
	roleARN string
	email   string
}

func tupleOf(s *Session) sessionTuple {
	return sessionTuple{name: s.Name, roleARN: s.RoleARN, email: s.Email}
}

// ProvisionSessions enumerates the full remote catalog, deletes local
// sessions the portal no longer offers, and returns creation candidates
// for roles not persisted yet. Sessions present in both sets keep their
// local customizations.
func (r *Reconciler) ProvisionSessions(ctx context.Context, integrationID string) ([]*Session, error) {
	integ, err := r.workspace.GetIntegration(integrationID)
	if err != nil {
		return nil, err
	}
	token, err := r.Login(ctx, integrationID, false)
	if err != nil {
		return nil, err
	}

	remote, err := r.listRemoteRoles(ctx, integ.Region, token)
	if err != nil {
		return nil, err
	}

	remoteSet := make(map[sessionTuple]remoteRole, len(remote))
	for _, role := range remote {
		candidate := sessionTuple{
			name:    role.accountName,
			roleARN: SsoRoleARN(role.accountID, role.roleName),
			email:   role.email,
		}
		remoteSet[candidate] = role
	}

	sessions, err := r.workspace.ListSessions()
	if err != nil {
		return nil, err
	}

	localSet := make(map[sessionTuple]*Session)
	// Region/profile choices of sessions superseded by this sync, keyed by
	// role ARN so a recreated role inherits them.
	superseded := make(map[string]*Session)

	for _, sess := range sessions {
		if sess.Type != SessionTypeSsoRole || sess.SsoIntegrationID != integrationID {
			continue
		}
		tuple := tupleOf(sess)
		if _, stillRemote := remoteSet[tuple]; stillRemote {
			localSet[tuple] = sess
			continue
		}
		superseded[sess.RoleARN] = sess
		if err := r.sessions.Delete(ctx, sess.ID); err != nil && !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("failed to delete stale session %q: %w", sess.Name, err)
		}
	}

	defaultRegion, err := r.workspace.DefaultRegion()
	if err != nil {
		return nil, err
	}

	var candidates []*Session
	for tuple, role := range remoteSet {
		if _, exists := localSet[tuple]; exists {
			continue
		}
		candidate := NewSession(role.accountName, SessionTypeSsoRole, defaultRegion)
		candidate.RoleARN = tuple.roleARN
		candidate.Email = role.email
		candidate.SsoIntegrationID = integrationID
		if prior, ok := superseded[tuple.roleARN]; ok {
			candidate.Region = prior.Region
			candidate.ProfileID = prior.ProfileID
		}
		candidates = append(candidates, candidate)
	}
	return candidates, nil
}

func (r *Reconciler) listRemoteRoles(ctx context.Context, region, token string) ([]remoteRole, error) {
	client, err := newSsoAPI(ctx, region)
	if err != nil {
		return nil, fmt.Errorf("load sso client: %w", err)
	}

	var roles []remoteRole
	var nextToken *string
	for {
		out, err := client.ListAccounts(ctx, &sso.ListAccountsInput{
			AccessToken: aws.String(token),
			NextToken:   nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("list accounts: %w", err)
		}
		for _, account := range out.AccountList {
			accountRoles, err := r.listAccountRoles(ctx, client, token, aws.ToString(account.AccountId))
			if err != nil {
				return nil, err
			}
			for _, roleName := range accountRoles {
				roles = append(roles, remoteRole{
					accountID:   aws.ToString(account.AccountId),
					accountName: aws.ToString(account.AccountName),
					email:       aws.ToString(account.EmailAddress),
					roleName:    roleName,
				})
			}
		}
		if out.NextToken == nil {
			return roles, nil
		}
		nextToken = out.NextToken
	}
}

func (r *Reconciler) listAccountRoles(ctx context.Context, client ssoAPI, token, accountID string) ([]string, error) {
	var roles []string
	var nextToken *string
	for {
		out, err := client.ListAccountRoles(ctx, &sso.ListAccountRolesInput{
			AccessToken: aws.String(token),
			AccountId:   aws.String(accountID),
			NextToken:   nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("list account roles: %w", err)
		}
		for _, role := range out.RoleList {
			roles = append(roles, aws.ToString(role.RoleName))
		}
		if out.NextToken == nil {
			return roles, nil
		}
		nextToken = out.NextToken
	}
}

// Logout invalidates the integration's token remotely (best effort) and
// locally (always), then deletes every session tied to the integration.
func (r *Reconciler) Logout(ctx context.Context, integrationID string) error {
	integ, err := r.workspace.GetIntegration(integrationID)
	if err != nil {
		return err
	}

	token, err := r.vault.GetSecret(VaultService, IntegrationTokenKey(integrationID))
	if err == nil {
		client, err := newSsoAPI(ctx, integ.Region)
		if err == nil {
			if _, err := client.Logout(ctx, &sso.LogoutInput{AccessToken: aws.String(token)}); err != nil {
				log.Warn("portal logout failed, invalidating locally anyway", "error", err)
			}
		}
	}

	if err := r.vault.DeletePassword(VaultService, IntegrationTokenKey(integrationID)); err != nil && !errors.Is(err, ErrSecretNotFound) {
		return err
	}
	if err := r.workspace.UnsetIntegrationExpiration(integrationID); err != nil {
		return err
	}

	sessions, err := r.workspace.ListSessions()
	if err != nil {
		return err
	}
	for _, sess := range sessions {
		if sess.Type == SessionTypeSsoRole && sess.SsoIntegrationID == integrationID {
			if err := r.sessions.Delete(ctx, sess.ID); err != nil && !errors.Is(err, ErrNotFound) {
				return err
			}
		}
	}
	return nil
}
