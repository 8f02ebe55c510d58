package internal

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sso"
	"github.com/charmbracelet/log"
)

// ssoRoleStrategy obtains a bearer token through the device client, then
// asks the portal for role credentials scoped to the session's role ARN.
type ssoRoleStrategy struct {
	baseStrategy
	vault SecretVault
	oidc  *OidcDeviceClient
}

func (s *ssoRoleStrategy) GenerateCredentials(ctx context.Context, sess *Session) (*CredentialsInfo, error) {
	integ, err := s.workspace.GetIntegration(sess.SsoIntegrationID)
	if err != nil {
		return nil, err
	}
	token, err := ensureSsoToken(ctx, s.workspace, s.vault, s.oidc, integ, false)
	if err != nil {
		return nil, err
	}

	accountID, roleName, err := ParseRoleARN(sess.RoleARN)
	if err != nil {
		return nil, err
	}

	client, err := newSsoAPI(ctx, integ.Region)
	if err != nil {
		return nil, &StsError{Op: "load sso client", Err: err}
	}
	out, err := client.GetRoleCredentials(ctx, &sso.GetRoleCredentialsInput{
		AccessToken: aws.String(token),
		AccountId:   aws.String(accountID),
		RoleName:    aws.String(roleName),
	})
	if err != nil {
		return nil, &StsError{Op: "get role credentials", Err: err}
	}

	rc := out.RoleCredentials
	return &CredentialsInfo{
		AccessKeyID:     aws.ToString(rc.AccessKeyId),
		SecretAccessKey: aws.ToString(rc.SecretAccessKey),
		SessionToken:    aws.ToString(rc.SessionToken),
	}, nil
}

// ensureSsoToken returns a valid bearer token for the integration, running
// the device-authorization flow when the cached one is missing or expired.
// The fresh token is cached in the vault and its expiry persisted on the
// integration.
func ensureSsoToken(ctx context.Context, workspace *Workspace, vault SecretVault, oidc *OidcDeviceClient, integ *SsoIntegration, force bool) (string, error) {
	if !force && integ.AccessTokenExpiration != nil && integ.AccessTokenExpiration.After(time.Now()) {
		token, err := vault.GetSecret(VaultService, IntegrationTokenKey(integ.ID))
		if err == nil {
			return token, nil
		}
		if !errors.Is(err, ErrSecretNotFound) {
			return "", err
		}
		// Expiration persisted but token gone from the vault: re-login.
	}

	portalURL, err := resolvePortalURL(ctx, integ.PortalURL)
	if err != nil {
		log.Debug("portal url resolution failed, using configured url", "error", err)
		portalURL = integ.PortalURL
	}

	token, err := oidc.Login(ctx, integ.Region, portalURL, integ.BrowserOpening)
	if err != nil {
		return "", err
	}

	if err := vault.SaveSecret(VaultService, IntegrationTokenKey(integ.ID), token.AccessToken); err != nil {
		return "", err
	}
	if err := workspace.SetIntegrationExpiration(integ.ID, token.ExpiresAt); err != nil {
		return "", err
	}
	return token.AccessToken, nil
}

// resolvePortalURL follows an alias redirect once and returns the target.
var resolvePortalURL = func(ctx context.Context, portalURL string) (string, error) {
	resolved := portalURL
	client := &http.Client{
		Timeout: 10 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			resolved = req.URL.String()
			return http.ErrUseLastResponse
		},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, portalURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	resp.Body.Close()
	return resolved, nil
}

func (s *ssoRoleStrategy) RemoveSecrets(sessionID string) error {
	// The bearer token belongs to the integration, not the session.
	return nil
}
