package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/charmbracelet/log"
)

// iamUserStrategy exchanges long-lived access keys for a session token,
// optionally gated by an MFA code. The minted token is cached in the vault
// and returned verbatim until it expires, so repeated activations perform
// no network calls.
type iamUserStrategy struct {
	baseStrategy
	vault         SecretVault
	mfa           MfaPrompter
	tokenDuration time.Duration
}

func (s *iamUserStrategy) GenerateCredentials(ctx context.Context, sess *Session) (*CredentialsInfo, error) {
	if creds, ok, err := s.cachedToken(sess.ID); err != nil {
		return nil, err
	} else if ok {
		log.Debug("using cached session token", "session", sess.Name)
		return creds, nil
	}

	accessKeyID, err := s.vault.GetSecret(VaultService, sess.ID+vaultKeyAccessKeyID)
	if err != nil {
		return nil, fmt.Errorf("no stored access key for session %q: %w", sess.Name, err)
	}
	secretAccessKey, err := s.vault.GetSecret(VaultService, sess.ID+vaultKeySecretAccessKey)
	if err != nil {
		return nil, fmt.Errorf("no stored secret key for session %q: %w", sess.Name, err)
	}

	input := &sts.GetSessionTokenInput{
		DurationSeconds: aws.Int32(int32(s.tokenDuration.Seconds())),
	}
	if sess.MfaDevice != "" {
		code, err := s.mfa.Ask("Insert MFA code", "MFA code", fmt.Sprintf("MFA device %s", sess.MfaDevice))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMissingMfaToken, err)
		}
		if code == "" {
			return nil, ErrMissingMfaToken
		}
		input.SerialNumber = aws.String(sess.MfaDevice)
		input.TokenCode = aws.String(code)
	}

	client, err := newStsAPI(ctx, sess.Region, StaticProvider(&CredentialsInfo{
		AccessKeyID:     accessKeyID,
		SecretAccessKey: secretAccessKey,
	}))
	if err != nil {
		return nil, &StsError{Op: "load sts client", Err: err}
	}

	out, err := client.GetSessionToken(ctx, input)
	if err != nil {
		return nil, &StsError{Op: "get session token", Err: err}
	}

	creds := &CredentialsInfo{
		AccessKeyID:     aws.ToString(out.Credentials.AccessKeyId),
		SecretAccessKey: aws.ToString(out.Credentials.SecretAccessKey),
		SessionToken:    aws.ToString(out.Credentials.SessionToken),
	}
	s.cacheToken(sess.ID, creds, aws.ToTime(out.Credentials.Expiration))
	return creds, nil
}

// cachedToken returns the vaulted session token when its stored expiry is
// still in the future.
func (s *iamUserStrategy) cachedToken(sessionID string) (*CredentialsInfo, bool, error) {
	expiryStr, err := s.vault.GetSecret(VaultService, sessionID+vaultKeySessionTokenExpiry)
	if errors.Is(err, ErrSecretNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	expiry, err := time.Parse(time.RFC3339, expiryStr)
	if err != nil {
		return nil, false, &ParseError{Key: sessionID + vaultKeySessionTokenExpiry, Err: err}
	}
	if !expiry.After(time.Now()) {
		return nil, false, nil
	}

	raw, err := s.vault.GetSecret(VaultService, sessionID+vaultKeySessionToken)
	if err != nil {
		return nil, false, err
	}
	creds := &CredentialsInfo{}
	if err := json.Unmarshal([]byte(raw), creds); err != nil {
		return nil, false, &ParseError{Key: sessionID + vaultKeySessionToken, Err: err}
	}
	return creds, true, nil
}

func (s *iamUserStrategy) cacheToken(sessionID string, creds *CredentialsInfo, expiry time.Time) {
	raw, err := json.Marshal(creds)
	if err != nil {
		log.Warn("failed to serialize session token", "error", err)
		return
	}
	if err := s.vault.SaveSecret(VaultService, sessionID+vaultKeySessionToken, string(raw)); err != nil {
		log.Warn("failed to cache session token", "error", err)
		return
	}
	if err := s.vault.SaveSecret(VaultService, sessionID+vaultKeySessionTokenExpiry, expiry.Format(time.RFC3339)); err != nil {
		log.Warn("failed to cache token expiration", "error", err)
	}
}

func (s *iamUserStrategy) RemoveSecrets(sessionID string) error {
	keys := []string{
		sessionID + vaultKeyAccessKeyID,
		sessionID + vaultKeySecretAccessKey,
		sessionID + vaultKeySessionToken,
		sessionID + vaultKeySessionTokenExpiry,
	}
	for _, key := range keys {
		if err := s.vault.DeletePassword(VaultService, key); err != nil && !errors.Is(err, ErrSecretNotFound) {
			return err
		}
	}
	return nil
}
