package internal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
)

// SessionService is the session state machine. It owns every status
// transition and enforces profile exclusivity: for a given profile, at
// most one session may be active or pending at any instant.
//
// Strategies recursively call back into this surface for parent sessions,
// so every operation re-reads the persisted list instead of caching a
// stale copy.
type SessionService struct {
	workspace *Workspace
	vault     SecretVault
	factory   *StrategyFactory
}

// NewSessionService wires the state machine.
func NewSessionService(workspace *Workspace, vault SecretVault, factory *StrategyFactory) *SessionService {
	return &SessionService{workspace: workspace, vault: vault, factory: factory}
}

// Start activates a session: it fails fast when another session on the
// same profile is pending, stops any active sibling on the profile to
// make room, generates credentials through the session's strategy, and
// materializes them. Any failure restores the session to inactive.
func (s *SessionService) Start(ctx context.Context, sessionID string) error {
	sessions, err := s.workspace.ListSessions()
	if err != nil {
		return err
	}
	target := findSession(sessions, sessionID)
	if target == nil {
		return fmt.Errorf("session %q: %w", sessionID, ErrNotFound)
	}

	for _, other := range sessions {
		if other.ID == target.ID || other.ProfileID != target.ProfileID {
			continue
		}
		if other.Status == StatusPending {
			return fmt.Errorf("%w (session %q)", ErrConflict, other.Name)
		}
	}

	// Make room: stop active siblings sharing the profile. Errors are
	// swallowed here, the goal is freeing the profile, not the user's
	// request.
	for _, other := range sessions {
		if other.ID == target.ID || other.ProfileID != target.ProfileID {
			continue
		}
		if other.Status == StatusActive {
			if err := s.Stop(ctx, other.ID); err != nil {
				log.Warn("failed to stop sibling session", "session", other.Name, "error", err)
			}
		}
	}

	if err := s.setStatus(target.ID, StatusPending, nil); err != nil {
		return err
	}
	if err := s.generateAndApply(ctx, target.ID); err != nil {
		if stErr := s.setStatus(target.ID, StatusInactive, nil); stErr != nil {
			log.Warn("failed to restore session to inactive", "error", stErr)
		}
		return err
	}
	now := time.Now()
	return s.setStatus(target.ID, StatusActive, &now)
}

// Rotate refreshes the credentials of an already-active session. It skips
// the conflict checks of Start.
func (s *SessionService) Rotate(ctx context.Context, sessionID string) error {
	if _, err := s.workspace.GetSession(sessionID); err != nil {
		return err
	}
	if err := s.generateAndApply(ctx, sessionID); err != nil {
		if stErr := s.setStatus(sessionID, StatusInactive, nil); stErr != nil {
			log.Warn("failed to restore session to inactive", "error", stErr)
		}
		return err
	}
	now := time.Now()
	return s.setStatus(sessionID, StatusActive, &now)
}

// Stop removes the session's stanza from the credentials file and marks
// it inactive. Cleanup failures still transition the session to inactive
// before surfacing.
func (s *SessionService) Stop(ctx context.Context, sessionID string) error {
	sess, err := s.workspace.GetSession(sessionID)
	if err != nil {
		return err
	}
	strategy, err := s.factory.ForType(sess.Type)
	if err != nil {
		return err
	}

	deApplyErr := strategy.DeApplyCredentials(sess)
	if err := s.setStatus(sessionID, StatusInactive, nil); err != nil {
		return err
	}
	return deApplyErr
}

// Delete stops the session if needed, recursively deletes chained
// children, removes the session's secrets from the vault, and drops it
// from the workspace.
func (s *SessionService) Delete(ctx context.Context, sessionID string) error {
	sess, err := s.workspace.GetSession(sessionID)
	if err != nil {
		return err
	}
	if sess.Status == StatusActive || sess.Status == StatusPending {
		if err := s.Stop(ctx, sessionID); err != nil {
			log.Warn("failed to stop session before delete", "session", sess.Name, "error", err)
		}
	}

	sessions, err := s.workspace.ListSessions()
	if err != nil {
		return err
	}
	for _, child := range sessions {
		if child.ParentSessionID == sessionID {
			if err := s.Delete(ctx, child.ID); err != nil && !errors.Is(err, ErrNotFound) {
				return err
			}
		}
	}

	strategy, err := s.factory.ForType(sess.Type)
	if err == nil {
		if err := strategy.RemoveSecrets(sessionID); err != nil {
			log.Warn("failed to remove session secrets", "session", sess.Name, "error", err)
		}
	}

	return s.workspace.RemoveSession(sessionID)
}

func (s *SessionService) generateAndApply(ctx context.Context, sessionID string) error {
	// Re-read: a recursive strategy call may have touched the list.
	sess, err := s.workspace.GetSession(sessionID)
	if err != nil {
		return err
	}
	strategy, err := s.factory.ForType(sess.Type)
	if err != nil {
		return err
	}
	creds, err := strategy.GenerateCredentials(ctx, sess)
	if err != nil {
		return err
	}
	return strategy.ApplyCredentials(sess, creds)
}

// setStatus re-reads the session list, updates one session's status and
// start time, and replaces the list wholesale.
func (s *SessionService) setStatus(sessionID string, status SessionStatus, startedAt *time.Time) error {
	sessions, err := s.workspace.ListSessions()
	if err != nil {
		return err
	}
	found := false
	for _, sess := range sessions {
		if sess.ID == sessionID {
			sess.Status = status
			sess.StartDateTime = startedAt
			found = true
		}
	}
	if !found {
		return fmt.Errorf("session %q: %w", sessionID, ErrNotFound)
	}
	return s.workspace.ReplaceSessions(sessions)
}

func findSession(sessions []*Session, id string) *Session {
	for _, s := range sessions {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// CreateSession validates required fields per session type and persists
// the session.
func (s *SessionService) CreateSession(sess *Session) error {
	if sess.Name == "" {
		return fmt.Errorf("session name is required")
	}
	switch sess.Type {
	case SessionTypeIamUser:
		// Long-lived keys are stored separately via StoreIamUserKeys.
	case SessionTypeIamRoleChained:
		if sess.ParentSessionID == "" || sess.RoleARN == "" {
			return fmt.Errorf("chained sessions require a parent session and a role ARN")
		}
	case SessionTypeIamRoleFederated:
		if sess.RoleARN == "" || sess.IdpARN == "" || sess.IdpURLID == "" {
			return fmt.Errorf("federated sessions require a role ARN, an idp ARN, and an idp URL")
		}
	case SessionTypeSsoRole:
		if sess.SsoIntegrationID == "" || sess.RoleARN == "" {
			return fmt.Errorf("sso sessions require an integration and a role ARN")
		}
	case SessionTypeAzureSubscription:
		if sess.SubscriptionID == "" || sess.TenantID == "" {
			return fmt.Errorf("azure sessions require a subscription id and a tenant id")
		}
	default:
		return fmt.Errorf("unknown session type %q", sess.Type)
	}
	return s.workspace.AddSession(sess)
}

// StoreIamUserKeys saves an IAM user's long-lived key pair in the vault.
func (s *SessionService) StoreIamUserKeys(sessionID, accessKeyID, secretAccessKey string) error {
	if err := s.vault.SaveSecret(VaultService, sessionID+vaultKeyAccessKeyID, accessKeyID); err != nil {
		return err
	}
	return s.vault.SaveSecret(VaultService, sessionID+vaultKeySecretAccessKey, secretAccessKey)
}
