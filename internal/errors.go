package internal

import (
	"errors"
	"fmt"
)

// Sentinel errors matchable with errors.Is. The state machine guarantees a
// session is never left pending after any of these surface.
var (
	// ErrNotFound signals a missing session, integration, or dangling
	// parentSessionId reference.
	ErrNotFound = errors.New("not found")

	// ErrConflict signals that another session with the same profile is
	// already pending.
	ErrConflict = errors.New("profile already in use by a pending session")

	// ErrMissingMfaToken signals the user cancelled the MFA prompt.
	ErrMissingMfaToken = errors.New("MFA token not provided")

	// ErrDeviceFlowTimeout signals the device-authorization polling window
	// expired before the user completed verification.
	ErrDeviceFlowTimeout = errors.New("device authorization timed out")

	// ErrInterrupted signals the user cancelled an in-flight SSO login.
	ErrInterrupted = errors.New("login interrupted")

	// ErrSecretNotFound signals a vault lookup miss.
	ErrSecretNotFound = errors.New("secret not found")
)

// StsError wraps any failed temporary-credential issuance call. The caller
// may retry by re-invoking start.
type StsError struct {
	Op  string
	Err error
}

func (e *StsError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StsError) Unwrap() error { return e.Err }

// SamlError signals that browser interception failed to produce an assertion.
type SamlError struct {
	Reason string
}

func (e *SamlError) Error() string {
	return fmt.Sprintf("SAML authentication failed: %s", e.Reason)
}

// ParseError signals a stored secret could not be deserialized.
type ParseError struct {
	Key string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("stored secret %q could not be parsed: %v", e.Key, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
