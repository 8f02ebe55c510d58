package internal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

var workspacePath = filepath.Join(os.Getenv("HOME"), ".leapp", "workspace.json")

// DefaultProfileName is the stanza name used when a session has no
// explicit named profile.
const DefaultProfileName = "default"

type workspaceData struct {
	Sessions        []*Session        `json:"sessions"`
	NamedProfiles   []*NamedProfile   `json:"namedProfiles"`
	IdpURLs         []*IdpURL         `json:"idpUrls"`
	SsoIntegrations []*SsoIntegration `json:"ssoIntegrations"`
	DefaultRegion   string            `json:"defaultRegion"`
	DefaultProfile  string            `json:"defaultProfileId"`
}

// Workspace persists sessions, named profiles, idp urls, and SSO
// integrations as a JSON file. Every mutation re-reads the file and
// writes the whole list back, so concurrent lifecycle calls always see
// the latest state instead of a cached copy.
type Workspace struct {
	mu   sync.Mutex
	subs []chan []*Session
}

// NewWorkspace opens the workspace store.
func NewWorkspace() *Workspace {
	return &Workspace{}
}

func (w *Workspace) load() (*workspaceData, error) {
	data := &workspaceData{}
	b, err := os.ReadFile(workspacePath)
	if os.IsNotExist(err) {
		data.DefaultRegion = "us-east-1"
		return data, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read workspace: %w", err)
	}
	if err := json.Unmarshal(b, data); err != nil {
		return nil, fmt.Errorf("failed to parse workspace: %w", err)
	}
	if data.DefaultRegion == "" {
		data.DefaultRegion = "us-east-1"
	}
	return data, nil
}

func (w *Workspace) save(data *workspaceData) error {
	if err := os.MkdirAll(filepath.Dir(workspacePath), 0700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(workspacePath, b, 0600)
}

// ListSessions returns a snapshot of all persisted sessions.
func (w *Workspace) ListSessions() ([]*Session, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := w.load()
	if err != nil {
		return nil, err
	}
	return copySessions(data.Sessions), nil
}

// GetSession returns the session with the given id.
func (w *Workspace) GetSession(id string) (*Session, error) {
	sessions, err := w.ListSessions()
	if err != nil {
		return nil, err
	}
	for _, s := range sessions {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, fmt.Errorf("session %q: %w", id, ErrNotFound)
}

// AddSession appends a session to the persisted list.
func (w *Workspace) AddSession(s *Session) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := w.load()
	if err != nil {
		return err
	}
	data.Sessions = append(data.Sessions, s)
	if err := w.save(data); err != nil {
		return err
	}
	w.notify(data.Sessions)
	return nil
}

// RemoveSession deletes a session by id.
func (w *Workspace) RemoveSession(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := w.load()
	if err != nil {
		return err
	}
	kept := data.Sessions[:0]
	found := false
	for _, s := range data.Sessions {
		if s.ID == id {
			found = true
			continue
		}
		kept = append(kept, s)
	}
	if !found {
		return fmt.Errorf("session %q: %w", id, ErrNotFound)
	}
	data.Sessions = kept
	if err := w.save(data); err != nil {
		return err
	}
	w.notify(data.Sessions)
	return nil
}

// ReplaceSessions swaps the whole persisted list for the given one and
// notifies subscribers with an immutable snapshot.
func (w *Workspace) ReplaceSessions(sessions []*Session) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := w.load()
	if err != nil {
		return err
	}
	data.Sessions = copySessions(sessions)
	if err := w.save(data); err != nil {
		return err
	}
	w.notify(data.Sessions)
	return nil
}

// Subscribe returns a channel receiving a session-list snapshot after
// every mutation. Slow subscribers miss intermediate snapshots rather
// than blocking mutations.
func (w *Workspace) Subscribe() <-chan []*Session {
	w.mu.Lock()
	defer w.mu.Unlock()

	ch := make(chan []*Session, 1)
	w.subs = append(w.subs, ch)
	return ch
}

func (w *Workspace) notify(sessions []*Session) {
	for _, ch := range w.subs {
		snapshot := copySessions(sessions)
		select {
		case ch <- snapshot:
		default:
		}
	}
}

func copySessions(sessions []*Session) []*Session {
	out := make([]*Session, len(sessions))
	for i, s := range sessions {
		c := *s
		out[i] = &c
	}
	return out
}

// GetProfileName resolves a profile id to its stanza name, falling back
// to the default profile.
func (w *Workspace) GetProfileName(profileID string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := w.load()
	if err != nil {
		return "", err
	}
	if profileID == "" {
		return DefaultProfileName, nil
	}
	for _, p := range data.NamedProfiles {
		if p.ID == profileID {
			return p.Name, nil
		}
	}
	return "", fmt.Errorf("profile %q: %w", profileID, ErrNotFound)
}

// EnsureProfile returns the id of the named profile, creating it first
// if no profile with that name exists.
func (w *Workspace) EnsureProfile(name string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := w.load()
	if err != nil {
		return "", err
	}
	for _, p := range data.NamedProfiles {
		if p.Name == name {
			return p.ID, nil
		}
	}
	p := &NamedProfile{ID: uuid.NewString(), Name: name}
	data.NamedProfiles = append(data.NamedProfiles, p)
	return p.ID, w.save(data)
}

// EnsureIdpURL returns the id of the stored idp URL, creating it if missing.
func (w *Workspace) EnsureIdpURL(url string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := w.load()
	if err != nil {
		return "", err
	}
	for _, u := range data.IdpURLs {
		if u.URL == url {
			return u.ID, nil
		}
	}
	u := &IdpURL{ID: uuid.NewString(), URL: url}
	data.IdpURLs = append(data.IdpURLs, u)
	return u.ID, w.save(data)
}

// GetIdpURL resolves a stored idp URL by id.
func (w *Workspace) GetIdpURL(id string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := w.load()
	if err != nil {
		return "", err
	}
	for _, u := range data.IdpURLs {
		if u.ID == id {
			return u.URL, nil
		}
	}
	return "", fmt.Errorf("idp url %q: %w", id, ErrNotFound)
}

// ListIntegrations returns all configured SSO integrations.
func (w *Workspace) ListIntegrations() ([]*SsoIntegration, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := w.load()
	if err != nil {
		return nil, err
	}
	out := make([]*SsoIntegration, len(data.SsoIntegrations))
	for i, integ := range data.SsoIntegrations {
		c := *integ
		out[i] = &c
	}
	return out, nil
}

// GetIntegration returns the SSO integration with the given id.
func (w *Workspace) GetIntegration(id string) (*SsoIntegration, error) {
	integrations, err := w.ListIntegrations()
	if err != nil {
		return nil, err
	}
	for _, integ := range integrations {
		if integ.ID == id {
			return integ, nil
		}
	}
	return nil, fmt.Errorf("integration %q: %w", id, ErrNotFound)
}

// AddIntegration stores a new SSO integration.
func (w *Workspace) AddIntegration(integ *SsoIntegration) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := w.load()
	if err != nil {
		return err
	}
	data.SsoIntegrations = append(data.SsoIntegrations, integ)
	return w.save(data)
}

// UpdateIntegration rewrites the mutable fields of an integration.
func (w *Workspace) UpdateIntegration(id, alias, portalURL, region, browserOpening string) error {
	return w.mutateIntegration(id, func(integ *SsoIntegration) {
		integ.Alias = alias
		integ.PortalURL = portalURL
		integ.Region = region
		integ.BrowserOpening = browserOpening
	})
}

// SetIntegrationExpiration records when the cached bearer token expires.
func (w *Workspace) SetIntegrationExpiration(id string, expiration time.Time) error {
	return w.mutateIntegration(id, func(integ *SsoIntegration) {
		integ.AccessTokenExpiration = &expiration
	})
}

// UnsetIntegrationExpiration clears the token expiry, marking the
// integration as logged out.
func (w *Workspace) UnsetIntegrationExpiration(id string) error {
	return w.mutateIntegration(id, func(integ *SsoIntegration) {
		integ.AccessTokenExpiration = nil
	})
}

// RemoveIntegration deletes an integration by id.
func (w *Workspace) RemoveIntegration(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := w.load()
	if err != nil {
		return err
	}
	kept := data.SsoIntegrations[:0]
	found := false
	for _, integ := range data.SsoIntegrations {
		if integ.ID == id {
			found = true
			continue
		}
		kept = append(kept, integ)
	}
	if !found {
		return fmt.Errorf("integration %q: %w", id, ErrNotFound)
	}
	data.SsoIntegrations = kept
	return w.save(data)
}

func (w *Workspace) mutateIntegration(id string, mutate func(*SsoIntegration)) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := w.load()
	if err != nil {
		return err
	}
	for _, integ := range data.SsoIntegrations {
		if integ.ID == id {
			mutate(integ)
			return w.save(data)
		}
	}
	return fmt.Errorf("integration %q: %w", id, ErrNotFound)
}

// DefaultRegion returns the workspace default region.
func (w *Workspace) DefaultRegion() (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := w.load()
	if err != nil {
		return "", err
	}
	return data.DefaultRegion, nil
}

// SetDefaultRegion stores the workspace default region.
func (w *Workspace) SetDefaultRegion(region string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := w.load()
	if err != nil {
		return err
	}
	data.DefaultRegion = region
	return w.save(data)
}
