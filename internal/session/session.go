// Package session owns the locally persisted identity of the signed-in
// garage or user. No other package reads or writes the storage keys.
package session

import (
	"fmt"
)

// AccountKind distinguishes the two login endpoints.
type AccountKind string

const (
	Organization AccountKind = "organization"
	Individual   AccountKind = "individual"
)

// Valid reports whether k is a known account kind.
func (k AccountKind) Valid() bool {
	return k == Organization || k == Individual
}

// Persisted keys.
const (
	keyToken       = "token"
	keyAccountKind = "account_kind"
	keyAccountID   = "account_id"
	keyDisplayName = "display_name"
	keyOrgName     = "org_name"
	keyOrgEmail    = "org_email"
)

var allKeys = []string{keyToken, keyAccountKind, keyAccountID, keyDisplayName, keyOrgName, keyOrgEmail}

// Session is a snapshot of the persisted identity.
type Session struct {
	Token       string
	AccountKind AccountKind
	AccountID   string
	DisplayName string
}

// OrgIdentity is the auxiliary organization data kept for plan renewal.
type OrgIdentity struct {
	ID    string
	Name  string
	Email string
}

// Manager reads and writes the session through a Store.
type Manager struct {
	store Store
}

// NewManager returns a Manager backed by store.
func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// IsAuthenticated reports whether both a token and an account id are stored.
func (m *Manager) IsAuthenticated() (bool, error) {
	token, err := m.store.Get(keyToken)
	if err != nil {
		return false, err
	}
	id, err := m.store.Get(keyAccountID)
	if err != nil {
		return false, err
	}
	return token != "" && id != "", nil
}

// Get returns the current session, or nil when no token is stored.
func (m *Manager) Get() (*Session, error) {
	vals, err := m.read(keyToken, keyAccountKind, keyAccountID, keyDisplayName)
	if err != nil {
		return nil, err
	}
	if vals[keyToken] == "" {
		return nil, nil
	}
	return &Session{
		Token:       vals[keyToken],
		AccountKind: AccountKind(vals[keyAccountKind]),
		AccountID:   vals[keyAccountID],
		DisplayName: vals[keyDisplayName],
	}, nil
}

// Token returns the stored bearer token, "" when signed out.
func (m *Manager) Token() (string, error) {
	return m.store.Get(keyToken)
}

// Set writes the non-empty fields of partial. Empty fields keep their
// stored value.
func (m *Manager) Set(partial Session) error {
	return m.write(map[string]string{
		keyToken:       partial.Token,
		keyAccountKind: string(partial.AccountKind),
		keyAccountID:   partial.AccountID,
		keyDisplayName: partial.DisplayName,
	})
}

// SetOrganization stores the minimal organization identity used when a
// subscription has expired.
func (m *Manager) SetOrganization(org OrgIdentity) error {
	return m.write(map[string]string{
		keyAccountID: org.ID,
		keyOrgName:   org.Name,
		keyOrgEmail:  org.Email,
	})
}

// Organization returns the stored organization identity.
func (m *Manager) Organization() (OrgIdentity, error) {
	vals, err := m.read(keyAccountID, keyOrgName, keyOrgEmail)
	if err != nil {
		return OrgIdentity{}, err
	}
	return OrgIdentity{ID: vals[keyAccountID], Name: vals[keyOrgName], Email: vals[keyOrgEmail]}, nil
}

// Clear removes every known key.
func (m *Manager) Clear() error {
	if err := m.store.Delete(allKeys...); err != nil {
		return fmt.Errorf("session: clear: %w", err)
	}
	return nil
}

func (m *Manager) read(keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		v, err := m.store.Get(k)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

func (m *Manager) write(vals map[string]string) error {
	for _, k := range allKeys {
		v, ok := vals[k]
		if !ok || v == "" {
			continue
		}
		if err := m.store.Set(k, v); err != nil {
			return err
		}
	}
	return nil
}
