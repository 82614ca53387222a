package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/workbay/garagedesk/internal/session"
)

// brokenStore fails every read.
type brokenStore struct{}

func (brokenStore) Get(string) (string, error) { return "", errors.New("database is locked") }
func (brokenStore) Set(string, string) error { return nil }
func (brokenStore) Delete(...string) error { return nil }

func TestPrintAlreadyLoggedIn(t *testing.T) {
	stored := session.NewManager(session.NewMemoryStore())
	if err := stored.Set(session.Session{Token: "tok", AccountID: "g-1", AccountKind: session.Organization, DisplayName: "Torque Bay"}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	tests := []struct {
		name     string
		sessions *session.Manager
		want     string
		wantErr  string
	}{
		{"stored account", stored, "Already logged in as Torque Bay", ""},
		{"empty store", session.NewManager(session.NewMemoryStore()), "Already logged in as the stored account", ""},
		{"read failure", session.NewManager(brokenStore{}), "", "database is locked"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := printAlreadyLoggedIn(&buf, tt.sessions)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want %q", err, tt.wantErr)
				}
				if buf.Len() != 0 {
					t.Errorf("output = %q, want none", buf.String())
				}
				return
			}
			if err != nil {
				t.Fatalf("printAlreadyLoggedIn: %v", err)
			}
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("output = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}
