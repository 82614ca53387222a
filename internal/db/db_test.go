package db

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/workbay/garagedesk/internal/config"
	"github.com/workbay/garagedesk/internal/models"
)

func TestMySQLDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.MySQLConfig
		want string
	}{
		{
			name: "no password",
			cfg:  config.MySQLConfig{Host: "127.0.0.1", Port: 3306, User: "root", Database: "garagedesk"},
			want: "root@tcp(127.0.0.1:3306)/garagedesk?parseTime=true",
		},
		{
			name: "with password",
			cfg:  config.MySQLConfig{Host: "db.internal", Port: 3307, User: "desk", Password: "pw", Database: "sessions"},
			want: "desk:pw@tcp(db.internal:3307)/sessions?parseTime=true",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MySQLDSN(tt.cfg)
			if got != tt.want {
				t.Errorf("MySQLDSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAllModels_Count(t *testing.T) {
	if got := len(AllModels()); got != 1 {
		t.Errorf("AllModels() returned %d models, want 1", got)
	}
}

func TestOpenSQLite_MigratesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.db")
	gormDB, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := AutoMigrate(gormDB); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	if !gormDB.Migrator().HasTable(&models.SessionEntry{}) {
		t.Error("session_entries table not created")
	}
}

func TestOpen_Sqlite(t *testing.T) {
	gormDB, err := Open(config.SessionConfig{Driver: "sqlite", Path: ":memory:"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if gormDB == nil {
		t.Fatal("Open returned nil db")
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(config.SessionConfig{Driver: "memory"})
	if err == nil {
		t.Fatal("expected error for memory driver")
	}
	if !strings.Contains(err.Error(), "unsupported driver") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestOpenMySQL_Error(t *testing.T) {
	// Port 1 is unlikely to have a MySQL server; expect connection error.
	_, err := OpenMySQL(config.MySQLConfig{Host: "127.0.0.1", Port: 1, User: "root", Database: "nope"})
	if err == nil {
		t.Fatal("expected error connecting to invalid port")
	}
	if !strings.Contains(err.Error(), "db: connect to") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "db: connect to")
	}
}
