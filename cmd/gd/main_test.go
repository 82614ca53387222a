package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestVersionCmd(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("version command failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "gd dev") {
		t.Errorf("expected output to contain 'gd dev', got: %s", out)
	}
	if !strings.Contains(out, "commit: none") {
		t.Errorf("expected output to contain 'commit: none', got: %s", out)
	}
}

func TestVersionCmdWithCustomValues(t *testing.T) {
	origVersion, origCommit, origDate := Version, Commit, Date
	Version, Commit, Date = "1.2.0", "f00d", "2026-10-01"
	defer func() { Version, Commit, Date = origVersion, origCommit, origDate }()

	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	if got := buf.String(); got != "gd 1.2.0 (commit: f00d, built: 2026-10-01)\n" {
		t.Errorf("output = %q", got)
	}
}

func TestRootCmdHelp(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--help"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("help failed: %v", err)
	}
	out := buf.String()
	for _, sub := range []string{"login", "logout", "whoami", "forgot-password", "jobcard", "version"} {
		if !strings.Contains(out, sub) {
			t.Errorf("help should list %q, got: %s", sub, out)
		}
	}
}

func TestJobCardCmd_Subcommands(t *testing.T) {
	cmd := newJobCardCmd()
	want := map[string]bool{"create": false, "edit": false, "show": false}
	for _, sub := range cmd.Commands() {
		if _, ok := want[sub.Name()]; ok {
			want[sub.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("jobcard subcommand %q not registered", name)
		}
	}
}

func TestJobCardCreateCmd_Flags(t *testing.T) {
	cmd := newJobCardCreateCmd()
	for _, name := range []string{"config", "file", "front", "rear", "left", "right", "clear", "video", "no-video", "capture", "photo", "prices", "yes"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("missing flag --%s", name)
		}
	}
	if f := cmd.Flags().Lookup("config"); f.DefValue != "garagedesk.yaml" || f.Shorthand != "c" {
		t.Errorf("config flag = %q/-%s", f.DefValue, f.Shorthand)
	}
}

func TestJobCardEditCmd_RequiresID(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"jobcard", "edit"})

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error without an id")
	}
}

func TestLoginCmd_Flags(t *testing.T) {
	cmd := newLoginCmd()
	kind := cmd.Flags().Lookup("kind")
	if kind == nil || kind.DefValue != "organization" {
		t.Fatalf("kind flag = %+v", kind)
	}
	if cmd.Flags().Lookup("email") == nil {
		t.Error("missing --email flag")
	}
}

func TestLoginCmd_InvalidKind(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"login", "--kind", "admin"})

	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "invalid --kind") {
		t.Errorf("err = %v", err)
	}
}

func TestLoginCmd_MissingConfig(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"login", "-c", "/nonexistent/garagedesk.yaml"})

	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "load config") {
		t.Errorf("err = %v", err)
	}
}
