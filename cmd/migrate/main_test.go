package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCreateThenValidateOnDisk(t *testing.T) {
	dir := t.TempDir()

	out := &bytes.Buffer{}
	root := newRootCmd()
	root.SetOut(out)
	root.SetArgs([]string{"--dir", dir, "create", "add refund notes"})
	if err := root.Execute(); err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.Contains(out.String(), "_add_refund_notes.sql") {
		t.Fatalf("expected created path, got %q", out.String())
	}

	out.Reset()
	root = newRootCmd()
	root.SetOut(out)
	root.SetArgs([]string{"--dir", dir, "validate"})
	if err := root.Execute(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidateFailsOnBadFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.sql"), []byte("-- nothing"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"--dir", dir, "validate"})
	if err := root.Execute(); err == nil {
		t.Fatal("expected validation failure")
	}
}

func TestToRequiresVersion(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"to"})
	if err := root.Execute(); err == nil {
		t.Fatal("expected missing version to fail")
	}
}
