package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseSeedFile(t *testing.T) {
	dir := t.TempDir()

	valid := filepath.Join(dir, "seed.yaml")
	content := `users:
  - name: Ada Admin
    email: ada@example.com
    password: changeme1
    role: admin
  - name: Uma User
    email: uma@example.com
    password: changeme2
`
	if err := os.WriteFile(valid, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	seed, err := parseSeedFile(valid)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(seed.Users) != 2 || seed.Users[0].Role != "admin" || seed.Users[1].Role != "" {
		t.Fatalf("unexpected seed %+v", seed)
	}

	invalid := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(invalid, []byte("users:\n  - email: x@example.com\n    role: owner\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := parseSeedFile(invalid); err == nil {
		t.Fatalf("expected unknown role error")
	}

	if _, err := parseSeedFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatalf("expected missing file error")
	}
}
