package secrets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadFromFile(t *testing.T) {
	t.Parallel()

	keyFile := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(keyFile, []byte("  sk-from-file \n"), 0o600); err != nil {
		t.Fatalf("writing key file: %v", err)
	}

	got, err := Load(Source{Name: "api key", File: keyFile})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got != "sk-from-file" {
		t.Fatalf("expected trimmed file value, got %q", got)
	}
}

func TestLoadFilePrecedesValue(t *testing.T) {
	t.Parallel()

	keyFile := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(keyFile, []byte("sk-from-file"), 0o600); err != nil {
		t.Fatalf("writing key file: %v", err)
	}

	got, err := Load(Source{Name: "api key", File: keyFile, Value: "sk-inline"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got != "sk-from-file" {
		t.Fatalf("expected file to win, got %q", got)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("RESUME_FORGE_TEST_KEY", " sk-from-env ")

	got, err := Load(Source{Name: "api key", Env: "RESUME_FORGE_TEST_KEY"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got != "sk-from-env" {
		t.Fatalf("expected env value, got %q", got)
	}
}

func TestLoadMissing(t *testing.T) {
	t.Parallel()

	_, err := Load(Source{Name: "api key"})
	if err == nil {
		t.Fatal("expected error for unconfigured secret")
	}

	if !strings.Contains(err.Error(), "api key") {
		t.Fatalf("error should name the secret: %v", err)
	}
}

func TestLoadEmptyFile(t *testing.T) {
	t.Parallel()

	keyFile := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(keyFile, []byte("   \n"), 0o600); err != nil {
		t.Fatalf("writing key file: %v", err)
	}

	if _, err := Load(Source{Name: "api key", File: keyFile}); err == nil {
		t.Fatal("expected error for empty key file")
	}
}
