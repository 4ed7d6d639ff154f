package credential

import (
	"os"
	"strings"
	"testing"
)

func TestSourcePrefersEnvironment(t *testing.T) {
	t.Setenv("LENDING_TEST_TOKEN", "  abc  ")
	src := NewSource("LENDING_TEST_TOKEN", "token: ")
	got, err := src.Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "abc" {
		t.Fatalf("expected trimmed token, got %q", got)
	}
	t.Setenv("LENDING_TEST_TOKEN", "changed")
	if again, _ := src.Get(); again != "abc" {
		t.Fatalf("expected cached token, got %q", again)
	}
}

func TestSourceRejectsBlankEnvironment(t *testing.T) {
	t.Setenv("LENDING_TEST_TOKEN", "   ")
	if _, err := NewSource("LENDING_TEST_TOKEN", "").Get(); err == nil {
		t.Fatalf("expected blank token to fail")
	}
}

func TestSourceWithoutTerminal(t *testing.T) {
	devnull, err := os.Open(os.DevNull)
	if err != nil {
		t.Fatalf("open devnull: %v", err)
	}
	defer devnull.Close()

	src := NewSource("LENDING_TEST_TOKEN_UNSET", "")
	src.stdin = devnull
	_, err = src.Get()
	if err == nil || !strings.Contains(err.Error(), "LENDING_TEST_TOKEN_UNSET") {
		t.Fatalf("expected missing token error, got %v", err)
	}
}
