package passphrase

import (
	"strings"
	"testing"
)

func TestGetPrefersEnvironment(t *testing.T) {
	t.Setenv("AMANA_TEST_PASS", "hunter2")
	source := NewSource("AMANA_TEST_PASS")

	got, err := source.Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "hunter2" {
		t.Fatalf("unexpected passphrase %q", got)
	}
}

func TestGetRejectsBlankEnvironmentValue(t *testing.T) {
	t.Setenv("AMANA_TEST_PASS", "   ")
	source := NewSource("AMANA_TEST_PASS")

	if _, err := source.Get(); err == nil || !strings.Contains(err.Error(), "blank") {
		t.Fatalf("want blank-value error, got %v", err)
	}
}

func TestGetCachesFirstResolution(t *testing.T) {
	t.Setenv("AMANA_TEST_PASS", "first")
	source := NewSource("AMANA_TEST_PASS")
	if _, err := source.Get(); err != nil {
		t.Fatalf("get: %v", err)
	}

	t.Setenv("AMANA_TEST_PASS", "second")
	got, err := source.Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "first" {
		t.Fatalf("cached value lost: %q", got)
	}
}
