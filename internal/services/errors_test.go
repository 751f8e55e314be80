package services_test

import (
	"errors"
	"strings"
	"testing"

	"podharvest/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "download", "fetch", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"download", "fetch", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapNilMarkerDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "index", "list", "timed out", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"validation", services.Wrap(services.ErrValidation, "config", "load", "bad value", nil), false},
		{"configuration", services.Wrap(services.ErrConfiguration, "config", "load", "missing key", nil), false},
		{"permanent", services.Wrap(services.ErrPermanent, "download", "fetch", "video removed", nil), false},
		{"not found", services.Wrap(services.ErrNotFound, "catalog", "lookup", "no entry", nil), false},
		{"transient", services.Wrap(services.ErrTransient, "download", "fetch", "network", errors.New("io")), true},
		{"external tool", services.Wrap(services.ErrExternalTool, "download", "fetch", "exit 1", nil), true},
		{"timeout", services.Wrap(services.ErrTimeout, "summarize", "complete", "deadline", nil), true},
		{"untagged", errors.New("mystery"), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.IsRetryable(tc.err); got != tc.want {
				t.Fatalf("IsRetryable(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
