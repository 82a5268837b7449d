package result

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestCheckFailed(t *testing.T) {
	tests := []struct {
		c    Check
		want bool
	}{
		{Check{Severity: Hard, Status: StatusFail}, true},
		{Check{Severity: Hard, Status: StatusPass}, false},
		{Check{Severity: Soft, Status: StatusFail}, false},
		{Check{Severity: Soft, Status: StatusWarn}, false},
	}
	for _, tt := range tests {
		if got := tt.c.Failed(); got != tt.want {
			t.Errorf("Failed(%s/%s): got %v, want %v", tt.c.Severity, tt.c.Status, got, tt.want)
		}
	}
}

func TestReportLookups(t *testing.T) {
	start := time.Now()
	r := &Report{StartedAt: start}
	r.Add(Check{Name: "title", Severity: Hard, Status: StatusPass})
	r.Add(Check{Name: "navigation", Severity: Soft, Status: StatusWarn})
	r.FinishedAt = start.Add(2 * time.Second)

	if _, ok := r.Check("logo"); ok {
		t.Error("logo: expected not found")
	}
	c, ok := r.Check("title")
	if !ok || c.Status != StatusPass {
		t.Fatalf("title: got %+v, %v", c, ok)
	}
	if w := r.Warnings(); len(w) != 1 || w[0].Name != "navigation" {
		t.Errorf("Warnings: got %+v", w)
	}
	if r.Duration() != 2*time.Second {
		t.Errorf("Duration: got %v, want 2s", r.Duration())
	}
}

func TestErrorsUnwrap(t *testing.T) {
	base := errors.New("net::ERR_NAME_NOT_RESOLVED")
	err := fmt.Errorf("smoke: %w", &NavigationError{URL: "https://example.invalid", Err: base})

	var nav *NavigationError
	if !errors.As(err, &nav) {
		t.Fatal("expected NavigationError")
	}
	if !errors.Is(err, base) {
		t.Error("expected wrapped cause")
	}

	aerr := &AssertionError{Check: "logo", Detail: "not visible"}
	if !strings.Contains(aerr.Error(), "logo") {
		t.Errorf("AssertionError: got %q", aerr.Error())
	}
}

func TestNewRunID(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	if !strings.HasPrefix(a, "run_") {
		t.Errorf("prefix: got %q", a)
	}
	if a == b {
		t.Error("expected distinct IDs")
	}
}

func TestReportRoundTrip(t *testing.T) {
	r := &Report{ID: "run_1", URL: "https://www.cloudbees.io/", Passed: true,
		Checks: []Check{{Name: "title", Severity: Hard, Status: StatusPass}}}
	data, err := MarshalReport(r)
	if err != nil {
		t.Fatal(err)
	}
	got, err := UnmarshalReport(data)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != r.ID || len(got.Checks) != 1 || got.Checks[0].Name != "title" {
		t.Errorf("round trip: got %+v", got)
	}
}
