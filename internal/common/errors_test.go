package common

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestKindOfAndSentinels(t *testing.T) {
	cause := context.DeadlineExceeded
	err := fmt.Errorf("doc a.pdf: %w", NewTransientAIError("gemini call", cause))

	if got := KindOf(err); got != KindTransientAI {
		t.Fatalf("expected kind %s, got %s", KindTransientAI, got)
	}
	if !errors.Is(err, ErrTransientAI) {
		t.Fatal("expected errors.Is to match the kind sentinel")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("expected errors.Is to match the cause")
	}
	if errors.Is(err, ErrQuota) {
		t.Fatal("transient error must not match the quota sentinel")
	}
}

func TestKindOfUnclassified(t *testing.T) {
	if got := KindOf(errors.New("plain")); got != "" {
		t.Fatalf("expected empty kind, got %q", got)
	}
	if got := KindOf(nil); got != "" {
		t.Fatalf("expected empty kind for nil, got %q", got)
	}
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		kind ErrorKind
		want bool
	}{
		{KindTransientAI, true},
		{KindParse, true},
		{KindQuota, false},
		{KindExtraction, false},
		{KindAIRequest, false},
		{KindWrite, false},
	}
	for _, c := range cases {
		if got := NewAppError(c.kind, "x", nil).Retryable(); got != c.want {
			t.Errorf("%s: expected retryable=%t, got %t", c.kind, c.want, got)
		}
	}
}

func TestValidatorCollects(t *testing.T) {
	v := NewValidator().
		Field("input_dir", "  ", Required).
		Field("output", "report.csv", Required, HasExtension("xlsx")).
		Check(false, "template", "a.xlsx", "must differ from output")

	if len(v.Errors()) != 3 {
		t.Fatalf("expected 3 validation errors, got %d: %s", len(v.Errors()), v.ErrorMessage())
	}
	if !errors.Is(v.Error(), ErrInvalidInput) {
		t.Fatal("expected validator error to wrap ErrInvalidInput")
	}
	if NewValidator().Field("x", "ok.XLSX", HasExtension(".xlsx")).Error() != nil {
		t.Fatal("extension match should be case-insensitive")
	}
}
