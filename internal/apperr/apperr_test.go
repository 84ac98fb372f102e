package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "validation", err: Validation("bad %s", "id"), want: KindValidation},
		{name: "not found", err: NotFound("appointment %d not found", 7), want: KindNotFound},
		{name: "unauthorized", err: Unauthorized(), want: KindUnauthorized},
		{name: "conflict", err: Conflict("overlap"), want: KindConflict},
		{name: "wrapped", err: fmt.Errorf("create: %w", Conflict("overlap")), want: KindConflict},
		{name: "plain error", err: errors.New("boom"), want: KindDependency},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := KindOf(tc.err); got != tc.want {
				t.Fatalf("KindOf = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestReasonOf_HidesDependencyCause(t *testing.T) {
	cause := errors.New("dial tcp 10.0.0.1:5432: connection refused")
	err := Dependency(cause, "load appointment")

	if got := ReasonOf(err); got != "internal error" {
		t.Fatalf("ReasonOf = %q, want %q", got, "internal error")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected dependency error to unwrap to its cause")
	}
	if got := ReasonOf(Validation("scheduledTime is required")); got != "scheduledTime is required" {
		t.Fatalf("ReasonOf = %q", got)
	}
}

func TestUnauthorized_SameReasonEverywhere(t *testing.T) {
	a, b := Unauthorized(), Unauthorized()
	if a.Error() != b.Error() {
		t.Fatalf("unauthorized reasons differ: %q vs %q", a.Error(), b.Error())
	}
	if !Is(a, KindUnauthorized) {
		t.Fatalf("expected KindUnauthorized")
	}
}
