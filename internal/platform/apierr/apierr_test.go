package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorConstructors(t *testing.T) {
	cases := []struct {
		name   string
		err    *Error
		status int
		code   string
	}{
		{"unauthenticated", Unauthenticated("Authentication required"), http.StatusUnauthorized, CodeUnauthenticated},
		{"validation", Validation("bad"), http.StatusBadRequest, CodeValidation},
		{"not found", NotFound("Session not found"), http.StatusNotFound, CodeNotFound},
		{"conflict", Conflict("done"), http.StatusConflict, CodeConflict},
		{"unavailable", ServiceUnavailable("busy", "503"), http.StatusServiceUnavailable, CodeServiceUnavailable},
		{"generation", GenerationFailed("nope", "bad json"), http.StatusInternalServerError, CodeGenerationFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.err.Status != tc.status || tc.err.Code != tc.code {
				t.Fatalf("got status=%d code=%s", tc.err.Status, tc.err.Code)
			}
		})
	}
}

func TestAsFindsWrappedError(t *testing.T) {
	base := GenerationFailed("Unable to generate", "no json")
	wrapped := fmt.Errorf("start session: %w", base)

	got, ok := As(wrapped)
	if !ok {
		t.Fatalf("expected to find api error")
	}
	if got.Details != "no json" {
		t.Fatalf("details lost: %q", got.Details)
	}
	if !Is(wrapped, CodeGenerationFailed) {
		t.Fatalf("Is should match code")
	}
	if Is(errors.New("plain"), CodeGenerationFailed) {
		t.Fatalf("plain error must not match")
	}
}

func TestWithDetailsCopies(t *testing.T) {
	orig := Validation("bad")
	withDetails := orig.WithDetails("field x")
	if orig.Details != "" {
		t.Fatalf("WithDetails must not mutate receiver")
	}
	if withDetails.Details != "field x" || withDetails.Error() != "bad" {
		t.Fatalf("unexpected copy: %+v", withDetails)
	}
}
