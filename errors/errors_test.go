package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestConstructorsSetKindAndCode(t *testing.T) {
	cause := stderrors.New("boom")

	tests := []struct {
		name     string
		build    func(op string, err error, message string) *AppError
		wantKind Kind
		wantCode int
	}{
		{"Precondition", Precondition, KindPrecondition, http.StatusBadRequest},
		{"Transport", Transport, KindTransport, http.StatusBadGateway},
		{"Processing", Processing, KindProcessing, http.StatusBadGateway},
		{"Auth", Auth, KindAuth, http.StatusUnauthorized},
		{"Parse", Parse, KindParse, http.StatusBadGateway},
		{"Conflict", Conflict, KindConflict, http.StatusConflict},
		{"NotFound", NotFound, KindNotFound, http.StatusNotFound},
		{"Internal", Internal, KindInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.build("pkg.Op", cause, "something went wrong")
			if err.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", err.Kind, tt.wantKind)
			}
			if err.Code != tt.wantCode {
				t.Errorf("Code = %d, want %d", err.Code, tt.wantCode)
			}
			if err.Op != "pkg.Op" {
				t.Errorf("Op = %q", err.Op)
			}
		})
	}
}

func TestErrorMessage(t *testing.T) {
	bare := Transport("pkg.Op", nil, "endpoint unreachable")
	if bare.Error() != "endpoint unreachable" {
		t.Errorf("Error() = %q", bare.Error())
	}

	wrapped := Transport("pkg.Op", stderrors.New("dial tcp: refused"), "endpoint unreachable")
	if wrapped.Error() != "endpoint unreachable: dial tcp: refused" {
		t.Errorf("Error() = %q", wrapped.Error())
	}
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("root cause")
	err := Processing("pkg.Op", cause, "processing failed")

	if !stderrors.Is(err, cause) {
		t.Error("errors.Is should reach the wrapped cause")
	}
}

func TestKindOf(t *testing.T) {
	if got := KindOf(Auth("pkg.Op", nil, "rejected")); got != KindAuth {
		t.Errorf("KindOf = %v, want auth", got)
	}
	if got := KindOf(stderrors.New("plain")); got != KindInternal {
		t.Errorf("KindOf(plain) = %v, want internal", got)
	}
	if got := KindOf(nil); got != KindInternal {
		t.Errorf("KindOf(nil) = %v, want internal", got)
	}
}

func TestKindOfWrapped(t *testing.T) {
	inner := Conflict("pkg.Op", nil, "busy")
	outer := fmt.Errorf("starting job: %w", inner)

	if !IsKind(outer, KindConflict) {
		t.Error("IsKind should see through fmt.Errorf wrapping")
	}
	if KindOf(outer) != KindConflict {
		t.Errorf("KindOf(wrapped) = %v, want conflict", KindOf(outer))
	}
}
