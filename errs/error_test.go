package errs

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestErrorCodeUnwraps(t *testing.T) {
	wrapped := fmt.Errorf("follow: %w", ErrAlreadyFollowing)
	if got := ErrorCode(wrapped); got != ECONFLICT {
		t.Fatalf("ErrorCode = %q, want %q", got, ECONFLICT)
	}
	if got := ErrorMessage(wrapped); got != ErrAlreadyFollowing.Message {
		t.Fatalf("ErrorMessage = %q", got)
	}
	if !errors.Is(wrapped, ErrAlreadyFollowing) {
		t.Fatal("errors.Is should match the wrapped sentinel")
	}
	if errors.Is(wrapped, ErrNotFollowing) {
		t.Fatal("different conflict sentinels must not match")
	}
}

func TestErrorIsByValue(t *testing.T) {
	copied := &Error{Code: ESELF, Message: ErrSelfFollow.Message}
	if !errors.Is(copied, ErrSelfFollow) {
		t.Fatal("errors with equal code and message should match")
	}
}

func TestNonApplicationErrorIsInternal(t *testing.T) {
	err := errors.New("connection refused")
	if got := ErrorCode(err); got != EINTERNAL {
		t.Fatalf("ErrorCode = %q, want internal", got)
	}
	if got := ErrorMessage(err); got != "Internal error." {
		t.Fatalf("ErrorMessage leaked %q", got)
	}
	if ErrorCode(nil) != "" {
		t.Fatal("nil error should have no code")
	}
}

func TestReturnError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{Errorf(EINVALID, "bad"), http.StatusBadRequest},
		{Errorf(ENOTFOUND, "gone"), http.StatusNotFound},
		{ErrPrivateContent, http.StatusForbidden},
		{ErrTokenInvalid, http.StatusUnauthorized},
		{ErrDuplicateRequest, http.StatusConflict},
		{ErrInvalidState, http.StatusConflict},
		{ErrSelfFollow, http.StatusBadRequest},
		{ErrInvalidParent, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		ReturnError(w, r, tt.err)
		if w.Code != tt.want {
			t.Errorf("%v: status = %d, want %d", tt.err, w.Code, tt.want)
		}
		if !strings.Contains(w.Body.String(), `"error"`) {
			t.Errorf("%v: body %q has no error field", tt.err, w.Body.String())
		}
	}
}
