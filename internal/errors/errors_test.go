package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorChainAndCode(t *testing.T) {
	cause := stderrors.New("row missing")
	err := Wrap(CodeNotFound, "document not found", cause)

	if err.Error() != "document not found" {
		t.Fatalf("message = %q, want %q", err.Error(), "document not found")
	}
	if !stderrors.Is(err, cause) {
		t.Fatal("expected cause in error chain")
	}
	if GetCode(err) != CodeNotFound {
		t.Fatalf("code = %q, want %q", GetCode(err), CodeNotFound)
	}

	wrapped := fmt.Errorf("handle request: %w", err)
	if !IsCode(wrapped, CodeNotFound) {
		t.Fatal("expected code to survive wrapping")
	}
	if GetCode(stderrors.New("plain")) != CodeUnknown {
		t.Fatal("expected unknown code for plain error")
	}
}

func TestIsMatchesByCode(t *testing.T) {
	err := New(CodeDuplicateID, "id taken")
	if !stderrors.Is(err, New(CodeDuplicateID, "other message")) {
		t.Fatal("expected errors with the same code to match")
	}
	if stderrors.Is(err, New(CodeNotFound, "id taken")) {
		t.Fatal("expected errors with different codes not to match")
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeNotFound, http.StatusNotFound},
		{CodeUnknownRequest, http.StatusNotFound},
		{CodeDuplicateID, http.StatusConflict},
		{CodeBadInput, http.StatusBadRequest},
		{CodeUnauthorized, http.StatusForbidden},
		{CodeUnknown, http.StatusInternalServerError},
	}
	for _, tc := range tests {
		if got := tc.code.HTTPStatus(); got != tc.want {
			t.Fatalf("%s status = %d, want %d", tc.code, got, tc.want)
		}
	}
}
