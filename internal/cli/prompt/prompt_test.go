package prompt

import (
	"errors"
	"fmt"
	"testing"

	"github.com/manifoldco/promptui"
)

func TestIsAborted(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{ErrAborted, true},
		{promptui.ErrInterrupt, true},
		{promptui.ErrAbort, true},
		{fmt.Errorf("wrapped: %w", promptui.ErrInterrupt), true},
		{errors.New("other"), false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := IsAborted(tt.err); got != tt.want {
			t.Errorf("IsAborted(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}

	if err := wrapError(promptui.ErrInterrupt); err != ErrAborted {
		t.Errorf("wrapError(interrupt) = %v, want ErrAborted", err)
	}
	if err := wrapError(nil); err != nil {
		t.Errorf("wrapError(nil) = %v", err)
	}
}

func TestForceSkipsPrompts(t *testing.T) {
	ok, err := ConfirmWithForce("Delete?", true)
	if err != nil || !ok {
		t.Fatalf("ConfirmWithForce(force) = %v, %v", ok, err)
	}
	ok, err = ConfirmDrop("table", "users", true)
	if err != nil || !ok {
		t.Fatalf("ConfirmDrop(force) = %v, %v", ok, err)
	}
}

func TestMatchValidator(t *testing.T) {
	validate := matchValidator("users")
	if err := validate("users"); err != nil {
		t.Errorf("exact match rejected: %v", err)
	}
	if err := validate("user"); err == nil {
		t.Error("mismatch accepted")
	}
}

func TestValidateServerURL(t *testing.T) {
	for _, in := range []string{"http://localhost:8080", "https://cfmgr.example.com"} {
		if err := validateServerURL(in); err != nil {
			t.Errorf("validateServerURL(%q) = %v", in, err)
		}
	}
	for _, in := range []string{"", "localhost:8080", "ftp://host", "http://"} {
		if err := validateServerURL(in); err == nil {
			t.Errorf("validateServerURL(%q) accepted", in)
		}
	}
}
