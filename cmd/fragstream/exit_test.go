package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/urfave/cli/v2"
)

func TestExitErrHandler_NilError(t *testing.T) {
	exitErrHandler(nil, nil)
}

func TestExitStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{"success without message", cli.Exit("", 0), 0, ""},
		{"usage", cli.Exit("endpoint required", 1), 1, "endpoint required"},
		{"connection", cli.Exit("dial refused", 2), 2, "dial refused"},
		{"stream failure", cli.Exit("", 3), 3, ""},
		{"wrapped", fmt.Errorf("put: %w", cli.Exit("inner", 2)), 2, "inner"},
		{"joined", errors.Join(errors.New("context"), cli.Exit("joined", 3)), 3, "joined"},
		{"plain error", errors.New("boom"), 1, "Error: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, msg := exitStatus(tt.err)
			if code != tt.wantCode {
				t.Errorf("code = %d, want %d", code, tt.wantCode)
			}
			if msg != tt.wantMsg {
				t.Errorf("msg = %q, want %q", msg, tt.wantMsg)
			}
		})
	}
}
