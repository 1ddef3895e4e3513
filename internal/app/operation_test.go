package app

import (
	"errors"
	"testing"
)

func TestNewOperation(t *testing.T) {
	tests := []struct {
		name       string
		operation  string
		parameters string
	}{
		{
			name:       "with parameters",
			operation:  "SaveAudio",
			parameters: "/home/user/memo.webm",
		},
		{
			name:       "empty parameters",
			operation:  "DeleteAll",
			parameters: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := NewOperation(tt.operation, tt.parameters)

			if op.Operation != tt.operation {
				t.Errorf("Operation = %q, want %q", op.Operation, tt.operation)
			}
			if op.Parameters != tt.parameters {
				t.Errorf("Parameters = %q, want %q", op.Parameters, tt.parameters)
			}
			if op.Status != "success" {
				t.Errorf("Status = %q, want %q", op.Status, "success")
			}
			if op.Persisted() {
				t.Errorf("new operation reports persisted with ID %d", op.ID)
			}
		})
	}
}

func TestOperation_Fail(t *testing.T) {
	op := NewOperation("Rename", "rec-1")

	if err := op.Fail(nil); err != nil || op.Status != "success" {
		t.Errorf("Fail(nil) = %v, status %q", err, op.Status)
	}

	boom := errors.New("boom")
	if err := op.Fail(boom); err != boom {
		t.Errorf("Fail() = %v, want the given error", err)
	}
	if op.Status != "error" {
		t.Errorf("Status = %q, want error", op.Status)
	}
}
