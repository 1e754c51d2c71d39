package denied

import (
	"context"
	"errors"
	"testing"

	"github.com/felixgeelhaar/osagent/domain/capability"
)

func TestDenied(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tests := []struct {
		name string
		call func() error
		want string
	}{
		{
			name: "browser default",
			call: func() error { _, err := Browser{}.OpenSession(ctx, capability.SessionOptions{}); return err },
			want: "browser capability is not implemented",
		},
		{
			name: "browser disabled",
			call: func() error { return Browser{Message: BrowserDisabledMessage}.Click(ctx, 1) },
			want: BrowserDisabledMessage,
		},
		{
			name: "input",
			call: func() error { return Input{}.KeySequence("hello") },
			want: "input capability is not implemented",
		},
		{
			name: "llm",
			call: func() error { _, err := LLM{}.Complete(ctx, nil, capability.LLMOptions{}); return err },
			want: "llm capability is not implemented",
		},
		{
			name: "policy",
			call: func() error { _, err := Policy{}.ClaimBudget("steps", 1); return err },
			want: "policy capability is not implemented",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.call()
			if !errors.Is(err, capability.ErrDenied) {
				t.Fatalf("error = %v, want denied", err)
			}
			if err.Error() != tt.want {
				t.Errorf("Error() = %q, want %q", err.Error(), tt.want)
			}
		})
	}
}
