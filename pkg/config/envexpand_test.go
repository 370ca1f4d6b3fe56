package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("LOGPULSE_TEST_VAR", "resolved")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"braced", "value: ${LOGPULSE_TEST_VAR}", "value: resolved"},
		{"bare", "value: $LOGPULSE_TEST_VAR", "value: resolved"},
		{"missing var expands empty", "value: ${LOGPULSE_TEST_UNSET}", "value: "},
		{"no vars", "value: plain", "value: plain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(ExpandEnv([]byte(tt.in))))
		})
	}
}
