package messaging

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewMessage(t *testing.T) {
	msg := NewMessage("console.logs.acme", []byte(`{}`),
		WithHeader("X-Request-ID", "req-1"),
		WithHeader("X-Tenant", "acme"))

	assert.Equal(t, "console.logs.acme", msg.Subject)
	assert.Equal(t, []byte(`{}`), msg.Data)
	assert.Equal(t, map[string]string{"X-Request-ID": "req-1", "X-Tenant": "acme"}, msg.Metadata)
}

func TestNewMessage_NoHeaders(t *testing.T) {
	msg := NewMessage("s", nil)
	assert.Nil(t, msg.Metadata)
}

func TestLogSubject(t *testing.T) {
	tests := []struct {
		name   string
		base   string
		tenant string
		want   string
	}{
		{name: "tenant", base: "console.logs", tenant: "acme", want: "console.logs.acme"},
		{name: "all tenants", base: "console.logs", tenant: "", want: "console.logs.>"},
		{name: "default base", base: "", tenant: "acme", want: "console.logs.acme"},
		{name: "dots replaced", base: "console.logs", tenant: "acme.eu", want: "console.logs.acme_eu"},
		{name: "wildcards replaced", base: "x", tenant: " a*b> ", want: "x.a_b_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LogSubject(tt.base, tt.tenant))
		})
	}
}
