package logging

import (
	"log/slog"
	"testing"
	"time"

	"github.com/Azure/go-autorest/autorest/to"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskIdentifier(t *testing.T) {
	assert.Equal(t, "did:plc:...w2pd", MaskIdentifier("did:plc:ewvi7nmzyezklofxbhrw2pd"))
	assert.Equal(t, "short", MaskIdentifier("short"))
	assert.Equal(t, "did:plc:abcd", MaskIdentifier("did:plc:abcd"))
}

func TestRedactContextDenylist(t *testing.T) {
	ctx := map[string]any{
		"password":     "hunter2",
		"accessToken":  "jwt-goes-here",
		"clientSecret": "sssh",
		"api_key":      "k-123",
		"authHeader":   "Bearer abc",
		"status":       200,
	}

	out := redactContext(ctx)

	assert.Equal(t, Redacted, out["password"])
	assert.Equal(t, Redacted, out["accessToken"])
	assert.Equal(t, Redacted, out["clientSecret"])
	assert.Equal(t, Redacted, out["api_key"])
	assert.Equal(t, Redacted, out["authHeader"])
	assert.Equal(t, 200, out["status"])

	// input untouched
	assert.Equal(t, "hunter2", ctx["password"])
}

func TestRedactContextMasksIdentifiers(t *testing.T) {
	ctx := map[string]any{
		"did":    "did:plc:ewvi7nmzyezklofxbhrw2pd",
		"userId": "did:plc:ewvi7nmzyezklofxbhrw2pd",
		"count":  3,
	}

	out := redactContext(ctx)

	assert.Equal(t, "did:plc:...w2pd", out["did"])
	assert.Equal(t, "did:plc:...w2pd", out["userId"])
	assert.Equal(t, 3, out["count"])
}

func TestRedactContextRecurses(t *testing.T) {
	ctx := map[string]any{
		"request": map[string]any{
			"token": "abc",
			"inner": map[string]any{"refreshToken": "def"},
		},
		"batch": []any{
			map[string]any{"password": "zzz"},
		},
	}

	out := redactContext(ctx)

	req := out["request"].(map[string]any)
	assert.Equal(t, Redacted, req["token"])
	assert.Equal(t, Redacted, req["inner"].(map[string]any)["refreshToken"])
	assert.Equal(t, Redacted, out["batch"].([]any)[0].(map[string]any)["password"])
}

// denylisted values must never reach a sink with their original value
func TestPipelineNeverLeaksSensitiveValues(t *testing.T) {
	l := New(Config{
		MinLevel:        slog.LevelDebug,
		FilterSensitive: to.BoolPtr(true),
		FlushInterval:   time.Hour,
	})
	defer l.Close()

	ring := NewRingSink(10)
	l.AddSink(ring)

	l.Info("auth", "session refreshed", map[string]any{
		"did":          "did:plc:ewvi7nmzyezklofxbhrw2pd",
		"refreshToken": "super-secret-value",
	})
	l.Flush()

	entries := ring.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, Redacted, entries[0].Context["refreshToken"])
	assert.NotContains(t, entries[0].Context["did"], "ewvi7nmzyezklofxbhrw")
}
