package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Fake secrets are assembled at runtime to avoid secret-scanner false positives.
func fakeHexKey() string     { return strings.Repeat("ab", 16) + strings.Repeat("cd", 16) }
func fakeToken() string      { return "eyJzZW5kZXJJZCI6ImFsaWNlIiwiYW1vdW50Ijo1MH0" + strings.Repeat("x", 20) }
func fakeJWT() string        { return "eyJhbGciOiJFZERTQSJ9" + ".eyJ1aWQiOiJhbGljZSJ9" + ".c2lnbmF0dXJlLWJ5dGVz" }
func fakePassphrase() string { return "testonly" + "-hunter2" }

func TestFilterSensitiveValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		secret string
	}{
		{"hex private key json", `{"private_key":"` + fakeHexKey() + `"}`, fakeHexKey()},
		{"seed assignment", "seed=" + fakeHexKey(), fakeHexKey()},
		{"passphrase", "passphrase: " + fakePassphrase(), fakePassphrase()},
		{"token query", "paytoken://claim?token=" + fakeToken(), fakeToken()},
		{"token json", `{"token":"` + fakeToken() + `"}`, fakeToken()},
		{"certificate jwt", "cert " + fakeJWT(), fakeJWT()},
		{"bearer", "Authorization: Bearer " + strings.Repeat("z", 24), strings.Repeat("z", 24)},
		{"redis url password", "redis://user:" + fakePassphrase() + "@localhost:6379", fakePassphrase()},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.True(t, ContainsSensitiveData(tc.input))
			out := FilterSensitiveValue(tc.input)
			assert.NotContains(t, out, tc.secret)
			assert.Contains(t, out, RedactedValue)
		})
	}
}

func TestFilterSensitiveValue_LeavesOrdinaryText(t *testing.T) {
	t.Parallel()

	for _, s := range []string{
		"claim settled",
		`{"uid":"alice","nonce":"AbCdEfGhIjKl","amount":50}`,
		`{"public_key":"02` + strings.Repeat("ab", 32) + `"}`,
		"token rejected: malformed token",
		"http://127.0.0.1:8420/v1/settlements",
	} {
		assert.False(t, ContainsSensitiveData(s), s)
		assert.Equal(t, s, FilterSensitiveValue(s))
	}
}

func TestSafeValue(t *testing.T) {
	t.Parallel()

	assert.Equal(t, RedactedValue, SafeValue("private_key", "anything"))
	assert.Equal(t, RedactedValue, SafeValue("Passphrase", "anything"))
	assert.Equal(t, RedactedValue, SafeValue("claim_token", "anything"))
	assert.Equal(t, "alice", SafeValue("uid", "alice"))
	assert.NotContains(t, SafeValue("note", "cert "+fakeJWT()), fakeJWT())

	assert.True(t, IsSensitiveFieldName("SEALED_KEY"))
	assert.False(t, IsSensitiveFieldName("nonce"))
}

func TestFilteringWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := zerolog.New(NewFilteringWriter(&buf))
	logger.Info().Str("token", fakeToken()).Str("uid", "alice").Msg("claim queued")

	out := buf.String()
	assert.NotContains(t, out, fakeToken())
	assert.Contains(t, out, `"uid":"alice"`)
	assert.Contains(t, out, "claim queued")
}

func TestFilteringWriter_ReportsOriginalLength(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	in := []byte("seed=" + fakeHexKey())
	n, err := NewFilteringWriter(&buf).Write(in)
	require.NoError(t, err)
	assert.Equal(t, len(in), n)
}

func TestSensitiveDataHook(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := zerolog.New(&buf).Hook(NewSensitiveDataHook())

	logger.Info().Msg("passphrase=" + fakePassphrase())
	assert.Contains(t, buf.String(), `"contains_filtered_data":true`)

	buf.Reset()
	logger.Info().Msg("sweep finished")
	assert.NotContains(t, buf.String(), "contains_filtered_data")
}
