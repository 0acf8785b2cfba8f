package authguard

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/handoff-bridge/internal/clock"
	apperrors "github.com/spec-kit/handoff-bridge/pkg/util"
)

func newGuardFixture(t *testing.T, opts Options) (*Guard, *clock.Manual) {
	t.Helper()
	clk := clock.NewManual(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	opts.Clock = clk
	guard := NewGuard(opts)
	t.Cleanup(guard.Close)
	return guard, clk
}

func assertAuthError(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, "AUTHENTICATION_FAILED", apperrors.ToDomainError(err).Code)
}

func TestVerifyRejectsMissingCredentials(t *testing.T) {
	guard, _ := newGuardFixture(t, Options{SharedToken: "secret-token"})
	assertAuthError(t, guard.Verify(Credentials{}))
}

func TestVerifySharedToken(t *testing.T) {
	guard, _ := newGuardFixture(t, Options{SharedToken: "secret-token"})

	assert.NoError(t, guard.Verify(Credentials{Token: "secret-token"}))
	assertAuthError(t, guard.Verify(Credentials{Token: "wrong"}))
}

func TestVerifyBcryptHashedToken(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret-token"), bcrypt.MinCost)
	require.NoError(t, err)
	guard, _ := newGuardFixture(t, Options{SharedTokenHash: string(hash)})

	assert.NoError(t, guard.Verify(Credentials{Token: "secret-token"}))
	assertAuthError(t, guard.Verify(Credentials{Token: "wrong"}))
}

func TestVerifyTokenNotConfigured(t *testing.T) {
	guard, _ := newGuardFixture(t, Options{SigningSecret: "hmac-secret"})
	assertAuthError(t, guard.Verify(Credentials{Token: "anything"}))
}

func TestVerifySignedPayload(t *testing.T) {
	guard, clk := newGuardFixture(t, Options{SigningSecret: "hmac-secret"})

	body := []byte(`{"summary":"wifi down"}`)
	timestamp := strconv.FormatInt(clk.Now().Unix(), 10)
	signature := SignPayload("hmac-secret", timestamp, body)

	assert.NoError(t, guard.Verify(Credentials{
		Signature: signature,
		Timestamp: timestamp,
		Body:      body,
	}))
}

func TestVerifySignatureRejectsTamperedBody(t *testing.T) {
	guard, clk := newGuardFixture(t, Options{SigningSecret: "hmac-secret"})

	timestamp := strconv.FormatInt(clk.Now().Unix(), 10)
	signature := SignPayload("hmac-secret", timestamp, []byte("original"))

	assertAuthError(t, guard.Verify(Credentials{
		Signature: signature,
		Timestamp: timestamp,
		Body:      []byte("tampered"),
	}))
}

func TestVerifySignatureRejectsStaleTimestamp(t *testing.T) {
	guard, clk := newGuardFixture(t, Options{SigningSecret: "hmac-secret"})

	body := []byte("{}")
	stale := clk.Now().Add(-DefaultSkewWindow - time.Second)
	timestamp := strconv.FormatInt(stale.Unix(), 10)

	assertAuthError(t, guard.Verify(Credentials{
		Signature: SignPayload("hmac-secret", timestamp, body),
		Timestamp: timestamp,
		Body:      body,
	}))
}

func TestVerifySignatureAcceptsFutureDriftWithinWindow(t *testing.T) {
	guard, clk := newGuardFixture(t, Options{SigningSecret: "hmac-secret"})

	body := []byte("{}")
	future := clk.Now().Add(4 * time.Minute)
	timestamp := strconv.FormatInt(future.Unix(), 10)

	assert.NoError(t, guard.Verify(Credentials{
		Signature: SignPayload("hmac-secret", timestamp, body),
		Timestamp: timestamp,
		Body:      body,
	}))
}

func TestVerifySignatureRejectsReplay(t *testing.T) {
	guard, clk := newGuardFixture(t, Options{SigningSecret: "hmac-secret"})

	body := []byte(`{"summary":"wifi down"}`)
	timestamp := strconv.FormatInt(clk.Now().Unix(), 10)
	creds := Credentials{
		Signature: SignPayload("hmac-secret", timestamp, body),
		Timestamp: timestamp,
		Body:      body,
	}

	require.NoError(t, guard.Verify(creds))
	assertAuthError(t, guard.Verify(creds))
}

func TestVerifySignatureRequiresBothHeaders(t *testing.T) {
	guard, clk := newGuardFixture(t, Options{SigningSecret: "hmac-secret"})

	timestamp := strconv.FormatInt(clk.Now().Unix(), 10)
	assertAuthError(t, guard.Verify(Credentials{Timestamp: timestamp}))
	assertAuthError(t, guard.Verify(Credentials{Signature: "deadbeef"}))
}

func TestSweepEvictsExpiredSignatures(t *testing.T) {
	guard, clk := newGuardFixture(t, Options{SigningSecret: "hmac-secret"})

	body := []byte("{}")
	timestamp := strconv.FormatInt(clk.Now().Unix(), 10)
	creds := Credentials{
		Signature: SignPayload("hmac-secret", timestamp, body),
		Timestamp: timestamp,
		Body:      body,
	}
	require.NoError(t, guard.Verify(creds))

	clk.Advance(DefaultSkewWindow + time.Second)
	guard.sweep()

	guard.mu.Lock()
	remaining := len(guard.seen)
	guard.mu.Unlock()
	assert.Zero(t, remaining)
}
