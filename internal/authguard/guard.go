// Package authguard verifies inbound request authenticity before any
// business logic runs. Two credential modes are accepted: a shared static
// token, or an HMAC signature over timestamp and raw body.
package authguard

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/handoff-bridge/internal/clock"
	apperrors "github.com/spec-kit/handoff-bridge/pkg/util"
)

// DefaultSkewWindow bounds how far a signed request's timestamp may drift
// from server time. Accepted signatures are remembered for the same span.
const DefaultSkewWindow = 5 * time.Minute

// Credentials carries whatever the transport extracted from the request.
type Credentials struct {
	Token     string
	Signature string
	Timestamp string
	Body      []byte
}

// Options configures a Guard.
type Options struct {
	// SharedToken is the plaintext static token. Compared constant-time.
	SharedToken string
	// SharedTokenHash, when set, replaces SharedToken with a bcrypt hash so
	// the secret never sits in config as plaintext.
	SharedTokenHash string
	// SigningSecret is the HMAC-SHA256 key for signed payloads.
	SigningSecret string
	SkewWindow    time.Duration
	Clock         clock.Clock
}

// Guard verifies request credentials and tracks accepted signatures to
// reject replays.
type Guard struct {
	opts Options

	mu   sync.Mutex
	seen map[string]time.Time

	stop      chan struct{}
	closeOnce sync.Once
}

// NewGuard constructs a guard and starts replay-cache eviction.
func NewGuard(opts Options) *Guard {
	if opts.SkewWindow <= 0 {
		opts.SkewWindow = DefaultSkewWindow
	}
	if opts.Clock == nil {
		opts.Clock = clock.System()
	}
	g := &Guard{
		opts: opts,
		seen: make(map[string]time.Time),
		stop: make(chan struct{}),
	}
	go g.sweepLoop()
	return g
}

// Verify checks the credentials. A static token wins when present;
// otherwise a signed payload is required. No credentials means rejection,
// never implicit trust.
func (g *Guard) Verify(creds Credentials) error {
	if creds.Token != "" {
		return g.verifyToken(creds.Token)
	}
	if creds.Signature != "" || creds.Timestamp != "" {
		return g.verifySignature(creds)
	}
	return apperrors.NewAuthenticationError("missing credentials")
}

// Close stops replay-cache eviction.
func (g *Guard) Close() {
	g.closeOnce.Do(func() { close(g.stop) })
}

func (g *Guard) verifyToken(token string) error {
	if g.opts.SharedTokenHash != "" {
		if bcrypt.CompareHashAndPassword([]byte(g.opts.SharedTokenHash), []byte(token)) != nil {
			return apperrors.NewAuthenticationError("invalid token")
		}
		return nil
	}
	if g.opts.SharedToken == "" {
		return apperrors.NewAuthenticationError("token authentication not configured")
	}
	if subtle.ConstantTimeCompare([]byte(g.opts.SharedToken), []byte(token)) != 1 {
		return apperrors.NewAuthenticationError("invalid token")
	}
	return nil
}

func (g *Guard) verifySignature(creds Credentials) error {
	if g.opts.SigningSecret == "" {
		return apperrors.NewAuthenticationError("signature authentication not configured")
	}
	if creds.Signature == "" || creds.Timestamp == "" {
		return apperrors.NewAuthenticationError("signature and timestamp headers are both required")
	}

	unix, err := strconv.ParseInt(creds.Timestamp, 10, 64)
	if err != nil {
		return apperrors.NewAuthenticationError("invalid signature timestamp")
	}
	now := g.opts.Clock.Now()
	requestTime := time.Unix(unix, 0)
	drift := now.Sub(requestTime)
	if drift < 0 {
		drift = -drift
	}
	if drift > g.opts.SkewWindow {
		return apperrors.NewAuthenticationError("signature timestamp outside accepted window")
	}

	expected := SignPayload(g.opts.SigningSecret, creds.Timestamp, creds.Body)
	if !hmac.Equal([]byte(expected), []byte(creds.Signature)) {
		return apperrors.NewAuthenticationError("invalid signature")
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if acceptedAt, ok := g.seen[creds.Signature]; ok && now.Sub(acceptedAt) <= g.opts.SkewWindow {
		return apperrors.NewAuthenticationError("signature replay detected")
	}
	g.seen[creds.Signature] = now
	return nil
}

// SignPayload computes the hex HMAC-SHA256 over timestamp then body. Also
// used by clients and tests to produce valid signatures.
func SignPayload(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (g *Guard) sweepLoop() {
	ticker := time.NewTicker(g.opts.SkewWindow)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			g.sweep()
		case <-g.stop:
			return
		}
	}
}

// sweep drops signatures whose replay window has elapsed so the seen set
// stays bounded.
func (g *Guard) sweep() {
	cutoff := g.opts.Clock.Now().Add(-g.opts.SkewWindow)
	g.mu.Lock()
	defer g.mu.Unlock()
	for signature, acceptedAt := range g.seen {
		if acceptedAt.Before(cutoff) {
			delete(g.seen, signature)
		}
	}
}
