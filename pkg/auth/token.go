package auth

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ExpiringSoonThreshold is how close to expiry a token counts as stale.
const ExpiringSoonThreshold = 5 * time.Minute

var segmentParser = jwt.NewParser(jwt.WithPaddingAllowed())

// DecodeClaims reads the payload segment of token without verifying the
// signature. It returns nil for anything that is not a decodable JSON object.
func DecodeClaims(token string) *Claims {
	parts := strings.Split(strings.TrimSpace(token), ".")
	if len(parts) < 2 || parts[1] == "" {
		return nil
	}
	payload, err := segmentParser.DecodeSegment(parts[1])
	if err != nil {
		return nil
	}
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 || payload[0] != '{' {
		return nil
	}
	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil
	}
	return &claims
}

// TimeUntilExpiry returns max(exp-now, 0). Undecodable tokens and tokens
// without an exp claim are treated as already expired.
func TimeUntilExpiry(token string, now time.Time) time.Duration {
	claims := DecodeClaims(token)
	if claims == nil || claims.ExpiresAt == nil {
		return 0
	}
	remaining := claims.ExpiresAt.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ExpiresWithin reports whether token expires within d of now.
func ExpiresWithin(token string, now time.Time, d time.Duration) bool {
	return TimeUntilExpiry(token, now) <= d
}

// IsExpiringSoon reports whether token expires within ExpiringSoonThreshold.
func IsExpiringSoon(token string, now time.Time) bool {
	return ExpiresWithin(token, now, ExpiringSoonThreshold)
}

// IsExpired reports whether the exp claim is in the past.
func IsExpired(token string, now time.Time) bool {
	return TimeUntilExpiry(token, now) == 0
}

// TokenInfo is a log-friendly summary of a token.
type TokenInfo struct {
	UserID          string    `json:"user_id,omitempty"`
	IssuedAt        time.Time `json:"issued_at"`
	ExpiresAt       time.Time `json:"expires_at"`
	Remaining       string    `json:"remaining"`
	RemainingMillis int64     `json:"remaining_ms"`
	ShouldRefresh   bool      `json:"should_refresh"`
}

// Inspect summarises token for debugging output. It returns nil when the
// token cannot be decoded.
func Inspect(token string, now time.Time) *TokenInfo {
	claims := DecodeClaims(token)
	if claims == nil {
		return nil
	}
	info := &TokenInfo{
		UserID:        claims.Identity(),
		ShouldRefresh: IsExpiringSoon(token, now),
	}
	if claims.IssuedAt != nil {
		info.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	remaining := TimeUntilExpiry(token, now)
	info.RemainingMillis = remaining.Milliseconds()
	info.Remaining = FormatRemaining(remaining)
	return info
}

// FormatRemaining renders d as "1h 2m 3s", "2m 3s" or "3s", and "expired"
// for non-positive durations.
func FormatRemaining(d time.Duration) string {
	secs := int64(d / time.Second)
	if secs <= 0 {
		return "expired"
	}
	hours := secs / 3600
	minutes := (secs % 3600) / 60
	seconds := secs % 60
	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}
