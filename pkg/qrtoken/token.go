// Package qrtoken implements the rotating class attendance token: an opaque
// string of the form "<classID>-<epochMillis>-<nonce>" that is encoded into a
// QR image by an authority and redeemed by a student within a fixed window.
package qrtoken

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Delimiter joins the token fields. Class IDs may themselves contain the
// delimiter (UUIDs do), so Parse splits from the right.
const Delimiter = "-"

// Validity is the fixed redemption window measured from mint time. It is
// deliberately not configurable per class.
const Validity = 5 * time.Minute

// ErrMalformed reports a token that does not decompose into its fields.
var ErrMalformed = errors.New("qrtoken: malformed token")

// Claims are the fields recovered from a parsed token.
type Claims struct {
	ClassID  string
	MintedAt time.Time
	Nonce    string
}

// Mint produces a fresh token bound to the class and the given mint time.
// The nonce guards against replay-guessing; the scheme carries no signature.
func Mint(classID string, now time.Time) string {
	return classID + Delimiter + strconv.FormatInt(now.UnixMilli(), 10) + Delimiter + nonce()
}

// Parse decomposes a token into its claims. The last segment is the nonce,
// the second-to-last the mint timestamp in epoch milliseconds, and everything
// before that the owning class ID.
func Parse(token string) (*Claims, error) {
	parts := strings.Split(token, Delimiter)
	if len(parts) < 3 {
		return nil, ErrMalformed
	}

	nonce := parts[len(parts)-1]
	rawMillis := parts[len(parts)-2]
	classID := strings.Join(parts[:len(parts)-2], Delimiter)
	if classID == "" || nonce == "" {
		return nil, ErrMalformed
	}

	millis, err := strconv.ParseInt(rawMillis, 10, 64)
	if err != nil || millis <= 0 {
		return nil, fmt.Errorf("%w: bad timestamp", ErrMalformed)
	}

	return &Claims{
		ClassID:  classID,
		MintedAt: time.UnixMilli(millis).UTC(),
		Nonce:    nonce,
	}, nil
}

// Expired reports whether the claims fall outside the validity window at the
// given instant. A token minted exactly Validity ago is still redeemable.
func (c *Claims) Expired(now time.Time) bool {
	return now.Sub(c.MintedAt) > Validity
}

func nonce() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		// Degrade to a time-derived nonce; uniqueness still holds per class
		// because the mint timestamp precedes it in the token.
		return strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return strconv.FormatUint(binary.BigEndian.Uint64(buf), 36)
}
