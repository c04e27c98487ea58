package qrtoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMintParseRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC)
	token := Mint("physics-101", now)

	claims, err := Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "physics-101", claims.ClassID)
	assert.Equal(t, now.UnixMilli(), claims.MintedAt.UnixMilli())
	assert.NotEmpty(t, claims.Nonce)
}

func TestParseUUIDClassID(t *testing.T) {
	// UUID class IDs contain the delimiter; the split must come from the right.
	classID := "3f2b1c44-9d6e-4a7b-8a1f-0c9d2e5b6a71"
	now := time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC)
	token := Mint(classID, now)

	claims, err := Parse(token)
	require.NoError(t, err)
	assert.Equal(t, classID, claims.ClassID)
	assert.Equal(t, now.UnixMilli(), claims.MintedAt.UnixMilli())
}

func TestParseMalformed(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"no delimiters":  "justastring",
		"two fields":     "class-12345",
		"bad timestamp":  "class-notmillis-nonce",
		"zero timestamp": "class-0-nonce",
		"empty nonce":    "class-12345-",
		"empty class":    "-12345-nonce",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(token)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestExpiredBoundary(t *testing.T) {
	minted := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	claims := &Claims{ClassID: "c", MintedAt: minted, Nonce: "n"}

	assert.False(t, claims.Expired(minted.Add(Validity-time.Millisecond)))
	assert.False(t, claims.Expired(minted.Add(Validity)))
	assert.True(t, claims.Expired(minted.Add(Validity+time.Millisecond)))
}

func TestMintUniqueNonces(t *testing.T) {
	now := time.Now().UTC()
	a := Mint("class", now)
	b := Mint("class", now)
	assert.NotEqual(t, a, b)
}
