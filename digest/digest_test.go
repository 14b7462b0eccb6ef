package digest_test

import (
	"testing"

	"github.com/prollytree-go/prollytree/digest"
	"github.com/stretchr/testify/require"
)

func TestNewIsDeterministic(t *testing.T) {
	a := digest.New([]byte("hello"))
	b := digest.New([]byte("hello"))
	require.Equal(t, a, b)
	require.True(t, a.Equal(b))
}

func TestNewDiffers(t *testing.T) {
	a := digest.New([]byte("hello"))
	b := digest.New([]byte("world"))
	require.NotEqual(t, a, b)
}

func TestFromBytesRoundTrip(t *testing.T) {
	orig := digest.New([]byte("round trip"))
	got, err := digest.FromBytes(orig.Bytes())
	require.NoError(t, err)
	require.Equal(t, orig, got)
}

func TestFromBytesBadWidth(t *testing.T) {
	_, err := digest.FromBytes([]byte{1, 2, 3})
	require.ErrorIs(t, err, digest.ErrBadWidth)
}

func TestStringIsLowercaseHex(t *testing.T) {
	d := digest.New([]byte("x"))
	s := d.String()
	require.Len(t, s, digest.Size*2)
	for _, r := range s {
		require.False(t, r >= 'A' && r <= 'F', "expected lowercase hex, got %q", s)
	}
}

func TestEmptyIsZero(t *testing.T) {
	var d digest.Digest
	require.True(t, d.IsZero())
	require.True(t, d.Equal(digest.Empty))
}
