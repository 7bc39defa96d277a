package cryptox

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeRandHexString(t *testing.T) {
	s, err := MakeRandHexString(16)
	require.NoError(t, err)
	assert.Len(t, s, 32)
	_, err = hex.DecodeString(s)
	require.NoError(t, err)

	empty, err := MakeRandHexString(0)
	require.NoError(t, err)
	assert.Equal(t, "", empty)
}

func TestNewSignature_Is32HexChars(t *testing.T) {
	a, err := NewSignature()
	require.NoError(t, err)
	b, err := NewSignature()
	require.NoError(t, err)

	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}

func TestDigest_StableAndDistinct(t *testing.T) {
	d1 := Digest("abc")
	assert.Equal(t, d1, Digest("abc"))
	assert.NotEqual(t, d1, Digest("abd"))
	assert.Len(t, d1, 64)
}

func TestMatchAny(t *testing.T) {
	digest := Digest("mine")

	assert.True(t, MatchAny(digest, []string{"other", "mine"}))
	assert.False(t, MatchAny(digest, []string{"other"}))
	assert.False(t, MatchAny(digest, nil))
	assert.False(t, MatchAny(Digest(""), []string{""}))
}
