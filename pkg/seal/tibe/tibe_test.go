package tibe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFullDecryptionFlow(t *testing.T) {
	suite := NewSuite()
	authority, err := suite.NewAuthority(2, 3)
	require.NoError(t, err)

	scope := []byte("scope-object-id")
	plaintext := []byte(`{"a":1}`)

	encap, ciphertext, err := suite.Encrypt(scope, authority.MasterPublic(), plaintext)
	require.NoError(t, err)

	transport := suite.GenTransportKeyPair()
	transportPub, err := transport.PublicBytes()
	require.NoError(t, err)

	var shares []IndexedShare
	for i := 0; i < 3; i++ {
		partial := authority.ExtractShare(i, scope)
		c0, c1, err := authority.EncryptShareTo(transportPub, partial)
		require.NoError(t, err)

		decrypted, err := suite.DecryptShare(transport, c0, c1)
		require.NoError(t, err)
		require.NoError(t, suite.VerifyShare(scope, decrypted, authority.Commitment(i)))

		shares = append(shares, IndexedShare{Index: authority.ShareIndex(i), Value: decrypted})
	}

	identityKey, err := suite.Recover(shares, 2, 3)
	require.NoError(t, err)

	key, err := suite.DeriveKey(scope, identityKey, encap)
	require.NoError(t, err)

	got, err := Open(key, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestRecoverWithExactThreshold(t *testing.T) {
	suite := NewSuite()
	authority, err := suite.NewAuthority(2, 3)
	require.NoError(t, err)

	scope := []byte("threshold-scope")
	encap, ciphertext, err := suite.Encrypt(scope, authority.MasterPublic(), []byte("payload"))
	require.NoError(t, err)

	// Only servers 0 and 2 respond.
	shares := []IndexedShare{
		{Index: authority.ShareIndex(0), Value: authority.ExtractShare(0, scope)},
		{Index: authority.ShareIndex(2), Value: authority.ExtractShare(2, scope)},
	}
	identityKey, err := suite.Recover(shares, 2, 3)
	require.NoError(t, err)

	key, err := suite.DeriveKey(scope, identityKey, encap)
	require.NoError(t, err)
	got, err := Open(key, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)
}

func TestRecoverBelowThresholdFails(t *testing.T) {
	suite := NewSuite()
	authority, err := suite.NewAuthority(2, 3)
	require.NoError(t, err)

	scope := []byte("scope")
	shares := []IndexedShare{
		{Index: authority.ShareIndex(0), Value: authority.ExtractShare(0, scope)},
	}

	_, err = suite.Recover(shares, 2, 3)
	assert.Error(t, err)
}

func TestVerifyShareRejectsWrongServer(t *testing.T) {
	suite := NewSuite()
	authority, err := suite.NewAuthority(2, 3)
	require.NoError(t, err)

	scope := []byte("scope")
	partial := authority.ExtractShare(0, scope)

	// Claiming server 1's identity for server 0's share must fail.
	err = suite.VerifyShare(scope, partial, authority.Commitment(1))
	assert.Error(t, err)

	require.NoError(t, suite.VerifyShare(scope, partial, authority.Commitment(0)))
}

func TestVerifyShareRejectsWrongScope(t *testing.T) {
	suite := NewSuite()
	authority, err := suite.NewAuthority(1, 1)
	require.NoError(t, err)

	partial := authority.ExtractShare(0, []byte("scope-a"))
	err = suite.VerifyShare([]byte("scope-b"), partial, authority.Commitment(0))
	assert.Error(t, err)
}

func TestDecryptShareRequiresMatchingTransportKey(t *testing.T) {
	suite := NewSuite()
	authority, err := suite.NewAuthority(1, 1)
	require.NoError(t, err)

	scope := []byte("scope")
	partial := authority.ExtractShare(0, scope)

	right := suite.GenTransportKeyPair()
	wrong := suite.GenTransportKeyPair()
	rightPub, err := right.PublicBytes()
	require.NoError(t, err)

	c0, c1, err := authority.EncryptShareTo(rightPub, partial)
	require.NoError(t, err)

	decrypted, err := suite.DecryptShare(wrong, c0, c1)
	require.NoError(t, err)
	// Decryption under the wrong key yields garbage that fails verification.
	assert.Error(t, suite.VerifyShare(scope, decrypted, authority.Commitment(0)))
}

func TestAuthorityValidatesThreshold(t *testing.T) {
	suite := NewSuite()

	_, err := suite.NewAuthority(0, 3)
	assert.Error(t, err)
	_, err = suite.NewAuthority(4, 3)
	assert.Error(t, err)
}
