package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benhaq/sui-nautilus/pkg/seal/tibe"
)

func TestKeypairFromSeedIsDeterministic(t *testing.T) {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i)
	}

	a, err := KeypairFromSeed(seed)
	require.NoError(t, err)
	b, err := KeypairFromSeed(seed)
	require.NoError(t, err)

	assert.Equal(t, a.Address(), b.Address())
	assert.Equal(t, a.PublicKey(), b.PublicKey())
}

func TestKeypairFromSeedRejectsBadLength(t *testing.T) {
	_, err := KeypairFromSeed([]byte("short"))
	assert.Error(t, err)
}

func TestDistinctKeysDeriveDistinctAddresses(t *testing.T) {
	a, err := NewKeypair()
	require.NoError(t, err)
	b, err := NewKeypair()
	require.NoError(t, err)

	assert.NotEqual(t, a.Address(), b.Address())
	assert.False(t, a.Address().IsZero())
}

func TestPersonalMessageRoundTrip(t *testing.T) {
	kp, err := NewKeypair()
	require.NoError(t, err)

	msg := []byte("Accessing keys of package 0xabc for 30 mins from 1744038900000, session key AAAA")
	sig := kp.SignPersonalMessage(msg)

	assert.True(t, VerifyPersonalMessage(kp.PublicKey(), msg, sig))
	assert.False(t, VerifyPersonalMessage(kp.PublicKey(), append(msg, '!'), sig))
}

func TestPersonalMessageDiffersFromRawSignature(t *testing.T) {
	kp, err := NewKeypair()
	require.NoError(t, err)

	msg := []byte("message")
	assert.NotEqual(t, kp.Sign(msg), kp.SignPersonalMessage(msg),
		"personal messages must be domain-separated from raw signing")
}

func TestNewMaterial(t *testing.T) {
	suite := tibe.NewSuite()

	m, err := NewMaterial(suite, nil)
	require.NoError(t, err)

	assert.NotEqual(t, m.Enclave.Address(), m.Wallet.Address())
	require.NotNil(t, m.Transport)

	pub, err := m.Transport.PublicBytes()
	require.NoError(t, err)
	assert.NotEmpty(t, pub)
}

func TestNewMaterialWithWalletSeed(t *testing.T) {
	suite := tibe.NewSuite()
	seed := make([]byte, 32)
	seed[0] = 0x42

	m1, err := NewMaterial(suite, seed)
	require.NoError(t, err)
	m2, err := NewMaterial(suite, seed)
	require.NoError(t, err)

	assert.Equal(t, m1.Wallet.Address(), m2.Wallet.Address())
	assert.NotEqual(t, m1.Enclave.Address(), m2.Enclave.Address())
}

func TestWalletSeedFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	seed := make([]byte, 32)
	seed[5] = 0x99

	_, err := SaveWalletSeed(dir, "wallet", seed, "", false)
	require.NoError(t, err)

	got, err := LoadWalletSeed(dir, "wallet", "")
	require.NoError(t, err)
	assert.Equal(t, seed, got)

	// Second save without overwrite is rejected.
	_, err = SaveWalletSeed(dir, "wallet", seed, "", false)
	assert.Error(t, err)
}

func TestWalletSeedFileAgeRoundTrip(t *testing.T) {
	dir := t.TempDir()
	seed := make([]byte, 32)
	seed[9] = 0x17

	_, err := SaveWalletSeed(dir, "wallet", seed, "correct horse battery staple", false)
	require.NoError(t, err)

	got, err := LoadWalletSeed(dir, "wallet", "correct horse battery staple")
	require.NoError(t, err)
	assert.Equal(t, seed, got)

	_, err = LoadWalletSeed(dir, "wallet", "wrong passphrase")
	assert.Error(t, err)

	_, err = LoadWalletSeed(dir, "wallet", "")
	assert.Error(t, err)
}

func TestLoadWalletSeedMissingReturnsNil(t *testing.T) {
	got, err := LoadWalletSeed(t.TempDir(), "wallet", "")
	require.NoError(t, err)
	assert.Nil(t, got)
}
