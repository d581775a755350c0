package chain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const devPhrase = "bottom drive obey lake curtain smoke basket hold race lonely fit walk"

func TestNewSignerDerivesAlice(t *testing.T) {
	a, err := NewSigner("//Alice", 42)
	require.NoError(t, err)
	assert.Equal(t, "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY", a.Address())

	b, err := NewSigner(devPhrase+"//Alice", 42)
	require.NoError(t, err)
	assert.Equal(t, a.Address(), b.Address())
}

func TestNewSignerPlainMnemonic(t *testing.T) {
	s, err := NewSigner("  "+devPhrase+"\n", 42)
	require.NoError(t, err)
	assert.NotEmpty(t, s.Address())
	assert.NotEmpty(t, s.KeyringPair().PublicKey)
}

func TestNewSignerRejectsInvalidSecrets(t *testing.T) {
	for _, secret := range []string{"", "   ", "correct horse battery staple", devPhrase + " extra"} {
		_, err := NewSigner(secret, 42)
		var ce *ChainError
		require.True(t, errors.As(err, &ce), "secret %q", secret)
		assert.Equal(t, Signing, ce.Kind)
	}
}
