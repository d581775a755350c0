package chain

import (
	"errors"
	"strings"

	"github.com/centrifuge/go-substrate-rpc-client/v4/signature"
	"github.com/cosmos/go-bip39"
)

// Signer is the sr25519 account that signs and pays for extrinsics.
type Signer struct {
	pair signature.KeyringPair
}

// NewSigner derives the account from a mnemonic phrase, optionally followed
// by a derivation path. Hex seeds and bare dev paths such as //Alice are
// passed through to the keyring unchanged.
func NewSigner(secret string, ss58Prefix uint16) (*Signer, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, newChainError(Signing, errors.New("empty signing secret"))
	}

	if phrase, ok := mnemonicPart(secret); ok && !bip39.IsMnemonicValid(phrase) {
		return nil, newChainError(Signing, errors.New("invalid mnemonic phrase"))
	}

	pair, err := signature.KeyringPairFromSecret(secret, ss58Prefix)
	if err != nil {
		return nil, newChainError(Signing, err)
	}
	return &Signer{pair: pair}, nil
}

// Address is the SS58 account address.
func (s *Signer) Address() string { return s.pair.Address }

// KeyringPair exposes the pair to the extrinsic signer.
func (s *Signer) KeyringPair() signature.KeyringPair { return s.pair }

func mnemonicPart(secret string) (string, bool) {
	if strings.HasPrefix(secret, "0x") || strings.HasPrefix(secret, "/") {
		return "", false
	}
	phrase := secret
	if i := strings.Index(phrase, "/"); i >= 0 {
		phrase = phrase[:i]
	}
	phrase = strings.Join(strings.Fields(phrase), " ")
	return phrase, phrase != ""
}
