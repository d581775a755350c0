package encoder

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// KeySize is the length of a canonical verification key.
const KeySize = 32

// keyHexLen is the hex length of a single-encoded key; anything longer is
// treated as the hex encoding of a textual hex key.
const keyHexLen = KeySize * 2

func strip0x(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

func decodeHex(field, s string) ([]byte, error) {
	b, err := hexutil.Decode("0x" + s)
	if err != nil {
		return nil, invalidHex(field, err)
	}
	return b, nil
}

// CanonicalizeKey turns a raw verification key as found on a request page
// into its 32 raw bytes. Both the plain form and the double-encoded form
// (hex of the ASCII text of a hex key) are accepted.
func CanonicalizeKey(raw string) ([KeySize]byte, error) {
	var key [KeySize]byte

	s := strip0x(raw)
	if s == "" {
		return key, &EncodingError{Kind: MissingField, Field: "vk"}
	}

	if len(s) > keyHexLen {
		inner, err := decodeHex("vk", s)
		if err != nil {
			return key, err
		}
		if !utf8.Valid(inner) {
			return key, invalidHex("vk", errors.New("outer encoding does not wrap text"))
		}
		s = strip0x(string(inner))
	}

	b, err := decodeHex("vk", s)
	if err != nil {
		return key, err
	}
	if len(b) != KeySize {
		return key, invalidHex("vk", fmt.Errorf("expected %d bytes, got %d", KeySize, len(b)))
	}
	copy(key[:], b)
	return key, nil
}

// CanonicalKeyHex is CanonicalizeKey rendered as lowercase 0x-hex.
// It is idempotent.
func CanonicalKeyHex(raw string) (string, error) {
	key, err := CanonicalizeKey(raw)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(key[:]), nil
}
