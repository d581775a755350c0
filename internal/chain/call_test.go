package chain

import (
	"bytes"
	"strings"
	"testing"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zkv-router/internal/encoder"
)

var testKey = "0x" + strings.Repeat("5a", 32)

func TestVkOrHashEncoding(t *testing.T) {
	var key [32]byte
	for i := range key {
		key[i] = byte(i)
	}

	b, err := codec.Encode(NewVk(key))
	require.NoError(t, err)
	require.Len(t, b, 33)
	assert.Equal(t, byte(0), b[0])
	assert.Equal(t, key[:], b[1:])

	var decoded VkOrHash
	require.NoError(t, codec.Decode(b, &decoded))
	assert.True(t, decoded.IsVk)
	assert.Equal(t, types.H256(key), decoded.AsVk)

	b, err = codec.Encode(VkOrHash{IsHash: true, AsHash: types.H256(key)})
	require.NoError(t, err)
	assert.Equal(t, byte(1), b[0])

	_, err = codec.Encode(VkOrHash{})
	require.Error(t, err)
}

func TestSubmitProofCallLayout(t *testing.T) {
	rec := &encoder.CanonicalProof{Proof: "0xaabbcc", PublicInputs: "0x0102", VerificationKey: testKey}

	call, err := SubmitProofCall("", "", rec)
	require.NoError(t, err)
	assert.Equal(t, "SettlementSp1Pallet.submit_proof", call.Name())

	names := make([]string, 0, len(call.Args))
	for _, a := range call.Args {
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{"vk_or_hash", "proof", "pubs", "domain_id"}, names)

	data, err := call.EncodeArgs()
	require.NoError(t, err)

	var want bytes.Buffer
	want.WriteByte(0x00) // Vk variant
	want.Write(bytes.Repeat([]byte{0x5a}, 32))
	want.Write([]byte{0x0c, 0xaa, 0xbb, 0xcc}) // compact(3) ++ proof
	want.Write([]byte{0x08, 0x01, 0x02})       // compact(2) ++ pubs
	want.WriteByte(0x00)                       // domain_id: None
	assert.Equal(t, want.Bytes(), data)
}

func TestSubmitProofCallHonorsConfiguredNames(t *testing.T) {
	rec := &encoder.CanonicalProof{Proof: "0x01", PublicInputs: "0x", VerificationKey: testKey}

	call, err := SubmitProofCall("SettlementFooPallet", "submit_proof_v2", rec)
	require.NoError(t, err)
	assert.Equal(t, "SettlementFooPallet.submit_proof_v2", call.Name())
	assert.Len(t, call.Values(), 4)
}

func TestSubmitProofCallRejectsBadRecord(t *testing.T) {
	_, err := SubmitProofCall("", "", &encoder.CanonicalProof{Proof: "0x01", PublicInputs: "0x", VerificationKey: "0x12"})
	var encErr *encoder.EncodingError
	require.ErrorAs(t, err, &encErr)

	_, err = SubmitProofCall("", "", &encoder.CanonicalProof{Proof: "nothex", PublicInputs: "0x", VerificationKey: testKey})
	require.ErrorAs(t, err, &encErr)
	assert.Equal(t, "proof", encErr.Field)
}

func TestRemarkCall(t *testing.T) {
	call := RemarkCall([]byte("hi"))
	assert.Equal(t, "System.remark", call.Name())

	data, err := call.EncodeArgs()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x08, 'h', 'i'}, data)
}
