package chain

import (
	"errors"
	"fmt"

	"github.com/centrifuge/go-substrate-rpc-client/v4/scale"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"

	"zkv-router/internal/encoder"
)

// chain pallets and calls
const (
	PalletSystem       = "System"
	CallRemark         = "remark"
	DefaultProofPallet = "SettlementSp1Pallet"
	DefaultProofCall   = "submit_proof"
)

// CallArg is one positional argument. Value must be SCALE-encodable.
type CallArg struct {
	Name  string
	Value any
}

// RuntimeCallDescriptor names a runtime call and carries its arguments in
// declaration order.
type RuntimeCallDescriptor struct {
	Pallet   string
	Function string
	Args     []CallArg
}

// Name is the Pallet.function form the metadata lookup expects.
func (d RuntimeCallDescriptor) Name() string { return d.Pallet + "." + d.Function }

// Values returns the argument values in order.
func (d RuntimeCallDescriptor) Values() []any {
	out := make([]any, len(d.Args))
	for i, a := range d.Args {
		out[i] = a.Value
	}
	return out
}

// EncodeArgs is the SCALE encoding of the arguments, i.e. the call data
// without the pallet and call index.
func (d RuntimeCallDescriptor) EncodeArgs() ([]byte, error) {
	var out []byte
	for _, a := range d.Args {
		b, err := codec.Encode(a.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode argument %s: %w", a.Name, err)
		}
		out = append(out, b...)
	}
	return out, nil
}

// VkOrHash selects between supplying the verification key inline and
// referencing one already registered on chain.
type VkOrHash struct {
	IsVk   bool
	AsVk   types.H256
	IsHash bool
	AsHash types.H256
}

// NewVk wraps a raw key.
func NewVk(key [encoder.KeySize]byte) VkOrHash {
	return VkOrHash{IsVk: true, AsVk: types.H256(key)}
}

func (v VkOrHash) Encode(e scale.Encoder) error {
	switch {
	case v.IsVk:
		if err := e.PushByte(0); err != nil {
			return err
		}
		return e.Encode(v.AsVk)
	case v.IsHash:
		if err := e.PushByte(1); err != nil {
			return err
		}
		return e.Encode(v.AsHash)
	default:
		return errors.New("VkOrHash has no variant set")
	}
}

func (v *VkOrHash) Decode(d scale.Decoder) error {
	b, err := d.ReadOneByte()
	if err != nil {
		return err
	}
	switch b {
	case 0:
		v.IsVk = true
		return d.Decode(&v.AsVk)
	case 1:
		v.IsHash = true
		return d.Decode(&v.AsHash)
	default:
		return fmt.Errorf("unknown VkOrHash variant %d", b)
	}
}

// SubmitProofCall builds the verifier pallet's submit call from a canonical
// record. Arguments: key, proof, public inputs, no domain.
func SubmitProofCall(pallet, function string, rec *encoder.CanonicalProof) (RuntimeCallDescriptor, error) {
	key, err := rec.Key()
	if err != nil {
		return RuntimeCallDescriptor{}, err
	}
	proof, err := rec.ProofBytes()
	if err != nil {
		return RuntimeCallDescriptor{}, err
	}
	pubs, err := rec.PublicInputBytes()
	if err != nil {
		return RuntimeCallDescriptor{}, err
	}
	if pallet == "" {
		pallet = DefaultProofPallet
	}
	if function == "" {
		function = DefaultProofCall
	}

	return RuntimeCallDescriptor{
		Pallet:   pallet,
		Function: function,
		Args: []CallArg{
			{Name: "vk_or_hash", Value: NewVk(key)},
			{Name: "proof", Value: types.NewBytes(proof)},
			{Name: "pubs", Value: types.NewBytes(pubs)},
			{Name: "domain_id", Value: types.NewOptionU32Empty()},
		},
	}, nil
}

// RemarkCall stores arbitrary bytes on chain.
func RemarkCall(data []byte) RuntimeCallDescriptor {
	return RuntimeCallDescriptor{
		Pallet:   PalletSystem,
		Function: CallRemark,
		Args:     []CallArg{{Name: "remark", Value: types.NewBytes(data)}},
	}
}
