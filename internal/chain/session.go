package chain

import (
	"context"
	"fmt"

	gsrpc "github.com/centrifuge/go-substrate-rpc-client/v4"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/sirupsen/logrus"
)

// Session is one connection to a node, good for signing and submitting
// calls. Sessions are not shared between invocations.
type Session interface {
	SignAndSubmit(ctx context.Context, call RuntimeCallDescriptor, signer *Signer) (string, error)
	Close()
}

// DialFunc opens a Session against an endpoint.
type DialFunc func(ctx context.Context, endpoint string) (Session, error)

type substrateSession struct {
	api     *gsrpc.SubstrateAPI
	meta    *types.Metadata
	genesis types.Hash
	runtime *types.RuntimeVersion
	log     *logrus.Entry
}

// await runs a blocking client call, giving up when ctx ends first.
func await[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-ch:
		return r.v, r.err
	}
}

// DialSubstrate connects and loads what every signed extrinsic needs:
// metadata, genesis hash and runtime version.
func DialSubstrate(log *logrus.Entry) DialFunc {
	return func(ctx context.Context, endpoint string) (Session, error) {
		api, err := await(ctx, func() (*gsrpc.SubstrateAPI, error) {
			return gsrpc.NewSubstrateAPI(endpoint)
		})
		if err != nil {
			return nil, newChainError(Connectivity, fmt.Errorf("failed to connect to %s: %w", endpoint, err))
		}

		s := &substrateSession{api: api, log: log.WithField("endpoint", endpoint)}
		if err := s.load(ctx); err != nil {
			s.Close()
			return nil, newChainError(Connectivity, err)
		}

		s.log.WithFields(logrus.Fields{
			"spec_version": s.runtime.SpecVersion,
			"tx_version":   s.runtime.TransactionVersion,
		}).Info("🔗 connected to chain")
		return s, nil
	}
}

func (s *substrateSession) load(ctx context.Context) error {
	var err error
	if s.meta, err = await(ctx, s.api.RPC.State.GetMetadataLatest); err != nil {
		return fmt.Errorf("failed to fetch metadata: %w", err)
	}
	if s.genesis, err = await(ctx, func() (types.Hash, error) { return s.api.RPC.Chain.GetBlockHash(0) }); err != nil {
		return fmt.Errorf("failed to fetch genesis hash: %w", err)
	}
	if s.runtime, err = await(ctx, s.api.RPC.State.GetRuntimeVersionLatest); err != nil {
		return fmt.Errorf("failed to fetch runtime version: %w", err)
	}
	return nil
}

func (s *substrateSession) SignAndSubmit(ctx context.Context, d RuntimeCallDescriptor, signer *Signer) (string, error) {
	call, err := types.NewCall(s.meta, d.Name(), d.Values()...)
	if err != nil {
		// the call is not in this runtime's metadata
		return "", &ChainError{Kind: RuntimeRejection, Detail: fmt.Sprintf("cannot build %s: %v", d.Name(), err), Err: err}
	}

	nonce, err := await(ctx, func() (uint64, error) {
		var n uint64
		err := s.api.Client.Call(&n, "system_accountNextIndex", signer.Address())
		return n, err
	})
	if err != nil {
		return "", newChainError(Connectivity, fmt.Errorf("failed to fetch nonce: %w", err))
	}

	ext := types.NewExtrinsic(call)
	opts := types.SignatureOptions{
		BlockHash:          s.genesis,
		Era:                types.ExtrinsicEra{IsImmortalEra: true},
		GenesisHash:        s.genesis,
		Nonce:              types.NewUCompactFromUInt(nonce),
		SpecVersion:        s.runtime.SpecVersion,
		Tip:                types.NewUCompactFromUInt(0),
		TransactionVersion: s.runtime.TransactionVersion,
	}
	if err := ext.Sign(signer.KeyringPair(), opts); err != nil {
		return "", newChainError(Signing, fmt.Errorf("failed to sign extrinsic: %w", err))
	}

	s.log.WithFields(logrus.Fields{
		"call":    d.Name(),
		"account": signer.Address(),
		"nonce":   nonce,
	}).Info("📤 submitting extrinsic")

	hash, err := await(ctx, func() (types.Hash, error) { return s.api.RPC.Author.SubmitExtrinsic(ext) })
	if err != nil {
		return "", ClassifySubmitError(err)
	}
	return hash.Hex(), nil
}

func (s *substrateSession) Close() {
	if c, ok := s.api.Client.(interface{ Close() }); ok {
		c.Close()
	}
}
