package substrate

import (
	"context"
	"errors"
	"fmt"
	"math/big"
)

const (
	extrinsicVersion      = 4
	signedBit             = 0x80
	multiAddressID        = 0x00
	multiSignatureEd25519 = 0x00
	immortalEra           = 0x00

	// signing payloads longer than this are hashed with blake2b-256 before signing
	maxUnhashedPayload = 256

	utilityBatchAll = 2
)

var ErrEmptyBatch = errors.New("batch requires at least one call")

// Call is an encoded runtime call: pallet index, call index and the SCALE encoded arguments.
type Call struct {
	Pallet uint8
	Method uint8
	Args   []byte
	// Name is informational only (ie: ocifStaking.stake)
	Name string
}

func (c Call) Encode() []byte {
	out := make([]byte, 0, 2+len(c.Args))
	out = append(out, c.Pallet, c.Method)
	return append(out, c.Args...)
}

func (c Call) String() string {
	if c.Name != "" {
		return c.Name
	}
	return fmt.Sprintf("call(%d,%d)", c.Pallet, c.Method)
}

// BatchAll wraps calls in Utility.batch_all. A single call is returned unwrapped.
func BatchAll(utilityPallet uint8, calls []Call) (Call, error) {
	switch len(calls) {
	case 0:
		return Call{}, ErrEmptyBatch
	case 1:
		return calls[0], nil
	}
	enc := &Encoder{}
	enc.CompactUint(uint64(len(calls)))
	for _, call := range calls {
		enc.PushBytes(call.Encode())
	}
	return Call{
		Pallet: utilityPallet,
		Method: utilityBatchAll,
		Args:   enc.Bytes(),
		Name:   fmt.Sprintf("utility.batchAll(%d calls)", len(calls)),
	}, nil
}

// ExtrinsicParams is the chain state a signed extrinsic commits to.
type ExtrinsicParams struct {
	SpecVersion uint32
	TxVersion   uint32
	GenesisHash []byte
	Nonce       uint64
	Tip         *big.Int

	CheckMetadataHash bool
}

// extra is the signed extension data carried inside the extrinsic.
func (p ExtrinsicParams) extra() ([]byte, error) {
	enc := &Encoder{}
	enc.PushByte(immortalEra)
	enc.CompactUint(p.Nonce)
	tip := p.Tip
	if tip == nil {
		tip = new(big.Int)
	}
	if err := enc.Compact(tip); err != nil {
		return nil, fmt.Errorf("tip: %w", err)
	}
	if p.CheckMetadataHash {
		// mode: disabled
		enc.PushByte(0)
	}
	return enc.Bytes(), nil
}

// additional is the implicit data signed but not included in the extrinsic.
func (p ExtrinsicParams) additional() ([]byte, error) {
	if len(p.GenesisHash) != 32 {
		return nil, fmt.Errorf("invalid genesis hash length:%d", len(p.GenesisHash))
	}
	enc := &Encoder{}
	enc.U32(p.SpecVersion)
	enc.U32(p.TxVersion)
	enc.PushBytes(p.GenesisHash)
	// immortal transactions commit to the genesis hash as their checkpoint block
	enc.PushBytes(p.GenesisHash)
	if p.CheckMetadataHash {
		// Option<[u8;32]>::None
		enc.PushByte(0)
	}
	return enc.Bytes(), nil
}

// SigningPayload returns the bytes the account key must sign for call.
func SigningPayload(call Call, p ExtrinsicParams) ([]byte, error) {
	extra, err := p.extra()
	if err != nil {
		return nil, err
	}
	additional, err := p.additional()
	if err != nil {
		return nil, err
	}
	payload := append(call.Encode(), extra...)
	payload = append(payload, additional...)
	if len(payload) > maxUnhashedPayload {
		return Blake2_256(payload), nil
	}
	return payload, nil
}

// EncodeSignedExtrinsic builds the length prefixed v4 extrinsic ready for submission.
func EncodeSignedExtrinsic(call Call, signer PublicKey, signature []byte, p ExtrinsicParams) ([]byte, error) {
	if len(signature) != 64 {
		return nil, fmt.Errorf("invalid signature length:%d", len(signature))
	}
	extra, err := p.extra()
	if err != nil {
		return nil, err
	}
	body := &Encoder{}
	body.PushByte(signedBit | extrinsicVersion)
	body.PushByte(multiAddressID)
	body.PushBytes(signer[:])
	body.PushByte(multiSignatureEd25519)
	body.PushBytes(signature)
	body.PushBytes(extra)
	body.PushBytes(call.Encode())

	out := &Encoder{}
	out.ByteVec(body.Bytes())
	return out.Bytes(), nil
}

// SignExtrinsic signs call with signer and returns the encoded extrinsic.
func SignExtrinsic(ctx context.Context, signer Signer, call Call, p ExtrinsicParams) ([]byte, error) {
	payload, err := SigningPayload(call, p)
	if err != nil {
		return nil, err
	}
	sig, err := signer.Sign(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to sign %s: %w", call, err)
	}
	return EncodeSignedExtrinsic(call, signer.PublicKey(), sig, p)
}
