// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package relayer

import "fmt"

// staticEncoderRegistry is the default EncoderRegistry, a fixed lookup
// table keyed by DexVariant.
type staticEncoderRegistry struct {
	encoders map[DexVariant]Encoder
}

// NewEncoderRegistry builds a registry from the given per-variant Encoder
// set. Production wiring supplies real per-DEX encoders; this repo ships stub encoders below so the
// pipeline is exercisable end to end without them.
func NewEncoderRegistry(encoders map[DexVariant]Encoder) EncoderRegistry {
	return &staticEncoderRegistry{encoders: encoders}
}

func (r *staticEncoderRegistry) EncoderFor(variant DexVariant) (Encoder, bool) {
	e, ok := r.encoders[variant]
	return e, ok
}

// DefaultEncoders returns the stub encoders for every known DexVariant,
// suitable for tests and for a deployment still awaiting real per-DEX
// instruction builders.
func DefaultEncoders() map[DexVariant]Encoder {
	return map[DexVariant]Encoder{
		DexOrca:        orcaEncoder{},
		DexRaydiumCPMM: raydiumEncoder{variant: DexRaydiumCPMM},
		DexRaydiumCLMM: raydiumEncoder{variant: DexRaydiumCLMM},
	}
}

// EncodersFor narrows DefaultEncoders to the configured DEX allowlist; an
// empty allowlist keeps every known variant.
func EncodersFor(allowed []DexVariant) map[DexVariant]Encoder {
	all := DefaultEncoders()
	if len(allowed) == 0 {
		return all
	}
	out := make(map[DexVariant]Encoder, len(allowed))
	for _, v := range allowed {
		if e, ok := all[v]; ok {
			out[v] = e
		}
	}
	return out
}

// swapInstructionAccounts is the fixed six-account ordering every DEX
// variant's swap instruction shares, plus the authority signer.
func swapInstructionAccounts(p SwapParameters, authority PublicKey) []AccountMeta {
	return []AccountMeta{
		{PublicKey: authority, IsSigner: true},
		{PublicKey: p.UserA, IsWritable: true},
		{PublicKey: p.MintA},
		{PublicKey: p.VaultA, IsWritable: true},
		{PublicKey: p.UserB, IsWritable: true},
		{PublicKey: p.MintB},
		{PublicKey: p.VaultB, IsWritable: true},
	}
}

// orcaEncoder is a stub Orca whirlpool swap encoder.
type orcaEncoder struct{}

func (orcaEncoder) Encode(p SwapParameters, authority PublicKey) (Instruction, error) {
	if p.AmountIn == 0 {
		return Instruction{}, fmt.Errorf("relayer: orca encoder: amount_in is zero")
	}
	return Instruction{
		ProgramID: p.Pool,
		Accounts:  swapInstructionAccounts(p, authority),
		Data:      encodeSwapData(p),
	}, nil
}

// raydiumEncoder is a stub Raydium CPMM/CLMM swap encoder.
type raydiumEncoder struct {
	variant DexVariant
}

func (e raydiumEncoder) Encode(p SwapParameters, authority PublicKey) (Instruction, error) {
	if p.AmountIn == 0 {
		return Instruction{}, fmt.Errorf("relayer: raydium encoder (%s): amount_in is zero", e.variant)
	}
	return Instruction{
		ProgramID: p.Pool,
		Accounts:  swapInstructionAccounts(p, authority),
		Data:      encodeSwapData(p),
	}, nil
}

// encodeSwapData packs the swap discriminant plus amount_in/min_amount_out
// and the a_to_b/exact_in flags into a fixed-layout byte blob. A real
// encoder would produce a program-specific Anchor/Borsh layout; this repo
// only needs a stable encoding so identically-built transactions stay
// byte-identical.
func encodeSwapData(p SwapParameters) []byte {
	data := make([]byte, 1+8+8+1+1)
	data[0] = byte(p.Variant)
	putUint64(data[1:9], p.AmountIn)
	putUint64(data[9:17], p.MinAmountOut)
	if p.AToB {
		data[17] = 1
	}
	if p.ExactIn {
		data[18] = 1
	}
	return data
}

func putUint64(b []byte, v uint64) {
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
}
