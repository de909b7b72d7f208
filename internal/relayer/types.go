// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package relayer implements the transaction-landing subsystem of the
// arbitrage pipeline: it turns solver results into signed, submitted and
// confirmed on-chain transactions.
package relayer

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/mr-tron/base58"
)

// PublicKey is a 32-byte chain account identity, base58-encoded on the wire.
type PublicKey [32]byte

func (p PublicKey) String() string { return base58.Encode(p[:]) }

func (p PublicKey) IsZero() bool { return p == PublicKey{} }

// ParsePublicKey decodes a base58 public key.
func ParsePublicKey(s string) (PublicKey, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return PublicKey{}, fmt.Errorf("decode public key: %w", err)
	}
	if len(b) != 32 {
		return PublicKey{}, fmt.Errorf("public key %q: want 32 bytes, got %d", s, len(b))
	}
	var pk PublicKey
	copy(pk[:], b)
	return pk, nil
}

// Keypair is an ed25519 signing key paired with its public identity.
type Keypair struct {
	Public  PublicKey
	private ed25519.PrivateKey
}

// ParseKeypair decodes a base58-encoded 64-byte ed25519 secret.
func ParseKeypair(secret string) (Keypair, error) {
	b, err := base58.Decode(secret)
	if err != nil {
		return Keypair{}, fmt.Errorf("decode keypair secret: %w", err)
	}
	if len(b) != ed25519.PrivateKeySize {
		return Keypair{}, fmt.Errorf("keypair secret: want %d bytes, got %d", ed25519.PrivateKeySize, len(b))
	}
	priv := ed25519.PrivateKey(b)
	var pub PublicKey
	copy(pub[:], priv.Public().(ed25519.PublicKey))
	return Keypair{Public: pub, private: priv}, nil
}

// GenerateKeypair creates a fresh ed25519 keypair, used when the Explorer
// pool needs to be seeded beyond its configured secrets.
func GenerateKeypair() (Keypair, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return Keypair{}, fmt.Errorf("generate keypair: %w", err)
	}
	var pk PublicKey
	copy(pk[:], pub)
	return Keypair{Public: pk, private: priv}, nil
}

// Sign signs msg, used when building a Transaction's signature set.
func (k Keypair) Sign(msg []byte) []byte {
	return ed25519.Sign(k.private, msg)
}

// Secret returns the base58-encoded secret, for tests and key-material
// round-tripping only; never logged.
func (k Keypair) Secret() string { return base58.Encode(k.private) }

// Blockhash is a recent chain-state hash anchoring a transaction's
// validity window.
type Blockhash [32]byte

func (b Blockhash) String() string { return base58.Encode(b[:]) }

// DexVariant tags the on-chain program family a SwapParameters targets.
type DexVariant int

const (
	DexUnknown DexVariant = iota
	DexOrca
	DexRaydiumCPMM
	DexRaydiumCLMM
)

func (d DexVariant) String() string {
	switch d {
	case DexOrca:
		return "orca"
	case DexRaydiumCPMM:
		return "raydium-cpmm"
	case DexRaydiumCLMM:
		return "raydium-clmm"
	default:
		return "unknown"
	}
}

// dexVariants is the round-robin order used by the synthetic pool-identity
// derivation in Preparer; a real PoolRegistry would replace this entirely.
var dexVariants = []DexVariant{DexOrca, DexRaydiumCPMM, DexRaydiumCLMM}

// ParseDexVariant maps a configured allowlist label to its DexVariant.
func ParseDexVariant(s string) (DexVariant, bool) {
	for _, v := range dexVariants {
		if v.String() == s {
			return v, true
		}
	}
	return DexUnknown, false
}

// ArbitrageResult is one ingested solver result.
type ArbitrageResult struct {
	Status  string
	Pools   []PoolResult
}

// PoolResult is one pool's row of the solver's deltas/lambdas matrices.
// Deltas and Lambdas are parallel per-token arrays local to this pool;
// TokenIndex maps a local array index to a global token identity.
type PoolResult struct {
	PoolIndex  int
	Deltas     []float64
	Lambdas    []float64
	TokenIndex []int
}

const deltaEpsilon = 1e-6

// HasNontrivialDelta reports whether any entry exceeds the noise floor.
func (p PoolResult) HasNontrivialDelta() bool {
	for _, d := range p.Deltas {
		if d > deltaEpsilon || d < -deltaEpsilon {
			return true
		}
	}
	return false
}

// SwapParameters is one profitable pool's fully-derived swap request,
// consumed once by the Submitter and then discarded.
type SwapParameters struct {
	Pool          PublicKey
	Variant       DexVariant
	UserA, MintA, VaultA PublicKey
	UserB, MintB, VaultB PublicKey
	AmountIn      uint64
	MinAmountOut  uint64
	AToB          bool
	ExactIn       bool
	EstimatedProfit float64
}

// Instruction is an opaque encoded call produced by a per-DEX encoder;
// the core treats it as a black box.
type Instruction struct {
	ProgramID PublicKey
	Accounts  []AccountMeta
	Data      []byte
}

// AccountMeta describes one account referenced by an Instruction.
type AccountMeta struct {
	PublicKey  PublicKey
	IsSigner   bool
	IsWritable bool
}

// Encoder is the narrow external-collaborator interface for per-DEX
// swap-instruction encoding.
type Encoder interface {
	Encode(params SwapParameters, authority PublicKey) (Instruction, error)
}

// EncoderRegistry looks up the Encoder for a DexVariant.
type EncoderRegistry interface {
	EncoderFor(variant DexVariant) (Encoder, bool)
}

// PoolRegistry resolves a pool index to its identity and DEX variant;
// the default implementation is synthetic.
type PoolRegistry interface {
	Lookup(poolIndex int) (PublicKey, DexVariant, bool)
}

// syntheticPoolRegistry derives a stable placeholder identity and a
// round-robin DEX variant from the pool index alone: no real pool
// registry exists yet.
type syntheticPoolRegistry struct{}

func (syntheticPoolRegistry) Lookup(poolIndex int) (PublicKey, DexVariant, bool) {
	sum := sha256.Sum256([]byte(fmt.Sprintf("pool-%d", poolIndex)))
	variant := dexVariants[poolIndex%len(dexVariants)]
	return PublicKey(sum), variant, true
}

// DefaultPoolRegistry is the synthetic registry used when none is supplied.
var DefaultPoolRegistry PoolRegistry = syntheticPoolRegistry{}

// Transaction is an ordered instruction list anchored by either a cached
// blockhash or a nonce value, with one or more signatures.
type Transaction struct {
	Instructions []Instruction
	FeePayer     PublicKey
	Blockhash    Blockhash // the nonce value when NonceAnchor is set
	NonceAnchor  bool
	Signatures   [][]byte
}

// Message returns a SHA-256 digest over everything but the signatures
// (fee payer, anchor kind, anchor, instructions), so identically built
// transactions yield byte-identical messages.
func (t Transaction) Message() []byte {
	h := sha256.New()
	h.Write(t.FeePayer[:])
	if t.NonceAnchor {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}
	h.Write(t.Blockhash[:])
	for _, ix := range t.Instructions {
		h.Write(ix.ProgramID[:])
		for _, a := range ix.Accounts {
			h.Write(a.PublicKey[:])
			if a.IsSigner {
				h.Write([]byte{1})
			}
			if a.IsWritable {
				h.Write([]byte{1})
			}
		}
		h.Write(ix.Data)
	}
	return h.Sum(nil)
}

// Sign signs the canonical message with every signer and records the
// resulting signature set. Calling Sign twice on an identically-built
// Transaction yields byte-identical signatures.
func (t *Transaction) Sign(signers ...Keypair) {
	msg := t.Message()
	t.Signatures = make([][]byte, len(signers))
	for i, kp := range signers {
		t.Signatures[i] = kp.Sign(msg)
	}
}

// Encode returns the full canonical wire bytes (signatures + message),
// base64-encoded for REST relays and for log/retry reproducibility.
// Building the same Transaction twice and calling Encode on both yields
// byte-identical output.
func (t Transaction) Encode() string {
	msg := t.Message()
	buf := make([]byte, 0, 1+len(t.Signatures)*64+len(msg))
	buf = append(buf, byte(len(t.Signatures)))
	for _, sig := range t.Signatures {
		buf = append(buf, sig...)
	}
	buf = append(buf, msg...)
	return base64.StdEncoding.EncodeToString(buf)
}

// AdapterOutcome is one adapter's submission result.
type AdapterOutcome struct {
	Provider  string
	Success   bool
	Signature string // set when Success
	Err       error  // set when !Success
}

// Text renders the outcome the way it is logged and matched against the
// circuit breaker's structural-error substrings.
func (o AdapterOutcome) Text() string {
	if o.Success {
		return o.Signature
	}
	if o.Err != nil {
		return o.Err.Error()
	}
	return "unknown error"
}
