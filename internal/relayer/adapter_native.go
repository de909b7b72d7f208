// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package relayer

import (
	"context"
	"fmt"

	"github.com/luxfi/qtrade-relayer/internal/relayer/rpcclient"
	"github.com/luxfi/qtrade-relayer/log"
)

// NativeAdapter is the plain JSON-RPC chain-read/write adapter: no auth,
// no tip wallet, synchronous. It also satisfies BlockhashFetcher,
// NonceChainClient, KeyChainClient and SignatureStatusClient, since those
// are all thin chain reads/writes this adapter is already wired to
// perform.
type NativeAdapter struct {
	client *rpcclient.Client
	log    log.Logger
}

// NewNativeAdapter constructs the native adapter from Settings'
// NativeRPCURL.
func NewNativeAdapter(settings *Settings, logger log.Logger) (*NativeAdapter, error) {
	if logger == nil {
		logger = log.Root()
	}
	c, err := rpcclient.New(settings.NativeRPCURL)
	if err != nil {
		return nil, fmt.Errorf("relayer: native adapter: %w", err)
	}
	return &NativeAdapter{client: c, log: logger}, nil
}

func (a *NativeAdapter) Metadata() AdapterMetadata {
	return AdapterMetadata{Name: ProviderNative, Sync: true, Simulatable: true}
}

// --- JSON-RPC request/reply shapes ---

type blockhashReply struct {
	Blockhash string `json:"blockhash"`
}

type nonceAccountParams struct {
	Identity string `json:"identity"`
}

type nonceAccountReply struct {
	Initialized bool   `json:"initialized"`
	Value       string `json:"value"`
}

type nonceAuthorityParams struct {
	Identity  string `json:"identity"`
	Authority string `json:"authority"`
}

type balanceParams struct {
	Identity string `json:"identity"`
}

type balanceReply struct {
	Lamports uint64 `json:"lamports"`
}

type sendTxParams struct {
	Tx string `json:"tx"`
}

type sendTxReply struct {
	Signature string `json:"signature"`
}

type simulateTxReply struct {
	Result string `json:"result"`
}

type signatureStatusParams struct {
	Signature string `json:"signature"`
}

type signatureStatusReply struct {
	Known     bool `json:"known"`
	Confirmed bool `json:"confirmed"`
}

// GetLatestBlockhash satisfies BlockhashFetcher.
func (a *NativeAdapter) GetLatestBlockhash(ctx context.Context) (Blockhash, error) {
	var reply blockhashReply
	if err := a.client.Call(ctx, "chain.getLatestBlockhash", struct{}{}, &reply); err != nil {
		return Blockhash{}, fmt.Errorf("native: get latest blockhash: %w", err)
	}
	return parseBlockhash(reply.Blockhash)
}

// GetNonceAccount satisfies NonceChainClient.
func (a *NativeAdapter) GetNonceAccount(ctx context.Context, identity PublicKey) (Blockhash, bool, error) {
	var reply nonceAccountReply
	err := a.client.Call(ctx, "chain.getNonceAccount", nonceAccountParams{Identity: identity.String()}, &reply)
	if err != nil {
		return Blockhash{}, false, fmt.Errorf("native: get nonce account: %w", err)
	}
	if !reply.Initialized {
		return Blockhash{}, false, nil
	}
	value, err := parseBlockhash(reply.Value)
	if err != nil {
		return Blockhash{}, false, err
	}
	return value, true, nil
}

// InitializeNonceAccount satisfies NonceChainClient.
func (a *NativeAdapter) InitializeNonceAccount(ctx context.Context, identity PublicKey, authority Keypair) error {
	err := a.client.Call(ctx, "chain.initializeNonceAccount", nonceAuthorityParams{
		Identity:  identity.String(),
		Authority: authority.Public.String(),
	}, &struct{}{})
	if err != nil {
		return fmt.Errorf("native: initialize nonce account: %w", err)
	}
	return nil
}

// AdvanceNonceAccount satisfies NonceChainClient.
func (a *NativeAdapter) AdvanceNonceAccount(ctx context.Context, identity PublicKey, authority Keypair) (Blockhash, error) {
	var reply nonceAccountReply
	err := a.client.Call(ctx, "chain.advanceNonceAccount", nonceAuthorityParams{
		Identity:  identity.String(),
		Authority: authority.Public.String(),
	}, &reply)
	if err != nil {
		return Blockhash{}, fmt.Errorf("native: advance nonce account: %w", err)
	}
	return parseBlockhash(reply.Value)
}

// GetBalance satisfies KeyChainClient.
func (a *NativeAdapter) GetBalance(ctx context.Context, identity PublicKey) (uint64, error) {
	var reply balanceReply
	if err := a.client.Call(ctx, "chain.getBalance", balanceParams{Identity: identity.String()}, &reply); err != nil {
		return 0, fmt.Errorf("native: get balance: %w", err)
	}
	return reply.Lamports, nil
}

// Transfer satisfies KeyChainClient: builds, signs and submits a plain
// system transfer from from to to.
func (a *NativeAdapter) Transfer(ctx context.Context, from Keypair, to PublicKey, amount uint64) error {
	tx := &Transaction{
		Instructions: []Instruction{systemTransferInstruction(from.Public, to, amount)},
		FeePayer:     from.Public,
	}
	hash, err := a.GetLatestBlockhash(ctx)
	if err != nil {
		return fmt.Errorf("native: transfer: %w", err)
	}
	tx.Blockhash = hash
	tx.Sign(from)
	_, err = a.SendTx(ctx, tx)
	return err
}

// SendTx satisfies SyncAdapter.
func (a *NativeAdapter) SendTx(ctx context.Context, tx *Transaction) (string, error) {
	var reply sendTxReply
	if err := a.client.Call(ctx, "chain.sendTransaction", sendTxParams{Tx: tx.Encode()}, &reply); err != nil {
		return "", fmt.Errorf("native: send tx: %w", err)
	}
	return reply.Signature, nil
}

// SendNonceTx satisfies SyncAdapter; the wire
// call is identical to SendTx once the caller has prepended the
// nonce-advance instruction and set the nonce anchor.
func (a *NativeAdapter) SendNonceTx(ctx context.Context, tx *Transaction) (string, error) {
	return a.SendTx(ctx, tx)
}

// SimulateTx satisfies Simulator.
func (a *NativeAdapter) SimulateTx(ctx context.Context, tx *Transaction) (string, error) {
	var reply simulateTxReply
	if err := a.client.Call(ctx, "chain.simulateTransaction", sendTxParams{Tx: tx.Encode()}, &reply); err != nil {
		return "", fmt.Errorf("native: simulate tx: %w", err)
	}
	return reply.Result, nil
}

// GetSignatureStatus satisfies SignatureStatusClient.
func (a *NativeAdapter) GetSignatureStatus(ctx context.Context, signature string) (bool, bool, error) {
	var reply signatureStatusReply
	if err := a.client.Call(ctx, "chain.getSignatureStatus", signatureStatusParams{Signature: signature}, &reply); err != nil {
		return false, false, fmt.Errorf("native: get signature status: %w", err)
	}
	return reply.Confirmed, reply.Known, nil
}

func parseBlockhash(s string) (Blockhash, error) {
	pk, err := ParsePublicKey(s)
	if err != nil {
		return Blockhash{}, fmt.Errorf("parse blockhash: %w", err)
	}
	return Blockhash(pk), nil
}

// systemTransferInstruction builds a plain lamport transfer, used by
// Transfer and by the Submitter's tip instruction (appendTipInstruction
// in submitter.go).
func systemTransferInstruction(from, to PublicKey, amount uint64) Instruction {
	data := make([]byte, 4+8)
	data[0] = 2 // system-program Transfer discriminant
	putUint64(data[4:12], amount)
	return Instruction{
		ProgramID: systemProgramID,
		Accounts: []AccountMeta{
			{PublicKey: from, IsSigner: true, IsWritable: true},
			{PublicKey: to, IsWritable: true},
		},
		Data: data,
	}
}
