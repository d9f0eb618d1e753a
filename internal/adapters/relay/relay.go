// Package relay implements ports.BundleRelay over a priority-inclusion
// relay's HTTP JSON-RPC surface: sendBundle for submission and a tip-floor
// percentile endpoint for pricing. There is no Go SDK for the searcher gRPC
// surface original_source/executor/src/lib.rs uses, so this talks plain
// JSON-RPC over net/http the way the pack's own relay-submitting bots do.
package relay

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/hxuan190/cyclearb/internal/domain"
	"github.com/hxuan190/cyclearb/internal/ports"
)

const requestTimeout = 10 * time.Second

// Config configures a Relay.
type Config struct {
	// BundleEndpoint is the relay's JSON-RPC sendBundle URL.
	BundleEndpoint string
	// TipFloorEndpoint returns the relay's recent tip-percentile snapshot.
	TipFloorEndpoint string
	// Signer signs the assembled transaction before submission; the fee
	// payer and first signature (the tx id the executor polls on) come
	// from this key.
	Signer solana.PrivateKey
	Chain  ports.ChainClient
}

// Relay is the HTTP-backed ports.BundleRelay implementation.
type Relay struct {
	cfg    Config
	client *http.Client
}

func New(cfg Config) *Relay {
	return &Relay{
		cfg:    cfg,
		client: &http.Client{Timeout: requestTimeout},
	}
}

// Submit compiles bundle's instructions into a single transaction, signs it
// with the configured key, and hands the base64-encoded transaction to the
// relay. The returned id is the transaction's own signature, computed
// locally at sign time — never a value invented by this package or the
// relay's response, per spec.md §9's ban on synthetic transaction ids.
func (r *Relay) Submit(ctx context.Context, bundle *domain.Bundle) (string, error) {
	blockhashStr, err := r.cfg.Chain.GetLatestBlockhash(ctx)
	if err != nil {
		return "", fmt.Errorf("relay submit: fetch blockhash: %w", err)
	}
	blockhash, err := solana.HashFromBase58(blockhashStr)
	if err != nil {
		return "", fmt.Errorf("relay submit: invalid blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(bundle.Instructions, blockhash, solana.TransactionPayer(r.cfg.Signer.PublicKey()))
	if err != nil {
		return "", fmt.Errorf("relay submit: compile transaction: %w", err)
	}

	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(r.cfg.Signer.PublicKey()) {
			return &r.cfg.Signer
		}
		return nil
	}); err != nil {
		return "", fmt.Errorf("relay submit: sign transaction: %w", err)
	}

	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("relay submit: serialize transaction: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(raw)

	if err := r.sendBundle(ctx, encoded); err != nil {
		return "", err
	}

	if len(tx.Signatures) == 0 {
		return "", fmt.Errorf("relay submit: transaction has no signatures after signing")
	}
	return tx.Signatures[0].String(), nil
}

type sendBundleRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type sendBundleResponse struct {
	Result string        `json:"result"`
	Error  *jsonRPCError `json:"error"`
}

func (r *Relay) sendBundle(ctx context.Context, base64Tx string) error {
	body := sendBundleRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "sendBundle",
		Params: []interface{}{
			[]string{base64Tx},
			map[string]string{"encoding": "base64"},
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal sendBundle request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.BundleEndpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build sendBundle request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("sendBundle request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read sendBundle response: %w", err)
	}

	var parsed sendBundleResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parse sendBundle response: %w", err)
	}
	if parsed.Error != nil {
		return fmt.Errorf("sendBundle rejected: %s", parsed.Error.Message)
	}
	return nil
}

// TipFloor fetches the relay's current tip-percentile snapshot.
func (r *Relay) TipFloor(ctx context.Context) (ports.TipFloor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.cfg.TipFloorEndpoint, nil)
	if err != nil {
		return ports.TipFloor{}, fmt.Errorf("build tip floor request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return ports.TipFloor{}, fmt.Errorf("tip floor request: %w", err)
	}
	defer resp.Body.Close()

	var snapshot struct {
		P25 float64 `json:"landed_tips_25th_percentile"`
		P50 float64 `json:"landed_tips_50th_percentile"`
		P75 float64 `json:"landed_tips_75th_percentile"`
		P99 float64 `json:"landed_tips_99th_percentile"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return ports.TipFloor{}, fmt.Errorf("parse tip floor response: %w", err)
	}

	const lamportsPerSOL = 1_000_000_000
	return ports.TipFloor{
		P25: uint64(snapshot.P25 * lamportsPerSOL),
		P50: uint64(snapshot.P50 * lamportsPerSOL),
		P75: uint64(snapshot.P75 * lamportsPerSOL),
		P99: uint64(snapshot.P99 * lamportsPerSOL),
	}, nil
}
