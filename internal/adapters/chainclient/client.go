// Package chainclient implements ports.ChainClient against a Solana RPC
// endpoint and its companion websocket: batched account reads and
// transaction lookup over JSON-RPC, blockhash caching with a soft TTL, and
// program-log subscription over logsSubscribe (see ws.go).
package chainclient

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog/log"

	"github.com/hxuan190/cyclearb/internal/ports"
)

const (
	defaultBlockhashTTL = 2 * time.Second
	accountFetchRetries = 3
	accountFetchTimeout = 30 * time.Second
)

// Config configures a Client.
type Config struct {
	RPCURL       string
	WSURL        string
	BlockhashTTL time.Duration // 0 uses defaultBlockhashTTL
}

// Client is the RPC/WS-backed ports.ChainClient implementation.
type Client struct {
	rpcClient *rpc.Client
	wsURL     string
	ttl       time.Duration

	mu        sync.RWMutex
	cached    solana.Hash
	cachedAt  time.Time
	cachedErr error
}

// New constructs a Client. It does not dial the websocket eagerly;
// SubscribeLogs dials on first call.
func New(cfg Config) *Client {
	ttl := cfg.BlockhashTTL
	if ttl <= 0 {
		ttl = defaultBlockhashTTL
	}
	return &Client{
		rpcClient: rpc.New(cfg.RPCURL),
		wsURL:     cfg.WSURL,
		ttl:       ttl,
	}
}

// GetLatestBlockhash returns the base58 blockhash, refreshing from RPC once
// the cached value is older than the configured TTL. A refresh failure
// falls back to the last known-good value rather than failing the caller,
// mirroring the teacher's stale-on-error blockhash cache.
func (c *Client) GetLatestBlockhash(ctx context.Context) (string, error) {
	c.mu.RLock()
	cached, cachedAt := c.cached, c.cachedAt
	c.mu.RUnlock()

	if !cachedAt.IsZero() && time.Since(cachedAt) < c.ttl {
		return cached.String(), nil
	}

	res, err := c.rpcClient.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		if !cachedAt.IsZero() {
			log.Warn().Err(err).Msg("chainclient: blockhash refresh failed, serving stale value")
			return cached.String(), nil
		}
		return "", fmt.Errorf("get latest blockhash: %w", err)
	}

	c.mu.Lock()
	c.cached = res.Value.Blockhash
	c.cachedAt = time.Now()
	c.mu.Unlock()

	return res.Value.Blockhash.String(), nil
}

// GetMultipleAccounts fetches account data for ids in order, retrying the
// whole batch up to accountFetchRetries times on a transport error. An id
// with no account on-chain comes back as a nil slice at its index.
func (c *Client) GetMultipleAccounts(ctx context.Context, ids []string) ([][]byte, error) {
	keys := make([]solana.PublicKey, len(ids))
	for i, id := range ids {
		key, err := solana.PublicKeyFromBase58(id)
		if err != nil {
			return nil, fmt.Errorf("invalid account id %q: %w", id, err)
		}
		keys[i] = key
	}

	var res *rpc.GetMultipleAccountsResult
	var err error
	for attempt := 0; attempt < accountFetchRetries; attempt++ {
		fetchCtx, cancel := context.WithTimeout(ctx, accountFetchTimeout)
		res, err = c.rpcClient.GetMultipleAccounts(fetchCtx, keys...)
		cancel()
		if err == nil && res != nil {
			break
		}
		select {
		case <-time.After(time.Duration(100*(attempt+1)) * time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, fmt.Errorf("get multiple accounts: %w", err)
	}

	out := make([][]byte, len(keys))
	for i, info := range res.Value {
		if info == nil {
			continue
		}
		out[i] = info.Data.GetBinary()
	}
	return out, nil
}

// maxSupportedTransactionVersion pins GetTransaction to versioned
// transactions (0) so a v0 init transaction isn't rejected by the RPC node.
var maxSupportedTransactionVersion = uint64(0)

// GetTransaction fetches a confirmed transaction and extracts the pool
// account and zero-RPC liquidity hint discovery needs. The pool account is
// taken as the last writable, non-signer account in the message: Raydium's
// CPMM/CLMM/bonding-curve init instructions all place the pool state
// account there.
func (c *Client) GetTransaction(ctx context.Context, signature string) (*ports.TransactionInfo, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return nil, fmt.Errorf("invalid signature %q: %w", signature, err)
	}

	res, err := c.rpcClient.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &maxSupportedTransactionVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("get transaction %s: %w", signature, err)
	}
	if res.Transaction == nil {
		return nil, fmt.Errorf("get transaction %s: no transaction payload", signature)
	}

	decoded, err := res.Transaction.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("decode transaction %s: %w", signature, err)
	}

	poolAccount, ok := poolAccountFromMessage(&decoded.Message)
	if !ok {
		return nil, fmt.Errorf("transaction %s: no writable non-signer account found", signature)
	}

	info := &ports.TransactionInfo{
		PoolAccount: poolAccount.String(),
		AccountKeys: accountKeyStrings(decoded.Message.AccountKeys),
	}
	if res.Meta != nil {
		info.PostTokenBalance = postTokenBalanceFromMeta(res.Meta)
	}
	return info, nil
}

// accountKeyStrings renders a message's static account keys in order, so
// callers that need a fixed-index account (a bonding-curve Create's new
// mint at index 0) can recover it without redecoding the transaction.
func accountKeyStrings(keys []solana.PublicKey) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.String()
	}
	return out
}

// poolAccountFromMessage returns the last account in the message's writable,
// non-signer range, per Solana's fixed account-key ordering
// (signers..., writable non-signers..., readonly non-signers...).
func poolAccountFromMessage(msg *solana.Message) (solana.PublicKey, bool) {
	numAccounts := len(msg.AccountKeys)
	numSigners := int(msg.Header.NumRequiredSignatures)
	numReadonlyUnsigned := int(msg.Header.NumReadonlyUnsignedAccounts)

	writableEnd := numAccounts - numReadonlyUnsigned
	if writableEnd <= numSigners || writableEnd > numAccounts {
		return solana.PublicKey{}, false
	}
	return msg.AccountKeys[writableEnd-1], true
}

// postTokenBalanceFromMeta picks the first two post-balances as the pool's
// two reserves. Good enough for the zero-RPC hint: a miss here just costs
// discovery a second account fetch, it never corrupts cached state.
func postTokenBalanceFromMeta(meta *rpc.TransactionMeta) *ports.PostTokenBalance {
	if len(meta.PostTokenBalances) < 2 {
		return nil
	}
	a, err1 := parseTokenAmount(meta.PostTokenBalances[0])
	b, err2 := parseTokenAmount(meta.PostTokenBalances[1])
	if err1 != nil || err2 != nil {
		return nil
	}
	return &ports.PostTokenBalance{ReserveA: a, ReserveB: b}
}

func parseTokenAmount(bal rpc.TokenBalance) (uint64, error) {
	if bal.UiTokenAmount == nil {
		return 0, fmt.Errorf("missing ui token amount")
	}
	return strconv.ParseUint(bal.UiTokenAmount.Amount, 10, 64)
}
