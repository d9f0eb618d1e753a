// Package ledger is the append-only archive of every dispatched bundle's
// terminal domain.BundleOutcome, keyed by transaction signature so a landed
// trade can always be looked back up by the id the executor reported.
// Adapted from the teacher's internal/adapters/persistence/boltdb.go bucket
// pattern, carrying forward its Bucket/Set/List shape for a different
// record type.
package ledger

import (
	"encoding/json"
	"fmt"
	"time"

	boltdb "github.com/andrew-solarstorm/bolt-db"
	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog/log"

	"github.com/hxuan190/cyclearb/internal/domain"
)

const (
	outcomesBucket = "bundle_outcomes"
	defaultDBPath  = "./data/ledger.db"
)

// storedOutcome is the BoltDB-persisted shape of a domain.BundleOutcome.
type storedOutcome struct {
	Kind          uint8  `json:"kind"`
	TxId          string `json:"txId"`
	NetProfit     int64  `json:"netProfit"`
	Reason        string `json:"reason"`
	CandidatePool string `json:"candidatePool"`
	RecordedAt    int64  `json:"recordedAt"` // unix nanos
}

// Ledger persists bundle outcomes for later audit; it has no read path on
// any hot trading loop, only Record and the bulk readers below.
type Ledger struct {
	db *boltdb.BoltDatabase
}

// Open opens (creating if absent) the BoltDB file at path.
func Open(path string) (*Ledger, error) {
	if path == "" {
		path = defaultDBPath
	}
	db := boltdb.NewBoltDatabase(path)
	if db == nil {
		return nil, fmt.Errorf("ledger: failed to open database at %s", path)
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record appends one outcome. Outcomes that carry a transaction signature
// key on it; outcomes without one (a dry run, a failed submission) key on
// the candidate pool and the record time instead.
func (l *Ledger) Record(outcome domain.BundleOutcome) error {
	stored := storedOutcome{
		Kind:          uint8(outcome.Kind),
		TxId:          outcome.TxId,
		NetProfit:     outcome.NetProfit,
		Reason:        outcome.Reason,
		CandidatePool: outcome.CandidatePool.String(),
		RecordedAt:    time.Now().UnixNano(),
	}

	key := outcome.TxId
	if key == "" {
		key = fmt.Sprintf("%s:%d", stored.CandidatePool, stored.RecordedAt)
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("marshal bundle outcome: %w", err)
	}
	if err := l.db.Set(outcomesBucket, []byte(key), data); err != nil {
		return fmt.Errorf("persist bundle outcome: %w", err)
	}
	return nil
}

// All returns every archived outcome, logging and skipping any record that
// fails to decode rather than failing the whole read.
func (l *Ledger) All() ([]domain.BundleOutcome, error) {
	data, err := l.db.List(outcomesBucket)
	if err != nil {
		return nil, fmt.Errorf("list bundle outcomes: %w", err)
	}

	outcomes := make([]domain.BundleOutcome, 0, len(data))
	for key, raw := range data {
		var stored storedOutcome
		if err := json.Unmarshal(raw, &stored); err != nil {
			log.Warn().Str("key", key).Err(err).Msg("ledger: failed to decode outcome, skipping")
			continue
		}
		var pool domain.PoolId
		if stored.CandidatePool != "" {
			pool, _ = solana.PublicKeyFromBase58(stored.CandidatePool)
		}
		outcomes = append(outcomes, domain.BundleOutcome{
			Kind:          domain.BundleOutcomeKind(stored.Kind),
			TxId:          stored.TxId,
			NetProfit:     stored.NetProfit,
			Reason:        stored.Reason,
			CandidatePool: pool,
		})
	}
	return outcomes, nil
}
