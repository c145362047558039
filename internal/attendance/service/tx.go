package service

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	id "presence/pkg/domain"
	dErrors "presence/pkg/domain-errors"
)

// TxRunner provides a transactional boundary for ledger mutations. Stores
// invoked inside fn must use the ctx it receives so a SQL implementation can
// carry its transaction through it.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// numLedgerShards spreads attendants over independent mutexes so clock-ins for
// different attendants never wait on each other.
const numLedgerShards = 128

const defaultLedgerTxTimeout = 5 * time.Second

// ShardedTx serializes mutations per attendant in memory. It narrows the
// window between the active-session read and the insert; the store's
// uniqueness check remains the authority.
type ShardedTx struct {
	shards  [numLedgerShards]sync.Mutex
	timeout time.Duration
}

func NewShardedTx() *ShardedTx {
	return &ShardedTx{timeout: defaultLedgerTxTimeout}
}

func (t *ShardedTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	shard := selectShard(ctx)
	t.shards[shard].Lock()
	defer t.shards[shard].Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return fn(ctx)
}

type txAttendantKey struct{}

// WithTxAttendant tags ctx with the attendant whose ledger a transaction touches.
func WithTxAttendant(ctx context.Context, attendantID id.AttendantID) context.Context {
	return context.WithValue(ctx, txAttendantKey{}, attendantID)
}

func selectShard(ctx context.Context) uint32 {
	attendantID, ok := ctx.Value(txAttendantKey{}).(id.AttendantID)
	if !ok || attendantID.IsNil() {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write(attendantID[:])
	return h.Sum32() % numLedgerShards
}
