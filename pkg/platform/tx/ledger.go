package tx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	dErrors "custodia/pkg/domain-errors"
)

const defaultLedgerTxTimeout = 5 * time.Second

type ledgerKey struct{}

// ledgerTx is the state of one running ledger transaction.
type ledgerTx struct {
	mu     sync.Mutex
	undo   []func()
	guards map[string]struct{}
}

// Ledger serializes every top-level operation behind a single lock so no two
// operations interleave. Stores register undo closures through OnRollback;
// when the operation fails the closures run newest first. If a database is
// configured the operation also runs inside a SQL transaction that commits
// only after fn succeeds.
type Ledger struct {
	sem     *semaphore.Weighted
	db      *sql.DB
	timeout time.Duration
}

// LedgerOption configures a Ledger.
type LedgerOption func(*Ledger)

// WithDB enlists a SQL database in every ledger transaction.
func WithDB(db *sql.DB) LedgerOption {
	return func(l *Ledger) {
		l.db = db
	}
}

// WithTimeout bounds how long an operation may wait for the ledger lock
// and run when the caller's context carries no deadline.
func WithTimeout(d time.Duration) LedgerOption {
	return func(l *Ledger) {
		l.timeout = d
	}
}

// NewLedger creates the ledger runner.
func NewLedger(opts ...LedgerOption) *Ledger {
	l := &Ledger{
		sem:     semaphore.NewWeighted(1),
		timeout: defaultLedgerTxTimeout,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// RunInTx runs fn as one atomic ledger operation. Nested calls made with the
// context handed to fn join the running transaction.
func (l *Ledger) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(ledgerKey{}).(*ledgerTx); ok {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	if err := l.sem.Acquire(ctx, 1); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "ledger busy")
	}
	defer l.sem.Release(1)

	state := &ledgerTx{guards: make(map[string]struct{})}
	ctx = context.WithValue(ctx, ledgerKey{}, state)

	var sqlTx *sql.Tx
	if l.db != nil {
		sqlTx, err = l.db.BeginTx(ctx, nil)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "begin transaction")
		}
		ctx = WithTx(ctx, sqlTx)
	}

	defer func() {
		if p := recover(); p != nil {
			state.rollback()
			if sqlTx != nil {
				_ = sqlTx.Rollback()
			}
			panic(p)
		}
		if err != nil {
			state.rollback()
			if sqlTx != nil {
				_ = sqlTx.Rollback()
			}
		}
	}()

	if err = fn(ctx); err != nil {
		return err
	}
	if sqlTx != nil {
		if cerr := sqlTx.Commit(); cerr != nil {
			err = dErrors.Wrap(cerr, dErrors.CodeInternal, "commit transaction")
			return err
		}
	}
	return nil
}

func (t *ledgerTx) rollback() {
	t.mu.Lock()
	undo := t.undo
	t.undo = nil
	t.mu.Unlock()
	for i := len(undo) - 1; i >= 0; i-- {
		undo[i]()
	}
}

// OnRollback registers fn to run if the surrounding ledger transaction fails.
// Outside a transaction the call is a no-op: the mutation is already final.
func OnRollback(ctx context.Context, fn func()) {
	state, ok := ctx.Value(ledgerKey{}).(*ledgerTx)
	if !ok {
		return
	}
	state.mu.Lock()
	state.undo = append(state.undo, fn)
	state.mu.Unlock()
}

// InLedger reports whether ctx belongs to a running ledger transaction.
func InLedger(ctx context.Context) bool {
	_, ok := ctx.Value(ledgerKey{}).(*ledgerTx)
	return ok
}

// ErrReentrant is returned by Guard when the resource is already held.
var ErrReentrant = errors.New("reentrant call")

// Guard marks resource as in use by the running transaction until release is
// called. A second Guard on the same resource within the transaction fails.
// Outside a ledger transaction Guard always succeeds.
func Guard(ctx context.Context, resource string) (release func(), err error) {
	state, ok := ctx.Value(ledgerKey{}).(*ledgerTx)
	if !ok {
		return func() {}, nil
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	if _, held := state.guards[resource]; held {
		return nil, dErrors.Wrap(fmt.Errorf("%w: %s", ErrReentrant, resource), dErrors.CodeReentrantCall, "operation already in progress")
	}
	state.guards[resource] = struct{}{}
	return func() {
		state.mu.Lock()
		delete(state.guards, resource)
		state.mu.Unlock()
	}, nil
}
