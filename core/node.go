package core

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/stellarcarbon/sorocarbon/auth"
	"github.com/stellarcarbon/sorocarbon/core/events"
	"github.com/stellarcarbon/sorocarbon/core/state"
	"github.com/stellarcarbon/sorocarbon/storage"
)

// DefaultMinInstanceTTL is the lifetime, in ledgers, of newly created
// instances when the host configuration leaves it unset.
const DefaultMinInstanceTTL = 4_096

var ledgerKey = []byte("host/ledger")

// HostConfig parameterises the execution host.
type HostConfig struct {
	// InitialLedger seeds the ledger sequence of a fresh database.
	InitialLedger  uint32
	MinInstanceTTL uint32
}

// Node hosts contract invocations over a single database. Invocations are
// serialized; each runs inside one storage transaction.
type Node struct {
	db             storage.Database
	mu             sync.Mutex
	ledger         atomic.Uint32
	minInstanceTTL uint32
	emitter        events.Emitter
	diagnostics    events.Emitter
	logger         *slog.Logger
}

// NewNode opens a host over db, restoring the persisted ledger sequence.
func NewNode(db storage.Database, cfg HostConfig, logger *slog.Logger) (*Node, error) {
	if db == nil {
		return nil, errors.New("core: database required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MinInstanceTTL == 0 {
		cfg.MinInstanceTTL = DefaultMinInstanceTTL
	}
	n := &Node{
		db:             db,
		minInstanceTTL: cfg.MinInstanceTTL,
		emitter:        events.NoopEmitter{},
		diagnostics:    events.NoopEmitter{},
		logger:         logger,
	}
	raw, err := db.Get(ledgerKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		if err := n.SetLedger(cfg.InitialLedger); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("core: load ledger: %w", err)
	case len(raw) != 4:
		return nil, fmt.Errorf("core: corrupt ledger record (%d bytes)", len(raw))
	default:
		n.ledger.Store(binary.BigEndian.Uint32(raw))
	}
	return n, nil
}

// SetEventEmitter configures where committed contract events are published.
func (n *Node) SetEventEmitter(emitter events.Emitter) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	n.emitter = emitter
}

// SetDiagnosticEmitter configures where diagnostic events are published.
func (n *Node) SetDiagnosticEmitter(emitter events.Emitter) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	n.diagnostics = emitter
}

// Ledger returns the current ledger sequence.
func (n *Node) Ledger() uint32 {
	return n.ledger.Load()
}

// SetLedger moves the ledger sequence to seq and persists it.
func (n *Node) SetLedger(seq uint32) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.storeLedger(seq)
}

// AdvanceLedger moves the ledger sequence forward by delta.
func (n *Node) AdvanceLedger(delta uint32) (uint32, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	next := n.ledger.Load() + delta
	if err := n.storeLedger(next); err != nil {
		return 0, err
	}
	return next, nil
}

func (n *Node) storeLedger(seq uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], seq)
	if err := n.db.Put(ledgerKey, buf[:]); err != nil {
		return fmt.Errorf("core: persist ledger: %w", err)
	}
	n.ledger.Store(seq)
	return nil
}

// PruneNonces drops consumed-nonce records whose approvals expired before the
// current ledger, sweeping at most maxLedgers expiration ledgers.
func (n *Node) PruneNonces(maxLedgers uint32) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	tx, err := n.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("core: begin transaction: %w", err)
	}
	removed, err := state.NewManager(tx).PruneNonces(n.ledger.Load(), maxLedgers)
	if err != nil {
		tx.Discard()
		return 0, fmt.Errorf("core: prune nonces: %w", err)
	}
	if err := tx.Commit(); err != nil {
		tx.Discard()
		return 0, fmt.Errorf("core: commit nonce prune: %w", err)
	}
	return removed, nil
}

// Invoke runs fn as the root frame of inv. Any error or panic discards every
// write fn made; on success the writes are committed and the buffered contract
// events published. Diagnostics are published in both cases.
func (n *Node) Invoke(ctx context.Context, inv auth.Invocation, ac auth.Context, fn func(*Env) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if inv.Contract.IsZero() {
		return errors.New("core: invocation contract required")
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	tx, err := n.db.Begin()
	if err != nil {
		return Abort(fmt.Errorf("core: begin transaction: %w", err))
	}
	sc := &scope{
		root:       inv,
		auth:       ac,
		authorized: make(map[string]struct{}),
	}
	env := &Env{
		ctx:            ctx,
		state:          state.NewManager(tx),
		ledger:         n.ledger.Load(),
		minInstanceTTL: n.minInstanceTTL,
		contract:       inv.Contract,
		scope:          sc,
	}
	defer func() { publish(n.diagnostics, sc.diagnostics) }()

	if err := run(env, fn); err != nil {
		tx.Discard()
		if IsAbort(err) {
			n.logger.Error("invocation aborted",
				slog.String("invocation", inv.String()),
				slog.Any("error", err))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		tx.Discard()
		return Abort(fmt.Errorf("core: commit invocation: %w", err))
	}
	publish(n.emitter, sc.events)
	return nil
}

func run(env *Env, fn func(*Env) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = Abortf("panic: %v", r)
		}
	}()
	return fn(env)
}

func publish(emitter events.Emitter, evts []events.Event) {
	if emitter == nil {
		return
	}
	for _, evt := range evts {
		emitter.Emit(evt)
	}
}
