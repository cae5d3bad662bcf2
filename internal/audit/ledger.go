package audit

import (
	"context"
	"log/slog"
	"time"

	id "sentra/pkg/domain"
	"sentra/pkg/requestcontext"
)

// Store persists ledger entries. Implementations must treat entries as
// immutable once appended.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	// Query returns matching entries newest-first, capped by Filter.Limit.
	Query(ctx context.Context, filter Filter) ([]Entry, error)
}

// Ledger is the append-only audit pipeline. Record hands entries to a
// buffered inbox and returns immediately; a single worker goroutine appends
// to the store and fans entries out to subscribers in append order, which
// gives the threat detector causal ordering per actor without any locking
// on the request path.
type Ledger struct {
	store Store
	inbox chan Entry
	subs  []chan Entry

	logger *slog.Logger

	onAppend  func()
	onDrop    func()
	onSubDrop func()
}

type Option func(*Ledger)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// WithAppendHook registers a callback invoked for every persisted entry.
func WithAppendHook(fn func()) Option {
	return func(l *Ledger) { l.onAppend = fn }
}

// WithDropHook registers a callback invoked when the inbox is full and an
// entry is dropped.
func WithDropHook(fn func()) Option {
	return func(l *Ledger) { l.onDrop = fn }
}

// WithSubscriberDropHook registers a callback invoked when a subscriber's
// buffer is full and an entry is not delivered to it.
func WithSubscriberDropHook(fn func()) Option {
	return func(l *Ledger) { l.onSubDrop = fn }
}

// NewLedger creates a ledger over the given store. inboxSize bounds how many
// entries may be in flight before Record starts dropping.
func NewLedger(store Store, inboxSize int, opts ...Option) *Ledger {
	if inboxSize <= 0 {
		inboxSize = 1024
	}
	l := &Ledger{
		store:  store,
		inbox:  make(chan Entry, inboxSize),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Subscribe returns a channel receiving entries after they are persisted,
// in append order. Must be called before Run. Delivery is lossy: a
// subscriber that falls behind its buffer misses entries rather than
// stalling the worker, so a stuck or exited subscriber can never wedge the
// ledger or hold up shutdown.
func (l *Ledger) Subscribe(buffer int) <-chan Entry {
	ch := make(chan Entry, buffer)
	l.subs = append(l.subs, ch)
	return ch
}

// Record enqueues an entry without blocking the caller. Missing ID and
// timestamp are filled in; the request ID is taken from the context when
// unset. A full inbox drops the entry and counts it; a logging failure is
// never propagated as a request failure.
func (l *Ledger) Record(ctx context.Context, entry Entry) {
	if uuidIsZero(entry.ID) {
		entry.ID = id.NewEntryID()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = requestcontext.Now(ctx)
	}
	if entry.RequestID == "" {
		entry.RequestID = requestcontext.RequestID(ctx)
	}
	if entry.RiskLevel == "" {
		entry.RiskLevel = RiskLow
	}
	select {
	case l.inbox <- entry:
	default:
		if l.onDrop != nil {
			l.onDrop()
		}
		l.logger.Warn("audit inbox full, entry dropped",
			"action", entry.Action,
			"risk_level", entry.RiskLevel,
		)
	}
}

// Query reads from the backing store.
func (l *Ledger) Query(ctx context.Context, filter Filter) ([]Entry, error) {
	return l.store.Query(ctx, filter)
}

// Run consumes the inbox until ctx is done, draining remaining entries
// before returning. Store failures are themselves audited at warning tier
// via a best-effort degraded marker, never surfaced to request handlers.
func (l *Ledger) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			l.drain()
			return ctx.Err()
		case entry := <-l.inbox:
			l.persist(ctx, entry)
		}
	}
}

func (l *Ledger) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		select {
		case entry := <-l.inbox:
			l.persist(ctx, entry)
		default:
			return
		}
	}
}

func (l *Ledger) persist(ctx context.Context, entry Entry) {
	if err := l.store.Append(ctx, entry); err != nil {
		l.logger.Error("audit append failed", "action", entry.Action, "error", err)
		degraded := Entry{
			ID:        id.NewEntryID(),
			Timestamp: time.Now(),
			Action:    ActionLedgerDegraded,
			Outcome:   OutcomeWarning,
			SourceIP:  entry.SourceIP,
			RiskLevel: RiskMedium,
			Reason:    "audit sink unavailable",
		}
		// Best effort; if the sink is still down there is nothing left to do.
		_ = l.store.Append(ctx, degraded)
		return
	}
	if l.onAppend != nil {
		l.onAppend()
	}
	for _, sub := range l.subs {
		select {
		case sub <- entry:
		default:
			if l.onSubDrop != nil {
				l.onSubDrop()
			}
			l.logger.Warn("subscriber buffer full, entry not delivered",
				"action", entry.Action,
			)
		}
	}
}

func uuidIsZero(entryID id.EntryID) bool {
	return entryID == id.EntryID{}
}
