// Package reward keeps each learner's experience-point balance.
package reward

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/observe"
)

// MaxCredit is the largest amount a single [Ledger.AddXP] call accepts.
const MaxCredit = 100

// ErrInvalidAmount is returned for amounts outside 1..MaxCredit.
var ErrInvalidAmount = errors.New("reward: amount must be between 1 and 100")

// Store persists experience balances.
type Store interface {
	// AddXP adds amount to the owner's balance, creating the profile if
	// needed, and returns the new total.
	AddXP(ctx context.Context, ownerID string, amount int) (int, error)

	// XP returns the owner's balance. Unknown owners have zero.
	XP(ctx context.Context, ownerID string) (int, error)
}

// Ledger validates and records experience awards.
type Ledger struct {
	store   Store
	metrics *observe.Metrics
}

// Option configures a [Ledger].
type Option func(*Ledger)

// WithMetrics sets the metrics instruments.
func WithMetrics(m *observe.Metrics) Option {
	return func(l *Ledger) { l.metrics = m }
}

// NewLedger returns a Ledger backed by store.
func NewLedger(store Store, opts ...Option) *Ledger {
	l := &Ledger{store: store}
	for _, o := range opts {
		o(l)
	}
	if l.metrics == nil {
		l.metrics = observe.DefaultMetrics()
	}
	return l
}

// AddXP credits amount to ownerID and returns the new total. The amount
// must be within 1..MaxCredit.
func (l *Ledger) AddXP(ctx context.Context, ownerID string, amount int) (int, error) {
	return l.add(ctx, ownerID, "manual", amount)
}

// Credit awards amount on behalf of source, splitting it into MaxCredit
// sized grants. Amounts below one are ignored.
func (l *Ledger) Credit(ctx context.Context, ownerID, source string, amount int) error {
	for amount > 0 {
		n := min(amount, MaxCredit)
		if _, err := l.add(ctx, ownerID, source, n); err != nil {
			return err
		}
		amount -= n
	}
	return nil
}

// Balance returns the owner's current total.
func (l *Ledger) Balance(ctx context.Context, ownerID string) (int, error) {
	total, err := l.store.XP(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("reward: balance: %w", err)
	}
	return total, nil
}

func (l *Ledger) add(ctx context.Context, ownerID, source string, amount int) (int, error) {
	if amount < 1 || amount > MaxCredit {
		return 0, ErrInvalidAmount
	}
	if ownerID == "" {
		return 0, errors.New("reward: owner id must not be empty")
	}
	total, err := l.store.AddXP(ctx, ownerID, amount)
	if err != nil {
		return 0, fmt.Errorf("reward: add xp: %w", err)
	}
	l.metrics.RecordXP(ctx, source, amount)
	observe.Logger(ctx).Debug("reward: xp credited", "owner", ownerID, "source", source, "amount", amount, "total", total)
	return total, nil
}

var _ Store = (*MemStore)(nil)

// MemStore is an in-memory [Store].
type MemStore struct {
	mu sync.Mutex
	xp map[string]int
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{xp: make(map[string]int)}
}

// AddXP implements [Store.AddXP].
func (m *MemStore) AddXP(_ context.Context, ownerID string, amount int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.xp[ownerID] += amount
	return m.xp[ownerID], nil
}

// XP implements [Store.XP].
func (m *MemStore) XP(_ context.Context, ownerID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.xp[ownerID], nil
}
