package replay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/VedalAI/swarm-control-sub000/internal/notify"
)

// Entry records which order and client session consumed a receipt.
type Entry struct {
	ReceiptID  string
	OrderID    string
	SessionID  string
	ConsumedAt time.Time
}

// Store persists consumed receipt ids. Consume must be atomic per receipt
// id: exactly one caller wins, all others get the winning entry back.
type Store interface {
	Consume(ctx context.Context, entry Entry) (prior *Entry, err error)
}

// Outcome of a consume attempt. SameOrder means the receipt was already
// consumed by this very order from this session, i.e. the client retrying a
// finalize that did not complete — not a replay. HardReplay means the same
// session tried to spend the receipt on a different order, which is a
// replay attempt rather than a second tab racing to report the same
// payment.
type Outcome struct {
	Accepted   bool
	SameOrder  bool
	HardReplay bool
	Prior      *Entry
}

// Guard enforces exactly-once consumption of external receipt ids.
type Guard struct {
	store    Store
	notifier notify.Notifier
	log      *logrus.Entry
}

func NewGuard(store Store, notifier notify.Notifier, log *logrus.Logger) *Guard {
	return &Guard{
		store:    store,
		notifier: notifier,
		log:      log.WithField("component", "replay-guard"),
	}
}

func (g *Guard) Consume(ctx context.Context, receiptID, orderID, sessionID string, now time.Time) (Outcome, error) {
	prior, err := g.store.Consume(ctx, Entry{
		ReceiptID:  receiptID,
		OrderID:    orderID,
		SessionID:  sessionID,
		ConsumedAt: now,
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("consume receipt %s: %w", receiptID, err)
	}
	if prior == nil {
		return Outcome{Accepted: true}, nil
	}

	if prior.OrderID == orderID && prior.SessionID == sessionID {
		g.log.WithFields(logrus.Fields{
			"receipt": receiptID,
			"order":   orderID,
		}).Debug("receipt re-presented for its own order")
		return Outcome{SameOrder: true, Prior: prior}, nil
	}

	if prior.SessionID == sessionID {
		g.log.WithFields(logrus.Fields{
			"receipt": receiptID,
			"session": sessionID,
			"order":   prior.OrderID,
		}).Warn("receipt replayed from the same session")
		g.notifier.Notify(ctx, notify.SeverityCritical, "Receipt replay attempt",
			fmt.Sprintf("receipt %s re-submitted by session %s (order %s)", receiptID, sessionID, prior.OrderID))
		return Outcome{HardReplay: true, Prior: prior}, nil
	}

	// One real payment can legitimately be reported by more than one open
	// client instance; reject without punitive action.
	g.log.WithFields(logrus.Fields{
		"receipt":       receiptID,
		"session":       sessionID,
		"prior_session": prior.SessionID,
	}).Info("benign duplicate receipt")
	return Outcome{Prior: prior}, nil
}

// MemoryStore is a process-local Store for tests and single-node use.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (s *MemoryStore) Consume(_ context.Context, entry Entry) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prior, ok := s.entries[entry.ReceiptID]; ok {
		return &prior, nil
	}
	s.entries[entry.ReceiptID] = entry
	return nil, nil
}
