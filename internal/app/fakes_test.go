package app

import (
	"context"
	"sync"
	"time"

	"github.com/VedalAI/swarm-control-sub000/internal/domain"
	"github.com/VedalAI/swarm-control-sub000/internal/gamelink"
	"github.com/VedalAI/swarm-control-sub000/internal/identity"
	"github.com/VedalAI/swarm-control-sub000/internal/notify"
)

type fakeOrderRepo struct {
	mu     sync.Mutex
	orders map[string]domain.Order
	// saves records every persisted state transition, in order.
	saves []domain.OrderState
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[string]domain.Order)}
}

func (r *fakeOrderRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (r *fakeOrderRepo) CreateOrder(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[order.ID] = order
	return nil
}

func (r *fakeOrderRepo) GetOrder(_ context.Context, id string) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return o, nil
}

func (r *fakeOrderRepo) GetOrderForUpdate(ctx context.Context, id string) (domain.Order, error) {
	return r.GetOrder(ctx, id)
}

func (r *fakeOrderRepo) SaveOrder(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[order.ID] = order
	r.saves = append(r.saves, order.State)
	return nil
}

func (r *fakeOrderRepo) byState(state domain.OrderState) []domain.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Order
	for _, o := range r.orders {
		if o.State == state {
			out = append(out, o)
		}
	}
	return out
}

func (r *fakeOrderRepo) savedStates() []domain.OrderState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.OrderState(nil), r.saves...)
}

type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[string]map[string]bool
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]map[string]bool)}
}

func (s *fakeSessionStore) AddSession(_ context.Context, userID, sessionID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions[userID] == nil {
		s.sessions[userID] = make(map[string]bool)
	}
	s.sessions[userID][sessionID] = true
	return nil
}

func (s *fakeSessionStore) HasSession(_ context.Context, userID, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[userID][sessionID], nil
}

type fakeBanStore struct {
	mu     sync.Mutex
	banned map[string]string
}

func newFakeBanStore() *fakeBanStore {
	return &fakeBanStore{banned: make(map[string]string)}
}

func (b *fakeBanStore) IsBanned(_ context.Context, userID string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.banned[userID]
	return ok, nil
}

func (b *fakeBanStore) Ban(_ context.Context, userID, reason string, _ time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.banned[userID] = reason
	return nil
}

// fakeGame executes redeems synchronously and keeps registered late-result
// watchers so tests can fire them by GUID.
type fakeGame struct {
	mu       sync.Mutex
	redeemFn func(ctx context.Context, guid string, msg gamelink.RedeemMessage) (gamelink.ResultMessage, error)
	watched  map[string]func(gamelink.ResultMessage)
	sent     []gamelink.RedeemMessage
	guids    []string
}

func newFakeGame() *fakeGame {
	return &fakeGame{watched: make(map[string]func(gamelink.ResultMessage))}
}

func (g *fakeGame) Redeem(ctx context.Context, guid string, msg gamelink.RedeemMessage) (gamelink.ResultMessage, error) {
	g.mu.Lock()
	g.sent = append(g.sent, msg)
	g.guids = append(g.guids, guid)
	fn := g.redeemFn
	g.mu.Unlock()
	if fn != nil {
		return fn(ctx, guid, msg)
	}
	return gamelink.ResultMessage{Success: true, Message: "done"}, nil
}

func (g *fakeGame) WatchResult(guid string, fn func(gamelink.ResultMessage)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.watched[guid] = fn
}

// fireResult delivers a late result to a registered watcher, one-shot,
// mirroring the real connection's dispatch. Returns false when no watcher
// is registered for the GUID.
func (g *fakeGame) fireResult(guid string, res gamelink.ResultMessage) bool {
	g.mu.Lock()
	fn := g.watched[guid]
	delete(g.watched, guid)
	g.mu.Unlock()
	if fn == nil {
		return false
	}
	fn(res)
	return true
}

type fakeResolver struct {
	profiles map[string]identity.Profile
}

func (r *fakeResolver) Resolve(_ context.Context, userID string) (identity.Profile, bool, error) {
	p, ok := r.profiles[userID]
	return p, ok, nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (n *recordingNotifier) Notify(_ context.Context, severity notify.Severity, header, _ string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, string(severity)+":"+header)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}
