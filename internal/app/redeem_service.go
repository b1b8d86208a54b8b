package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/VedalAI/swarm-control-sub000/internal/clock"
	"github.com/VedalAI/swarm-control-sub000/internal/config"
	"github.com/VedalAI/swarm-control-sub000/internal/domain"
	"github.com/VedalAI/swarm-control-sub000/internal/gamelink"
	"github.com/VedalAI/swarm-control-sub000/internal/identity"
	"github.com/VedalAI/swarm-control-sub000/internal/notify"
	"github.com/VedalAI/swarm-control-sub000/internal/replay"
	"github.com/VedalAI/swarm-control-sub000/internal/token"
)

var (
	// ErrGameUnavailable: no handshaked game connection; the caller should
	// retry, the order stays paid.
	ErrGameUnavailable = errors.New("game connection unavailable")
	// ErrDeliveryPending: the redeem was paid but its result has not
	// arrived yet; a late result will still be applied.
	ErrDeliveryPending = errors.New("redeem delivery pending")
)

type OrderRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	CreateOrder(ctx context.Context, order domain.Order) error
	GetOrder(ctx context.Context, id string) (domain.Order, error)
	GetOrderForUpdate(ctx context.Context, id string) (domain.Order, error)
	SaveOrder(ctx context.Context, order domain.Order) error
}

type SessionStore interface {
	AddSession(ctx context.Context, userID, sessionID string, now time.Time) error
	HasSession(ctx context.Context, userID, sessionID string) (bool, error)
}

type BanStore interface {
	IsBanned(ctx context.Context, userID string) (bool, error)
	Ban(ctx context.Context, userID, reason string, now time.Time) error
}

// GameConn is the slice of the game connection the orchestrator needs.
type GameConn interface {
	Redeem(ctx context.Context, guid string, msg gamelink.RedeemMessage) (gamelink.ResultMessage, error)
	WatchResult(guid string, fn func(gamelink.ResultMessage))
}

const defaultAwaitTimeout = 10 * time.Second

// RedeemService drives the order state machine: prepurchase issues a
// transaction token, finalize captures payment and dispatches the redeem to
// the game, cancel aborts an unpaid order.
type RedeemService struct {
	orders   OrderRepository
	sessions SessionStore
	bans     BanStore
	cfg      config.Provider
	tokens   *token.Service
	guard    *replay.Guard
	game     GameConn
	resolver identity.Resolver
	notifier notify.Notifier
	clock    clock.Clock
	log      *logrus.Entry

	awaitTimeout time.Duration
}

type RedeemServiceOption func(*RedeemService)

// WithAwaitTimeout bounds how long finalize waits for the game's result
// before reporting the delivery as pending.
func WithAwaitTimeout(d time.Duration) RedeemServiceOption {
	return func(s *RedeemService) {
		if d > 0 {
			s.awaitTimeout = d
		}
	}
}

func NewRedeemService(
	orders OrderRepository,
	sessions SessionStore,
	bans BanStore,
	cfg config.Provider,
	tokens *token.Service,
	guard *replay.Guard,
	game GameConn,
	resolver identity.Resolver,
	notifier notify.Notifier,
	clk clock.Clock,
	log *logrus.Logger,
	opts ...RedeemServiceOption,
) *RedeemService {
	svc := &RedeemService{
		orders:       orders,
		sessions:     sessions,
		bans:         bans,
		cfg:          cfg,
		tokens:       tokens,
		guard:        guard,
		game:         game,
		resolver:     resolver,
		notifier:     notifier,
		clock:        clk,
		log:          log.WithField("component", "redeem-service"),
		awaitTimeout: defaultAwaitTimeout,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// RegisterSession records a client session for a user. Carts are only
// accepted from sessions registered this way.
func (s *RedeemService) RegisterSession(ctx context.Context, userID, sessionID string) error {
	if userID == "" || sessionID == "" {
		return domain.Validationf("session", "user and session ids are required")
	}
	return s.sessions.AddSession(ctx, userID, sessionID, s.clock.Now())
}

type PrepurchaseInput struct {
	UserID string
	Cart   domain.Cart
}

type PrepurchaseResult struct {
	Order domain.Order
	Token string
}

// Prepurchase validates the cart, records the order and issues the signed
// transaction token the client pays with. Validation failures are recorded
// as rejected orders with the violated rule, never silently dropped.
func (s *RedeemService) Prepurchase(ctx context.Context, in PrepurchaseInput) (PrepurchaseResult, error) {
	if err := s.checkBan(ctx, in.UserID); err != nil {
		return PrepurchaseResult{}, err
	}

	now := s.clock.Now()

	known, err := s.sessions.HasSession(ctx, in.UserID, in.Cart.SessionID)
	if err != nil {
		return PrepurchaseResult{}, fmt.Errorf("look up session: %w", err)
	}
	verdict := domain.ErrSessionUnknown
	if known {
		verdict = validateCart(s.cfg.Current(), in.Cart)
	}
	if verdict != nil {
		rejected := domain.Order{
			ID:        uuid.NewString(),
			UserID:    in.UserID,
			State:     domain.OrderStateRejected,
			Cart:      in.Cart,
			Result:    verdict.Error(),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if createErr := s.orders.CreateOrder(ctx, rejected); createErr != nil {
			s.log.WithError(createErr).Error("record rejected order")
		}
		s.notifier.Notify(ctx, notify.SeverityInfo, "Redeem rejected",
			fmt.Sprintf("user %s, redeem %s: %v", in.UserID, in.Cart.RedeemID, verdict))
		return PrepurchaseResult{}, verdict
	}

	order := domain.Order{
		ID:        uuid.NewString(),
		UserID:    in.UserID,
		State:     domain.OrderStatePrepurchase,
		Cart:      in.Cart,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.orders.CreateOrder(ctx, order); err != nil {
		return PrepurchaseResult{}, fmt.Errorf("create order: %w", err)
	}

	signed, err := s.tokens.Issue(order, in.UserID)
	if err != nil {
		return PrepurchaseResult{}, err
	}
	return PrepurchaseResult{Order: order, Token: signed}, nil
}

type FinalizeInput struct {
	UserID    string
	SessionID string
	Token     string
	Receipt   string
}

type FinalizeResult struct {
	Order   domain.Order
	Message string
}

// Finalize verifies the transaction token and receipt, consumes the
// receipt exactly once, transitions the order to paid and dispatches the
// redeem to the game. The order id doubles as the correlation GUID. After
// payment is captured the order can no longer be lost: every delivery
// failure leaves it paid with a late-result watcher registered.
func (s *RedeemService) Finalize(ctx context.Context, in FinalizeInput) (FinalizeResult, error) {
	if err := s.checkBan(ctx, in.UserID); err != nil {
		return FinalizeResult{}, err
	}

	claims, err := s.tokens.VerifyToken(in.Token)
	if err != nil {
		return FinalizeResult{}, err
	}
	receipt, err := s.tokens.VerifyReceipt(in.Receipt)
	if err != nil {
		return FinalizeResult{}, err
	}
	if claims.User.ID != in.UserID || receipt.UserID != in.UserID {
		s.notifier.Notify(ctx, notify.SeverityCritical, "Token ownership violation",
			fmt.Sprintf("user %s finalized with token for %s / receipt for %s", in.UserID, claims.User.ID, receipt.UserID))
		return FinalizeResult{}, domain.ErrNotOwner
	}

	order, err := s.orders.GetOrder(ctx, claims.ID)
	if err != nil {
		return FinalizeResult{}, err
	}
	if order.UserID != in.UserID {
		return FinalizeResult{}, domain.ErrNotOwner
	}
	if order.Cart.SKU != receipt.Product.SKU {
		return FinalizeResult{}, domain.ErrSKUMismatch
	}

	outcome, err := s.guard.Consume(ctx, receipt.TransactionID, order.ID, in.SessionID, s.clock.Now())
	if err != nil {
		return FinalizeResult{}, err
	}

	switch {
	case outcome.Accepted:
		if order.State != domain.OrderStatePrepurchase {
			return FinalizeResult{}, domain.ErrInvalidState
		}
		order, err = s.markPaid(ctx, order.ID, in.Receipt)
		if err != nil {
			return FinalizeResult{}, err
		}

	case outcome.SameOrder:
		// The client retrying a finalize that did not complete.
		switch order.State {
		case domain.OrderStatePrepurchase:
			// An earlier attempt consumed the receipt but did not reach
			// the paid transition; pick up where it left off.
			order, err = s.markPaid(ctx, order.ID, in.Receipt)
			if err != nil {
				return FinalizeResult{}, err
			}
		case domain.OrderStatePaid:
			if order.Receipt != in.Receipt {
				return FinalizeResult{}, domain.ErrReceiptUsed
			}
		default:
			// Terminal: the redeem already resolved, hand back the
			// recorded outcome instead of re-applying anything.
			return FinalizeResult{Order: order, Message: order.Result}, nil
		}

	case outcome.HardReplay:
		if banErr := s.bans.Ban(ctx, in.UserID, "receipt replay", s.clock.Now()); banErr != nil {
			s.log.WithError(banErr).Error("ban replaying user")
		}
		return FinalizeResult{}, domain.ErrReceiptUsed

	default:
		return FinalizeResult{}, domain.ErrReceiptUsed
	}

	return s.deliver(ctx, order)
}

// markPaid performs the Prepurchase → Paid transition under the order's row
// lock.
func (s *RedeemService) markPaid(ctx context.Context, orderID, receipt string) (domain.Order, error) {
	var updated domain.Order
	err := s.orders.WithTx(ctx, func(txCtx context.Context) error {
		o, err := s.orders.GetOrderForUpdate(txCtx, orderID)
		if err != nil {
			return err
		}
		if o.State != domain.OrderStatePrepurchase {
			// A concurrent duplicate won the race. Honor it if it used
			// the same receipt.
			if o.State == domain.OrderStatePaid && o.Receipt == receipt {
				updated = o
				return nil
			}
			return domain.ErrInvalidState
		}
		o.State = domain.OrderStatePaid
		o.Receipt = receipt
		o.UpdatedAt = s.clock.Now()
		if err := s.orders.SaveOrder(txCtx, o); err != nil {
			return err
		}
		updated = o
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return updated, nil
}

// deliver dispatches the redeem and awaits the game's result with a bounded
// wait. Runs outside any order lock: the round trip must not block other
// operations on the same keys.
func (s *RedeemService) deliver(ctx context.Context, order domain.Order) (FinalizeResult, error) {
	msg := s.buildRedeemMessage(ctx, order)

	awaitCtx, cancel := context.WithTimeout(ctx, s.awaitTimeout)
	defer cancel()
	res, err := s.game.Redeem(awaitCtx, order.ID, msg)
	if err != nil {
		s.watchLateResult(order.ID)
		s.notifier.Notify(ctx, notify.SeverityCritical, "Redeem delivery failed",
			fmt.Sprintf("order %s stays paid awaiting a late result: %v", order.ID, err))
		if errors.Is(err, gamelink.ErrNotReady) {
			return FinalizeResult{}, ErrGameUnavailable
		}
		return FinalizeResult{}, ErrDeliveryPending
	}

	updated, err := s.applyResult(ctx, order.ID, res)
	if err != nil {
		return FinalizeResult{}, err
	}
	return FinalizeResult{Order: updated, Message: res.Message}, nil
}

func (s *RedeemService) buildRedeemMessage(ctx context.Context, order domain.Order) gamelink.RedeemMessage {
	msg := gamelink.RedeemMessage{
		Command:          order.Cart.RedeemID,
		Announce:         true,
		Args:             order.Cart.Args,
		InvocationSource: gamelink.InvocationSourceBits,
	}
	if redeem, ok := s.cfg.Current().Redeems[order.Cart.RedeemID]; ok {
		msg.Title = redeem.Title
		msg.Announce = redeem.Announce
	}

	// Identity decoration is best effort; the redeem goes out either way.
	profile, found, err := s.resolver.Resolve(ctx, order.UserID)
	if err != nil {
		s.log.WithError(err).WithField("user", order.UserID).Warn("resolve display name")
	}
	if found {
		msg.User = &gamelink.UserInfo{ID: order.UserID, Login: profile.Login, DisplayName: profile.DisplayName}
	} else {
		msg.User = &gamelink.UserInfo{ID: order.UserID}
	}
	return msg
}

// watchLateResult re-registers a one-shot handler so a result arriving
// after a delivery failure (e.g. from a recovered connection) still lands.
func (s *RedeemService) watchLateResult(orderID string) {
	s.game.WatchResult(orderID, func(res gamelink.ResultMessage) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := s.applyResult(ctx, orderID, res); err != nil {
			s.log.WithError(err).WithField("order", orderID).Error("apply late result")
			s.notifier.Notify(ctx, notify.SeverityCritical, "Late result lost",
				fmt.Sprintf("order %s: %v", orderID, err))
		}
	})
}

// applyResult performs the Paid → Succeeded|Failed transition. A result for
// an order already terminal is logged and discarded, never re-applied.
func (s *RedeemService) applyResult(ctx context.Context, orderID string, res gamelink.ResultMessage) (domain.Order, error) {
	var updated domain.Order
	err := s.orders.WithTx(ctx, func(txCtx context.Context) error {
		o, err := s.orders.GetOrderForUpdate(txCtx, orderID)
		if err != nil {
			return err
		}
		if o.State.Terminal() {
			s.log.WithFields(logrus.Fields{"order": orderID, "state": o.State}).
				Info("late result for terminal order discarded")
			updated = o
			return nil
		}
		if o.State != domain.OrderStatePaid {
			return domain.ErrInvalidState
		}
		if res.Success {
			o.State = domain.OrderStateSucceeded
		} else {
			o.State = domain.OrderStateFailed
		}
		o.Result = res.Message
		o.UpdatedAt = s.clock.Now()
		if err := s.orders.SaveOrder(txCtx, o); err != nil {
			return err
		}
		updated = o
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return updated, nil
}

type CancelInput struct {
	UserID  string
	OrderID string
}

// Cancel aborts an order that has not been paid yet. Only the owner may
// cancel, and only while the order is still in prepurchase.
func (s *RedeemService) Cancel(ctx context.Context, in CancelInput) (domain.Order, error) {
	var updated domain.Order
	err := s.orders.WithTx(ctx, func(txCtx context.Context) error {
		o, err := s.orders.GetOrderForUpdate(txCtx, in.OrderID)
		if err != nil {
			return err
		}
		if o.UserID != in.UserID {
			return domain.ErrNotOwner
		}
		if !o.State.CanTransition(domain.OrderStateCancelled) {
			return domain.ErrInvalidState
		}
		o.State = domain.OrderStateCancelled
		o.UpdatedAt = s.clock.Now()
		if err := s.orders.SaveOrder(txCtx, o); err != nil {
			return err
		}
		updated = o
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return updated, nil
}

func (s *RedeemService) checkBan(ctx context.Context, userID string) error {
	banned, err := s.bans.IsBanned(ctx, userID)
	if err != nil {
		return fmt.Errorf("look up ban: %w", err)
	}
	if banned {
		s.notifier.Notify(ctx, notify.SeverityWarning, "Banned user request",
			fmt.Sprintf("user %s attempted a redeem while banned", userID))
		return domain.ErrUserBanned
	}
	return nil
}
