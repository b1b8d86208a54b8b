package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	cache "github.com/Code-Hex/go-generics-cache"
	"github.com/golang-jwt/jwt/v5"

	"github.com/VedalAI/swarm-control-sub000/internal/clock"
	"github.com/VedalAI/swarm-control-sub000/internal/domain"
)

const (
	transactionTokenTTL = 30 * time.Second
	// Receipts stay acceptable for a short tolerance past their stated
	// expiry, to absorb clock skew against the payment authority.
	receiptExpiryTolerance = 5 * time.Minute

	verifyCacheTTL = time.Hour
)

type Product struct {
	SKU  string `json:"sku"`
	Cost int    `json:"cost"`
}

type User struct {
	ID string `json:"id"`
}

// TransactionClaims is the payload of a transaction token. The registered
// ID claim equals the order id.
type TransactionClaims struct {
	User    User    `json:"user"`
	Product Product `json:"product"`
	jwt.RegisteredClaims
}

// ReceiptClaims is the payload of an external receipt issued by the payment
// authority. TransactionID is globally unique per payment.
type ReceiptClaims struct {
	TransactionID string  `json:"transactionId"`
	UserID        string  `json:"userId"`
	Product       Product `json:"product"`
	jwt.RegisteredClaims
}

// Service issues transaction tokens and verifies inbound tokens and
// receipts. Tokens and receipts are signed with separate secrets.
type Service struct {
	tokenSecret   []byte
	receiptSecret []byte
	clock         clock.Clock

	// Positive-only cache keyed by the exact signed string. Safe because
	// signature verification is deterministic.
	tokenCache *cache.Cache[string, *TransactionClaims]
}

func NewService(tokenSecret, receiptSecret []byte, clk clock.Clock) *Service {
	return &Service{
		tokenSecret:   tokenSecret,
		receiptSecret: receiptSecret,
		clock:         clk,
		tokenCache:    cache.New[string, *TransactionClaims](),
	}
}

// CostFromSKU derives the redeem's cost from the decimal suffix of the SKU
// string, e.g. "bits100" costs 100.
func CostFromSKU(sku string) (int, error) {
	i := len(sku)
	for i > 0 && sku[i-1] >= '0' && sku[i-1] <= '9' {
		i--
	}
	cost, err := strconv.Atoi(sku[i:])
	if err != nil || cost <= 0 {
		return 0, domain.ErrInvalidSKU
	}
	return cost, nil
}

// Issue signs a transaction token binding the order to the requesting user
// and the price encoded in the cart SKU.
func (s *Service) Issue(order domain.Order, userID string) (string, error) {
	cost, err := CostFromSKU(order.Cart.SKU)
	if err != nil {
		return "", err
	}

	now := s.clock.Now()
	claims := TransactionClaims{
		User:    User{ID: userID},
		Product: Product{SKU: order.Cart.SKU, Cost: cost},
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        order.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(transactionTokenTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.tokenSecret)
	if err != nil {
		return "", fmt.Errorf("sign transaction token: %w", err)
	}
	return signed, nil
}

// VerifyToken checks signature and structural shape of a transaction token.
// Expiry is deliberately not enforced here: payment already happened
// externally by the time the token comes back, so an expired but validly
// signed token must still be honored. Expiry protection comes from the
// receipt's own window.
func (s *Service) VerifyToken(signed string) (*TransactionClaims, error) {
	if claims, ok := s.tokenCache.Get(signed); ok {
		return claims, nil
	}

	claims := &TransactionClaims{}
	_, err := jwt.ParseWithClaims(signed, claims, s.keyfunc(s.tokenSecret),
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}
	if claims.ID == "" || claims.User.ID == "" || claims.Product.SKU == "" || claims.Product.Cost <= 0 {
		return nil, domain.ErrInvalidToken
	}

	s.tokenCache.Set(signed, claims, cache.WithExpiration(verifyCacheTTL))
	return claims, nil
}

// VerifyReceipt checks signature, shape and expiry of an external receipt.
func (s *Service) VerifyReceipt(signed string) (*ReceiptClaims, error) {
	claims := &ReceiptClaims{}
	_, err := jwt.ParseWithClaims(signed, claims, s.keyfunc(s.receiptSecret),
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, domain.ErrInvalidReceipt
	}
	if claims.TransactionID == "" || claims.UserID == "" || claims.Product.SKU == "" || claims.Product.Cost <= 0 {
		return nil, domain.ErrInvalidReceipt
	}
	if claims.ExpiresAt == nil {
		return nil, domain.ErrInvalidReceipt
	}
	if s.clock.Now().After(claims.ExpiresAt.Time.Add(receiptExpiryTolerance)) {
		return nil, domain.ErrReceiptExpired
	}
	return claims, nil
}

func (s *Service) keyfunc(secret []byte) jwt.Keyfunc {
	return func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	}
}
