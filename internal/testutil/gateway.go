package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/golf-outing/backend/internal/payments"
	"github.com/golf-outing/backend/pkg/apperr"
)

// FakeGateway records checkout sessions instead of calling Stripe.
type FakeGateway struct {
	mu       sync.Mutex
	Sessions []payments.SessionParams
	Err      error
	opened   map[string]*payments.CheckoutSession
}

// CreateSession records p and returns a session with a predictable URL.
func (g *FakeGateway) CreateSession(_ context.Context, p payments.SessionParams) (*payments.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Err != nil {
		return nil, g.Err
	}
	g.Sessions = append(g.Sessions, p)
	id := fmt.Sprintf("cs_test_%d", len(g.Sessions))
	s := &payments.CheckoutSession{
		ID:            id,
		URL:           "https://checkout.test/" + id,
		PaymentStatus: "unpaid",
		AmountTotal:   p.AmountCents,
		Currency:      "usd",
		Metadata:      p.Metadata,
	}
	if g.opened == nil {
		g.opened = make(map[string]*payments.CheckoutSession)
	}
	g.opened[id] = s
	cp := *s
	return &cp, nil
}

// GetSession returns a session opened by CreateSession.
func (g *FakeGateway) GetSession(_ context.Context, id string) (*payments.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.opened[id]
	if !ok {
		return nil, apperr.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

// MarkPaid settles an opened session.
func (g *FakeGateway) MarkPaid(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if s, ok := g.opened[id]; ok {
		s.PaymentStatus = payments.PaymentStatusPaid
	}
}

// Last returns the most recent session request.
func (g *FakeGateway) Last() payments.SessionParams {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.Sessions) == 0 {
		return payments.SessionParams{}
	}
	return g.Sessions[len(g.Sessions)-1]
}
