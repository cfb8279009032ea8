package api

import (
	"sync"

	"medeasy/pos/internal/cart"
)

// Sessions keeps one cart per signed-in user for the life of the process. Carts are never
// persisted.
type Sessions struct {
	mu    sync.Mutex
	carts map[int64]*session
}

type session struct {
	mu   sync.Mutex
	cart *cart.Cart
}

func NewSessions() *Sessions {
	return &Sessions{carts: make(map[int64]*session)}
}

// With runs fn on the user's cart. Calls for the same user are serialized, so the cart itself
// needs no locking.
func (s *Sessions) With(userID int64, fn func(*cart.Cart) error) error {
	s.mu.Lock()
	sess, ok := s.carts[userID]
	if !ok {
		sess = &session{cart: cart.New()}
		s.carts[userID] = sess
	}
	s.mu.Unlock()

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return fn(sess.cart)
}

// Drop forgets the user's cart.
func (s *Sessions) Drop(userID int64) {
	s.mu.Lock()
	delete(s.carts, userID)
	s.mu.Unlock()
}
