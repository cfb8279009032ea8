// Package checkout turns a cart into stock decrements plus an invoice, all or nothing.
//
// A checkout validates every line against a fresh ledger read, then applies the decrements.
// When the ledger offers a multi-row transaction it is used; otherwise lines are decremented
// one by one in ascending medicine id and, on the first failure, every line already applied is
// incremented back before the failure is returned. The ledger after a failed checkout equals
// the ledger before it, and the cart is left untouched.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"medeasy/pos/domain"
	"medeasy/pos/internal/cart"
	"medeasy/pos/internal/invoices"
	"medeasy/pos/internal/ledger"
)

const DefaultApplyTimeout = 5 * time.Second

type State int

const (
	Idle State = iota
	Validating
	Applying
	Committed
	Rejected
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Validating:
		return "validating"
	case Applying:
		return "applying"
	case Committed:
		return "committed"
	case Rejected:
		return "rejected"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Customer is optional free text printed on the invoice.
type Customer struct {
	Name  string
	Phone string
}

// CompensationError means a failed checkout could not restore every decrement it had applied.
// Stranded lists the decrements still missing from the ledger.
type CompensationError struct {
	Cause    error
	Stranded []ledger.Decrement
	Errs     []error
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("checkout failed (%v) and %d line(s) could not be restored: %v", e.Cause, len(e.Stranded), errors.Join(e.Errs...))
}

func (e *CompensationError) Unwrap() []error {
	return append([]error{e.Cause}, e.Errs...)
}

type Option func(*Coordinator)

// WithSink persists every committed invoice. Without one invoices are only returned.
func WithSink(sink invoices.Sink) Option {
	return func(c *Coordinator) { c.sink = sink }
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(c *Coordinator) { c.newID = newID }
}

// WithApplyTimeout bounds each storage call of the apply and compensation phases.
func WithApplyTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.applyTimeout = d
		}
	}
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Coordinator) { c.log = log }
}

// WithTransitionHook is called on every state change of every attempt.
func WithTransitionHook(fn func(attempt string, from, to State)) Option {
	return func(c *Coordinator) { c.onTransition = fn }
}

// WithoutBatch forces the ordered apply-and-compensate path even when the ledger supports
// multi-row transactions.
func WithoutBatch() Option {
	return func(c *Coordinator) { c.noBatch = true }
}

type Coordinator struct {
	ledger       ledger.Ledger
	sink         invoices.Sink
	now          func() time.Time
	newID        func() string
	applyTimeout time.Duration
	log          logrus.FieldLogger
	onTransition func(attempt string, from, to State)
	noBatch      bool
}

func New(l ledger.Ledger, opts ...Option) *Coordinator {
	c := &Coordinator{
		ledger:       l,
		now:          time.Now,
		newID:        uuid.NewString,
		applyTimeout: DefaultApplyTimeout,
		log:          logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type attempt struct {
	c     *Coordinator
	id    string
	state State
	log   logrus.FieldLogger
}

func (a *attempt) moveTo(next State) {
	prev := a.state
	a.state = next
	a.log.WithFields(logrus.Fields{"from": prev.String(), "to": next.String()}).Debug("checkout transition")
	if a.c.onTransition != nil {
		a.c.onTransition(a.id, prev, next)
	}
}

func (a *attempt) reject(err error) error {
	a.moveTo(Rejected)
	a.log.WithError(err).Info("checkout rejected")
	return err
}

// Checkout applies the cart to the ledger and returns the committed invoice. On any error the
// cart is unchanged and the ledger is as it was; the caller decides whether to retry with a
// fresh checkout.
func (c *Coordinator) Checkout(ctx context.Context, ct *cart.Cart, customer Customer) (*domain.Invoice, error) {
	a := &attempt{c: c, id: uuid.NewString(), state: Idle}
	a.log = c.log.WithField("attempt", a.id)

	if ct == nil || ct.IsEmpty() {
		return nil, a.reject(domain.ErrEmptyCart)
	}
	lines := ct.Lines()

	a.moveTo(Validating)
	if err := c.validate(ctx, lines); err != nil {
		return nil, a.reject(err)
	}

	a.moveTo(Applying)
	decrements := make([]ledger.Decrement, len(lines))
	for i, l := range lines {
		decrements[i] = ledger.Decrement{MedicineID: l.MedicineID, Amount: l.Quantity}
	}
	if err := c.apply(ctx, a, decrements); err != nil {
		return nil, a.reject(err)
	}

	inv := domain.NewInvoice(c.newID(), lines, c.now().UTC(), optional(customer.Name), optional(customer.Phone))
	if c.sink != nil {
		if err := c.sink.Save(ctx, inv); err != nil {
			err = fmt.Errorf("persist invoice: %w", err)
			if cerr := c.compensate(ctx, a, decrements, err); cerr != nil {
				return nil, a.reject(cerr)
			}
			return nil, a.reject(err)
		}
	}

	ct.Clear()
	a.moveTo(Committed)
	a.log.WithFields(logrus.Fields{
		"invoice": inv.ID,
		"lines":   len(inv.Lines),
		"total":   inv.TotalAmount.StringFixed(2),
	}).Info("checkout committed")
	return inv, nil
}

// validate re-reads every line; the snapshot the line was added against may be stale.
func (c *Coordinator) validate(ctx context.Context, lines []domain.CartLine) error {
	for _, l := range lines {
		if l.Quantity <= 0 {
			return domain.ErrInvalidQuantity
		}
		med, err := c.ledger.Get(ctx, l.MedicineID)
		if err != nil {
			return err
		}
		if l.Quantity > med.QuantityOnHand {
			return &domain.InsufficientStockError{MedicineID: l.MedicineID, Available: med.QuantityOnHand, Requested: l.Quantity}
		}
	}
	return nil
}

func (c *Coordinator) apply(ctx context.Context, a *attempt, decrements []ledger.Decrement) error {
	if batch, ok := c.ledger.(ledger.BatchDecrementer); ok && !c.noBatch {
		stepCtx, cancel := context.WithTimeout(ctx, c.applyTimeout)
		defer cancel()
		return asApplyFailure(batch.DecrementAll(stepCtx, decrements))
	}

	ordered := ledger.SortDecrements(decrements)
	for i, d := range ordered {
		stepCtx, cancel := context.WithTimeout(ctx, c.applyTimeout)
		err := c.ledger.ConditionalDecrement(stepCtx, d.MedicineID, d.Amount)
		cancel()
		if err == nil {
			continue
		}
		err = asApplyFailure(err)
		a.log.WithError(err).WithField("medicine", d.MedicineID).Warn("decrement failed, compensating")
		if cerr := c.compensate(ctx, a, ordered[:i], err); cerr != nil {
			return cerr
		}
		return err
	}
	return nil
}

// compensate increments back every applied decrement, newest first, ignoring cancellation of
// the caller's context.
func (c *Coordinator) compensate(ctx context.Context, a *attempt, applied []ledger.Decrement, cause error) error {
	base := context.WithoutCancel(ctx)
	var cerr *CompensationError
	for i := len(applied) - 1; i >= 0; i-- {
		d := applied[i]
		stepCtx, cancel := context.WithTimeout(base, c.applyTimeout)
		err := c.ledger.Increment(stepCtx, d.MedicineID, d.Amount)
		cancel()
		if err == nil {
			continue
		}
		if cerr == nil {
			cerr = &CompensationError{Cause: cause}
		}
		cerr.Stranded = append(cerr.Stranded, d)
		cerr.Errs = append(cerr.Errs, err)
		a.log.WithError(err).WithFields(logrus.Fields{"medicine": d.MedicineID, "amount": d.Amount}).Error("compensation failed")
	}
	if cerr != nil {
		return cerr
	}
	return nil
}

// asApplyFailure marks a shortfall seen at apply time: validation had passed, so another
// checkout got there first.
func asApplyFailure(err error) error {
	if err == nil {
		return nil
	}
	var short *domain.InsufficientStockError
	if errors.As(err, &short) {
		raced := *short
		raced.DuringApply = true
		return &raced
	}
	if errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrApplyFailed, err)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
