// Package checkout sequences the checkout steps over the three form sessions
// and keeps the assembled ShippingTransaction in the shared slot store.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"shipflow/internal/core"
	"shipflow/internal/fieldpath"
	"shipflow/internal/kv"
	"shipflow/pkg/domain"
)

// Step is one page of the checkout.
type Step string

const (
	StepShipment     Step = "shipment"
	StepPricing      Step = "pricing"
	StepPayment      Step = "payment"
	StepPickup       Step = "pickup"
	StepReview       Step = "review"
	StepConfirmation Step = "confirmation"
)

// Steps lists the checkout in order.
var Steps = []Step{StepShipment, StepPricing, StepPayment, StepPickup, StepReview, StepConfirmation}

var stepStatus = map[Step]domain.TransactionStatus{
	StepShipment:     domain.TransactionDraft,
	StepPricing:      domain.TransactionPricing,
	StepPayment:      domain.TransactionPayment,
	StepPickup:       domain.TransactionPickup,
	StepReview:       domain.TransactionReview,
	StepConfirmation: domain.TransactionSubmitted,
}

var (
	// ErrStepIncomplete is returned when the current step's gate is closed.
	ErrStepIncomplete = errors.New("checkout: step incomplete")
	// ErrNotInReview is returned by Submit outside the review step.
	ErrNotInReview = errors.New("checkout: submit is only allowed from review")
	// ErrSubmitted is returned when editing a submitted transaction.
	ErrSubmitted = errors.New("checkout: transaction already submitted")
)

// Gate reports whether a form may be left.
type Gate interface {
	CanNavigateNext() bool
}

// Forms are the sessions the flow reads from.
type Forms struct {
	Shipment *core.ShipmentForm
	Pickup   *core.PickupForm
	Billing  *core.BillingForm
}

// Submitter accepts an assembled transaction.
type Submitter interface {
	SubmitShipment(ctx context.Context, tx domain.ShippingTransaction) (domain.SubmissionReceipt, error)
}

// SubmitterFunc adapts a function to Submitter.
type SubmitterFunc func(ctx context.Context, tx domain.ShippingTransaction) (domain.SubmissionReceipt, error)

// SubmitShipment implements Submitter.
func (f SubmitterFunc) SubmitShipment(ctx context.Context, tx domain.ShippingTransaction) (domain.SubmissionReceipt, error) {
	return f(ctx, tx)
}

// Option configures a Flow.
type Option func(*Flow)

// WithClock sets the clock stamping transactions.
func WithClock(c core.Clock) Option {
	return func(f *Flow) {
		if c != nil {
			f.clock = c
		}
	}
}

// WithLogger sets the flow logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Flow) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithIDGenerator replaces the transaction id source.
func WithIDGenerator(fn func() string) Option {
	return func(f *Flow) {
		if fn != nil {
			f.newID = fn
		}
	}
}

// Flow is the checkout step machine.
type Flow struct {
	forms   Forms
	adapter *core.Adapter
	clock   core.Clock
	logger  *slog.Logger
	newID   func() string

	mu   sync.Mutex
	step Step
	tx   domain.ShippingTransaction
}

// NewFlow restores a stored transaction from store or starts a new one.
// Forms.Shipment is required; pickup and billing may be nil until needed.
func NewFlow(ctx context.Context, forms Forms, store kv.Store, opts ...Option) (*Flow, error) {
	if forms.Shipment == nil {
		return nil, errors.New("checkout: shipment form required")
	}
	if store == nil {
		return nil, errors.New("checkout: store required")
	}
	f := &Flow{
		forms:  forms,
		clock:  core.SystemClock(),
		logger: slog.New(slog.DiscardHandler),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.adapter = core.NewAdapter(store, forms.Shipment.InstanceID(), f.clock, f.logger)
	f.step = StepShipment
	if rec, ok := f.adapter.LoadSnapshot(ctx, domain.KeyShippingTransaction); ok {
		var tx domain.ShippingTransaction
		if err := fieldpath.Decode(rec, &tx); err != nil {
			f.logger.Warn("discarding stored transaction", "err", err)
		} else {
			f.tx = tx
			f.step = stepFor(tx.Status)
		}
	}
	if f.tx.ID == "" {
		f.tx = domain.ShippingTransaction{ID: f.newID(), Timestamp: f.clock.Now(), Status: domain.TransactionDraft}
	}
	return f, nil
}

func stepFor(status domain.TransactionStatus) Step {
	for step, s := range stepStatus {
		if s == status {
			return step
		}
	}
	return StepShipment
}

// Current returns the active step.
func (f *Flow) Current() Step {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.step
}

// Transaction returns a copy of the transaction as last assembled.
func (f *Flow) Transaction() domain.ShippingTransaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tx
}

// CanAdvance reports whether the active step's gate is open.
func (f *Flow) CanAdvance() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.canAdvanceLocked()
}

func (f *Flow) canAdvanceLocked() bool {
	switch f.step {
	case StepShipment:
		return gateOpen(f.forms.Shipment)
	case StepPricing:
		return f.tx.SelectedOption != nil
	case StepPayment:
		return f.forms.Billing != nil && gateOpen(f.forms.Billing)
	case StepPickup:
		return f.forms.Pickup != nil && gateOpen(f.forms.Pickup)
	}
	// review is left through Submit, confirmation is terminal
	return false
}

func gateOpen(g Gate) bool { return g != nil && g.CanNavigateNext() }

// Next persists the assembled transaction and moves to the following step.
func (f *Flow) Next(ctx context.Context) (Step, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.step == StepConfirmation {
		return f.step, ErrSubmitted
	}
	if !f.canAdvanceLocked() {
		return f.step, fmt.Errorf("%w: %s", ErrStepIncomplete, f.step)
	}
	next := Steps[indexOf(f.step)+1]
	if err := f.assembleLocked(next); err != nil {
		return f.step, err
	}
	if err := f.persistLocked(ctx); err != nil {
		return f.step, err
	}
	f.step = next
	f.logger.Info("checkout step advanced", "transaction", f.tx.ID, "step", string(next))
	return next, nil
}

// Back returns to the previous step. It never leaves confirmation.
func (f *Flow) Back() Step {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i := indexOf(f.step); i > 0 && f.step != StepConfirmation {
		f.step = Steps[i-1]
	}
	return f.step
}

func indexOf(s Step) int {
	for i, step := range Steps {
		if step == s {
			return i
		}
	}
	return 0
}

// SelectQuote records the chosen pricing option and persists it.
func (f *Flow) SelectQuote(ctx context.Context, opt domain.PricingOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.step == StepConfirmation {
		return ErrSubmitted
	}
	f.tx.SelectedOption = &opt
	return f.persistLocked(ctx)
}

// Submit hands the reviewed transaction to s and records the receipt.
func (f *Flow) Submit(ctx context.Context, s Submitter) (domain.SubmissionReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.step != StepReview {
		return domain.SubmissionReceipt{}, ErrNotInReview
	}
	if err := f.assembleLocked(StepReview); err != nil {
		return domain.SubmissionReceipt{}, err
	}
	receipt, err := s.SubmitShipment(ctx, f.tx)
	if err != nil {
		return domain.SubmissionReceipt{}, fmt.Errorf("submit shipment: %w", err)
	}
	f.tx.Status = domain.TransactionSubmitted
	f.tx.ConfirmationNumber = receipt.ConfirmationNumber
	f.tx.TrackingNumber = receipt.TrackingNumber
	if err := f.persistLocked(ctx); err != nil {
		return receipt, err
	}
	f.step = StepConfirmation
	f.logger.Info("shipment submitted", "transaction", f.tx.ID, "confirmation", receipt.ConfirmationNumber)
	return receipt, nil
}

// Reset discards the transaction and resets every form.
func (f *Flow) Reset(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions() {
		s.Reset(ctx)
	}
	f.step = StepShipment
	f.tx = domain.ShippingTransaction{ID: f.newID(), Timestamp: f.clock.Now(), Status: domain.TransactionDraft}
	if err := f.adapter.RemoveSnapshot(ctx, domain.KeyShippingTransaction); err != nil {
		return fmt.Errorf("reset checkout: %w", err)
	}
	return nil
}

func (f *Flow) sessions() []*core.Session {
	out := []*core.Session{f.forms.Shipment.Session}
	if f.forms.Pickup != nil {
		out = append(out, f.forms.Pickup.Session)
	}
	if f.forms.Billing != nil {
		out = append(out, f.forms.Billing.Session)
	}
	return out
}

// assembleLocked copies the form data reached so far into the transaction.
func (f *Flow) assembleLocked(target Step) error {
	ship, err := f.forms.Shipment.Data()
	if err != nil {
		return fmt.Errorf("assemble shipment: %w", err)
	}
	f.tx.ShipmentDetails = ship
	reached := indexOf(target)
	if reached > indexOf(StepPayment) && f.forms.Billing != nil {
		billing, err := f.forms.Billing.Data()
		if err != nil {
			return fmt.Errorf("assemble billing: %w", err)
		}
		f.tx.PaymentInfo = &billing
	}
	if reached > indexOf(StepPickup) && f.forms.Pickup != nil {
		pickup, err := f.forms.Pickup.Data()
		if err != nil {
			return fmt.Errorf("assemble pickup: %w", err)
		}
		f.tx.PickupDetails = &pickup
	}
	f.tx.Status = stepStatus[target]
	f.tx.Timestamp = f.clock.Now()
	return nil
}

func (f *Flow) persistLocked(ctx context.Context) error {
	if _, err := f.adapter.SaveSnapshot(ctx, domain.KeyShippingTransaction, f.tx); err != nil {
		return fmt.Errorf("persist transaction: %w", err)
	}
	return nil
}
