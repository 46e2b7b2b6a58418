// Package checkoutapi is the mock checkout backend: quotes, pickup
// availability, submission and validation tasks behind a JSON envelope.
package checkoutapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"shipflow/internal/core"
	"shipflow/internal/demo"
	"shipflow/internal/fieldpath"
	"shipflow/internal/validation"
	"shipflow/pkg/domain"
)

// declinedPaymentNumber is the test number the backend always declines.
const declinedPaymentNumber = "4000000000000002"

const (
	defaultAvailabilityDays = 5
	maxAvailabilityDays     = 14
)

// Option configures a Service.
type Option func(*Service)

// WithClock sets the service clock.
func WithClock(c core.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithIDGenerator replaces the id source for receipts and request ids.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// Service implements the backend operations. It is stateless apart from its
// clock and id source.
type Service struct {
	clock  core.Clock
	newID  func() string
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(opts ...Option) *Service {
	s := &Service{clock: core.SystemClock(), newID: uuid.NewString, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FormConfig lists the enumerations the checkout forms offer.
type FormConfig struct {
	PackageTypes       []domain.PackageType       `json:"packageTypes"`
	ContentsCategories []domain.ContentsCategory  `json:"contentsCategories"`
	SpecialHandling    []string                   `json:"specialHandling"`
	PaymentMethods     []domain.PaymentMethodType `json:"paymentMethods"`
	ServiceLevels      []string                   `json:"serviceLevels"`
	TimeSlots          []domain.TimeSlot          `json:"timeSlots"`
}

// FormConfig returns the form enumerations.
func (s *Service) FormConfig() FormConfig {
	return FormConfig{
		PackageTypes:       domain.PackageTypes,
		ContentsCategories: domain.ContentsCategories,
		SpecialHandling:    domain.SpecialHandlingTags,
		PaymentMethods:     domain.PaymentMethodTypes,
		ServiceLevels:      ServiceLevels(),
		TimeSlots:          standardSlots(),
	}
}

// Quote validates the shipment record and prices it.
func (s *Service) Quote(record fieldpath.Record) ([]domain.PricingOption, error) {
	res := validation.ShipmentRules.ValidateAll(record)
	if !res.IsValid {
		return nil, validationError("shipment details are incomplete", res.Errors)
	}
	var details domain.ShipmentDetails
	if err := fieldpath.Decode(record, &details); err != nil {
		return nil, schemaError(err.Error())
	}
	details.Normalize()
	return Quote(details), nil
}

// AvailabilityDay is one pickup date with its windows.
type AvailabilityDay struct {
	Date  string            `json:"date"`
	Slots []domain.TimeSlot `json:"slots"`
}

func standardSlots() []domain.TimeSlot {
	return []domain.TimeSlot{
		{ID: "morning", Display: "8:00 AM - 12:00 PM", StartTime: "08:00", EndTime: "12:00", Available: true},
		{ID: "afternoon", Display: "12:00 PM - 5:00 PM", StartTime: "12:00", EndTime: "17:00", Available: true},
		{ID: "evening", Display: "5:00 PM - 7:00 PM", StartTime: "17:00", EndTime: "19:00", Available: true},
	}
}

// PickupAvailability lists the next business days after today with their
// time slots. Friday evenings are never offered.
func (s *Service) PickupAvailability(zip string, days int) ([]AvailabilityDay, error) {
	if strings.TrimSpace(zip) == "" {
		return nil, validationError("pickup ZIP code is required", map[string]string{"zip": "ZIP code is required"})
	}
	if res := validation.ShipmentRules.ValidateField(fieldpath.MustParse("origin.zip"), zip, fieldpath.Record{}); res.Errors["origin.zip"] != "" {
		return nil, validationError("pickup ZIP code is invalid", map[string]string{"zip": res.Errors["origin.zip"]})
	}
	if days <= 0 {
		days = defaultAvailabilityDays
	}
	if days > maxAvailabilityDays {
		days = maxAvailabilityDays
	}
	out := make([]AvailabilityDay, 0, days)
	day := s.clock.Now()
	for len(out) < days {
		day = day.AddDate(0, 0, 1)
		if isWeekend(day) {
			continue
		}
		slots := standardSlots()
		if day.Weekday() == time.Friday {
			slots[2].Available = false
		}
		out = append(out, AvailabilityDay{Date: day.Format(time.DateOnly), Slots: slots})
	}
	return out, nil
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func addBusinessDays(t time.Time, n int) time.Time {
	for n > 0 {
		t = t.AddDate(0, 0, 1)
		if !isWeekend(t) {
			n--
		}
	}
	return t
}

// SubmitShipment validates and accepts a transaction. It satisfies the
// checkout flow's Submitter.
func (s *Service) SubmitShipment(ctx context.Context, tx domain.ShippingTransaction) (domain.SubmissionReceipt, error) {
	if err := ctx.Err(); err != nil {
		return domain.SubmissionReceipt{}, err
	}
	record, err := fieldpath.FromValue(tx.ShipmentDetails)
	if err != nil {
		return domain.SubmissionReceipt{}, schemaError(err.Error())
	}
	if res := validation.ShipmentRules.ValidateAll(record); !res.IsValid {
		return domain.SubmissionReceipt{}, validationError("shipment details are incomplete", res.Errors)
	}
	if tx.SelectedOption == nil {
		return domain.SubmissionReceipt{}, validationError("a pricing option must be selected", map[string]string{"selectedOption": "Select a pricing option"})
	}
	if tx.PaymentInfo == nil || tx.PaymentInfo.PaymentMethod.Type == "" {
		return domain.SubmissionReceipt{}, validationError("payment information is required", map[string]string{"paymentInfo.paymentMethod.type": "Payment method is required"})
	}
	pm := tx.PaymentInfo.PaymentMethod
	if pm.AccountNumber == declinedPaymentNumber || pm.PurchaseOrder.Number == declinedPaymentNumber {
		return domain.SubmissionReceipt{}, &APIError{Status: http.StatusPaymentRequired, Code: CodePaymentDeclined, Message: "the payment method was declined"}
	}
	total := s.quotedTotal(tx)
	if pm.Type == domain.PaymentPurchaseOrder && pm.PurchaseOrder.Amount < total {
		return domain.SubmissionReceipt{}, &APIError{
			Status:  http.StatusUnprocessableEntity,
			Code:    CodeBusinessRule,
			Message: "purchase order amount does not cover the shipment total",
			Details: map[string]any{"poAmount": pm.PurchaseOrder.Amount, "total": total},
		}
	}

	now := s.clock.Now()
	ref := strings.ToUpper(strings.ReplaceAll(s.newID(), "-", ""))
	receipt := domain.SubmissionReceipt{
		TransactionID:      tx.ID,
		ConfirmationNumber: "SF-" + prefix(ref, 10),
		TrackingNumber:     "1Z" + prefix(ref, 16),
		EstimatedDelivery:  addBusinessDays(now, tx.SelectedOption.TransitDays).Format(time.DateOnly),
		SubmittedAt:        now,
	}
	s.logger.Info("shipment accepted", "transaction", tx.ID, "confirmation", receipt.ConfirmationNumber, "total", total)
	return receipt, nil
}

// quotedTotal re-prices the selected option; an option that no longer
// matches a quote keeps its submitted total.
func (s *Service) quotedTotal(tx domain.ShippingTransaction) float64 {
	details := tx.ShipmentDetails
	details.Normalize()
	for _, opt := range Quote(details) {
		if opt.ID == tx.SelectedOption.ID {
			return opt.Total
		}
	}
	return tx.SelectedOption.Total
}

func prefix(s string, n int) string {
	if len(s) < n {
		return s
	}
	return s[:n]
}

// ValidateTask runs the validator registered for tag over record.
func (s *Service) ValidateTask(tag string, record fieldpath.Record) (validation.Result, error) {
	v, ok := validation.For(tag)
	if !ok {
		return validation.Result{}, schemaError(fmt.Sprintf("unknown form domain %q", tag))
	}
	if record == nil {
		return validation.Result{}, schemaError("data must be a JSON object")
	}
	return v.ValidateAll(record), nil
}

// ExecuteTask returns the named demo scenario.
func (s *Service) ExecuteTask(name string) (demo.Scenario, error) {
	sc, ok := demo.Lookup(name)
	if !ok {
		return demo.Scenario{}, &APIError{Status: http.StatusNotFound, Code: CodeNotFound, Message: fmt.Sprintf("unknown scenario %q", name)}
	}
	return sc, nil
}
