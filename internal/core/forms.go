package core

import (
	"context"
	"fmt"

	"shipflow/internal/fieldpath"
	"shipflow/pkg/domain"
)

// updateSection decodes the value at path into T, applies fn and writes the
// result back as one mutation.
func updateSection[T any](s *Session, path string, fn func(*T)) error {
	return s.Update(path, func(cur any) (any, error) {
		var v T
		if m, ok := cur.(map[string]any); ok {
			if err := fieldpath.Decode(m, &v); err != nil {
				return nil, fmt.Errorf("decode %s: %w", path, err)
			}
		}
		fn(&v)
		return fieldpath.FromValue(v)
	})
}

// updateWhole decodes the record into T, applies fn and replaces the record.
func updateWhole[T any](s *Session, fn func(*T)) error {
	return s.Apply(func(r fieldpath.Record) (fieldpath.Record, error) {
		var v T
		if err := fieldpath.Decode(r, &v); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		fn(&v)
		return fieldpath.FromValue(v)
	})
}

func decodeData[T any](s *Session) (T, error) {
	var v T
	if err := fieldpath.Decode(s.Record(), &v); err != nil {
		return v, fmt.Errorf("decode %s: %w", s.domain.Tag, err)
	}
	return v, nil
}

// ShipmentForm is the typed shipment details session.
type ShipmentForm struct {
	*Session
}

// NewShipmentForm opens a shipment details session.
func NewShipmentForm(ctx context.Context, opts ...Option) (*ShipmentForm, error) {
	s, err := NewSession(ctx, ShipmentDomain(), opts...)
	if err != nil {
		return nil, err
	}
	return &ShipmentForm{Session: s}, nil
}

// Data returns the current shipment details with invariants applied.
func (f *ShipmentForm) Data() (domain.ShipmentDetails, error) {
	d, err := decodeData[domain.ShipmentDetails](f.Session)
	if err != nil {
		return d, err
	}
	d.Normalize()
	return d, nil
}

func (f *ShipmentForm) UpdateOrigin(fn func(*domain.Address)) error {
	return updateSection(f.Session, "origin", fn)
}

func (f *ShipmentForm) UpdateDestination(fn func(*domain.Address)) error {
	return updateSection(f.Session, "destination", fn)
}

func (f *ShipmentForm) UpdatePackage(fn func(*domain.PackageInfo)) error {
	return updateSection(f.Session, "package", fn)
}

func (f *ShipmentForm) UpdateDeliveryPreferences(fn func(*domain.DeliveryPreferences)) error {
	return updateSection(f.Session, "deliveryPreferences", fn)
}

func (f *ShipmentForm) UpdatePickupDetails(fn func(*domain.PickupDetails)) error {
	return updateSection(f.Session, "pickupDetails", fn)
}

// PickupForm is the typed pickup details session.
type PickupForm struct {
	*Session
}

// NewPickupForm opens a pickup details session.
func NewPickupForm(ctx context.Context, opts ...Option) (*PickupForm, error) {
	s, err := NewSession(ctx, PickupDomain(), opts...)
	if err != nil {
		return nil, err
	}
	return &PickupForm{Session: s}, nil
}

// Data returns the current pickup details.
func (f *PickupForm) Data() (domain.PickupDetails, error) {
	return decodeData[domain.PickupDetails](f.Session)
}

// UpdateSchedule sets the pickup date, window and ready time together.
func (f *PickupForm) UpdateSchedule(date string, slot domain.TimeSlot, readyTime string) error {
	return updateWhole(f.Session, func(p *domain.PickupDetails) {
		p.Date = date
		p.TimeSlot = slot
		p.ReadyTime = readyTime
	})
}

// UpdateContact replaces both pickup contacts.
func (f *PickupForm) UpdateContact(primary, backup domain.ContactInfo) error {
	return updateWhole(f.Session, func(p *domain.PickupDetails) {
		p.PrimaryContact = primary
		p.BackupContact = backup
	})
}

// UpdateRequirements edits access, equipment and personnel requirements.
func (f *PickupForm) UpdateRequirements(fn func(*domain.PickupDetails)) error {
	return updateWhole(f.Session, fn)
}

// BillingForm is the typed billing info session.
type BillingForm struct {
	*Session
}

// NewBillingForm opens a billing info session.
func NewBillingForm(ctx context.Context, opts ...Option) (*BillingForm, error) {
	s, err := NewSession(ctx, BillingDomain(), opts...)
	if err != nil {
		return nil, err
	}
	return &BillingForm{Session: s}, nil
}

// Data returns the current billing info.
func (f *BillingForm) Data() (domain.BillingInfo, error) {
	return decodeData[domain.BillingInfo](f.Session)
}

func (f *BillingForm) UpdatePaymentMethod(fn func(*domain.PaymentMethod)) error {
	return updateSection(f.Session, "paymentMethod", fn)
}

func (f *BillingForm) UpdateBillingAddress(fn func(*domain.Address)) error {
	return updateSection(f.Session, "billingAddress", fn)
}

func (f *BillingForm) UpdateInvoicePreferences(fn func(*domain.InvoicePreferences)) error {
	return updateSection(f.Session, "invoicePreferences", fn)
}

func (f *BillingForm) UpdateCompanyInfo(fn func(*domain.CompanyInfo)) error {
	return updateSection(f.Session, "companyInfo", fn)
}
