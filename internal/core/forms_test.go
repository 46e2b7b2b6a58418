package core_test

import (
	"context"
	"testing"
	"time"

	"shipflow/internal/core"
	"shipflow/internal/validation"
	"shipflow/pkg/domain"
	"shipflow/testutil"
)

func TestShipmentForm_TypedUpdates(t *testing.T) {
	f := newShipmentForm(t, newRecordingStore(), testutil.NewManualClock(t0), "tab-a")
	if err := f.UpdatePackage(func(p *domain.PackageInfo) {
		p.Weight.Value = 40
		p.SpecialHandling = nil
		p.ContentsCategory = ""
	}); err != nil {
		t.Fatalf("update package: %v", err)
	}
	if err := f.UpdateDeliveryPreferences(func(d *domain.DeliveryPreferences) { d.SignatureRequired = true }); err != nil {
		t.Fatalf("update prefs: %v", err)
	}
	if err := f.UpdateDestination(func(a *domain.Address) { a.IsResidential = true }); err != nil {
		t.Fatalf("update destination: %v", err)
	}
	if err := f.UpdatePickupDetails(func(p *domain.PickupDetails) { p.Date = "2026-03-12" }); err != nil {
		t.Fatalf("update pickup: %v", err)
	}
	d, err := f.Data()
	if err != nil {
		t.Fatalf("data: %v", err)
	}
	if d.Package.Weight.Value != 40 || d.Package.Weight.Unit != "lbs" {
		t.Fatalf("section update must keep untouched fields, got %+v", d.Package.Weight)
	}
	if d.Package.SpecialHandling == nil || d.Package.ContentsCategory != domain.CategoryOther {
		t.Fatalf("expected normalized package, got %+v", d.Package)
	}
	if !d.DeliveryPreferences.SignatureRequired || d.DeliveryPreferences.ServiceLevel != "ground" {
		t.Fatalf("unexpected preferences %+v", d.DeliveryPreferences)
	}
	if !d.Destination.IsResidential || d.PickupDetails == nil || d.PickupDetails.Date != "2026-03-12" {
		t.Fatalf("unexpected destination or pickup %+v %+v", d.Destination, d.PickupDetails)
	}
	if !f.Validation().Touched["package"] {
		t.Fatalf("section updates mark the section touched")
	}
}

func TestPickupForm_ScheduleAndContact(t *testing.T) {
	ctx := context.Background()
	clk := testutil.NewManualClock(t0)
	d := core.PickupDomain()
	d.Validator = validation.NewPickupRules(clk.Now)
	s, err := core.NewSession(ctx, d, core.WithClock(clk), core.WithStore(newRecordingStore()))
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	f := &core.PickupForm{Session: s}

	slot := domain.TimeSlot{ID: "morning", Display: "8:00 AM - 12:00 PM", StartTime: "08:00", EndTime: "12:00", Available: true}
	if err := f.UpdateSchedule("2026-03-09", slot, "08:30"); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if msg := f.Validation().Errors["date"]; msg != "Pickup date cannot be in the past" {
		t.Fatalf("expected past date error, got %q", msg)
	}
	if err := f.UpdateSchedule("2026-03-11", slot, "08:30"); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if err := f.UpdateContact(domain.ContactInfo{Name: "Lin", Phone: "555-201-3344"}, domain.ContactInfo{}); err != nil {
		t.Fatalf("contact: %v", err)
	}
	if err := f.UpdateRequirements(func(p *domain.PickupDetails) {
		p.LoadingDock = true
		p.AccessRequirements = append(p.AccessRequirements, "gate code")
	}); err != nil {
		t.Fatalf("requirements: %v", err)
	}
	v := f.Validation()
	if len(v.Errors) != 0 || v.Warnings["backupContact.name"] == "" {
		t.Fatalf("expected valid pickup with a backup warning, got %+v", v)
	}
	if !f.CanNavigateNext() {
		t.Fatalf("complete pickup should pass the strict gate")
	}
	data, err := f.Data()
	if err != nil || data.TimeSlot.ID != "morning" || !data.LoadingDock || len(data.AccessRequirements) != 1 {
		t.Fatalf("unexpected pickup data %+v err=%v", data, err)
	}
}

func TestBillingForm_PurchaseOrderFlow(t *testing.T) {
	ctx := context.Background()
	clk := testutil.NewManualClock(t0)
	store := newRecordingStore()
	f, err := core.NewBillingForm(ctx, core.WithClock(clk), core.WithStore(store), fixedID("tab-a"))
	if err != nil {
		t.Fatalf("new billing form: %v", err)
	}
	t.Cleanup(func() { _ = f.Close() })

	if err := f.UpdatePaymentMethod(func(p *domain.PaymentMethod) { p.Type = domain.PaymentPurchaseOrder }); err != nil {
		t.Fatalf("payment: %v", err)
	}
	if f.Validation().Errors["paymentMethod.purchaseOrder.number"] == "" {
		t.Fatalf("purchase orders require a PO number")
	}
	_ = f.UpdatePaymentMethod(func(p *domain.PaymentMethod) {
		p.PurchaseOrder = domain.PurchaseOrder{Number: "PO-7781", Amount: 1200, ExpirationDate: "2026-12-31"}
	})
	_ = f.UpdateBillingAddress(func(a *domain.Address) {
		a.Address, a.City, a.State, a.Zip = "1 Ledger Way", "Dallas", "TX", "75201"
	})
	_ = f.UpdateCompanyInfo(func(c *domain.CompanyInfo) { c.LegalName = "Acme Logistics LLC" })
	_ = f.UpdateInvoicePreferences(func(p *domain.InvoicePreferences) { p.Email = "ap@acme.test" })

	if v := f.Validation(); !v.IsValid || len(v.Warnings) != 0 {
		t.Fatalf("expected valid billing info, got %+v", v)
	}
	if err := f.Save(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}
	stored := store.stored(t, domain.KeyBillingInfo)
	if valueAt(t, stored, "paymentMethod.purchaseOrder.number") != "PO-7781" {
		t.Fatalf("unexpected stored billing %v", stored)
	}
	clk.Advance(time.Minute)
	if store.Writes(domain.KeyBillingInfo) != 1 {
		t.Fatalf("manual save must supersede the pending auto-save")
	}
}
