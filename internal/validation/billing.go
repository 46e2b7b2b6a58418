package validation

import (
	"shipflow/internal/fieldpath"
	"shipflow/pkg/domain"
)

func paymentIs(t domain.PaymentMethodType) func(fieldpath.Record) bool {
	return pathEquals("paymentMethod.type", string(t))
}

// BillingRules validates the billing info form.
var BillingRules = NewRuleSet(domain.TagBillingInfo, []Rule{
	{Path: "paymentMethod.type", Label: "Payment method", Required: true, Checks: []Check{oneOf(domain.PaymentMethodTypes, "Payment method")}},
	{Path: "paymentMethod.purchaseOrder.number", Label: "PO number", Required: true, When: paymentIs(domain.PaymentPurchaseOrder), Checks: []Check{maxLength(50, "PO number")}},
	{Path: "paymentMethod.purchaseOrder.amount", Label: "PO amount", Required: true, When: paymentIs(domain.PaymentPurchaseOrder), Checks: []Check{positiveNumber("PO amount")}},
	{Path: "paymentMethod.purchaseOrder.expirationDate", Label: "PO expiration date", Required: true, When: paymentIs(domain.PaymentPurchaseOrder), Checks: []Check{
		func(v any, _ fieldpath.Record) (string, string) {
			if _, ok := parseDate(toString(v)); !ok {
				return "PO expiration date must use YYYY-MM-DD", ""
			}
			return "", ""
		},
	}},
	{Path: "paymentMethod.billOfLading", Label: "Bill of lading number", Required: true, When: paymentIs(domain.PaymentBillOfLading)},
	{Path: "paymentMethod.thirdPartyName", Label: "Third-party payer", Required: true, When: paymentIs(domain.PaymentThirdParty)},
	{Path: "paymentMethod.accountNumber", Label: "Account number", Required: true, When: paymentIs(domain.PaymentCorporate)},
	{Path: "billingAddress.address", Label: "Billing street address", Required: true},
	{Path: "billingAddress.city", Label: "Billing city", Required: true},
	{Path: "billingAddress.zip", Label: "Billing ZIP code", Required: true, Checks: []Check{matches(zipPattern, "ZIP code must be 5 or 9 digits")}},
	{Path: "companyInfo.legalName", Label: "Company legal name", Required: true},
	{Path: "invoicePreferences.email", Label: "Invoice email", Checks: []Check{matches(emailPattern, "Enter a valid email address")}},
}, []CrossRule{
	{Field: "invoicePreferences.email", Check: func(r fieldpath.Record) (string, string) {
		if stringAt(r, "invoicePreferences.deliveryMethod") == "email" && stringAt(r, "invoicePreferences.email") == "" {
			return "", "Invoices will go to the billing contact until an invoice email is set"
		}
		return "", ""
	}},
})
