package domain

import "time"

// TransactionStatus tracks a checkout through submission.
type TransactionStatus string

// Checkout transaction states.
const (
	TransactionDraft     TransactionStatus = "draft"
	TransactionPricing   TransactionStatus = "pricing"
	TransactionPayment   TransactionStatus = "payment"
	TransactionPickup    TransactionStatus = "pickup"
	TransactionReview    TransactionStatus = "review"
	TransactionSubmitted TransactionStatus = "submitted"
)

// PricingOption is one quote returned by the pricing step.
type PricingOption struct {
	ID            string  `json:"id"`
	Carrier       string  `json:"carrier"`
	ServiceLevel  string  `json:"serviceLevel"`
	TransitDays   int     `json:"transitDays"`
	BaseRate      float64 `json:"baseRate"`
	FuelSurcharge float64 `json:"fuelSurcharge"`
	Accessorials  float64 `json:"accessorials"`
	Total         float64 `json:"total"`
	Currency      string  `json:"currency"`
}

// ShippingTransaction gathers every step of one checkout.
type ShippingTransaction struct {
	ID                 string            `json:"id"`
	Timestamp          time.Time         `json:"timestamp"`
	Status             TransactionStatus `json:"status"`
	ShipmentDetails    ShipmentDetails   `json:"shipmentDetails"`
	SelectedOption     *PricingOption    `json:"selectedOption,omitempty"`
	PaymentInfo        *BillingInfo      `json:"paymentInfo,omitempty"`
	PickupDetails      *PickupDetails    `json:"pickupDetails,omitempty"`
	ConfirmationNumber string            `json:"confirmationNumber,omitempty"`
	TrackingNumber     string            `json:"trackingNumber,omitempty"`
}

// SubmissionReceipt is returned once a transaction has been accepted.
type SubmissionReceipt struct {
	TransactionID      string    `json:"transactionId"`
	ConfirmationNumber string    `json:"confirmationNumber"`
	TrackingNumber     string    `json:"trackingNumber"`
	EstimatedDelivery  string    `json:"estimatedDelivery"`
	SubmittedAt        time.Time `json:"submittedAt"`
}
