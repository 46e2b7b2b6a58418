// Package domain holds the checkout entities shared by the form sessions and
// the checkout API, with their JSON shapes and defaults.
package domain

// Form domain tags.
const (
	TagShipmentDetails = "shipment-details"
	TagPickupDetails   = "pickup-details"
	TagBillingInfo     = "billing-info"
)

// Storage keys of the persisted snapshots.
const (
	KeyShipmentDetails     = "currentShipmentDetails"
	KeyPickupDetails       = "currentPickupDetails"
	KeyBillingInfo         = "currentBillingInfo"
	KeyShippingTransaction = "currentShippingTransaction"
)

// DefaultAddress returns an empty address with its contact block present.
func DefaultAddress() Address {
	return Address{
		Country:      "US",
		LocationType: LocationCommercial,
		ContactInfo:  ContactInfo{},
	}
}

// DefaultShipmentDetails is the state of an untouched shipment form.
func DefaultShipmentDetails() ShipmentDetails {
	return ShipmentDetails{
		Origin:      DefaultAddress(),
		Destination: DefaultAddress(),
		Package: PackageInfo{
			Type:             PackageMediumBox,
			Dimensions:       Dimensions{Unit: "in"},
			Weight:           Weight{Unit: "lbs"},
			Currency:         "USD",
			ContentsCategory: CategoryOther,
			SpecialHandling:  []string{},
		},
		DeliveryPreferences: DeliveryPreferences{ServiceLevel: "ground"},
	}
}

// DefaultPickupDetails is the state of an untouched pickup form.
func DefaultPickupDetails() PickupDetails {
	return PickupDetails{
		AccessRequirements:    []string{},
		EquipmentRequirements: []string{},
		AuthorizedPersonnel:   []string{},
	}
}

// DefaultBillingInfo is the state of an untouched billing form.
func DefaultBillingInfo() BillingInfo {
	return BillingInfo{
		BillingAddress: DefaultAddress(),
		InvoicePreferences: InvoicePreferences{
			DeliveryMethod: "email",
			Format:         "pdf",
			Frequency:      "per-shipment",
		},
	}
}
