package domain

// LocationType classifies a pickup or delivery location.
type LocationType string

// Location classifications offered by the address form.
const (
	LocationCommercial  LocationType = "commercial"
	LocationResidential LocationType = "residential"
	LocationIndustrial  LocationType = "industrial"
	LocationWarehouse   LocationType = "warehouse"
	LocationOther       LocationType = "other"
)

// PackageType is the physical packaging of a shipment.
type PackageType string

// Package types accepted by the quote endpoint.
const (
	PackageEnvelope   PackageType = "envelope"
	PackageSmallBox   PackageType = "small"
	PackageMediumBox  PackageType = "medium"
	PackageLargeBox   PackageType = "large"
	PackagePallet     PackageType = "pallet"
	PackageCrate      PackageType = "crate"
	PackageMultiPiece PackageType = "multiple"
)

// ContentsCategory is the declared category of the package contents.
type ContentsCategory string

// Contents categories. CategoryOther is used whenever none is chosen.
const (
	CategoryElectronics   ContentsCategory = "electronics"
	CategoryAutomotive    ContentsCategory = "automotive"
	CategoryIndustrial    ContentsCategory = "industrial"
	CategoryDocuments     ContentsCategory = "documents"
	CategoryMedical       ContentsCategory = "medical"
	CategoryFoodBeverage  ContentsCategory = "food-beverage"
	CategoryTextiles      ContentsCategory = "textiles"
	CategoryManufacturing ContentsCategory = "manufacturing"
	CategoryOther         ContentsCategory = "other"
)

// ContentsCategories lists every accepted category in display order.
var ContentsCategories = []ContentsCategory{
	CategoryElectronics, CategoryAutomotive, CategoryIndustrial, CategoryDocuments,
	CategoryMedical, CategoryFoodBeverage, CategoryTextiles, CategoryManufacturing, CategoryOther,
}

// PackageTypes lists every accepted package type.
var PackageTypes = []PackageType{
	PackageEnvelope, PackageSmallBox, PackageMediumBox, PackageLargeBox,
	PackagePallet, PackageCrate, PackageMultiPiece,
}

// Special handling tags.
const (
	HandlingFragile          = "fragile"
	HandlingThisSideUp       = "this-side-up"
	HandlingTemperature      = "temperature-controlled"
	HandlingHazmat           = "hazmat"
	HandlingWhiteGlove       = "white-glove"
	HandlingInsideDelivery   = "inside-delivery"
	HandlingLiftgatePickup   = "liftgate-pickup"
	HandlingLiftgateDelivery = "liftgate-delivery"
)

// SpecialHandlingTags lists the accepted special handling tags.
var SpecialHandlingTags = []string{
	HandlingFragile, HandlingThisSideUp, HandlingTemperature, HandlingHazmat,
	HandlingWhiteGlove, HandlingInsideDelivery, HandlingLiftgatePickup, HandlingLiftgateDelivery,
}

// ContactInfo is the person reachable at an address. It is always present on an
// Address, empty strings stand in for unknown values.
type ContactInfo struct {
	Name    string `json:"name"`
	Company string `json:"company"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
}

// Address is an origin, destination or billing address.
type Address struct {
	Address             string       `json:"address"`
	Suite               string       `json:"suite"`
	City                string       `json:"city"`
	State               string       `json:"state"`
	Zip                 string       `json:"zip"`
	Country             string       `json:"country"`
	IsResidential       bool         `json:"isResidential"`
	LocationType        LocationType `json:"locationType"`
	LocationDescription string       `json:"locationDescription"`
	ContactInfo         ContactInfo  `json:"contactInfo"`
}

// Dimensions of the package.
type Dimensions struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Unit   string  `json:"unit"`
}

// Weight of the package.
type Weight struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// PackageInfo describes what is being shipped.
type PackageInfo struct {
	Type             PackageType      `json:"type"`
	Dimensions       Dimensions       `json:"dimensions"`
	Weight           Weight           `json:"weight"`
	DeclaredValue    float64          `json:"declaredValue"`
	Currency         string           `json:"currency"`
	Contents         string           `json:"contents"`
	ContentsCategory ContentsCategory `json:"contentsCategory"`
	SpecialHandling  []string         `json:"specialHandling"`
}

// DeliveryPreferences are the recipient-side service options.
type DeliveryPreferences struct {
	SignatureRequired      bool   `json:"signatureRequired"`
	AdultSignatureRequired bool   `json:"adultSignatureRequired"`
	SMSConfirmation        bool   `json:"smsConfirmation"`
	PhotoProof             bool   `json:"photoProof"`
	SaturdayDelivery       bool   `json:"saturdayDelivery"`
	HoldAtLocation         bool   `json:"holdAtLocation"`
	ServiceLevel           string `json:"serviceLevel"`
}

// ShipmentDetails is the aggregate edited on the first checkout step.
type ShipmentDetails struct {
	Origin              Address             `json:"origin"`
	Destination         Address             `json:"destination"`
	Package             PackageInfo         `json:"package"`
	DeliveryPreferences DeliveryPreferences `json:"deliveryPreferences"`
	PickupDetails       *PickupDetails      `json:"pickupDetails,omitempty"`
}

// Normalize restores the invariants consumers rely on: a non-nil special
// handling list, a contents category, and non-negative measurements.
func (s *ShipmentDetails) Normalize() {
	p := &s.Package
	if p.ContentsCategory == "" {
		p.ContentsCategory = CategoryOther
	}
	if p.SpecialHandling == nil {
		p.SpecialHandling = []string{}
	}
	p.Weight.Value = nonNegative(p.Weight.Value)
	p.Dimensions.Length = nonNegative(p.Dimensions.Length)
	p.Dimensions.Width = nonNegative(p.Dimensions.Width)
	p.Dimensions.Height = nonNegative(p.Dimensions.Height)
	p.DeclaredValue = nonNegative(p.DeclaredValue)
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
