package checkoutapi

import (
	"math"
	"strings"

	"shipflow/pkg/domain"
)

// dimDivisor converts cubic inches to dimensional pounds.
const dimDivisor = 139.0

const fuelSurchargeRate = 0.12

type serviceRate struct {
	level       string
	carrier     string
	base        float64
	perLb       float64
	transitDays int
}

var serviceRates = []serviceRate{
	{level: "ground", carrier: "Acme Freight", base: 12.5, perLb: 0.95, transitDays: 5},
	{level: "express", carrier: "Skyline Express", base: 24, perLb: 1.85, transitDays: 2},
	{level: "overnight", carrier: "Skyline Express", base: 42, perLb: 3.1, transitDays: 1},
}

// ServiceLevels lists the quotable service levels.
func ServiceLevels() []string {
	out := make([]string, 0, len(serviceRates))
	for _, r := range serviceRates {
		out = append(out, r.level)
	}
	return out
}

var handlingFees = map[string]float64{
	domain.HandlingFragile:          8,
	domain.HandlingThisSideUp:       0,
	domain.HandlingTemperature:      45,
	domain.HandlingHazmat:           75,
	domain.HandlingWhiteGlove:       95,
	domain.HandlingInsideDelivery:   30,
	domain.HandlingLiftgatePickup:   25,
	domain.HandlingLiftgateDelivery: 25,
}

// billableWeight is the greater of actual and dimensional weight in pounds.
func billableWeight(p domain.PackageInfo) float64 {
	actual := p.Weight.Value
	if strings.EqualFold(p.Weight.Unit, "kg") {
		actual *= 2.20462
	}
	l, w, h := p.Dimensions.Length, p.Dimensions.Width, p.Dimensions.Height
	if strings.EqualFold(p.Dimensions.Unit, "cm") {
		l, w, h = l/2.54, w/2.54, h/2.54
	}
	return math.Max(actual, l*w*h/dimDivisor)
}

func accessorials(s domain.ShipmentDetails) float64 {
	fee := 0.0
	for _, tag := range s.Package.SpecialHandling {
		fee += handlingFees[tag]
	}
	if s.Destination.IsResidential {
		fee += 5
	}
	if s.DeliveryPreferences.SignatureRequired {
		fee += 3.5
	}
	if s.DeliveryPreferences.SaturdayDelivery {
		fee += 15
	}
	if s.Package.DeclaredValue > 100 {
		// insurance: 1% of declared value above the first $100
		fee += (s.Package.DeclaredValue - 100) * 0.01
	}
	return fee
}

// Quote prices every service level for s. The result is deterministic.
func Quote(s domain.ShipmentDetails) []domain.PricingOption {
	weight := billableWeight(s.Package)
	extra := round2(accessorials(s))
	out := make([]domain.PricingOption, 0, len(serviceRates))
	for _, r := range serviceRates {
		base := round2(r.base + r.perLb*weight)
		fuel := round2(base * fuelSurchargeRate)
		out = append(out, domain.PricingOption{
			ID:            r.level + "-" + strings.ToLower(strings.ReplaceAll(r.carrier, " ", "-")),
			Carrier:       r.carrier,
			ServiceLevel:  r.level,
			TransitDays:   r.transitDays,
			BaseRate:      base,
			FuelSurcharge: fuel,
			Accessorials:  extra,
			Total:         round2(base + fuel + extra),
			Currency:      "USD",
		})
	}
	return out
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
