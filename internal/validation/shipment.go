package validation

import (
	"strings"

	"shipflow/internal/fieldpath"
	"shipflow/pkg/domain"
)

const (
	freightThresholdLbs = 150
	freightThresholdKg  = 68
)

func addressRules(prefix, label string, emailRequired bool) []Rule {
	return []Rule{
		{Path: prefix + ".address", Label: label + " street address", Required: true, Checks: []Check{maxLength(100, label+" street address")}},
		{Path: prefix + ".city", Label: label + " city", Required: true},
		{Path: prefix + ".state", Label: label + " state", Required: true, Checks: []Check{matches(statePattern, "Use the two-letter state code")}},
		{Path: prefix + ".zip", Label: label + " ZIP code", Required: true, Checks: []Check{matches(zipPattern, "ZIP code must be 5 or 9 digits")}},
		{Path: prefix + ".contactInfo.name", Label: label + " contact name", Required: true},
		{Path: prefix + ".contactInfo.company", Label: label + " company", Checks: []Check{maxLength(100, label+" company")}},
		{Path: prefix + ".contactInfo.phone", Label: label + " contact phone", Required: true, Checks: []Check{phoneCheck}},
		{Path: prefix + ".contactInfo.email", Label: label + " contact email", Required: emailRequired, Checks: []Check{matches(emailPattern, "Enter a valid email address")}},
	}
}

func weightCheck(v any, record fieldpath.Record) (string, string) {
	f, _ := toFloat(v)
	limit := float64(freightThresholdLbs)
	if strings.EqualFold(stringAt(record, "package.weight.unit"), "kg") {
		limit = freightThresholdKg
	}
	if f > limit {
		return "", "Shipments this heavy may require freight service"
	}
	return "", ""
}

func declaredValueCheck(v any, _ fieldpath.Record) (string, string) {
	if f, _ := toFloat(v); f > 100000 {
		return "", "High declared values may require additional insurance review"
	}
	return "", ""
}

// ShipmentRules validates the shipment details form.
var ShipmentRules = NewRuleSet(domain.TagShipmentDetails,
	concat(
		addressRules("origin", "Origin", true),
		addressRules("destination", "Destination", false),
		[]Rule{
			{Path: "package.type", Label: "Package type", Required: true, Checks: []Check{oneOf(domain.PackageTypes, "Package type")}},
			{Path: "package.weight.value", Label: "Package weight", Required: true, Checks: []Check{positiveNumber("Package weight"), weightCheck}},
			{Path: "package.dimensions.length", Label: "Length", Required: true, Checks: []Check{positiveNumber("Length")}},
			{Path: "package.dimensions.width", Label: "Width", Required: true, Checks: []Check{positiveNumber("Width")}},
			{Path: "package.dimensions.height", Label: "Height", Required: true, Checks: []Check{positiveNumber("Height")}},
			{Path: "package.declaredValue", Label: "Declared value", Checks: []Check{nonNegativeNumber("Declared value"), declaredValueCheck}},
			{Path: "package.contents", Label: "Contents description", Required: true, Checks: []Check{maxLength(200, "Contents description")}},
			{Path: "package.contentsCategory", Label: "Contents category", Checks: []Check{oneOf(domain.ContentsCategories, "Contents category")}},
		},
	),
	[]CrossRule{
		{Field: "destination.address", Check: sameAddressCheck},
		{Field: "package.specialHandling", Check: hazmatCheck},
		{Field: "package.type", Check: residentialPalletCheck},
		{Field: "package.declaredValue", Check: unsetDeclaredValueCheck},
	},
)

func sameAddressCheck(r fieldpath.Record) (string, string) {
	o := strings.ToLower(stringAt(r, "origin.address") + "|" + stringAt(r, "origin.city") + "|" + stringAt(r, "origin.zip"))
	d := strings.ToLower(stringAt(r, "destination.address") + "|" + stringAt(r, "destination.city") + "|" + stringAt(r, "destination.zip"))
	if stringAt(r, "origin.address") != "" && o == d {
		return "", "Origin and destination are the same address"
	}
	return "", ""
}

func hazmatCheck(r fieldpath.Record) (string, string) {
	v, _ := fieldpath.Get(r, fieldpath.MustParse("package.specialHandling"))
	for _, tag := range toStrings(v) {
		if tag == domain.HandlingHazmat {
			return "", "Hazardous materials require additional documentation"
		}
	}
	return "", ""
}

func residentialPalletCheck(r fieldpath.Record) (string, string) {
	residential, _ := fieldpath.Get(r, fieldpath.MustParse("destination.isResidential"))
	if stringAt(r, "package.type") == string(domain.PackagePallet) && residential == true {
		return "", "Pallet delivery to a residence usually needs a liftgate"
	}
	return "", ""
}

func unsetDeclaredValueCheck(r fieldpath.Record) (string, string) {
	if floatAt(r, "package.weight.value") > 0 && floatAt(r, "package.declaredValue") == 0 {
		return "", "Declaring a value provides carrier liability coverage"
	}
	return "", ""
}

func concat(groups ...[]Rule) []Rule {
	var out []Rule
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// ValidateShipmentDetails validates a whole shipment details record.
func ValidateShipmentDetails(record fieldpath.Record) Result {
	return ShipmentRules.ValidateAll(record)
}
