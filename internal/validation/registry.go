package validation

import (
	"shipflow/internal/fieldpath"
	"shipflow/pkg/domain"
)

var registry = map[string]Validator{
	domain.TagShipmentDetails: ShipmentRules,
	domain.TagPickupDetails:   PickupRules,
	domain.TagBillingInfo:     BillingRules,
}

// For returns the validator registered for a form domain tag.
func For(tag string) (Validator, bool) {
	v, ok := registry[tag]
	return v, ok
}

// Tags lists the registered form domain tags.
func Tags() []string {
	return []string{domain.TagShipmentDetails, domain.TagPickupDetails, domain.TagBillingInfo}
}

// CalculateCompletionProgress reports required-field completion for record
// under the rule set of domainTag. Unknown tags report no fields.
func CalculateCompletionProgress(record fieldpath.Record, domainTag string) Completion {
	v, ok := For(domainTag)
	if !ok {
		return Completion{}
	}
	return v.Progress(record)
}
