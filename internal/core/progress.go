package core

import (
	"shipflow/internal/fieldpath"
	"shipflow/internal/validation"
)

// ProgressState is derived from the current data and validation state.
type ProgressState struct {
	Percentage             int  `json:"percentage"`
	CompletedFields        int  `json:"completedFields"`
	TotalFields            int  `json:"totalFields"`
	RequiredFieldsComplete bool `json:"requiredFieldsComplete"`
	CanAdvanceToNextStep   bool `json:"canAdvanceToNextStep"`
}

// RelaxedHeuristic reports whether a record is complete enough to move on
// even when the validator disagrees.
type RelaxedHeuristic func(record fieldpath.Record) bool

// CalculateProgress combines completion with the lenient advance policy: a
// step may be left when no errors are showing, when every required field is
// filled, or when the domain heuristic holds.
func CalculateProgress(record fieldpath.Record, errs map[string]string, completion validation.Completion, relaxed RelaxedHeuristic) ProgressState {
	advance := len(errs) == 0 || completion.RequiredFieldsComplete || (relaxed != nil && relaxed(record))
	return ProgressState{
		Percentage:             completion.Percentage,
		CompletedFields:        completion.CompletedFields,
		TotalFields:            completion.TotalFields,
		RequiredFieldsComplete: completion.RequiredFieldsComplete,
		CanAdvanceToNextStep:   advance,
	}
}

// ShipmentHeuristic holds when both addresses have a street and city and the
// package has a positive weight.
func ShipmentHeuristic(r fieldpath.Record) bool {
	for _, side := range []string{"origin", "destination"} {
		if textAt(r, side+".address") == "" || textAt(r, side+".city") == "" {
			return false
		}
	}
	return numberAt(r, "package.weight.value") > 0
}

// PickupHeuristic holds when a date and a time slot are chosen.
func PickupHeuristic(r fieldpath.Record) bool {
	return textAt(r, "date") != "" && textAt(r, "timeSlot.id") != ""
}

// BillingHeuristic holds when a payment type is chosen and the billing street is set.
func BillingHeuristic(r fieldpath.Record) bool {
	return textAt(r, "paymentMethod.type") != "" && textAt(r, "billingAddress.address") != ""
}

func textAt(r fieldpath.Record, path string) string {
	v, _ := fieldpath.Get(r, fieldpath.MustParse(path))
	s, _ := v.(string)
	return s
}

func numberAt(r fieldpath.Record, path string) float64 {
	v, _ := fieldpath.Get(r, fieldpath.MustParse(path))
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}
