package core

import (
	"errors"
	"time"

	"shipflow/internal/fieldpath"
	"shipflow/internal/validation"
	"shipflow/pkg/domain"
)

// DefaultShipmentValidationDelay is the validation debounce of the shipment form.
const DefaultShipmentValidationDelay = 300 * time.Millisecond

// Domain describes one form domain a Session can manage.
type Domain struct {
	Tag        string
	StorageKey string
	// Defaults returns a fresh copy of the untouched form.
	Defaults  func() fieldpath.Record
	Validator validation.Validator
	// Relaxed is the lenient progression heuristic. Nil never holds.
	Relaxed RelaxedHeuristic
	// ValidationDelay debounces full validation after mutations. Zero
	// validates synchronously.
	ValidationDelay time.Duration
}

func (d Domain) validate() error {
	switch {
	case d.Tag == "":
		return errors.New("core: domain tag required")
	case d.StorageKey == "":
		return errors.New("core: domain storage key required")
	case d.Defaults == nil:
		return errors.New("core: domain defaults required")
	case d.Validator == nil:
		return errors.New("core: domain validator required")
	}
	return nil
}

func recordDefaults(v any) func() fieldpath.Record {
	return func() fieldpath.Record {
		r, err := fieldpath.FromValue(v)
		if err != nil {
			// domain defaults are plain structs and always encode
			panic(err)
		}
		return r
	}
}

// ShipmentDomain manages ShipmentDetails under currentShipmentDetails.
func ShipmentDomain() Domain {
	return Domain{
		Tag:             domain.TagShipmentDetails,
		StorageKey:      domain.KeyShipmentDetails,
		Defaults:        recordDefaults(domain.DefaultShipmentDetails()),
		Validator:       validation.ShipmentRules,
		Relaxed:         ShipmentHeuristic,
		ValidationDelay: DefaultShipmentValidationDelay,
	}
}

// PickupDomain manages PickupDetails under currentPickupDetails.
func PickupDomain() Domain {
	return Domain{
		Tag:        domain.TagPickupDetails,
		StorageKey: domain.KeyPickupDetails,
		Defaults:   recordDefaults(domain.DefaultPickupDetails()),
		Validator:  validation.PickupRules,
		Relaxed:    PickupHeuristic,
	}
}

// BillingDomain manages BillingInfo under currentBillingInfo.
func BillingDomain() Domain {
	return Domain{
		Tag:        domain.TagBillingInfo,
		StorageKey: domain.KeyBillingInfo,
		Defaults:   recordDefaults(domain.DefaultBillingInfo()),
		Validator:  validation.BillingRules,
		Relaxed:    BillingHeuristic,
	}
}
