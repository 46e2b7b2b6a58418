package validation

import (
	"time"

	"shipflow/internal/fieldpath"
	"shipflow/pkg/domain"
)

// NewPickupRules builds the pickup rule set against a clock so "in the past"
// checks are testable.
func NewPickupRules(now func() time.Time) *RuleSet {
	if now == nil {
		now = time.Now
	}
	dateCheck := func(v any, _ fieldpath.Record) (string, string) {
		d, ok := parseDate(toString(v))
		if !ok {
			return "Pickup date must use YYYY-MM-DD", ""
		}
		today := now()
		y, m, day := today.Date()
		start := time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
		if d.Before(start) {
			return "Pickup date cannot be in the past", ""
		}
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			return "", "Weekend pickups may carry a surcharge"
		}
		return "", ""
	}
	return NewRuleSet(domain.TagPickupDetails, []Rule{
		{Path: "date", Label: "Pickup date", Required: true, Checks: []Check{dateCheck}},
		{Path: "timeSlot.id", Label: "Pickup time slot", Required: true},
		{Path: "readyTime", Label: "Ready time", Checks: []Check{matches(clockPattern, "Ready time must use HH:MM")}},
		{Path: "primaryContact.name", Label: "Pickup contact name", Required: true},
		{Path: "primaryContact.phone", Label: "Pickup contact phone", Required: true, Checks: []Check{phoneCheck}},
		{Path: "backupContact.phone", Label: "Backup contact phone", Checks: []Check{phoneCheck}},
		{Path: "instructions", Label: "Pickup instructions", Checks: []Check{maxLength(250, "Pickup instructions")}},
	}, []CrossRule{
		{Field: "backupContact.name", Check: func(r fieldpath.Record) (string, string) {
			if stringAt(r, "backupContact.name") == "" {
				return "", "A backup contact avoids missed pickups"
			}
			return "", ""
		}},
	})
}

// PickupRules validates the pickup form against the wall clock.
var PickupRules = NewPickupRules(nil)
