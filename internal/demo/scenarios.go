// Package demo scripts shipment form fills for the three industry demos and
// scores how much of a script landed in a form.
package demo

import (
	"context"
	"fmt"
	"sort"
	"time"

	"shipflow/internal/fieldpath"
)

// Phases a scenario walks through in order.
const (
	PhaseContact     = "origin-contact"
	PhaseOrigin      = "origin-address"
	PhaseDestination = "destination"
	PhasePackage     = "package"
)

// PassThreshold is the fill rate a demo run must reach.
const PassThreshold = 0.7

// Step writes one field.
type Step struct {
	Phase string `json:"phase"`
	Path  string `json:"path"`
	Value any    `json:"value"`
}

// Scenario is a named, ordered script.
type Scenario struct {
	Name  string `json:"name"`
	Title string `json:"title"`
	Steps []Step `json:"steps"`
}

// Target receives scenario writes. Form sessions satisfy it.
type Target interface {
	SetFieldValue(path string, value any) error
}

type party struct {
	name, company, phone, email string
	address, city, state, zip   string
}

type parcel struct {
	weight, length, width, height, declared float64
	contents                                string
}

func script(name, title string, origin, dest party, p parcel) Scenario {
	steps := []Step{
		{PhaseContact, "origin.contactInfo.name", origin.name},
		{PhaseContact, "origin.contactInfo.company", origin.company},
		{PhaseContact, "origin.contactInfo.phone", origin.phone},
		{PhaseContact, "origin.contactInfo.email", origin.email},
		{PhaseOrigin, "origin.address", origin.address},
		{PhaseOrigin, "origin.city", origin.city},
		{PhaseOrigin, "origin.state", origin.state},
		{PhaseOrigin, "origin.zip", origin.zip},
		{PhaseDestination, "destination.contactInfo.name", dest.name},
		{PhaseDestination, "destination.contactInfo.company", dest.company},
		{PhaseDestination, "destination.contactInfo.phone", dest.phone},
		{PhaseDestination, "destination.address", dest.address},
		{PhaseDestination, "destination.city", dest.city},
		{PhaseDestination, "destination.state", dest.state},
		{PhaseDestination, "destination.zip", dest.zip},
		{PhasePackage, "package.weight.value", p.weight},
		{PhasePackage, "package.dimensions.length", p.length},
		{PhasePackage, "package.dimensions.width", p.width},
		{PhasePackage, "package.dimensions.height", p.height},
		{PhasePackage, "package.declaredValue", p.declared},
		{PhasePackage, "package.contents", p.contents},
	}
	return Scenario{Name: name, Title: title, Steps: steps}
}

var scenarios = map[string]Scenario{
	"manufacturing": script("manufacturing", "Manufacturing parts to an assembly plant",
		party{"Dana Whitfield", "Midwest Precision Castings", "(414) 555-0134", "dana@mwpcast.test", "2200 Foundry Rd", "Milwaukee", "WI", "53204"},
		party{"Luis Ortega", "Ortega Assembly", "(313) 555-0188", "", "47 Press Line Dr", "Detroit", "MI", "48209"},
		parcel{weight: 148, length: 40, width: 32, height: 28, declared: 6800, contents: "Cast aluminum housings"}),
	"retail": script("retail", "Retail restock to a flagship store",
		party{"Priya Raman", "Northwind Apparel DC", "(678) 555-0147", "priya@northwind.test", "880 Distribution Pkwy", "Atlanta", "GA", "30336"},
		party{"Morgan Lee", "Northwind Flagship", "(212) 555-0172", "", "350 Fifth Ave", "New York", "NY", "10118"},
		parcel{weight: 36, length: 24, width: 18, height: 18, declared: 2400, contents: "Seasonal apparel"}),
	"healthcare": script("healthcare", "Medical supplies to a regional hospital",
		party{"Dr. Elena Park", "Cascade Medical Supply", "(503) 555-0119", "epark@cascademed.test", "15 Sterile Way", "Portland", "OR", "97217"},
		party{"Receiving Desk", "St. Vincent Regional", "(541) 555-0160", "", "2800 Hospital Loop", "Bend", "OR", "97701"},
		parcel{weight: 22, length: 20, width: 14, height: 12, declared: 3150, contents: "Sterile surgical kits"}),
}

// Lookup returns the named scenario.
func Lookup(name string) (Scenario, bool) {
	sc, ok := scenarios[name]
	return sc, ok
}

// Scenarios returns every scenario ordered by name.
func Scenarios() []Scenario {
	out := make([]Scenario, 0, len(scenarios))
	for _, sc := range scenarios {
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Run applies the scenario steps to t, waiting pace between steps.
func Run(ctx context.Context, t Target, sc Scenario, pace time.Duration) error {
	for i, step := range sc.Steps {
		if i > 0 && pace > 0 {
			if err := sleep(ctx, pace); err != nil {
				return err
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := t.SetFieldValue(step.Path, step.Value); err != nil {
			return fmt.Errorf("demo %s step %d (%s): %w", sc.Name, i+1, step.Path, err)
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// FillRate reports the share of scenario fields that hold a value in record.
func FillRate(record fieldpath.Record, sc Scenario) float64 {
	if len(sc.Steps) == 0 {
		return 0
	}
	filled := 0
	for _, step := range sc.Steps {
		p, err := fieldpath.Parse(step.Path)
		if err != nil {
			continue
		}
		if v, ok := fieldpath.Get(record, p); ok && hasValue(v) {
			filled++
		}
	}
	return float64(filled) / float64(len(sc.Steps))
}

func hasValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case float64:
		return t != 0
	case int:
		return t != 0
	case bool:
		return t
	}
	return true
}
