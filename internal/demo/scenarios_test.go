package demo_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"shipflow/internal/core"
	"shipflow/internal/demo"
	"shipflow/internal/fieldpath"
	"shipflow/internal/kv"
)

func newForm(t *testing.T) *core.ShipmentForm {
	t.Helper()
	f, err := core.NewShipmentForm(context.Background(),
		core.WithStore(kv.NewMemory()), core.WithAutoSave(false), core.WithValidationDelay(0))
	if err != nil {
		t.Fatalf("new form: %v", err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestScenariosFillAValidShipment(t *testing.T) {
	all := demo.Scenarios()
	if len(all) != 3 || all[0].Name != "healthcare" || all[2].Name != "retail" {
		t.Fatalf("unexpected scenario list %v", all)
	}
	for _, sc := range all {
		t.Run(sc.Name, func(t *testing.T) {
			f := newForm(t)
			if err := demo.Run(context.Background(), f, sc, 0); err != nil {
				t.Fatalf("run: %v", err)
			}
			if rate := demo.FillRate(f.Record(), sc); rate != 1 {
				t.Fatalf("expected every field filled, got %.2f", rate)
			}
			if v := f.Validation(); len(v.Errors) != 0 {
				t.Fatalf("scenario produced validation errors: %v", v.Errors)
			}
			if !f.CanNavigateNext() {
				t.Fatalf("scenario must leave the shipment step passable")
			}
		})
	}
}

func TestRunHonoursContext(t *testing.T) {
	sc, ok := demo.Lookup("manufacturing")
	if !ok {
		t.Fatalf("expected manufacturing scenario")
	}
	f := newForm(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := demo.Run(ctx, f, sc, time.Hour)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	want := 1 / float64(len(sc.Steps))
	if rate := demo.FillRate(f.Record(), sc); math.Abs(rate-want) > 1e-9 {
		t.Fatalf("expected only the first step applied, got %.3f", rate)
	}
	if demo.FillRate(f.Record(), sc) >= demo.PassThreshold {
		t.Fatalf("a cut-short run must not pass")
	}
}

type failingTarget struct{ calls int }

func (f *failingTarget) SetFieldValue(path string, _ any) error {
	f.calls++
	if path == "origin.city" {
		return errors.New("field locked")
	}
	return nil
}

func TestRunStopsOnTargetError(t *testing.T) {
	sc, _ := demo.Lookup("retail")
	target := &failingTarget{}
	err := demo.Run(context.Background(), target, sc, 0)
	if err == nil || target.calls != 6 {
		t.Fatalf("expected failure at step 6, calls=%d err=%v", target.calls, err)
	}
	if _, ok := demo.Lookup("aerospace"); ok {
		t.Fatalf("unknown scenario must not resolve")
	}
}

func TestFillRate(t *testing.T) {
	sc := demo.Scenario{Name: "tiny", Steps: []demo.Step{
		{Path: "a"}, {Path: "b.c"}, {Path: "d"}, {Path: "e"}, {Path: "bad..path"},
	}}
	rec := fieldpath.Record{"a": "x", "b": map[string]any{"c": 2.5}, "d": 0.0, "e": ""}
	if got := demo.FillRate(rec, sc); got != 0.4 {
		t.Fatalf("expected 0.4, got %v", got)
	}
	if demo.FillRate(rec, demo.Scenario{}) != 0 {
		t.Fatalf("empty scenario fills nothing")
	}
}
