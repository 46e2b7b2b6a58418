package core_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"shipflow/internal/core"
	"shipflow/internal/fieldpath"
	"shipflow/internal/kv"
	"shipflow/pkg/domain"
	"shipflow/testutil"
)

var t0 = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

const shipmentKey = domain.KeyShipmentDetails

// recordingStore counts writes per key and can be told to fail.
type recordingStore struct {
	kv.Store
	mu      sync.Mutex
	writes  map[string]int
	failSet error
	failGet error
}

func newRecordingStore() *recordingStore {
	return &recordingStore{Store: kv.NewMemory(), writes: make(map[string]int)}
}

func (r *recordingStore) SetItem(ctx context.Context, key, value string) error {
	r.mu.Lock()
	fail := r.failSet
	if fail == nil {
		r.writes[key]++
	}
	r.mu.Unlock()
	if fail != nil {
		return fail
	}
	return r.Store.SetItem(ctx, key, value)
}

func (r *recordingStore) GetItem(ctx context.Context, key string) (string, bool, error) {
	r.mu.Lock()
	fail := r.failGet
	r.mu.Unlock()
	if fail != nil {
		return "", false, fail
	}
	return r.Store.GetItem(ctx, key)
}

func (r *recordingStore) setFailSet(err error) {
	r.mu.Lock()
	r.failSet = err
	r.mu.Unlock()
}

func (r *recordingStore) Writes(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writes[key]
}

func (r *recordingStore) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.writes {
		n += c
	}
	return n
}

func (r *recordingStore) stored(t *testing.T, key string) fieldpath.Record {
	t.Helper()
	raw, ok, err := r.Store.GetItem(context.Background(), key)
	if err != nil || !ok {
		t.Fatalf("expected stored snapshot at %s, ok=%v err=%v", key, ok, err)
	}
	rec, err := fieldpath.Unmarshal(raw)
	if err != nil {
		t.Fatalf("stored snapshot: %v", err)
	}
	return rec
}

func fixedID(id string) core.Option {
	return core.WithInstanceIDGenerator(func() string { return id })
}

func newShipmentForm(t *testing.T, store kv.Store, clk *testutil.ManualClock, id string, opts ...core.Option) *core.ShipmentForm {
	t.Helper()
	base := []core.Option{core.WithStore(store), core.WithClock(clk), fixedID(id)}
	f, err := core.NewShipmentForm(context.Background(), append(base, opts...)...)
	if err != nil {
		t.Fatalf("new shipment form: %v", err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func completeShipment(t *testing.T) fieldpath.Record {
	t.Helper()
	d := domain.DefaultShipmentDetails()
	d.Origin.Address = "100 Industrial Pkwy"
	d.Origin.City = "Dallas"
	d.Origin.State = "TX"
	d.Origin.Zip = "75201"
	d.Origin.ContactInfo = domain.ContactInfo{Name: "Ada", Company: "Acme", Phone: "(214) 555-0100", Email: "ada@acme.test"}
	d.Destination.Address = "9 Harbor Rd"
	d.Destination.City = "Chicago"
	d.Destination.State = "IL"
	d.Destination.Zip = "60601"
	d.Destination.ContactInfo = domain.ContactInfo{Name: "Grace", Phone: "312-555-0199"}
	d.Package.Weight.Value = 12
	d.Package.Dimensions = domain.Dimensions{Length: 10, Width: 8, Height: 6, Unit: "in"}
	d.Package.DeclaredValue = 250
	d.Package.Contents = "Machine parts"
	rec, err := fieldpath.FromValue(d)
	if err != nil {
		t.Fatalf("from value: %v", err)
	}
	return rec
}

func replaceWith(rec fieldpath.Record) func(fieldpath.Record) (fieldpath.Record, error) {
	return func(fieldpath.Record) (fieldpath.Record, error) { return fieldpath.Clone(rec), nil }
}

func valueAt(t *testing.T, rec fieldpath.Record, path string) any {
	t.Helper()
	v, _ := fieldpath.Get(rec, fieldpath.MustParse(path))
	return v
}
