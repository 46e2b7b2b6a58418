package core_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"testing"
	"time"

	"shipflow/internal/core"
	"shipflow/internal/fieldpath"
	"shipflow/pkg/domain"
	"shipflow/testutil"
)

func TestNewSession_FreshFormIsNotValidated(t *testing.T) {
	store := newRecordingStore()
	clk := testutil.NewManualClock(t0)
	f := newShipmentForm(t, store, clk, "tab-a")

	v := f.Validation()
	if len(v.Errors) != 0 || len(v.Warnings) != 0 || !v.IsValid {
		t.Fatalf("expected untouched validation state, got %+v", v)
	}
	if f.IsDirty() || f.IsLoading() || f.Status() != core.StatusClean {
		t.Fatalf("expected clean, loaded session")
	}
	p := f.Progress()
	if p.RequiredFieldsComplete || !p.CanAdvanceToNextStep {
		t.Fatalf("expected lenient advance with incomplete fields, got %+v", p)
	}
	if f.CanNavigateNext() {
		t.Fatalf("strict gate must stay closed on an empty form")
	}
	clk.Advance(time.Minute)
	if store.total() != 0 {
		t.Fatalf("expected no writes for an untouched form, got %d", store.total())
	}
	if f.InstanceID() != "tab-a" || f.StorageKey() != shipmentKey || f.Domain().Tag != domain.TagShipmentDetails {
		t.Fatalf("unexpected identity %s %s", f.InstanceID(), f.StorageKey())
	}
}

func TestSession_DebounceCoalescesWrites(t *testing.T) {
	store := newRecordingStore()
	clk := testutil.NewManualClock(t0)
	f := newShipmentForm(t, store, clk, "tab-a")

	if err := f.UpdateOrigin(func(a *domain.Address) { a.City = "Chicago" }); err != nil {
		t.Fatalf("update origin: %v", err)
	}
	clk.Advance(time.Second)
	if err := f.UpdateOrigin(func(a *domain.Address) { a.City = "" }); err != nil {
		t.Fatalf("update origin: %v", err)
	}
	if !f.IsDirty() || f.Status() != core.StatusDirty {
		t.Fatalf("expected dirty session")
	}
	clk.Advance(core.DefaultAutoSaveDelay - time.Millisecond)
	if store.Writes(shipmentKey) != 0 {
		t.Fatalf("saved before the quiet period elapsed")
	}
	clk.Advance(time.Millisecond)
	if got := store.Writes(shipmentKey); got != 1 {
		t.Fatalf("expected exactly one write, got %d", got)
	}
	if store.Writes(core.InstanceKey(shipmentKey)) != 1 || store.Writes(core.TimestampKey(shipmentKey)) != 1 {
		t.Fatalf("expected tag writes alongside the payload")
	}
	if city := valueAt(t, store.stored(t, shipmentKey), "origin.city"); city != "" {
		t.Fatalf("expected last write to win, stored city %v", city)
	}
	tag, _, _ := store.GetItem(context.Background(), core.InstanceKey(shipmentKey))
	ts, _, _ := store.GetItem(context.Background(), core.TimestampKey(shipmentKey))
	if tag != "tab-a" || ts != strconv.FormatInt(clk.Now().UnixMilli(), 10) {
		t.Fatalf("unexpected tags %q %q", tag, ts)
	}
	as := f.AutoSave()
	if f.IsDirty() || as.LastAutoSave == nil || !as.LastAutoSave.Equal(clk.Now()) || as.AutoSaveError != "" {
		t.Fatalf("unexpected auto-save state %+v dirty=%v", as, f.IsDirty())
	}
}

func TestSession_ValidationDebounceIsIndependent(t *testing.T) {
	store := newRecordingStore()
	clk := testutil.NewManualClock(t0)
	f := newShipmentForm(t, store, clk, "tab-a")

	if err := f.SetFieldValue("origin.zip", "abc"); err != nil {
		t.Fatalf("set field: %v", err)
	}
	v := f.Validation()
	if v.Errors["origin.zip"] == "" || !v.Touched["origin.zip"] {
		t.Fatalf("expected immediate field validation, got %+v", v)
	}
	if v.Errors["origin.address"] != "" {
		t.Fatalf("full validation ran before its debounce")
	}
	clk.Advance(core.DefaultShipmentValidationDelay)
	if f.Validation().Errors["origin.address"] == "" {
		t.Fatalf("expected debounced full validation to flag origin.address")
	}
	if store.total() != 0 {
		t.Fatalf("validation must not persist")
	}
}

func TestNewSession_LayersDefaultsStoredAndInitial(t *testing.T) {
	ctx := context.Background()
	store := newRecordingStore()
	clk := testutil.NewManualClock(t0)
	seed := domain.DefaultShipmentDetails()
	seed.Origin.City = "Denver"
	if _, err := core.NewAdapter(store, "tab-old", clk, nil).SaveSnapshot(ctx, shipmentKey, seed); err != nil {
		t.Fatalf("seed: %v", err)
	}
	f := newShipmentForm(t, store, clk, "tab-a",
		core.WithInitialData(fieldpath.Record{"deliveryPreferences": map[string]any{"serviceLevel": "express"}}))

	if v, _ := f.Value("origin.city"); v != "Denver" {
		t.Fatalf("expected stored city, got %v", v)
	}
	if v, _ := f.Value("deliveryPreferences.serviceLevel"); v != "express" {
		t.Fatalf("expected initial data to win, got %v", v)
	}
	if _, ok := f.Value("deliveryPreferences.signatureRequired"); ok {
		t.Fatalf("expected shallow layering to replace the whole section")
	}
	if f.IsDirty() {
		t.Fatalf("restored data is not a mutation")
	}
	if f.Validation().Errors["origin.address"] == "" {
		t.Fatalf("expected initial validation for non-default data")
	}

	// data loaded from the slot counts as synced, so editing it is no conflict
	if err := f.SetFieldValue("origin.city", "Boulder"); err != nil {
		t.Fatalf("set: %v", err)
	}
	clk.Advance(core.DefaultAutoSaveDelay)
	if f.AutoSave().ConflictDetected || store.Writes(shipmentKey) != 2 {
		t.Fatalf("expected clean overwrite, conflict=%v writes=%d", f.AutoSave().ConflictDetected, store.Writes(shipmentKey))
	}
}

func TestNewSession_CorruptSnapshotFallsBackToDefaults(t *testing.T) {
	for name, payload := range map[string]string{
		"truncated":      "{not json",
		"trailing bytes": `{"origin":{"city":"Chicago"}} }garbage`,
		"two objects":    `{"origin":{"city":"Chicago"}}{"destination":{}}`,
	} {
		t.Run(name, func(t *testing.T) {
			var logs bytes.Buffer
			store := newRecordingStore()
			_ = store.Store.SetItem(context.Background(), shipmentKey, payload)
			clk := testutil.NewManualClock(t0)
			f := newShipmentForm(t, store, clk, "tab-a", core.WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))

			want, _ := fieldpath.FromValue(domain.DefaultShipmentDetails())
			if !fieldpath.Equal(f.Record(), want) {
				t.Fatalf("expected defaults after a corrupt snapshot, got origin.city=%v", valueAt(t, f.Record(), "origin.city"))
			}
			if len(f.Validation().Errors) != 0 {
				t.Fatalf("defaults must not be validated")
			}
			if !strings.Contains(logs.String(), "discarding corrupt snapshot") {
				t.Fatalf("expected parse failure to be logged, got %q", logs.String())
			}
		})
	}
}

func TestSession_ConflictBlocksAutoSaveUntilMerged(t *testing.T) {
	ctx := context.Background()
	store := newRecordingStore()
	clk := testutil.NewManualClock(t0)
	a := newShipmentForm(t, store, clk, "tab-a")
	b := newShipmentForm(t, store, clk, "tab-b")

	if err := a.UpdateOrigin(func(addr *domain.Address) { addr.City = "Chicago" }); err != nil {
		t.Fatalf("a update: %v", err)
	}
	clk.Advance(core.DefaultAutoSaveDelay)
	if store.Writes(shipmentKey) != 1 {
		t.Fatalf("expected a's write")
	}

	if err := b.UpdatePackage(func(p *domain.PackageInfo) { p.Weight.Value = 5 }); err != nil {
		t.Fatalf("b update: %v", err)
	}
	clk.Advance(core.DefaultAutoSaveDelay)
	if !b.AutoSave().ConflictDetected || !b.IsDirty() {
		t.Fatalf("expected b to detect the rival write and stay dirty")
	}
	if store.Writes(shipmentKey) != 1 {
		t.Fatalf("conflicting auto-save must not write")
	}
	if !b.Focus(ctx) {
		t.Fatalf("expected focus to report the conflict")
	}
	if a.Focus(ctx) {
		t.Fatalf("own write is never a conflict")
	}
	if err := b.Save(ctx); !errors.Is(err, core.ErrValidationFailed) {
		t.Fatalf("expected incomplete form to fail validation first, got %v", err)
	}

	if err := b.ResolveConflict(ctx, core.StrategyMerge); err != nil {
		t.Fatalf("merge: %v", err)
	}
	rec := b.Record()
	if valueAt(t, rec, "origin.city") != "Chicago" || valueAt(t, rec, "package.weight.value") != float64(5) {
		t.Fatalf("unexpected merged record origin=%v weight=%v", valueAt(t, rec, "origin.city"), valueAt(t, rec, "package.weight.value"))
	}
	if !b.IsDirty() || b.AutoSave().ConflictDetected {
		t.Fatalf("merge result must be dirty with the conflict cleared")
	}
	clk.Advance(core.DefaultAutoSaveDelay)
	if store.Writes(shipmentKey) != 2 {
		t.Fatalf("expected merged snapshot to be saved, writes=%d", store.Writes(shipmentKey))
	}
	saved := store.stored(t, shipmentKey)
	if valueAt(t, saved, "origin.city") != "Chicago" || valueAt(t, saved, "package.weight.value") != float64(5) {
		t.Fatalf("merged snapshot lost a side: %v", saved)
	}
	if !a.Focus(ctx) {
		t.Fatalf("a must now see b's merged write as a rival")
	}
}

func TestSession_MergeFillsSectionsLeftAtDefault(t *testing.T) {
	ctx := context.Background()
	store := newRecordingStore()
	clk := testutil.NewManualClock(t0)
	a := newShipmentForm(t, store, clk, "tab-a")
	b := newShipmentForm(t, store, clk, "tab-b")

	if err := a.UpdatePackage(func(p *domain.PackageInfo) { p.Weight.Value = 5 }); err != nil {
		t.Fatalf("a update: %v", err)
	}
	clk.Advance(core.DefaultAutoSaveDelay)

	// b edits package and then puts it back to its default value.
	if err := b.UpdatePackage(func(p *domain.PackageInfo) { p.Weight.Value = 9 }); err != nil {
		t.Fatalf("b update: %v", err)
	}
	if err := b.UpdatePackage(func(p *domain.PackageInfo) { *p = domain.DefaultShipmentDetails().Package }); err != nil {
		t.Fatalf("b revert: %v", err)
	}
	if err := b.UpdateOrigin(func(addr *domain.Address) { addr.City = "Chicago" }); err != nil {
		t.Fatalf("b origin: %v", err)
	}
	if !b.Focus(ctx) {
		t.Fatalf("expected a's write to be a rival for b")
	}
	if err := b.ResolveConflict(ctx, core.StrategyMerge); err != nil {
		t.Fatalf("merge: %v", err)
	}
	rec := b.Record()
	if valueAt(t, rec, "origin.city") != "Chicago" {
		t.Fatalf("edited section must keep the local value")
	}
	if valueAt(t, rec, "package.weight.value") != float64(5) {
		t.Fatalf("section left at default must take the stored value, got %v", valueAt(t, rec, "package.weight.value"))
	}
}

func TestSession_ResolveRemoteAdoptsStoredSnapshot(t *testing.T) {
	ctx := context.Background()
	store := newRecordingStore()
	clk := testutil.NewManualClock(t0)
	a := newShipmentForm(t, store, clk, "tab-a")
	b := newShipmentForm(t, store, clk, "tab-b")

	_ = a.UpdateOrigin(func(addr *domain.Address) { addr.City = "Chicago" })
	clk.Advance(core.DefaultAutoSaveDelay)
	_ = b.UpdatePackage(func(p *domain.PackageInfo) { p.Weight.Value = 9 })
	clk.Advance(core.DefaultAutoSaveDelay)
	if !b.AutoSave().ConflictDetected {
		t.Fatalf("expected conflict")
	}
	if err := b.ResolveConflict(ctx, core.StrategyRemote); err != nil {
		t.Fatalf("remote: %v", err)
	}
	if b.IsDirty() || b.AutoSave().ConflictDetected {
		t.Fatalf("remote adoption must clear dirty and conflict")
	}
	if v, _ := b.Value("origin.city"); v != "Chicago" {
		t.Fatalf("expected stored data, got %v", v)
	}
	if v, _ := b.Value("package.weight.value"); v != float64(0) {
		t.Fatalf("expected local weight discarded, got %v", v)
	}
	clk.Advance(core.DefaultAutoSaveDelay)
	if store.Writes(shipmentKey) != 1 {
		t.Fatalf("adopting remote must not write")
	}
}

func TestSession_ResolveLocalOverwritesRival(t *testing.T) {
	ctx := context.Background()
	store := newRecordingStore()
	clk := testutil.NewManualClock(t0)
	a := newShipmentForm(t, store, clk, "tab-a")
	b := newShipmentForm(t, store, clk, "tab-b")

	_ = a.UpdateOrigin(func(addr *domain.Address) { addr.City = "Chicago" })
	clk.Advance(core.DefaultAutoSaveDelay)
	if err := b.Apply(replaceWith(completeShipment(t))); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := b.Save(ctx); !errors.Is(err, core.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := b.ResolveConflict(ctx, core.StrategyLocal); err != nil {
		t.Fatalf("local: %v", err)
	}
	if valueAt(t, store.stored(t, shipmentKey), "origin.city") != "Dallas" {
		t.Fatalf("expected local data to win the slot")
	}
	tag, _, _ := store.GetItem(ctx, core.InstanceKey(shipmentKey))
	if tag != "tab-b" || b.IsDirty() || b.AutoSave().ConflictDetected {
		t.Fatalf("unexpected state after local resolution tag=%s", tag)
	}
	if err := b.ResolveConflict(ctx, core.Strategy("theirs")); !errors.Is(err, core.ErrUnknownStrategy) {
		t.Fatalf("expected ErrUnknownStrategy, got %v", err)
	}
}

func TestSession_SyncedLaterInstanceDoesNotConflict(t *testing.T) {
	store := newRecordingStore()
	clk := testutil.NewManualClock(t0)
	a := newShipmentForm(t, store, clk, "tab-a")
	_ = a.UpdateOrigin(func(addr *domain.Address) { addr.City = "Chicago" })
	clk.Advance(core.DefaultAutoSaveDelay)

	b := newShipmentForm(t, store, clk, "tab-b")
	_ = b.UpdateOrigin(func(addr *domain.Address) { addr.State = "IL" })
	clk.Advance(core.DefaultAutoSaveDelay)
	if b.AutoSave().ConflictDetected || store.Writes(shipmentKey) != 2 {
		t.Fatalf("b loaded a's snapshot and must overwrite it cleanly")
	}
}

func TestSession_SaveRejectsInvalidData(t *testing.T) {
	store := newRecordingStore()
	f := newShipmentForm(t, store, testutil.NewManualClock(t0), "tab-a")
	err := f.Save(context.Background())
	var ve *core.ValidationError
	if !errors.As(err, &ve) || !errors.Is(err, core.ErrValidationFailed) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if ve.Summary.IsValid || ve.Summary.ErrorCount == 0 || ve.Summary.ErrorCount != len(ve.Summary.Errors) {
		t.Fatalf("unexpected summary %+v", ve.Summary)
	}
	if !strings.Contains(err.Error(), ve.Summary.Errors[0].Path) {
		t.Fatalf("error should name the first failing field: %v", err)
	}
	if store.total() != 0 {
		t.Fatalf("invalid save must not write")
	}
	if len(f.Validation().Errors) == 0 {
		t.Fatalf("save must surface validation errors")
	}
}

func TestSession_StrictAndLenientGatesDiverge(t *testing.T) {
	store := newRecordingStore()
	f := newShipmentForm(t, store, testutil.NewManualClock(t0), "tab-a", core.WithValidationDelay(0))
	if err := f.Apply(replaceWith(completeShipment(t))); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !f.CanNavigateNext() || !f.Progress().CanAdvanceToNextStep {
		t.Fatalf("complete valid form should pass both gates")
	}
	if err := f.SetFieldValue("origin.zip", "bad"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if f.CanNavigateNext() {
		t.Fatalf("strict gate must close on a validation error")
	}
	p := f.Progress()
	if !p.RequiredFieldsComplete || !p.CanAdvanceToNextStep {
		t.Fatalf("lenient gate must stay open while required fields are filled, got %+v", p)
	}
	sum := f.ValidationSummary()
	if sum.ErrorCount != 1 || sum.Errors[0].Path != "origin.zip" {
		t.Fatalf("unexpected summary %+v", sum)
	}
}

func TestSession_PersistErrorKeepsDirtyAndRecovers(t *testing.T) {
	store := newRecordingStore()
	clk := testutil.NewManualClock(t0)
	metrics := core.NewExpvarMetricsRecorder("")
	f := newShipmentForm(t, store, clk, "tab-a", core.WithMetricsRecorder(metrics))

	store.setFailSet(errors.New("quota exceeded"))
	_ = f.SetFieldValue("origin.city", "Chicago")
	clk.Advance(core.DefaultAutoSaveDelay)
	as := f.AutoSave()
	if !strings.Contains(as.AutoSaveError, "quota exceeded") || !f.IsDirty() || as.IsAutoSaving {
		t.Fatalf("expected recorded failure, got %+v", as)
	}

	store.setFailSet(nil)
	_ = f.SetFieldValue("origin.city", "Chicago Heights")
	clk.Advance(core.DefaultAutoSaveDelay)
	if f.AutoSave().AutoSaveError != "" || f.IsDirty() {
		t.Fatalf("expected retry to succeed, got %+v", f.AutoSave())
	}
	snap := metrics.Snapshot()
	if snap.Results["autosave"]["error"] != 1 || snap.Results["autosave"]["success"] != 1 {
		t.Fatalf("unexpected autosave metrics %+v", snap.Results)
	}
	if snap.Results["conflict_check"]["success"] != 2 {
		t.Fatalf("expected two clean conflict checks, got %+v", snap.Results)
	}
}

func TestSession_ResetClearsSnapshot(t *testing.T) {
	ctx := context.Background()
	store := newRecordingStore()
	clk := testutil.NewManualClock(t0)
	f := newShipmentForm(t, store, clk, "tab-a")
	_ = f.SetFieldValue("origin.city", "Chicago")
	clk.Advance(core.DefaultAutoSaveDelay)
	_ = f.SetFieldValue("origin.city", "Chicago Heights")

	f.Reset(ctx)
	want, _ := fieldpath.FromValue(domain.DefaultShipmentDetails())
	if !fieldpath.Equal(f.Record(), want) || f.IsDirty() || f.AutoSave().LastAutoSave != nil {
		t.Fatalf("expected defaults after reset")
	}
	if len(f.Validation().Errors) != 0 || len(f.Validation().Touched) != 0 {
		t.Fatalf("expected validation cleared")
	}
	for _, k := range []string{shipmentKey, core.InstanceKey(shipmentKey), core.TimestampKey(shipmentKey)} {
		if _, ok, _ := store.GetItem(ctx, k); ok {
			t.Fatalf("expected %s removed", k)
		}
	}
	clk.Advance(core.DefaultAutoSaveDelay)
	if store.Writes(shipmentKey) != 1 {
		t.Fatalf("pending auto-save must be cancelled by reset")
	}
}

func TestSession_ForceSyncReloadsAndValidates(t *testing.T) {
	ctx := context.Background()
	store := newRecordingStore()
	clk := testutil.NewManualClock(t0)
	a := newShipmentForm(t, store, clk, "tab-a")
	b := newShipmentForm(t, store, clk, "tab-b", core.WithAutoSave(false))

	_ = a.UpdateOrigin(func(addr *domain.Address) { addr.City = "Chicago" })
	clk.Advance(core.DefaultAutoSaveDelay)
	_ = b.SetFieldValue("package.contents", "Local only")

	if err := b.ForceSync(ctx); err != nil {
		t.Fatalf("force sync: %v", err)
	}
	if v, _ := b.Value("origin.city"); v != "Chicago" {
		t.Fatalf("expected reloaded city, got %v", v)
	}
	if v, _ := b.Value("package.contents"); v != "" {
		t.Fatalf("local edit must be discarded, got %v", v)
	}
	if b.IsDirty() || b.IsLoading() {
		t.Fatalf("expected clean, loaded session")
	}
	if b.Validation().Errors["origin.address"] == "" {
		t.Fatalf("expected validation after reload")
	}

	store.failGet = errors.New("disk gone")
	if err := b.ForceSync(ctx); err == nil || !strings.Contains(err.Error(), "disk gone") {
		t.Fatalf("expected storage error from force sync, got %v", err)
	}
}

func TestSession_CloseStopsTimers(t *testing.T) {
	ctx := context.Background()
	store := newRecordingStore()
	clk := testutil.NewManualClock(t0)
	f := newShipmentForm(t, store, clk, "tab-a")
	_ = f.SetFieldValue("origin.city", "Chicago")
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if clk.Pending() != 0 {
		t.Fatalf("expected no pending timers, got %d", clk.Pending())
	}
	clk.Advance(time.Minute)
	if store.total() != 0 {
		t.Fatalf("closed session must not save")
	}
	if err := f.SetFieldValue("origin.city", "x"); !errors.Is(err, core.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := f.Save(ctx); !errors.Is(err, core.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := f.ForceSync(ctx); !errors.Is(err, core.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if f.Focus(ctx) {
		t.Fatalf("closed session never reports conflicts")
	}
	if err := f.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestSession_RejectsMalformedPaths(t *testing.T) {
	f := newShipmentForm(t, newRecordingStore(), testutil.NewManualClock(t0), "tab-a")
	for _, p := range []string{"", "origin.", ".origin", "origin..city"} {
		if err := f.SetFieldValue(p, "x"); !errors.Is(err, fieldpath.ErrInvalidPath) {
			t.Fatalf("expected ErrInvalidPath for %q, got %v", p, err)
		}
	}
	if err := f.TouchField("origin..zip"); !errors.Is(err, fieldpath.ErrInvalidPath) {
		t.Fatalf("expected ErrInvalidPath, got %v", err)
	}
	if _, err := f.ValidateField(""); !errors.Is(err, fieldpath.ErrInvalidPath) {
		t.Fatalf("expected ErrInvalidPath, got %v", err)
	}
	if f.IsDirty() {
		t.Fatalf("rejected writes must not dirty the form")
	}
}

func TestSession_TouchAndValidateField(t *testing.T) {
	f := newShipmentForm(t, newRecordingStore(), testutil.NewManualClock(t0), "tab-a")
	if err := f.TouchField("origin.city"); err != nil {
		t.Fatalf("touch: %v", err)
	}
	v := f.Validation()
	if !v.Touched["origin.city"] || v.Errors["origin.city"] == "" || v.FieldValidation["origin.city"] {
		t.Fatalf("expected blur validation on origin.city, got %+v", v)
	}
	res, err := f.ValidateField("origin.state")
	if err != nil || res.Errors["origin.state"] == "" {
		t.Fatalf("expected state error, got %+v err=%v", res, err)
	}
	all := f.ValidateAll()
	again := f.ValidateAll()
	if len(all.Errors) != len(again.Errors) || all.IsValid {
		t.Fatalf("validation must be idempotent")
	}
	if f.IsDirty() {
		t.Fatalf("validation never dirties the form")
	}
}

func TestSession_SaveLatencyShowsSavingState(t *testing.T) {
	store := newRecordingStore()
	clk := testutil.NewManualClock(t0)
	f := newShipmentForm(t, store, clk, "tab-a",
		core.WithAutoSave(false), core.WithValidationDelay(0), core.WithSaveLatency(500*time.Millisecond))
	if err := f.Apply(replaceWith(completeShipment(t))); err != nil {
		t.Fatalf("apply: %v", err)
	}
	errc := make(chan error, 1)
	go func() { errc <- f.Save(context.Background()) }()

	deadline := time.Now().Add(2 * time.Second)
	for f.Status() != core.StatusSaving || clk.Pending() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("save never reached the saving state")
		}
		time.Sleep(time.Millisecond)
	}
	if store.Writes(shipmentKey) != 0 {
		t.Fatalf("write happened before the latency elapsed")
	}
	clk.Advance(500 * time.Millisecond)
	if err := <-errc; err != nil {
		t.Fatalf("save: %v", err)
	}
	if f.Status() != core.StatusClean || store.Writes(shipmentKey) != 1 {
		t.Fatalf("expected saved, clean session")
	}
}

// startLatentSave begins a Save and returns once it is parked on the
// configured latency, before anything is written.
func startLatentSave(t *testing.T, f *core.ShipmentForm, clk *testutil.ManualClock) <-chan error {
	t.Helper()
	errc := make(chan error, 1)
	go func() { errc <- f.Save(context.Background()) }()
	deadline := time.Now().Add(2 * time.Second)
	for f.Status() != core.StatusSaving || clk.Pending() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("save never reached the saving state")
		}
		time.Sleep(time.Millisecond)
	}
	return errc
}

func TestSession_ResetWaitsForInFlightSave(t *testing.T) {
	ctx := context.Background()
	store := newRecordingStore()
	clk := testutil.NewManualClock(t0)
	f := newShipmentForm(t, store, clk, "tab-a",
		core.WithAutoSave(false), core.WithValidationDelay(0), core.WithSaveLatency(500*time.Millisecond))
	if err := f.Apply(replaceWith(completeShipment(t))); err != nil {
		t.Fatalf("apply: %v", err)
	}
	saved := startLatentSave(t, f, clk)

	reset := make(chan struct{})
	go func() {
		f.Reset(ctx)
		close(reset)
	}()
	select {
	case <-reset:
		t.Fatalf("reset finished while a save was still in flight")
	case <-time.After(20 * time.Millisecond):
	}

	clk.Advance(500 * time.Millisecond)
	if err := <-saved; err != nil {
		t.Fatalf("save: %v", err)
	}
	<-reset

	if _, ok, _ := store.Store.GetItem(ctx, shipmentKey); ok {
		t.Fatalf("reset must leave no snapshot behind")
	}
	if _, ok, _ := store.Store.GetItem(ctx, core.InstanceKey(shipmentKey)); ok {
		t.Fatalf("reset must remove the instance tag")
	}
	if st := f.AutoSave(); st.LastAutoSave != nil {
		t.Fatalf("reset session must not keep the pre-reset save time, got %v", st.LastAutoSave)
	}
	want, _ := fieldpath.FromValue(domain.DefaultShipmentDetails())
	if !fieldpath.Equal(f.Record(), want) || f.IsDirty() {
		t.Fatalf("expected clean defaults after reset")
	}

	reopened := newShipmentForm(t, store, clk, "tab-b")
	if !fieldpath.Equal(reopened.Record(), want) {
		t.Fatalf("a new session must not restore discarded data")
	}
}

func TestSession_ForceSyncWaitsForInFlightSave(t *testing.T) {
	ctx := context.Background()
	store := newRecordingStore()
	clk := testutil.NewManualClock(t0)
	f := newShipmentForm(t, store, clk, "tab-a",
		core.WithAutoSave(false), core.WithValidationDelay(0), core.WithSaveLatency(500*time.Millisecond))
	full := completeShipment(t)
	if err := f.Apply(replaceWith(full)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	saved := startLatentSave(t, f, clk)

	synced := make(chan error, 1)
	go func() { synced <- f.ForceSync(ctx) }()
	select {
	case err := <-synced:
		t.Fatalf("force sync finished while a save was in flight: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	clk.Advance(500 * time.Millisecond)
	if err := <-saved; err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := <-synced; err != nil {
		t.Fatalf("force sync: %v", err)
	}
	if !fieldpath.Equal(f.Record(), store.stored(t, shipmentKey)) || f.IsDirty() {
		t.Fatalf("memory and slot must agree after force sync")
	}
	if valueAt(t, f.Record(), "origin.city") != valueAt(t, full, "origin.city") {
		t.Fatalf("expected the saved data to be reloaded")
	}
}

func TestSession_TracerWrapsUserOperations(t *testing.T) {
	tracer := core.NewJSONTracer(nil)
	f := newShipmentForm(t, newRecordingStore(), testutil.NewManualClock(t0), "tab-a", core.WithTracer(tracer))
	_ = f.Save(context.Background())
	_ = f.ForceSync(context.Background())
	entries := tracer.Entries()
	if len(entries) != 2 || entries[0].Operation != "save" || entries[0].Status != "error" || entries[1].Status != "success" {
		t.Fatalf("unexpected spans %+v", entries)
	}
}

func TestNewSession_RejectsIncompleteDomain(t *testing.T) {
	if _, err := core.NewSession(context.Background(), core.Domain{Tag: "x"}); err == nil {
		t.Fatalf("expected domain validation error")
	}
	if _, err := core.NewSession(context.Background(), core.ShipmentDomain(), core.WithStorageKey("../x")); err == nil {
		t.Fatalf("expected storage key error")
	}
}
