// Package core runs form sessions: layered load from the shared slot store,
// debounced validation and auto-save, conflict detection between instances
// editing the same slot, and the typed shipment, pickup and billing forms.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"shipflow/internal/fieldpath"
	"shipflow/internal/kv"
	"shipflow/internal/validation"
)

// ValidationState is the merged output of field and form validation. IsValid
// mirrors an empty Errors map after the last pass.
type ValidationState struct {
	Errors          map[string]string `json:"errors"`
	Warnings        map[string]string `json:"warnings"`
	Touched         map[string]bool   `json:"touched"`
	IsValid         bool              `json:"isValid"`
	FieldValidation map[string]bool   `json:"fieldValidation"`
}

func newValidationState() ValidationState {
	return ValidationState{
		Errors:          map[string]string{},
		Warnings:        map[string]string{},
		Touched:         map[string]bool{},
		IsValid:         true,
		FieldValidation: map[string]bool{},
	}
}

func (v ValidationState) clone() ValidationState {
	out := newValidationState()
	for k, m := range v.Errors {
		out.Errors[k] = m
	}
	for k, m := range v.Warnings {
		out.Warnings[k] = m
	}
	for k, t := range v.Touched {
		out.Touched[k] = t
	}
	for k, ok := range v.FieldValidation {
		out.FieldValidation[k] = ok
	}
	out.IsValid = v.IsValid
	return out
}

// FieldMessage is one entry of a ValidationSummary.
type FieldMessage struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationSummary lists current messages ordered by path.
type ValidationSummary struct {
	IsValid      bool           `json:"isValid"`
	ErrorCount   int            `json:"errorCount"`
	WarningCount int            `json:"warningCount"`
	Errors       []FieldMessage `json:"errors"`
	Warnings     []FieldMessage `json:"warnings"`
}

// Strategy selects how ResolveConflict reconciles a rival snapshot.
type Strategy string

const (
	// StrategyLocal saves local data over the rival snapshot.
	StrategyLocal Strategy = "local"
	// StrategyRemote adopts the stored snapshot.
	StrategyRemote Strategy = "remote"
	// StrategyMerge layers local top-level sections over the stored snapshot.
	// Local wins only for sections that differ from their defaults: if this
	// session set origin.city to "Chicago" and reset package to its default
	// while the rival saved a 5 lb package, the merge keeps origin from here
	// and package from the rival.
	StrategyMerge Strategy = "merge"
)

// Session owns the in-memory state of one form domain. Every session has its
// own instance id and timers; sessions sharing a kv.Store detect each other's
// writes optimistically.
type Session struct {
	domain     Domain
	opts       sessionOptions
	key        string
	instanceID string
	adapter    *Adapter
	logger     *slog.Logger
	defaults   fieldpath.Record
	bg         context.Context
	reloads    singleflight.Group
	persistMu  sync.Mutex

	mu            sync.Mutex
	data          fieldpath.Record
	dirty         bool
	loading       bool
	closed        bool
	generation    uint64
	lastSynced    string
	validation    ValidationState
	progress      ProgressState
	autoSave      AutoSaveState
	saveTimer     Timer
	saveSeq       uint64
	validateTimer Timer
	validateSeq   uint64
}

// NewSession loads the stored snapshot for d and layers it as
// defaults, then stored data, then WithInitialData. A form that still equals
// its defaults is not validated.
func NewSession(ctx context.Context, d Domain, opts ...Option) (*Session, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}
	o := defaultSessionOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.store == nil {
		o.store = kv.NewMemory()
	}
	if o.validationDelay < 0 {
		o.validationDelay = d.ValidationDelay
	}
	key := d.StorageKey
	if o.storageKey != "" {
		key = o.storageKey
	}
	if err := kv.ValidateKey(key); err != nil {
		return nil, fmt.Errorf("storage key: %w", err)
	}
	s := &Session{
		domain:     d,
		opts:       o,
		key:        key,
		instanceID: o.newInstanceID(),
		defaults:   d.Defaults(),
		bg:         context.WithoutCancel(ctx),
		validation: newValidationState(),
		loading:    true,
	}
	s.logger = o.logger.With("domain", d.Tag, "instance", s.instanceID)
	s.adapter = NewAdapter(o.store, s.instanceID, o.clock, s.logger)

	stored, found := s.adapter.LoadSnapshot(ctx, key)
	s.data = fieldpath.Merge(s.defaults, stored, o.initial)
	if found {
		s.lastSynced, _ = fieldpath.Canonical(stored)
	}
	if !fieldpath.Equal(s.data, s.defaults) {
		s.applyFullValidationLocked()
	}
	s.recomputeLocked()
	s.loading = false
	s.logger.Debug("session ready", "key", key, "restored", found)
	return s, nil
}

// InstanceID returns the random id tagging this session's writes.
func (s *Session) InstanceID() string { return s.instanceID }

// StorageKey returns the slot key of this session.
func (s *Session) StorageKey() string { return s.key }

// Domain returns the domain descriptor.
func (s *Session) Domain() Domain { return s.domain }

// Record returns a deep copy of the current data.
func (s *Session) Record() fieldpath.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fieldpath.Clone(s.data)
}

// Value returns the value at path.
func (s *Session) Value(path string) (any, bool) {
	p, err := fieldpath.Parse(path)
	if err != nil {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fieldpath.Get(s.data, p)
}

// SetFieldValue writes value at path, marks the field touched and validates it.
func (s *Session) SetFieldValue(path string, value any) error {
	p, err := fieldpath.Parse(path)
	if err != nil {
		return err
	}
	return s.mutate(p, true, func(r fieldpath.Record) (fieldpath.Record, error) {
		return fieldpath.Set(r, p, value), nil
	})
}

// Update replaces the value at path with fn's result. It is the coarse
// mutator behind the typed section updates.
func (s *Session) Update(path string, fn func(current any) (any, error)) error {
	p, err := fieldpath.Parse(path)
	if err != nil {
		return err
	}
	return s.mutate(p, false, func(r fieldpath.Record) (fieldpath.Record, error) {
		cur, _ := fieldpath.Get(r, p)
		next, err := fn(fieldpath.Clone(fieldpath.Record{"v": cur})["v"])
		if err != nil {
			return nil, err
		}
		return fieldpath.Set(r, p, next), nil
	})
}

// Apply replaces the whole record with fn's result.
func (s *Session) Apply(fn func(current fieldpath.Record) (fieldpath.Record, error)) error {
	return s.mutate(fieldpath.Path{}, false, func(r fieldpath.Record) (fieldpath.Record, error) {
		next, err := fn(fieldpath.Clone(r))
		if err != nil {
			return nil, err
		}
		if next == nil {
			next = fieldpath.Record{}
		}
		return next, nil
	})
}

func (s *Session) mutate(p fieldpath.Path, validateLeaf bool, fn func(fieldpath.Record) (fieldpath.Record, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	next, err := fn(s.data)
	if err != nil {
		return err
	}
	s.data = next
	s.dirty = true
	s.generation++
	if !p.IsZero() {
		s.validation.Touched[p.String()] = true
		if validateLeaf {
			s.applyFieldValidationLocked(p)
		}
	}
	s.scheduleValidationLocked()
	s.scheduleAutoSaveLocked()
	s.recomputeLocked()
	return nil
}

// TouchField marks path as visited and validates it, as on blur.
func (s *Session) TouchField(path string) error {
	p, err := fieldpath.Parse(path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.validation.Touched[p.String()] = true
	s.applyFieldValidationLocked(p)
	s.recomputeLocked()
	return nil
}

// ValidateField validates the current value at path and merges the outcome.
func (s *Session) ValidateField(path string) (validation.FieldResult, error) {
	p, err := fieldpath.Parse(path)
	if err != nil {
		return validation.FieldResult{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	res := s.applyFieldValidationLocked(p)
	s.recomputeLocked()
	return res, nil
}

// ValidateAll validates the whole record and replaces the message maps.
func (s *Session) ValidateAll() validation.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := s.applyFullValidationLocked()
	s.recomputeLocked()
	return res
}

func (s *Session) applyFieldValidationLocked(p fieldpath.Path) validation.FieldResult {
	value, _ := fieldpath.Get(s.data, p)
	res := s.domain.Validator.ValidateField(p, value, s.data)
	key := p.String()
	delete(s.validation.Errors, key)
	delete(s.validation.Warnings, key)
	for k, m := range res.Errors {
		s.validation.Errors[k] = m
	}
	for k, m := range res.Warnings {
		s.validation.Warnings[k] = m
	}
	for k, ok := range res.FieldValidation {
		s.validation.FieldValidation[k] = ok
	}
	s.validation.IsValid = len(s.validation.Errors) == 0
	return res
}

func (s *Session) applyFullValidationLocked() validation.Result {
	res := s.domain.Validator.ValidateAll(s.data)
	touched := s.validation.Touched
	s.validation = newValidationState()
	s.validation.Touched = touched
	for k, m := range res.Errors {
		s.validation.Errors[k] = m
	}
	for k, m := range res.Warnings {
		s.validation.Warnings[k] = m
	}
	for k, ok := range res.FieldValidation {
		s.validation.FieldValidation[k] = ok
	}
	s.validation.IsValid = len(s.validation.Errors) == 0
	return res
}

func (s *Session) scheduleValidationLocked() {
	if s.opts.validationDelay <= 0 {
		s.applyFullValidationLocked()
		return
	}
	s.validateSeq++
	seq := s.validateSeq
	stopTimer(s.validateTimer)
	s.validateTimer = s.opts.clock.AfterFunc(s.opts.validationDelay, func() { s.fireValidation(seq) })
}

func (s *Session) fireValidation(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || seq != s.validateSeq {
		return
	}
	s.applyFullValidationLocked()
	s.recomputeLocked()
}

func (s *Session) recomputeLocked() {
	completion := s.domain.Validator.Progress(s.data)
	s.progress = CalculateProgress(s.data, s.validation.Errors, completion, s.domain.Relaxed)
}

// IsDirty reports whether data changed since the last successful save.
func (s *Session) IsDirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// IsLoading reports whether a reload from the slot is in progress.
func (s *Session) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Status returns the auto-save scheduler state.
func (s *Session) Status() SaveStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.autoSave.IsAutoSaving:
		return StatusSaving
	case s.dirty:
		return StatusDirty
	}
	return StatusClean
}

// Validation returns a copy of the validation state.
func (s *Session) Validation() ValidationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validation.clone()
}

// Progress returns the derived progress state.
func (s *Session) Progress() ProgressState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// AutoSave returns a copy of the auto-save state.
func (s *Session) AutoSave() AutoSaveState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoSave.clone()
}

// CanNavigateNext is the strict step gate: every required field filled and
// no validation errors. Progress().CanAdvanceToNextStep is the lenient gate
// and may disagree.
func (s *Session) CanNavigateNext() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress.RequiredFieldsComplete && s.validation.IsValid
}

// ValidationSummary lists the current messages.
func (s *Session) ValidationSummary() ValidationSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summaryLocked()
}

func (s *Session) summaryLocked() ValidationSummary {
	sum := ValidationSummary{
		IsValid:  s.validation.IsValid,
		Errors:   messages(s.validation.Errors),
		Warnings: messages(s.validation.Warnings),
	}
	sum.ErrorCount = len(sum.Errors)
	sum.WarningCount = len(sum.Warnings)
	return sum
}

func messages(m map[string]string) []FieldMessage {
	out := make([]FieldMessage, 0, len(m))
	for path, msg := range m {
		out = append(out, FieldMessage{Path: path, Message: msg})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Save validates and persists immediately, bypassing the debounce. It fails
// with a *ValidationError or ErrConflict.
func (s *Session) Save(ctx context.Context) (err error) {
	ctx, span := s.opts.tracer.Start(ctx, "save")
	defer func() { span.End(err) }()
	start := s.opts.clock.Now()
	err = s.save(ctx, true)
	s.observe(ctx, "save", err == nil, start)
	return err
}

func (s *Session) save(ctx context.Context, checkConflict bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.applyFullValidationLocked()
	s.recomputeLocked()
	if !s.validation.IsValid {
		summary := s.summaryLocked()
		s.mu.Unlock()
		return &ValidationError{Summary: summary}
	}
	data, gen := s.data, s.generation
	s.mu.Unlock()
	return s.persist(ctx, data, gen, checkConflict)
}

// Reset restores defaults, clears validation and auto-save state and deletes
// the stored snapshot. A save already in flight completes first, so its write
// cannot outlive the reset. A failed delete is logged.
func (s *Session) Reset(ctx context.Context) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.cancelAutoSaveLocked()
	s.validateSeq++
	stopTimer(s.validateTimer)
	s.data = fieldpath.Clone(s.defaults)
	s.dirty = false
	s.generation++
	s.lastSynced = ""
	s.validation = newValidationState()
	s.autoSave = AutoSaveState{}
	s.recomputeLocked()
	s.mu.Unlock()
	if err := s.adapter.RemoveSnapshot(ctx, s.key); err != nil {
		s.logger.Error("reset: remove snapshot failed", "key", s.key, "err", err)
	}
}

// ForceSync discards in-memory data, reloads the stored snapshot and
// revalidates. Concurrent calls share one reload.
func (s *Session) ForceSync(ctx context.Context) (err error) {
	ctx, span := s.opts.tracer.Start(ctx, "force_sync")
	defer func() { span.End(err) }()
	start := s.opts.clock.Now()
	err = s.reload(ctx)
	s.observe(ctx, "force_sync", err == nil, start)
	return err
}

func (s *Session) reload(ctx context.Context) error {
	_, err, _ := s.reloads.Do("reload", func() (any, error) {
		s.persistMu.Lock()
		defer s.persistMu.Unlock()
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return nil, ErrClosed
		}
		s.loading = true
		s.mu.Unlock()

		remote, err := s.loadRemote(ctx)

		s.mu.Lock()
		defer s.mu.Unlock()
		s.loading = false
		if err != nil {
			return nil, err
		}
		s.cancelAutoSaveLocked()
		s.data = fieldpath.Merge(s.defaults, remote)
		s.dirty = false
		s.generation++
		s.lastSynced, _ = fieldpath.Canonical(remote)
		s.autoSave.ConflictDetected = false
		s.applyFullValidationLocked()
		s.recomputeLocked()
		return nil, nil
	})
	return err
}

// loadRemote reads the stored record. A corrupt payload is logged and read as
// absent; storage errors are returned.
func (s *Session) loadRemote(ctx context.Context) (fieldpath.Record, error) {
	tagged, err := s.adapter.LoadTagged(ctx, s.key)
	if err != nil {
		return nil, err
	}
	if !tagged.Found {
		return nil, nil
	}
	rec, err := fieldpath.Unmarshal(tagged.Payload)
	if err != nil {
		s.logger.Warn("discarding corrupt snapshot", "key", s.key, "err", err)
		return nil, nil
	}
	return rec, nil
}

// ResolveConflict reconciles the session with a rival snapshot.
func (s *Session) ResolveConflict(ctx context.Context, strategy Strategy) (err error) {
	ctx, span := s.opts.tracer.Start(ctx, "resolve_conflict")
	defer func() { span.End(err) }()
	start := s.opts.clock.Now()
	switch strategy {
	case StrategyLocal:
		err = s.save(ctx, false)
	case StrategyRemote:
		err = s.reload(ctx)
	case StrategyMerge:
		err = s.merge(ctx)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}
	s.observe(ctx, "resolve_conflict", err == nil, start)
	if err == nil {
		s.logger.Info("conflict resolved", "key", s.key, "strategy", string(strategy))
	}
	return err
}

// merge layers local sections over the stored snapshot once any in-flight
// save has completed. Top-level sections still equal to their defaults count
// as gaps the stored snapshot may fill.
func (s *Session) merge(ctx context.Context) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	remote, err := s.loadRemote(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.data = fieldpath.Merge(s.defaults, remote, s.editedSectionsLocked())
	s.dirty = true
	s.generation++
	s.lastSynced, _ = fieldpath.Canonical(remote)
	s.autoSave.ConflictDetected = false
	s.scheduleValidationLocked()
	s.scheduleAutoSaveLocked()
	s.recomputeLocked()
	return nil
}

func (s *Session) editedSectionsLocked() fieldpath.Record {
	out := fieldpath.Record{}
	for k, v := range s.data {
		def, ok := s.defaults[k]
		if ok && fieldpath.Equal(fieldpath.Record{"v": v}, fieldpath.Record{"v": def}) {
			continue
		}
		out[k] = v
	}
	return out
}

// Focus runs the conflict check a window focus triggers. It reports and
// records whether a rival snapshot is present.
func (s *Session) Focus(ctx context.Context) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	current, _ := fieldpath.Canonical(s.data)
	last := s.lastSynced
	s.mu.Unlock()

	start := s.opts.clock.Now()
	conflict := s.adapter.DetectConflict(ctx, s.key, last, current)
	s.observe(ctx, "conflict_check", !conflict, start)
	if conflict {
		s.mu.Lock()
		s.autoSave.ConflictDetected = true
		s.mu.Unlock()
		s.logger.Warn("conflicting snapshot detected on focus", "key", s.key)
	}
	return conflict
}

// Close stops pending timers. A save already in flight completes.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.cancelAutoSaveLocked()
	s.validateSeq++
	stopTimer(s.validateTimer)
	return nil
}
