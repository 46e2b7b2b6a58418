package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shipflow/internal/fieldpath"
)

// AutoSaveState reports the scheduler's progress to the UI.
type AutoSaveState struct {
	IsAutoSaving     bool       `json:"isAutoSaving"`
	LastAutoSave     *time.Time `json:"lastAutoSave"`
	AutoSaveError    string     `json:"autoSaveError,omitempty"`
	ConflictDetected bool       `json:"conflictDetected"`
}

func (a AutoSaveState) clone() AutoSaveState {
	if a.LastAutoSave != nil {
		t := *a.LastAutoSave
		a.LastAutoSave = &t
	}
	return a
}

// SaveStatus is the auto-save scheduler state.
type SaveStatus string

// Save statuses reported by Session.Status.
const (
	StatusClean  SaveStatus = "clean"
	StatusDirty  SaveStatus = "dirty"
	StatusSaving SaveStatus = "saving"
)

func stopTimer(t Timer) {
	if t != nil {
		t.Stop()
	}
}

// scheduleAutoSaveLocked restarts the trailing debounce. Only the timer
// holding the latest sequence number may save.
func (s *Session) scheduleAutoSaveLocked() {
	if !s.opts.autoSave {
		return
	}
	s.saveSeq++
	seq := s.saveSeq
	stopTimer(s.saveTimer)
	s.saveTimer = s.opts.clock.AfterFunc(s.opts.autoSaveDelay, func() { s.fireAutoSave(seq) })
}

func (s *Session) cancelAutoSaveLocked() {
	s.saveSeq++
	stopTimer(s.saveTimer)
	s.saveTimer = nil
}

func (s *Session) fireAutoSave(seq uint64) {
	s.mu.Lock()
	if s.closed || seq != s.saveSeq || !s.dirty {
		s.mu.Unlock()
		return
	}
	data, gen := s.data, s.generation
	s.mu.Unlock()

	start := s.opts.clock.Now()
	err := s.persist(s.bg, data, gen, true)
	s.observe(s.bg, "autosave", err == nil, start)
	switch {
	case err == nil:
		s.logger.Debug("auto-saved snapshot", "key", s.key)
	case errors.Is(err, ErrConflict):
		s.logger.Warn("auto-save skipped: conflicting snapshot", "key", s.key)
	default:
		s.logger.Error("auto-save failed", "key", s.key, "err", err)
	}
}

// persist runs conflict check (optionally), the configured latency and the
// tagged write. The session stays dirty unless the written generation is
// still current.
func (s *Session) persist(ctx context.Context, data fieldpath.Record, gen uint64, checkConflict bool) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	s.autoSave.IsAutoSaving = true
	lastSynced := s.lastSynced
	s.mu.Unlock()

	current, err := fieldpath.Canonical(data)
	if err != nil {
		return s.finishSave(fmt.Errorf("encode snapshot %s: %w", s.key, err), "", gen)
	}
	if checkConflict {
		start := s.opts.clock.Now()
		conflict := s.adapter.DetectConflict(ctx, s.key, lastSynced, current)
		s.observe(ctx, "conflict_check", !conflict, start)
		if conflict {
			s.mu.Lock()
			s.autoSave.IsAutoSaving = false
			s.autoSave.ConflictDetected = true
			s.mu.Unlock()
			return ErrConflict
		}
	}
	if s.opts.saveLatency > 0 {
		s.wait(s.opts.saveLatency)
	}
	payload, err := s.adapter.SaveSnapshot(ctx, s.key, data)
	return s.finishSave(err, payload, gen)
}

func (s *Session) finishSave(err error, payload string, gen uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoSave.IsAutoSaving = false
	if err != nil {
		s.autoSave.AutoSaveError = err.Error()
		return err
	}
	now := s.opts.clock.Now()
	s.lastSynced = fieldpath.CanonicalString(payload)
	s.autoSave.LastAutoSave = &now
	s.autoSave.AutoSaveError = ""
	s.autoSave.ConflictDetected = false
	if s.generation == gen {
		s.dirty = false
	}
	return nil
}

// wait blocks for d on the session clock. An in-flight save is never cancelled.
func (s *Session) wait(d time.Duration) {
	done := make(chan struct{})
	s.opts.clock.AfterFunc(d, func() { close(done) })
	<-done
}

func (s *Session) observe(ctx context.Context, op string, success bool, start time.Time) {
	s.opts.metrics.Observe(ctx, op, success, s.opts.clock.Now().Sub(start))
}
