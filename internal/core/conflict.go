package core

import (
	"context"
	"fmt"

	"shipflow/internal/fieldpath"
	"shipflow/internal/kv"
)

// DetectConflict reports whether the slot at key holds a snapshot written by
// another instance that matches neither lastSaved nor current. Payloads are
// compared in canonical form so key order is irrelevant. An empty lastSaved
// means this instance has never synced.
func DetectConflict(ctx context.Context, store kv.Store, key, instanceID, lastSaved, current string) (bool, error) {
	payload, ok, err := store.GetItem(ctx, key)
	if err != nil {
		return false, fmt.Errorf("read snapshot %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	tag, _, err := store.GetItem(ctx, InstanceKey(key))
	if err != nil {
		return false, fmt.Errorf("read snapshot instance %s: %w", key, err)
	}
	if tag == instanceID {
		return false, nil
	}
	stored := fieldpath.CanonicalString(payload)
	if stored == fieldpath.CanonicalString(lastSaved) || stored == fieldpath.CanonicalString(current) {
		return false, nil
	}
	return true, nil
}

// DetectConflict runs DetectConflict against the adapter's store and instance.
// Read failures are logged and reported as no conflict.
func (a *Adapter) DetectConflict(ctx context.Context, key, lastSaved, current string) bool {
	conflict, err := DetectConflict(ctx, a.store, key, a.instanceID, lastSaved, current)
	if err != nil {
		a.logger.Warn("conflict check failed", "key", key, "instance", a.instanceID, "err", err)
		return false
	}
	return conflict
}
