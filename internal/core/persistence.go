package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"shipflow/internal/fieldpath"
	"shipflow/internal/kv"
)

const (
	instanceSuffix  = "_instance"
	timestampSuffix = "_timestamp"
)

// InstanceKey returns the sibling key holding the writer's instance id.
func InstanceKey(key string) string { return key + instanceSuffix }

// TimestampKey returns the sibling key holding the write time in Unix milliseconds.
func TimestampKey(key string) string { return key + timestampSuffix }

// TaggedSnapshot is a raw stored snapshot with its sibling entries.
type TaggedSnapshot struct {
	Payload   string
	Instance  string
	Timestamp time.Time
	Found     bool
}

// Adapter reads and writes tagged snapshots in a shared slot store.
type Adapter struct {
	store      kv.Store
	instanceID string
	clock      Clock
	logger     *slog.Logger
}

// NewAdapter returns an adapter that tags writes with instanceID.
func NewAdapter(store kv.Store, instanceID string, clock Clock, logger *slog.Logger) *Adapter {
	if clock == nil {
		clock = SystemClock()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{store: store, instanceID: instanceID, clock: clock, logger: logger}
}

// Store returns the underlying slot store.
func (a *Adapter) Store() kv.Store { return a.store }

// SaveSnapshot serialises data under key, then tags it with the instance id
// and write time. The three writes are not atomic.
func (a *Adapter) SaveSnapshot(ctx context.Context, key string, data any) (string, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode snapshot %s: %w", key, err)
	}
	payload := string(b)
	if err := a.store.SetItem(ctx, key, payload); err != nil {
		return "", fmt.Errorf("write snapshot %s: %w", key, err)
	}
	if err := a.store.SetItem(ctx, InstanceKey(key), a.instanceID); err != nil {
		return "", fmt.Errorf("write snapshot instance %s: %w", key, err)
	}
	ts := strconv.FormatInt(a.clock.Now().UnixMilli(), 10)
	if err := a.store.SetItem(ctx, TimestampKey(key), ts); err != nil {
		return "", fmt.Errorf("write snapshot timestamp %s: %w", key, err)
	}
	return payload, nil
}

// LoadSnapshot returns the record stored at key. Missing keys, read failures
// and corrupt payloads all yield false; failures are logged.
func (a *Adapter) LoadSnapshot(ctx context.Context, key string) (fieldpath.Record, bool) {
	tagged, err := a.LoadTagged(ctx, key)
	if err != nil {
		a.logger.Warn("load snapshot failed", "key", key, "err", err)
		return nil, false
	}
	if !tagged.Found {
		return nil, false
	}
	rec, err := fieldpath.Unmarshal(tagged.Payload)
	if err != nil {
		a.logger.Warn("discarding corrupt snapshot", "key", key, "err", err)
		return nil, false
	}
	return rec, true
}

// LoadTagged reads the raw payload at key with its instance tag and timestamp.
// Storage errors are returned; an unparsable timestamp is left zero.
func (a *Adapter) LoadTagged(ctx context.Context, key string) (TaggedSnapshot, error) {
	payload, ok, err := a.store.GetItem(ctx, key)
	if err != nil {
		return TaggedSnapshot{}, fmt.Errorf("read snapshot %s: %w", key, err)
	}
	if !ok {
		return TaggedSnapshot{}, nil
	}
	out := TaggedSnapshot{Payload: payload, Found: true}
	if out.Instance, _, err = a.store.GetItem(ctx, InstanceKey(key)); err != nil {
		return TaggedSnapshot{}, fmt.Errorf("read snapshot instance %s: %w", key, err)
	}
	raw, ok, err := a.store.GetItem(ctx, TimestampKey(key))
	if err != nil {
		return TaggedSnapshot{}, fmt.Errorf("read snapshot timestamp %s: %w", key, err)
	}
	if ok {
		if ms, perr := strconv.ParseInt(raw, 10, 64); perr == nil {
			out.Timestamp = time.UnixMilli(ms).UTC()
		}
	}
	return out, nil
}

// RemoveSnapshot deletes the payload and both sibling entries.
func (a *Adapter) RemoveSnapshot(ctx context.Context, key string) error {
	for _, k := range []string{key, InstanceKey(key), TimestampKey(key)} {
		if err := a.store.RemoveItem(ctx, k); err != nil {
			return fmt.Errorf("remove snapshot %s: %w", k, err)
		}
	}
	return nil
}
