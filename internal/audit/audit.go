// Package audit is the append-only sink every committed mutation flows
// through: routing replacements, task transitions, sync applies and conflict
// resolutions. The core never reads it back.
package audit

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type Entry struct {
	ID         string      `json:"id"`
	Action     string      `json:"action"`
	EntityType string      `json:"entity_type"`
	EntityID   string      `json:"entity_id"`
	Before     interface{} `json:"before,omitempty"`
	After      interface{} `json:"after,omitempty"`
	ActorID    string      `json:"actor_id,omitempty"`
	Reason     string      `json:"reason,omitempty"`
	At         time.Time   `json:"at"`
}

type Recorder interface {
	Record(ctx context.Context, e Entry)
}

// Stamp fills the generated fields of an entry.
func Stamp(e Entry) Entry {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	return e
}

const streamKey = "audit:log"

// RedisRecorder appends entries to a redis stream. Failures are logged, not
// propagated: an audit hiccup must not roll back a committed mutation.
type RedisRecorder struct {
	rdb *redis.Client
}

func NewRedisRecorder(rdb *redis.Client) *RedisRecorder {
	return &RedisRecorder{rdb: rdb}
}

func (r *RedisRecorder) Record(ctx context.Context, e Entry) {
	e = Stamp(e)
	data, err := json.Marshal(e)
	if err != nil {
		log.Printf("audit: failed to marshal entry: %v", err)
		return
	}
	if err := r.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: streamKey,
		Values: map[string]interface{}{"entry": data},
	}).Err(); err != nil {
		log.Printf("audit: failed to append entry: %v", err)
	}
}

// MemoryRecorder collects entries for tests and the dev fallback store.
type MemoryRecorder struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

func (r *MemoryRecorder) Record(_ context.Context, e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Stamp(e))
}

// Entries returns a snapshot of everything recorded so far.
func (r *MemoryRecorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// Multi fans an entry out to several recorders (store + websocket feed).
type Multi []Recorder

func (m Multi) Record(ctx context.Context, e Entry) {
	e = Stamp(e)
	for _, r := range m {
		r.Record(ctx, e)
	}
}
