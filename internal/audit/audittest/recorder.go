// Package audittest provides an in-memory audit.Recorder for tests.
package audittest

import (
	"context"
	"sync"

	"agency_portal_backend/internal/audit"
	"agency_portal_backend/platform/db"
)

// Recorder keeps every entry in memory.
type Recorder struct {
	mu      sync.Mutex
	Entries []audit.Entry
	Err     error
}

func (r *Recorder) Record(_ context.Context, e audit.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Entries = append(r.Entries, e)
	return nil
}

func (r *Recorder) RecordTx(ctx context.Context, _ db.Querier, e audit.Entry) error {
	return r.Record(ctx, e)
}

// Count returns how many entries carry action.
func (r *Recorder) Count(action string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.Entries {
		if e.Action == action {
			n++
		}
	}
	return n
}

var _ audit.Recorder = (*Recorder)(nil)
