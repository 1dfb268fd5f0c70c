package session

import "sync"

// ResultStore collects the items a run has finished, in completion order.
// Append-only: items are never removed or reordered, so indices and tokens
// already handed to clients stay valid for the life of the run.
type ResultStore struct {
	mu    sync.Mutex
	items []DownloadItem
}

func NewResultStore() *ResultStore {
	return &ResultStore{}
}

func (r *ResultStore) Append(item DownloadItem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, item)
}

// Snapshot returns a point-in-time copy of the stored items. Appends that
// happen later do not show up in a snapshot already taken.
func (r *ResultStore) Snapshot() []DownloadItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]DownloadItem, len(r.items))
	copy(out, r.items)
	return out
}

func (r *ResultStore) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Counts reports how many stored items succeeded and failed.
func (r *ResultStore) Counts() (succeeded, failed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.items {
		if item.Status == StatusSucceeded {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}
