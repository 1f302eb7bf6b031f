package finance

import (
	"context"
	"sync"
	"time"

	"github.com/hamdibenjarrar/DinarWise/internal/auth"
	"github.com/hamdibenjarrar/DinarWise/logging"
	"golang.org/x/sync/singleflight"
)

const DefaultIdleTTL = 30 * time.Minute

type registryEntry struct {
	store    *Store
	lastUsed time.Time
}

// Registry hands out one Store per user so that concurrent requests of the same
// user share a mutation queue. Stores nobody asked for within the idle TTL are
// closed by EvictIdle.
type Registry struct {
	db      Persistence
	timeout time.Duration
	idleTTL time.Duration
	nowFn   func() time.Time

	mu     sync.Mutex
	stores map[string]*registryEntry
	loads  singleflight.Group
}

func NewRegistry(db Persistence, timeout, idleTTL time.Duration) *Registry {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	return &Registry{
		db:      db,
		timeout: timeout,
		idleTTL: idleTTL,
		nowFn:   time.Now,
		stores:  make(map[string]*registryEntry),
	}
}

// For returns the store bound to user, loading it on first use. Concurrent
// first calls for a user wait for the same load, which keeps running when the
// caller that started it goes away. A store whose first load fails is not kept.
func (r *Registry) For(ctx context.Context, user auth.Identity) (*Store, error) {
	if store, ok := r.cached(user.ID); ok {
		return store, nil
	}

	shared := context.WithoutCancel(ctx)
	ch := r.loads.DoChan(user.ID, func() (interface{}, error) {
		if store, ok := r.cached(user.ID); ok {
			return store, nil
		}
		store := NewStore(user, r.db, r.timeout)
		if err := store.Load(shared); err != nil {
			store.Close()
			return nil, err
		}
		r.mu.Lock()
		r.stores[user.ID] = &registryEntry{store: store, lastUsed: r.nowFn()}
		r.mu.Unlock()
		return store, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Store), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Registry) cached(userID string) (*Store, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.stores[userID]
	if !ok {
		return nil, false
	}
	entry.lastUsed = r.nowFn()
	return entry.store, true
}

// Len returns the number of live stores.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}

func (r *Registry) Evict(userID string) {
	r.mu.Lock()
	entry, ok := r.stores[userID]
	delete(r.stores, userID)
	r.mu.Unlock()

	if ok {
		entry.store.Close()
	}
}

// EvictIdle closes every store unused for longer than the idle TTL and
// returns how many were closed.
func (r *Registry) EvictIdle() int {
	cutoff := r.nowFn().Add(-r.idleTTL)

	r.mu.Lock()
	var idle []*Store
	for id, entry := range r.stores {
		if entry.lastUsed.Before(cutoff) {
			idle = append(idle, entry.store)
			delete(r.stores, id)
		}
	}
	r.mu.Unlock()

	for _, store := range idle {
		store.Close()
	}
	return len(idle)
}

// Janitor calls EvictIdle every interval until ctx is done.
func (r *Registry) Janitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.EvictIdle(); n > 0 {
				logging.Logger.Debugf("released %d idle transaction stores", n)
			}
		}
	}
}

func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, entry := range r.stores {
		entry.store.Close()
		delete(r.stores, id)
	}
}
