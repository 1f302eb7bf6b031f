package finance

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	appErrors "github.com/hamdibenjarrar/DinarWise/customErrors"
	"github.com/hamdibenjarrar/DinarWise/internal/auth"
	"github.com/hamdibenjarrar/DinarWise/internal/contextutil"
	"github.com/hamdibenjarrar/DinarWise/logging"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultPersistenceTimeout = 15 * time.Second
	TempIDPrefix              = "temp-"
)

// Persistence is the document store the transaction store talks to.
// InsertTransaction assigns an id when tx.ID is empty and returns it.
type Persistence interface {
	ListTransactions(ctx context.Context, userID string) ([]Transaction, error)
	InsertTransaction(ctx context.Context, tx Transaction) (string, error)
	ReplaceTransaction(ctx context.Context, userID string, id string, draft Draft) (matched bool, err error)
	DeleteTransaction(ctx context.Context, userID string, id string) (deleted bool, err error)
	DeleteAllTransactions(ctx context.Context, userID string) (int64, error)
}

// Store keeps the authoritative, date-ordered transaction list of one user and
// the totals derived from it. Mutations run through a FIFO queue; reads return
// snapshots and never block on persistence.
type Store struct {
	user    auth.Identity
	db      Persistence
	timeout time.Duration
	nowFn   func() time.Time

	mu           sync.RWMutex
	transactions []Transaction
	totals       Totals
	err          error

	loads singleflight.Group
	queue *mutationQueue
}

func NewStore(user auth.Identity, db Persistence, timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = DefaultPersistenceTimeout
	}
	return &Store{
		user:    user,
		db:      db,
		timeout: timeout,
		nowFn:   func() time.Time { return time.Now().UTC() },
		queue:   newMutationQueue(),
	}
}

func (s *Store) User() auth.Identity {
	return s.user
}

// Transactions returns a copy of the current list, most recent first.
func (s *Store) Transactions() []Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Transaction, len(s.transactions))
	copy(out, s.transactions)
	return out
}

func (s *Store) Totals() Totals {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totals
}

// Err returns the error of the last failed load, or nil.
func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

func (s *Store) Close() {
	s.queue.close()
}

// Load replaces the list with the persisted transactions of the store's user.
func (s *Store) Load(ctx context.Context) error {
	if err := s.requireUser(); err != nil {
		return err
	}
	return s.queue.do(ctx, func() error { return s.load(ctx) })
}

// Refresh reloads the list. Concurrent refreshes share one round-trip, which
// outlives any single caller giving up.
func (s *Store) Refresh(ctx context.Context) error {
	if err := s.requireUser(); err != nil {
		return err
	}
	shared := context.WithoutCancel(ctx)
	ch := s.loads.DoChan(s.user.ID, func() (interface{}, error) {
		return nil, s.queue.do(shared, func() error { return s.load(shared) })
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Add validates draft, shows it immediately under a provisional id and then
// persists it. On failure the provisional entry is discarded and the list is
// reloaded.
func (s *Store) Add(ctx context.Context, draft Draft) (Transaction, error) {
	if err := s.requireUser(); err != nil {
		return Transaction{}, err
	}
	if err := draft.Validate(); err != nil {
		return Transaction{}, err
	}

	var saved Transaction
	err := s.queue.do(ctx, func() error {
		now := s.nowFn()
		d := draft.normalized(now)
		tx := Transaction{
			ID:          TempIDPrefix + uuid.New().String(),
			UserID:      s.user.ID,
			Type:        d.Type,
			Amount:      d.Amount,
			Description: d.Description,
			Category:    d.Category,
			Date:        d.Date,
			CreatedAt:   now,
		}

		s.mu.Lock()
		s.transactions = append([]Transaction{tx}, s.transactions...)
		s.totals = s.totals.Apply(tx)
		s.mu.Unlock()

		persisted := tx
		persisted.ID = ""
		err := s.persist(ctx, func(pctx context.Context) error {
			var ierr error
			persisted.ID, ierr = s.db.InsertTransaction(pctx, persisted)
			return ierr
		})
		if err != nil {
			s.discard(tx.ID)
			if lerr := s.load(context.WithoutCancel(ctx)); lerr != nil {
				return appErrors.ErrorResponse{
					Code:     appErrors.ErrConsistency,
					Message:  "failed to save transaction and failed to reload transactions",
					Severity: appErrors.SeverityError,
					Err:      errors.Join(err, lerr),
				}
			}
			return err
		}

		s.mu.Lock()
		for i := range s.transactions {
			if s.transactions[i].ID == tx.ID {
				s.transactions[i].ID = persisted.ID
				break
			}
		}
		s.mu.Unlock()

		tx.ID = persisted.ID
		saved = tx
		return nil
	})
	return saved, err
}

// Update replaces every mutable field of the transaction with id.
func (s *Store) Update(ctx context.Context, id string, draft Draft) error {
	if err := s.requireUser(); err != nil {
		return err
	}
	if err := draft.Validate(); err != nil {
		return err
	}

	return s.queue.do(ctx, func() error {
		d := draft.normalized(s.nowFn())
		var matched bool
		if err := s.persist(ctx, func(pctx context.Context) error {
			var rerr error
			matched, rerr = s.db.ReplaceTransaction(pctx, s.user.ID, id, d)
			return rerr
		}); err != nil {
			return err
		}
		if !matched {
			return notFound(id)
		}
		return s.load(context.WithoutCancel(ctx))
	})
}

func (s *Store) Remove(ctx context.Context, id string) error {
	if err := s.requireUser(); err != nil {
		return err
	}

	return s.queue.do(ctx, func() error {
		var deleted bool
		if err := s.persist(ctx, func(pctx context.Context) error {
			var derr error
			deleted, derr = s.db.DeleteTransaction(pctx, s.user.ID, id)
			return derr
		}); err != nil {
			return err
		}
		if !deleted {
			return notFound(id)
		}
		return s.load(context.WithoutCancel(ctx))
	})
}

// ResetAll deletes every transaction of the user and returns how many were removed.
func (s *Store) ResetAll(ctx context.Context) (int64, error) {
	if err := s.requireUser(); err != nil {
		return 0, err
	}

	var count int64
	err := s.queue.do(ctx, func() error {
		if err := s.persist(ctx, func(pctx context.Context) error {
			var derr error
			count, derr = s.db.DeleteAllTransactions(pctx, s.user.ID)
			return derr
		}); err != nil {
			return err
		}

		s.mu.Lock()
		s.transactions = nil
		s.totals = Totals{}
		s.err = nil
		s.mu.Unlock()
		return nil
	})
	return count, err
}

// load must run on the queue goroutine. A timed out or cancelled load keeps
// the last known-good snapshot; any other failure clears it.
func (s *Store) load(ctx context.Context) error {
	var txs []Transaction
	err := s.persist(ctx, func(pctx context.Context) error {
		var lerr error
		txs, lerr = s.db.ListTransactions(pctx, s.user.ID)
		return lerr
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.err = err
		if keepsSnapshot(err) {
			return err
		}
		s.transactions = nil
		s.totals = Totals{}
		return err
	}

	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].Date.After(txs[j].Date)
	})
	s.transactions = txs
	s.totals = Fold(txs)
	s.err = nil
	return nil
}

// persist runs call under the persistence timeout and maps failures to
// PERSISTENCE errors.
func (s *Store) persist(ctx context.Context, call func(pctx context.Context) error) error {
	pctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := call(pctx)
	if err == nil {
		return nil
	}

	traceID := contextutil.TraceIDFromContext(ctx)
	timedOut := errors.Is(err, context.DeadlineExceeded) || errors.Is(pctx.Err(), context.DeadlineExceeded)
	logging.Logger.Errorf("[TraceID=%s] | persistence call failed for user %s, timeout: %t | Error: %v", traceID, s.user.ID, timedOut, err)

	msg := "failed to reach the transaction storage"
	if timedOut {
		msg = fmt.Sprintf("transaction storage did not answer within %s", s.timeout)
	}
	return appErrors.ErrorResponse{
		Code:     appErrors.ErrPersistence,
		Message:  msg,
		Severity: appErrors.SeverityError,
		Timeout:  timedOut,
		Err:      err,
	}
}

func keepsSnapshot(err error) bool {
	var appErr appErrors.ErrorResponse
	if errors.As(err, &appErr) && appErr.Timeout {
		return true
	}
	return errors.Is(err, context.Canceled)
}

func (s *Store) discard(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.transactions {
		if s.transactions[i].ID == id {
			s.transactions = append(s.transactions[:i:i], s.transactions[i+1:]...)
			break
		}
	}
	s.totals = Fold(s.transactions)
}

func (s *Store) requireUser() error {
	if s.user.ID == "" {
		return appErrors.ErrorResponse{
			Code:     appErrors.ErrAuth,
			Message:  "You must be signed in to manage transactions.",
			Severity: appErrors.SeverityError,
		}
	}
	return nil
}

func notFound(id string) error {
	return appErrors.ErrorResponse{
		Code:     appErrors.ErrNotFound,
		Message:  fmt.Sprintf("transaction '%s' not found", id),
		Severity: appErrors.SeverityWarning,
	}
}
