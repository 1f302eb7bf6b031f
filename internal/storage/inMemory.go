package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	appErrors "github.com/hamdibenjarrar/DinarWise/customErrors"
	"github.com/hamdibenjarrar/DinarWise/internal/auth"
	"github.com/hamdibenjarrar/DinarWise/internal/budget"
	"github.com/hamdibenjarrar/DinarWise/internal/finance"
)

// InMemoryStorage keeps everything in process memory. It is used for local
// runs without a database and as the backing store in handler tests.
type InMemoryStorage struct {
	mu           sync.RWMutex
	users        map[string]auth.User
	sessions     map[string]auth.Session
	transactions []finance.Transaction
	categories   []budget.Category
	settings     map[string]string
}

func NewInMemoryStorage() *InMemoryStorage {
	return &InMemoryStorage{
		users:    make(map[string]auth.User),
		sessions: make(map[string]auth.Session),
		settings: make(map[string]string),
	}
}

func (inMem *InMemoryStorage) GetStorageType() string {
	return "inmemory"
}

func (inMem *InMemoryStorage) Ping(ctx context.Context) error {
	return nil
}

func (inMem *InMemoryStorage) Close() error {
	return nil
}

func (inMem *InMemoryStorage) SaveUser(ctx context.Context, newUser auth.User) error {
	inMem.mu.Lock()
	defer inMem.mu.Unlock()

	for _, user := range inMem.users {
		if user.Email == newUser.Email {
			return appErrors.ErrorResponse{
				Code:    appErrors.ErrConflict,
				Message: fmt.Sprintf("this '%s' email address already taken, try to register with another email.", newUser.Email),
			}
		}
	}
	inMem.users[newUser.ID] = newUser
	return nil
}

func (inMem *InMemoryStorage) GetUserByEmail(ctx context.Context, email string) (auth.User, error) {
	inMem.mu.RLock()
	defer inMem.mu.RUnlock()

	for _, user := range inMem.users {
		if user.Email == email {
			return user, nil
		}
	}
	return auth.User{}, appErrors.ErrorResponse{Code: appErrors.ErrNotFound, Message: "User does not exist."}
}

func (inMem *InMemoryStorage) GetUserByID(ctx context.Context, userID string) (auth.User, error) {
	inMem.mu.RLock()
	defer inMem.mu.RUnlock()

	user, ok := inMem.users[userID]
	if !ok {
		return auth.User{}, appErrors.ErrorResponse{Code: appErrors.ErrNotFound, Message: "User does not exist."}
	}
	return user, nil
}

func (inMem *InMemoryStorage) SaveSession(ctx context.Context, session auth.Session) error {
	inMem.mu.Lock()
	defer inMem.mu.Unlock()

	inMem.sessions[session.Token] = session
	return nil
}

func (inMem *InMemoryStorage) GetSessionByToken(ctx context.Context, token string) (auth.Session, error) {
	inMem.mu.RLock()
	defer inMem.mu.RUnlock()

	session, ok := inMem.sessions[strings.TrimSpace(token)]
	if !ok {
		return auth.Session{}, appErrors.ErrorResponse{Code: appErrors.ErrNotFound, Message: "Session does not exist."}
	}
	return session, nil
}

func (inMem *InMemoryStorage) UpdateSession(ctx context.Context, token string, expireAt time.Time) error {
	inMem.mu.Lock()
	defer inMem.mu.Unlock()

	session, ok := inMem.sessions[token]
	if !ok {
		return appErrors.ErrorResponse{Code: appErrors.ErrNotFound, Message: "Session does not exist."}
	}
	session.ExpireAt = expireAt
	inMem.sessions[token] = session
	return nil
}

func (inMem *InMemoryStorage) DeleteSession(ctx context.Context, token string) error {
	inMem.mu.Lock()
	defer inMem.mu.Unlock()

	delete(inMem.sessions, token)
	return nil
}

func (inMem *InMemoryStorage) ListTransactions(ctx context.Context, userID string) ([]finance.Transaction, error) {
	inMem.mu.RLock()
	defer inMem.mu.RUnlock()

	var result []finance.Transaction
	for _, t := range inMem.transactions {
		if t.UserID == userID {
			result = append(result, t)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Date.After(result[j].Date)
	})
	return result, nil
}

func (inMem *InMemoryStorage) InsertTransaction(ctx context.Context, t finance.Transaction) (string, error) {
	inMem.mu.Lock()
	defer inMem.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	inMem.transactions = append(inMem.transactions, t)
	return t.ID, nil
}

func (inMem *InMemoryStorage) ReplaceTransaction(ctx context.Context, userID string, id string, d finance.Draft) (bool, error) {
	inMem.mu.Lock()
	defer inMem.mu.Unlock()

	for i, t := range inMem.transactions {
		if t.ID == id && t.UserID == userID {
			t.Type = d.Type
			t.Amount = d.Amount
			t.Description = d.Description
			t.Category = d.Category
			t.Date = d.Date
			inMem.transactions[i] = t
			return true, nil
		}
	}
	return false, nil
}

func (inMem *InMemoryStorage) DeleteTransaction(ctx context.Context, userID string, id string) (bool, error) {
	inMem.mu.Lock()
	defer inMem.mu.Unlock()

	for i, t := range inMem.transactions {
		if t.ID == id && t.UserID == userID {
			inMem.transactions = append(inMem.transactions[:i], inMem.transactions[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (inMem *InMemoryStorage) DeleteAllTransactions(ctx context.Context, userID string) (int64, error) {
	inMem.mu.Lock()
	defer inMem.mu.Unlock()

	kept := inMem.transactions[:0]
	var deleted int64
	for _, t := range inMem.transactions {
		if t.UserID == userID {
			deleted++
			continue
		}
		kept = append(kept, t)
	}
	inMem.transactions = kept
	return deleted, nil
}

func (inMem *InMemoryStorage) ListBudgetCategories(ctx context.Context, userID string) ([]budget.Category, error) {
	inMem.mu.RLock()
	defer inMem.mu.RUnlock()

	var result []budget.Category
	for _, c := range inMem.categories {
		if c.UserID == userID {
			result = append(result, c)
		}
	}
	return result, nil
}

// nameTaken reports whether another category of the user has the same canonical name.
func (inMem *InMemoryStorage) nameTaken(c budget.Category) bool {
	canonical := budget.CanonicalName(c.Name)
	for _, existing := range inMem.categories {
		if existing.UserID == c.UserID && existing.ID != c.ID && budget.CanonicalName(existing.Name) == canonical {
			return true
		}
	}
	return false
}

func (inMem *InMemoryStorage) SaveBudgetCategory(ctx context.Context, c budget.Category) error {
	inMem.mu.Lock()
	defer inMem.mu.Unlock()

	if inMem.nameTaken(c) {
		return budgetConflict(c.Name)
	}
	inMem.categories = append(inMem.categories, c)
	return nil
}

func (inMem *InMemoryStorage) UpdateBudgetCategory(ctx context.Context, c budget.Category) (bool, error) {
	inMem.mu.Lock()
	defer inMem.mu.Unlock()

	for i, existing := range inMem.categories {
		if existing.ID == c.ID && existing.UserID == c.UserID {
			if inMem.nameTaken(c) {
				return false, budgetConflict(c.Name)
			}
			inMem.categories[i] = c
			return true, nil
		}
	}
	return false, nil
}

func (inMem *InMemoryStorage) DeleteBudgetCategory(ctx context.Context, userID string, categoryID string) (bool, error) {
	inMem.mu.Lock()
	defer inMem.mu.Unlock()

	for i, c := range inMem.categories {
		if c.ID == categoryID && c.UserID == userID {
			inMem.categories = append(inMem.categories[:i], inMem.categories[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func settingKey(userID, key string) string {
	return userID + "/" + key
}

func (inMem *InMemoryStorage) GetSetting(ctx context.Context, userID string, key string) (string, bool, error) {
	inMem.mu.RLock()
	defer inMem.mu.RUnlock()

	value, ok := inMem.settings[settingKey(userID, key)]
	return value, ok, nil
}

func (inMem *InMemoryStorage) SetSetting(ctx context.Context, userID string, key string, value string) error {
	inMem.mu.Lock()
	defer inMem.mu.Unlock()

	inMem.settings[settingKey(userID, key)] = value
	return nil
}
