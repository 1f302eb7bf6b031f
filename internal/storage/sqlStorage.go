package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	appErrors "github.com/hamdibenjarrar/DinarWise/customErrors"
	"github.com/hamdibenjarrar/DinarWise/internal/auth"
	"github.com/hamdibenjarrar/DinarWise/internal/budget"
	"github.com/hamdibenjarrar/DinarWise/internal/config"
	"github.com/hamdibenjarrar/DinarWise/internal/contextutil"
	"github.com/hamdibenjarrar/DinarWise/internal/finance"
	"github.com/hamdibenjarrar/DinarWise/logging"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// --- INIT START --- //

const (
	connectAttempts = 15
	connectDelay    = 3 * time.Second
)

// Open connects to the database selected by cfg.DBDriver and applies pending
// migrations. The memory driver is handled by the caller.
func Open(cfg *config.Config) (*SQLStorage, error) {
	switch cfg.DBDriver {
	case config.DriverMySQL:
		db, err := openMySQL(cfg)
		if err != nil {
			return nil, err
		}
		return NewSQLStorage(db, config.DriverMySQL), nil
	case config.DriverSQLite:
		db, err := openSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return NewSQLStorage(db, config.DriverSQLite), nil
	default:
		return nil, fmt.Errorf("unsupported sql driver '%s'", cfg.DBDriver)
	}
}

func mySQLConfig(cfg *config.Config) (*mysql.Config, error) {
	var dsn *mysql.Config
	if cfg.FullDSN != "" {
		parsed, err := mysql.ParseDSN(cfg.FullDSN)
		if err != nil {
			return nil, fmt.Errorf("invalid FULL_DSN: %w", err)
		}
		dsn = parsed
	} else {
		dsn = mysql.NewConfig()
		dsn.User = cfg.DBUser
		dsn.Passwd = cfg.DBPass
		dsn.Net = "tcp"
		dsn.Addr = net.JoinHostPort(cfg.DBHost, cfg.DBPort)
		dsn.DBName = cfg.DBName
	}
	if dsn.DBName == "" {
		dsn.DBName = cfg.DBName
	}
	dsn.ParseTime = true
	dsn.Loc = time.UTC
	return dsn, nil
}

func openMySQL(cfg *config.Config) (*sql.DB, error) {
	dsn, err := mySQLConfig(cfg)
	if err != nil {
		return nil, err
	}
	dbname := dsn.DBName

	adminCfg := dsn.Clone()
	adminCfg.DBName = ""

	logging.Logger.Info("Connecting to MySQL server for initialization...")
	adminDb, err := sql.Open("mysql", adminCfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open admin mysql handle: %v", err)
	}
	defer adminDb.Close()

	connected := false
	for i := 0; i < connectAttempts; i++ {
		if err := adminDb.Ping(); err == nil {
			connected = true
			break
		}
		logging.Logger.Warnf("Database not ready, retrying... (%d/%d)", i+1, connectAttempts)
		time.Sleep(connectDelay)
	}
	if !connected {
		return nil, fmt.Errorf("database unreachable after multiple attempts")
	}

	var dbnameExistence string
	checkDbnameExistQuery := "SELECT SCHEMA_NAME FROM INFORMATION_SCHEMA.SCHEMATA WHERE SCHEMA_NAME = ?"
	err = adminDb.QueryRow(checkDbnameExistQuery, dbname).Scan(&dbnameExistence)
	if err == sql.ErrNoRows {
		logging.Logger.Infof("Database '%s' does not exist, creating...", dbname)
		createDbSql := fmt.Sprintf("CREATE DATABASE `%s` CHARACTER SET utf8mb4 COLLATE utf8mb4_general_ci;", dbname)
		if _, err := adminDb.Exec(createDbSql); err != nil {
			return nil, fmt.Errorf("failed to create database: %v", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to check database existence: %v", err)
	}

	logging.Logger.Info("Connecting to database...")
	db, err := sql.Open("mysql", dsn.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database handle: %v", err)
	}

	logging.Logger.Info("Connected to database successfully")
	logging.Logger.Info("Running migrations...")
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %v", err)
	}
	return db, nil
}

func openSQLite(dbPath string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	logging.Logger.Infof("Opening SQLite database at %s", dbPath)
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// a single connection serializes writers and avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logging.Logger.Info("Running migrations...")
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %v", err)
	}
	return db, nil
}

// SQLStorage implements every storage interface on top of MySQL or SQLite.
type SQLStorage struct {
	db     *sql.DB
	driver string
}

func NewSQLStorage(db *sql.DB, driver string) *SQLStorage {
	return &SQLStorage{db: db, driver: driver}
}

func (s *SQLStorage) GetStorageType() string {
	if s.driver == config.DriverSQLite {
		return "SQLite"
	}
	return "MySQL"
}

func (s *SQLStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStorage) Close() error {
	return s.db.Close()
}

// --- INIT END --- //

func isDuplicateKey(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			// primary code only, when extended result codes are off
			return strings.Contains(sqliteErr.Error(), "UNIQUE constraint failed")
		}
	}
	return false
}

func internalError(message string, err error) error {
	return appErrors.ErrorResponse{
		Code:    appErrors.ErrInternal,
		Message: message,
		Err:     err,
	}
}

// --- USERS & SESSIONS --- //

func (s *SQLStorage) SaveUser(ctx context.Context, user auth.User) error {
	traceID := contextutil.TraceIDFromContext(ctx)

	query := "INSERT INTO app_user (id, name, email, hashed_password, created_at) VALUES (?, ?, ?, ?, ?);"
	_, err := s.db.ExecContext(ctx, query, user.ID, user.Name, user.Email, user.PasswordHashed, user.CreatedAt.UTC())
	if err != nil {
		if isDuplicateKey(err) {
			return appErrors.ErrorResponse{
				Code:    appErrors.ErrConflict,
				Message: fmt.Sprintf("this '%s' email address already taken, try to register with another email.", user.Email),
			}
		}
		logging.Logger.Errorf("[TraceID=%s] | failed to save user in Storage.SaveUser() function | Error: %v", traceID, err)
		return internalError("Registration failed, try again later.", err)
	}
	return nil
}

func (s *SQLStorage) getUser(ctx context.Context, where string, arg string) (auth.User, error) {
	traceID := contextutil.TraceIDFromContext(ctx)

	query := "SELECT id, name, email, hashed_password, created_at FROM app_user WHERE " + where + " = ?;"
	var row dbUser
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&row.ID, &row.Name, &row.Email, &row.PasswordHashed, &row.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return auth.User{}, appErrors.ErrorResponse{Code: appErrors.ErrNotFound, Message: "User does not exist."}
		}
		logging.Logger.Errorf("[TraceID=%s] | failed to get user in Storage.getUser() function | Error: %v", traceID, err)
		return auth.User{}, internalError("Failed to get user, try again later.", err)
	}

	user, err := row.toUser()
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to parse user row in Storage.getUser() function | Error: %v", traceID, err)
		return auth.User{}, internalError("Failed to get user, try again later.", err)
	}
	return user, nil
}

func (s *SQLStorage) GetUserByEmail(ctx context.Context, email string) (auth.User, error) {
	return s.getUser(ctx, "email", email)
}

func (s *SQLStorage) GetUserByID(ctx context.Context, userID string) (auth.User, error) {
	return s.getUser(ctx, "id", userID)
}

func (s *SQLStorage) SaveSession(ctx context.Context, session auth.Session) error {
	traceID := contextutil.TraceIDFromContext(ctx)

	query := "INSERT INTO user_session (id, token, created_at, expire_at, user_id) VALUES (?, ?, ?, ?, ?);"
	_, err := s.db.ExecContext(ctx, query, session.ID, session.Token, session.CreatedAt.UTC(), session.ExpireAt.UTC(), session.UserID)
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to save session in Storage.SaveSession() function | Error: %v", traceID, err)
		return internalError("Failed to create session, try again later.", err)
	}
	return nil
}

func (s *SQLStorage) GetSessionByToken(ctx context.Context, token string) (auth.Session, error) {
	traceID := contextutil.TraceIDFromContext(ctx)

	query := "SELECT id, token, created_at, expire_at, user_id FROM user_session WHERE token = ?;"
	var row dbSession
	err := s.db.QueryRowContext(ctx, query, token).Scan(&row.ID, &row.Token, &row.CreatedAt, &row.ExpireAt, &row.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return auth.Session{}, appErrors.ErrorResponse{Code: appErrors.ErrNotFound, Message: "Session does not exist."}
		}
		logging.Logger.Errorf("[TraceID=%s] | failed to get session in Storage.GetSessionByToken() function | Error: %v", traceID, err)
		return auth.Session{}, internalError("Failed to check session, try again later.", err)
	}

	session, err := row.toSession()
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to parse session row in Storage.GetSessionByToken() function | Error: %v", traceID, err)
		return auth.Session{}, internalError("Failed to check session, try again later.", err)
	}
	return session, nil
}

func (s *SQLStorage) UpdateSession(ctx context.Context, token string, expireAt time.Time) error {
	traceID := contextutil.TraceIDFromContext(ctx)

	query := "UPDATE user_session SET expire_at = ? WHERE token = ?;"
	if _, err := s.db.ExecContext(ctx, query, expireAt.UTC(), token); err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to update session in Storage.UpdateSession() function | Error: %v", traceID, err)
		return internalError("Failed to update session, try again later.", err)
	}
	return nil
}

func (s *SQLStorage) DeleteSession(ctx context.Context, token string) error {
	traceID := contextutil.TraceIDFromContext(ctx)

	query := "DELETE FROM user_session WHERE token = ?;"
	if _, err := s.db.ExecContext(ctx, query, token); err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to delete session in Storage.DeleteSession() function | Error: %v", traceID, err)
		return internalError("Failed to logout, try again later.", err)
	}
	return nil
}

// --- TRANSACTIONS --- //

func (s *SQLStorage) ListTransactions(ctx context.Context, userID string) ([]finance.Transaction, error) {
	traceID := contextutil.TraceIDFromContext(ctx)

	query := `SELECT id, user_id, type, amount, description, category, date, created_at
		FROM finance_transaction WHERE user_id = ? ORDER BY date DESC, created_at DESC;`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to list transactions in Storage.ListTransactions() function | Error: %v", traceID, err)
		return nil, internalError("Failed to get transactions, try again later.", err)
	}
	defer rows.Close()

	var transactions []finance.Transaction
	for rows.Next() {
		var row dbTransaction
		if err := rows.Scan(&row.ID, &row.UserID, &row.Type, &row.Amount, &row.Description, &row.Category, &row.Date, &row.CreatedAt); err != nil {
			logging.Logger.Errorf("[TraceID=%s] | failed to scan transaction row in Storage.ListTransactions() function | Error: %v", traceID, err)
			return nil, internalError("Failed to get transactions, try again later.", err)
		}
		tx, err := row.toTransaction()
		if err != nil {
			logging.Logger.Errorf("[TraceID=%s] | failed to parse transaction row in Storage.ListTransactions() function | Error: %v", traceID, err)
			return nil, internalError("Failed to get transactions, try again later.", err)
		}
		transactions = append(transactions, tx)
	}
	if err := rows.Err(); err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to iterate transactions in Storage.ListTransactions() function | Error: %v", traceID, err)
		return nil, internalError("Failed to get transactions, try again later.", err)
	}
	return transactions, nil
}

func (s *SQLStorage) InsertTransaction(ctx context.Context, t finance.Transaction) (string, error) {
	traceID := contextutil.TraceIDFromContext(ctx)

	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	query := `INSERT INTO finance_transaction (id, user_id, type, amount, description, category, date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?);`
	_, err := s.db.ExecContext(ctx, query, t.ID, t.UserID, string(t.Type), t.Amount.String(), t.Description, t.Category, t.Date.UTC(), t.CreatedAt.UTC())
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to save transaction in Storage.InsertTransaction() function | Error: %v", traceID, err)
		return "", internalError("Failed to save transaction, try again later.", err)
	}
	return t.ID, nil
}

func (s *SQLStorage) ReplaceTransaction(ctx context.Context, userID string, id string, d finance.Draft) (bool, error) {
	traceID := contextutil.TraceIDFromContext(ctx)

	// MySQL reports zero affected rows when nothing changed, so existence is checked first.
	found, err := s.exists(ctx, "SELECT COUNT(*) FROM finance_transaction WHERE id = ? AND user_id = ?;", id, userID)
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to check transaction in Storage.ReplaceTransaction() function | Error: %v", traceID, err)
		return false, internalError("Failed to update transaction, try again later.", err)
	}
	if !found {
		return false, nil
	}

	query := `UPDATE finance_transaction SET type = ?, amount = ?, description = ?, category = ?, date = ?
		WHERE id = ? AND user_id = ?;`
	if _, err := s.db.ExecContext(ctx, query, string(d.Type), d.Amount.String(), d.Description, d.Category, d.Date.UTC(), id, userID); err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to update transaction in Storage.ReplaceTransaction() function | Error: %v", traceID, err)
		return false, internalError("Failed to update transaction, try again later.", err)
	}
	return true, nil
}

func (s *SQLStorage) DeleteTransaction(ctx context.Context, userID string, id string) (bool, error) {
	traceID := contextutil.TraceIDFromContext(ctx)

	result, err := s.db.ExecContext(ctx, "DELETE FROM finance_transaction WHERE id = ? AND user_id = ?;", id, userID)
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to delete transaction in Storage.DeleteTransaction() function | Error: %v", traceID, err)
		return false, internalError("Failed to delete transaction, try again later.", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, internalError("Failed to delete transaction, try again later.", err)
	}
	return affected > 0, nil
}

func (s *SQLStorage) DeleteAllTransactions(ctx context.Context, userID string) (int64, error) {
	traceID := contextutil.TraceIDFromContext(ctx)

	result, err := s.db.ExecContext(ctx, "DELETE FROM finance_transaction WHERE user_id = ?;", userID)
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to delete transactions in Storage.DeleteAllTransactions() function | Error: %v", traceID, err)
		return 0, internalError("Failed to reset data, try again later.", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, internalError("Failed to reset data, try again later.", err)
	}
	return affected, nil
}

// --- BUDGET & SETTINGS --- //

func (s *SQLStorage) ListBudgetCategories(ctx context.Context, userID string) ([]budget.Category, error) {
	traceID := contextutil.TraceIDFromContext(ctx)

	query := "SELECT id, user_id, name, amount, color FROM budget_category WHERE user_id = ? ORDER BY created_at, name;"
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to list budget categories in Storage.ListBudgetCategories() function | Error: %v", traceID, err)
		return nil, internalError("Failed to get budget, try again later.", err)
	}
	defer rows.Close()

	var categories []budget.Category
	for rows.Next() {
		var row dbBudgetCategory
		if err := rows.Scan(&row.ID, &row.UserID, &row.Name, &row.Amount, &row.Color); err != nil {
			logging.Logger.Errorf("[TraceID=%s] | failed to scan budget category in Storage.ListBudgetCategories() function | Error: %v", traceID, err)
			return nil, internalError("Failed to get budget, try again later.", err)
		}
		category, err := row.toCategory()
		if err != nil {
			return nil, internalError("Failed to get budget, try again later.", err)
		}
		categories = append(categories, category)
	}
	if err := rows.Err(); err != nil {
		return nil, internalError("Failed to get budget, try again later.", err)
	}
	return categories, nil
}

func budgetConflict(name string) error {
	return appErrors.ErrorResponse{
		Code:    appErrors.ErrConflict,
		Message: fmt.Sprintf("budget category '%s' already exists", name),
	}
}

func (s *SQLStorage) SaveBudgetCategory(ctx context.Context, c budget.Category) error {
	traceID := contextutil.TraceIDFromContext(ctx)

	query := `INSERT INTO budget_category (id, user_id, name, canonical_name, amount, color, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?);`
	_, err := s.db.ExecContext(ctx, query, c.ID, c.UserID, c.Name, budget.CanonicalName(c.Name), c.Amount.String(), c.Color, time.Now().UTC())
	if err != nil {
		if isDuplicateKey(err) {
			return budgetConflict(c.Name)
		}
		logging.Logger.Errorf("[TraceID=%s] | failed to save budget category in Storage.SaveBudgetCategory() function | Error: %v", traceID, err)
		return internalError("Failed to save budget category, try again later.", err)
	}
	return nil
}

func (s *SQLStorage) UpdateBudgetCategory(ctx context.Context, c budget.Category) (bool, error) {
	traceID := contextutil.TraceIDFromContext(ctx)

	found, err := s.exists(ctx, "SELECT COUNT(*) FROM budget_category WHERE id = ? AND user_id = ?;", c.ID, c.UserID)
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to check budget category in Storage.UpdateBudgetCategory() function | Error: %v", traceID, err)
		return false, internalError("Failed to update budget category, try again later.", err)
	}
	if !found {
		return false, nil
	}

	query := "UPDATE budget_category SET name = ?, canonical_name = ?, amount = ?, color = ? WHERE id = ? AND user_id = ?;"
	_, err = s.db.ExecContext(ctx, query, c.Name, budget.CanonicalName(c.Name), c.Amount.String(), c.Color, c.ID, c.UserID)
	if err != nil {
		if isDuplicateKey(err) {
			return false, budgetConflict(c.Name)
		}
		logging.Logger.Errorf("[TraceID=%s] | failed to update budget category in Storage.UpdateBudgetCategory() function | Error: %v", traceID, err)
		return false, internalError("Failed to update budget category, try again later.", err)
	}
	return true, nil
}

func (s *SQLStorage) DeleteBudgetCategory(ctx context.Context, userID string, categoryID string) (bool, error) {
	traceID := contextutil.TraceIDFromContext(ctx)

	result, err := s.db.ExecContext(ctx, "DELETE FROM budget_category WHERE id = ? AND user_id = ?;", categoryID, userID)
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to delete budget category in Storage.DeleteBudgetCategory() function | Error: %v", traceID, err)
		return false, internalError("Failed to delete budget category, try again later.", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, internalError("Failed to delete budget category, try again later.", err)
	}
	return affected > 0, nil
}

func (s *SQLStorage) GetSetting(ctx context.Context, userID string, key string) (string, bool, error) {
	traceID := contextutil.TraceIDFromContext(ctx)

	var value string
	err := s.db.QueryRowContext(ctx, "SELECT setting_value FROM user_setting WHERE user_id = ? AND setting_key = ?;", userID, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		logging.Logger.Errorf("[TraceID=%s] | failed to get setting in Storage.GetSetting() function | Error: %v", traceID, err)
		return "", false, internalError("Failed to get settings, try again later.", err)
	}
	return value, true, nil
}

func (s *SQLStorage) SetSetting(ctx context.Context, userID string, key string, value string) error {
	traceID := contextutil.TraceIDFromContext(ctx)

	txn, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to start SQL transaction in Storage.SetSetting() function | Error: %v", traceID, err)
		return internalError("Failed to save settings, try again later.", err)
	}

	if _, err := txn.ExecContext(ctx, "DELETE FROM user_setting WHERE user_id = ? AND setting_key = ?;", userID, key); err != nil {
		txn.Rollback()
		logging.Logger.Errorf("[TraceID=%s] | failed to clear setting in Storage.SetSetting() function | Error: %v", traceID, err)
		return internalError("Failed to save settings, try again later.", err)
	}
	if _, err := txn.ExecContext(ctx, "INSERT INTO user_setting (user_id, setting_key, setting_value) VALUES (?, ?, ?);", userID, key, value); err != nil {
		txn.Rollback()
		logging.Logger.Errorf("[TraceID=%s] | failed to insert setting in Storage.SetSetting() function | Error: %v", traceID, err)
		return internalError("Failed to save settings, try again later.", err)
	}

	if err := txn.Commit(); err != nil {
		return internalError("Failed to save settings, try again later.", err)
	}
	return nil
}

func (s *SQLStorage) exists(ctx context.Context, query string, args ...interface{}) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}
