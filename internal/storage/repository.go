// Package storage implements the durable ledger store on SQLite.
//
// Every credit/debit runs inside a single immediate write transaction, so
// the balance check, balance update and history append commit as one unit.
// SQLite serializes writers; a busy conflict is retried a bounded number
// of times before surfacing as core.ErrConflict.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"paisa/internal/core"

	_ "modernc.org/sqlite"
)

const (
	maxCommitAttempts = 3
	busyBackoff       = 25 * time.Millisecond
)

type LedgerRepository struct {
	db     *sql.DB // writes; immediate transactions
	readDB *sql.DB // reads; deferred transactions, never block writers in WAL mode
}

func NewLedgerRepository(dbPath string) (*LedgerRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// _txlock=immediate takes the write lock at BEGIN, which makes the
	// check-then-mutate sequence a serialized unit per database.
	writeDSN := "file:" + dbPath + "?_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", writeDSN)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	readDSN := "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	readDB, err := sql.Open("sqlite", readDSN)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open sqlite read connection: %w", err)
	}
	if err := readDB.Ping(); err != nil {
		db.Close()
		readDB.Close()
		return nil, fmt.Errorf("ping read connection: %w", err)
	}

	return &LedgerRepository{db: db, readDB: readDB}, nil
}

func (r *LedgerRepository) Close() error {
	var errs []error
	if r.readDB != nil {
		if err := r.readDB.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if r.db != nil {
		if err := r.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close ledger repository: %v", errs)
	}
	return nil
}

// Ping verifies both connections are usable. Used by readiness checks.
func (r *LedgerRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping write connection: %w", err)
	}
	if err := r.readDB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping read connection: %w", err)
	}
	return nil
}

// CreateAccount inserts a fresh account with zero balance. Registration
// itself happens outside the ledger; this is its storage boundary.
func (r *LedgerRepository) CreateAccount(ctx context.Context, name string) (core.Account, error) {
	account := core.Account{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(name),
		Balance:   core.Money{},
		CreatedAt: time.Now().UTC(),
	}
	if account.Name == "" {
		return core.Account{}, errors.New("empty account name")
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (id, name, balance_paise, created_at) VALUES (?, ?, 0, ?)`,
		account.ID, account.Name, account.CreatedAt)
	if err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}

	slog.InfoContext(ctx, "Account created", "account_id", account.ID, "name", account.Name)
	return account, nil
}

// Credit atomically increases the balance and appends a credit transaction.
func (r *LedgerRepository) Credit(ctx context.Context, accountID string, amount core.Money, counterparty, category string) (core.Money, core.Transaction, error) {
	return r.apply(ctx, accountID, amount, core.DirectionCredit, counterparty, category)
}

// Debit atomically checks the balance, decreases it and appends a debit
// transaction. A debit that would push the balance negative is rejected
// with core.ErrInsufficientFunds and leaves no trace.
func (r *LedgerRepository) Debit(ctx context.Context, accountID string, amount core.Money, counterparty, category string) (core.Money, core.Transaction, error) {
	return r.apply(ctx, accountID, amount, core.DirectionDebit, counterparty, category)
}

func (r *LedgerRepository) apply(ctx context.Context, accountID string, amount core.Money, dir core.Direction, counterparty, category string) (core.Money, core.Transaction, error) {
	if err := amount.Validate(); err != nil {
		return core.Money{}, core.Transaction{}, err
	}

	tx := core.Transaction{
		ID:           uuid.NewString(),
		AccountID:    accountID,
		Counterparty: counterparty,
		Amount:       amount,
		Direction:    dir,
		Category:     core.NormalizeCategory(category, dir),
		Date:         core.Today(time.Now()),
		CreatedAt:    time.Now().UTC(),
	}
	if err := tx.Validate(); err != nil {
		return core.Money{}, core.Transaction{}, err
	}

	var newBalance core.Money
	var err error
	for attempt := 0; attempt < maxCommitAttempts; attempt++ {
		newBalance, err = r.commitMutation(ctx, tx)
		if err == nil || !isBusy(err) {
			break
		}
		slog.WarnContext(ctx, "Ledger commit conflict, retrying",
			"account_id", accountID, "attempt", attempt+1, "error", err)
		time.Sleep(busyBackoff << attempt)
	}
	if err != nil {
		if isBusy(err) {
			return core.Money{}, core.Transaction{}, fmt.Errorf("%w: %v", core.ErrConflict, err)
		}
		return core.Money{}, core.Transaction{}, err
	}

	slog.InfoContext(ctx, "Ledger mutation committed",
		"account_id", accountID,
		"transaction_id", tx.ID,
		"direction", string(dir),
		"amount_paise", amount.Paise,
		"balance_paise", newBalance.Paise)

	return newBalance, tx, nil
}

func (r *LedgerRepository) commitMutation(ctx context.Context, tx core.Transaction) (core.Money, error) {
	dbtx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Money{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer dbtx.Rollback()

	var balance int64
	err = dbtx.QueryRowContext(ctx,
		`SELECT balance_paise FROM accounts WHERE id = ?`, tx.AccountID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Money{}, core.ErrAccountNotFound
	}
	if err != nil {
		return core.Money{}, fmt.Errorf("read balance: %w", err)
	}

	var newBalance int64
	switch tx.Direction {
	case core.DirectionCredit:
		newBalance = balance + tx.Amount.Paise
	case core.DirectionDebit:
		if balance < tx.Amount.Paise {
			return core.Money{}, core.ErrInsufficientFunds
		}
		newBalance = balance - tx.Amount.Paise
	}

	if _, err := dbtx.ExecContext(ctx,
		`UPDATE accounts SET balance_paise = ? WHERE id = ?`, newBalance, tx.AccountID); err != nil {
		return core.Money{}, fmt.Errorf("update balance: %w", err)
	}

	if _, err := dbtx.ExecContext(ctx,
		`INSERT INTO transactions (id, account_id, counterparty, amount_paise, direction, category, tx_date, created_at, export_status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'pending')`,
		tx.ID, tx.AccountID, tx.Counterparty, tx.Amount.Paise, string(tx.Direction),
		tx.Category, tx.Date.String(), tx.CreatedAt); err != nil {
		return core.Money{}, fmt.Errorf("append transaction: %w", err)
	}

	if err := dbtx.Commit(); err != nil {
		return core.Money{}, fmt.Errorf("commit: %w", err)
	}

	return core.Money{Paise: newBalance}, nil
}

// Snapshot returns the balance and full history newest-first, read from a
// single transaction so both always agree on one commit point.
func (r *LedgerRepository) Snapshot(ctx context.Context, accountID string) (core.AccountSnapshot, error) {
	dbtx, err := r.readDB.BeginTx(ctx, nil)
	if err != nil {
		return core.AccountSnapshot{}, fmt.Errorf("begin read transaction: %w", err)
	}
	defer dbtx.Rollback()

	account, err := scanAccount(dbtx.QueryRowContext(ctx,
		`SELECT id, name, balance_paise, created_at FROM accounts WHERE id = ?`, accountID))
	if err != nil {
		return core.AccountSnapshot{}, err
	}

	rows, err := dbtx.QueryContext(ctx,
		`SELECT id, account_id, counterparty, amount_paise, direction, category, tx_date, created_at
		 FROM transactions WHERE account_id = ?
		 ORDER BY created_at DESC, rowid DESC`, accountID)
	if err != nil {
		return core.AccountSnapshot{}, fmt.Errorf("read history: %w", err)
	}
	defer rows.Close()

	txs, err := scanTransactions(rows)
	if err != nil {
		return core.AccountSnapshot{}, err
	}

	return core.AccountSnapshot{Account: account, Transactions: txs}, nil
}

// RecentTransactions returns at most n transactions, newest-first. Empty
// history yields an empty slice, not an error.
func (r *LedgerRepository) RecentTransactions(ctx context.Context, accountID string, n int) ([]core.Transaction, error) {
	rows, err := r.readDB.QueryContext(ctx,
		`SELECT id, account_id, counterparty, amount_paise, direction, category, tx_date, created_at
		 FROM transactions WHERE account_id = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT ?`, accountID, n)
	if err != nil {
		return nil, fmt.Errorf("read recent transactions: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// GetTransaction fetches a single committed transaction by ID.
func (r *LedgerRepository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	row := r.readDB.QueryRowContext(ctx,
		`SELECT id, account_id, counterparty, amount_paise, direction, category, tx_date, created_at
		 FROM transactions WHERE id = ?`, id)

	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %s not found", id)
	}
	return tx, err
}

// PendingExportTransactions lists transactions not yet mirrored to the
// export sheet, oldest-first so the sheet stays in ledger order.
func (r *LedgerRepository) PendingExportTransactions(ctx context.Context, limit int) ([]core.Transaction, error) {
	rows, err := r.readDB.QueryContext(ctx,
		`SELECT id, account_id, counterparty, amount_paise, direction, category, tx_date, created_at
		 FROM transactions WHERE export_status = 'pending'
		 ORDER BY created_at ASC, rowid ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("read pending export transactions: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// MarkExported records that a transaction reached the export sheet.
func (r *LedgerRepository) MarkExported(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET export_status = 'exported' WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark exported: %w", err)
	}
	return nil
}

// MarkExportError flags a transaction whose export failed; the periodic
// sweep will not retry it until it is reset manually.
func (r *LedgerRepository) MarkExportError(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET export_status = 'error' WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark export error: %w", err)
	}
	return nil
}

func scanAccount(row *sql.Row) (core.Account, error) {
	var a core.Account
	var balance int64
	err := row.Scan(&a.ID, &a.Name, &balance, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, core.ErrAccountNotFound
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("read account: %w", err)
	}
	a.Balance = core.Money{Paise: balance}
	return a, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var tx core.Transaction
	var amount int64
	var direction, txDate string
	if err := row.Scan(&tx.ID, &tx.AccountID, &tx.Counterparty, &amount, &direction, &tx.Category, &txDate, &tx.CreatedAt); err != nil {
		return core.Transaction{}, err
	}
	tx.Amount = core.Money{Paise: amount}
	tx.Direction = core.Direction(direction)
	date, err := core.ParseDate(txDate)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse transaction date %q: %w", txDate, err)
	}
	tx.Date = date
	return tx, nil
}

func scanTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	txs := []core.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return txs, nil
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}
