package core

import (
	"errors"
	"strings"
	"time"
)

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"

	// Category defaults applied when a request omits or mangles the category.
	DefaultDebitCategory  = "General"
	DefaultCreditCategory = "Income"
)

type (
	Direction string

	Date struct {
		time.Time
	}

	// Account owns one balance. The balance is mutated only through the
	// ledger store's credit/debit operations and must never go negative.
	Account struct {
		ID        string
		Name      string
		Balance   Money
		CreatedAt time.Time
	}

	// Transaction is one committed ledger entry. Immutable once created;
	// the history is append-only, ordered by creation time.
	Transaction struct {
		ID           string
		AccountID    string
		Counterparty string
		Amount       Money
		Direction    Direction
		Category     string
		Date         Date
		CreatedAt    time.Time
	}

	// AccountSnapshot pairs a balance with the transaction history that
	// produced it, both read at the same commit point.
	AccountSnapshot struct {
		Account      Account
		Transactions []Transaction // newest-first
	}

	// ChatTurn is one exchange in an assistant conversation. Turns live
	// only for the session; nothing is persisted.
	ChatTurn struct {
		Role    string
		Content string
	}
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Categories is the fixed set a transaction may carry; credits always
// record as Income.
var Categories = []string{
	"Food", "Transport", "Shopping", "Bills", "Entertainment", "Health", "General", "Income",
}

var (
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrAccountNotFound      = errors.New("account not found")
	ErrConflict             = errors.New("concurrent update conflict")
	ErrAssistantUnavailable = errors.New("assistant unavailable")
	ErrEmptyCounterparty    = errors.New("empty counterparty")
	ErrEmptyMessage         = errors.New("empty message")
)

// NormalizeCategory maps an empty or unknown category to the default for
// the given direction.
func NormalizeCategory(category string, dir Direction) string {
	if dir == DirectionCredit {
		return DefaultCreditCategory
	}
	category = strings.TrimSpace(category)
	for _, c := range Categories {
		if c == category {
			return category
		}
	}
	return DefaultDebitCategory
}

func (d Direction) Valid() bool {
	return d == DirectionCredit || d == DirectionDebit
}

func (t Transaction) Validate() error {
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if !t.Direction.Valid() {
		return errors.New("invalid direction")
	}
	if t.Direction == DirectionDebit && strings.TrimSpace(t.Counterparty) == "" {
		return ErrEmptyCounterparty
	}
	return nil
}

// NewDate builds a Date from year, month and day in UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the calendar date of the given instant.
func Today(now time.Time) Date {
	return NewDate(now.Year(), int(now.Month()), now.Day())
}

// String formats the date as YYYY-MM-DD, the ledger's wire format.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}
