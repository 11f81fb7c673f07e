// Package services orchestrates the ledger store, the reasoning advisor
// and the event stream behind the HTTP handlers.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"paisa/internal/amqp"
	"paisa/internal/core"
	"paisa/internal/log"
	"paisa/internal/storage"
)

// DepositCounterparty labels every credit recorded through Deposit.
const DepositCounterparty = "Deposit"

// LedgerService wraps the ledger store and announces committed mutations
// on the event stream. Validation errors are terminal; a publish failure
// never fails the request, since the mutation is already durable.
type LedgerService struct {
	store  *storage.LedgerRepository
	events *amqp.Client
}

func NewLedgerService(store *storage.LedgerRepository, events *amqp.Client) *LedgerService {
	return &LedgerService{
		store:  store,
		events: events,
	}
}

// CreateAccount registers a new zero-balance account.
func (s *LedgerService) CreateAccount(ctx context.Context, name string) (core.Account, error) {
	account, err := s.store.CreateAccount(ctx, name)
	if err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}
	return account, nil
}

// Deposit credits the account. Counterparty and category are fixed, so a
// deposit always shows up as Income.
func (s *LedgerService) Deposit(ctx context.Context, accountID string, amount core.Money) (core.Money, core.Transaction, error) {
	balance, tx, err := s.store.Credit(ctx, accountID, amount, DepositCounterparty, core.DefaultCreditCategory)
	if err != nil {
		return core.Money{}, core.Transaction{}, err
	}

	slog.InfoContext(ctx, "Ledger mutation committed",
		log.FieldOperation, log.OpCredit,
		log.FieldTransactionID, tx.ID,
		log.FieldAccountID, accountID,
		log.FieldAmountPaise, amount.Paise)
	s.announce(ctx, tx)
	return balance, tx, nil
}

// Pay debits the account toward the given counterparty. The balance check
// and append are atomic in the store; an overdraft leaves no trace.
func (s *LedgerService) Pay(ctx context.Context, accountID, counterparty string, amount core.Money, category string) (core.Money, core.Transaction, error) {
	if strings.TrimSpace(counterparty) == "" {
		return core.Money{}, core.Transaction{}, core.ErrEmptyCounterparty
	}

	balance, tx, err := s.store.Debit(ctx, accountID, amount, counterparty, category)
	if err != nil {
		return core.Money{}, core.Transaction{}, err
	}

	slog.InfoContext(ctx, "Ledger mutation committed",
		log.FieldOperation, log.OpDebit,
		log.FieldTransactionID, tx.ID,
		log.FieldAccountID, accountID,
		log.FieldAmountPaise, amount.Paise,
		log.FieldCategory, tx.Category)
	s.announce(ctx, tx)
	return balance, tx, nil
}

// Ping reports whether the underlying store is reachable.
func (s *LedgerService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Snapshot returns the balance and full history at one commit point.
func (s *LedgerService) Snapshot(ctx context.Context, accountID string) (core.AccountSnapshot, error) {
	return s.store.Snapshot(ctx, accountID)
}

func (s *LedgerService) announce(ctx context.Context, tx core.Transaction) {
	if s.events == nil {
		slog.DebugContext(ctx, "Event stream not configured, skipping ledger event",
			log.FieldOperation, log.OpPublish,
			log.FieldTransactionID, tx.ID)
		return
	}

	if err := s.events.PublishLedgerEvent(ctx, tx.ID, tx.AccountID, string(tx.Direction)); err != nil {
		// The mutation is committed; the export sweep will pick it up.
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			log.FieldOperation, log.OpPublish,
			log.FieldTransactionID, tx.ID,
			log.FieldError, err)
	}
}

// Close releases the store and the event stream connection.
func (s *LedgerService) Close() error {
	var errs []error

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.events != nil {
		if err := s.events.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %v", errs)
	}

	return nil
}
