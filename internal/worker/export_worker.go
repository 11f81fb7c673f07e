// Package worker drives the ledger export pipeline: event-driven appends
// to the configured Google Sheet, plus a periodic sweep as backstop.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"paisa/internal/amqp"
	"paisa/internal/export"
	"paisa/internal/log"
	"paisa/internal/storage"
)

// ExportWorker mirrors committed transactions into the export sheet.
type ExportWorker struct {
	storage   *storage.LedgerRepository
	appender  export.Appender
	batchSize int
}

func NewExportWorker(storage *storage.LedgerRepository, appender export.Appender, batchSize int) *ExportWorker {
	return &ExportWorker{
		storage:   storage,
		appender:  appender,
		batchSize: batchSize,
	}
}

// HandleLedgerEvent processes a single ledger event from AMQP. An export
// failure returns an error so the consumer requeues the message.
func (w *ExportWorker) HandleLedgerEvent(ctx context.Context, msg *amqp.LedgerEventMessage) error {
	slog.InfoContext(ctx, "Processing ledger event",
		log.FieldOperation, log.OpConsume,
		log.FieldTransactionID, msg.TransactionID,
		log.FieldAccountID, msg.AccountID)

	tx, err := w.storage.GetTransaction(ctx, msg.TransactionID)
	if err != nil {
		return fmt.Errorf("get transaction from storage: %w", err)
	}

	return w.exportTransaction(ctx, tx.ID, func(c context.Context) error {
		return w.appender.AppendTransaction(c, tx)
	})
}

// SweepPending exports transactions that are still marked pending. This is
// the backup mechanism for lost AMQP messages.
func (w *ExportWorker) SweepPending(ctx context.Context) error {
	pending, err := w.storage.PendingExportTransactions(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending transactions: %w", err)
	}

	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending exports",
		log.FieldOperation, log.OpExport, "count", len(pending))

	for _, tx := range pending {
		tx := tx
		if err := w.exportTransaction(ctx, tx.ID, func(c context.Context) error {
			return w.appender.AppendTransaction(c, tx)
		}); err != nil {
			slog.ErrorContext(ctx, "Failed to export transaction",
				log.FieldOperation, log.OpExport,
				log.FieldTransactionID, tx.ID,
				log.FieldError, err)
			continue
		}
	}

	return nil
}

// StartupCheck drains the pending backlog once at worker startup, with a
// larger batch to recover from downtime.
func (w *ExportWorker) StartupCheck(ctx context.Context) error {
	pending, err := w.storage.PendingExportTransactions(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending transactions for startup check: %w", err)
	}

	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending exports found on startup",
			log.FieldOperation, log.OpStartup)
		return nil
	}

	slog.InfoContext(ctx, "Found pending exports on startup, processing...",
		log.FieldOperation, log.OpStartup, "count", len(pending))

	successCount := 0
	errorCount := 0

	for _, tx := range pending {
		tx := tx
		if err := w.exportTransaction(ctx, tx.ID, func(c context.Context) error {
			return w.appender.AppendTransaction(c, tx)
		}); err != nil {
			slog.ErrorContext(ctx, "Failed to export transaction during startup",
				log.FieldOperation, log.OpStartup,
				log.FieldTransactionID, tx.ID,
				log.FieldError, err)
			errorCount++
			continue
		}
		successCount++
	}

	slog.InfoContext(ctx, "Startup export check completed",
		log.FieldOperation, log.OpStartup,
		"total", len(pending),
		"exported", successCount,
		"errors", errorCount)

	return nil
}

func (w *ExportWorker) exportTransaction(ctx context.Context, id string, appendFn func(context.Context) error) error {
	if err := appendFn(ctx); err != nil {
		if markErr := w.storage.MarkExportError(ctx, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark export error",
				log.FieldOperation, log.OpExport,
				log.FieldTransactionID, id,
				log.FieldError, markErr)
		}
		return fmt.Errorf("append to sheet: %w", err)
	}

	if err := w.storage.MarkExported(ctx, id); err != nil {
		// The append worked; only the bookkeeping failed. The sweep will
		// retry and the sheet may get a duplicate row, which beats losing
		// the entry.
		slog.ErrorContext(ctx, "Failed to mark as exported",
			log.FieldOperation, log.OpExport,
			log.FieldTransactionID, id,
			log.FieldError, err)
	}

	return nil
}
