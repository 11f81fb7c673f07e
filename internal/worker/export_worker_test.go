package worker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"paisa/internal/amqp"
	"paisa/internal/core"
	"paisa/internal/storage"
)

type fakeAppender struct {
	appended []core.Transaction
	fail     bool
}

func (f *fakeAppender) AppendTransaction(ctx context.Context, tx core.Transaction) error {
	if f.fail {
		return errors.New("sheet unavailable")
	}
	f.appended = append(f.appended, tx)
	return nil
}

func newWorkerFixture(t *testing.T) (*storage.LedgerRepository, core.Account) {
	t.Helper()
	repo, err := storage.NewLedgerRepository(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	account, err := repo.CreateAccount(context.Background(), "Asha")
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	return repo, account
}

func TestHandleLedgerEventExportsAndMarks(t *testing.T) {
	repo, account := newWorkerFixture(t)
	ctx := context.Background()

	_, tx, err := repo.Credit(ctx, account.ID, core.Money{Paise: 50000}, "Deposit", "")
	if err != nil {
		t.Fatalf("credit: %v", err)
	}

	appender := &fakeAppender{}
	w := NewExportWorker(repo, appender, 10)

	msg := amqp.NewLedgerEventMessage(tx.ID, account.ID, string(tx.Direction))
	if err := w.HandleLedgerEvent(ctx, msg); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	if len(appender.appended) != 1 || appender.appended[0].ID != tx.ID {
		t.Fatalf("appended = %+v", appender.appended)
	}

	pending, err := repo.PendingExportTransactions(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("transaction still pending after export")
	}
}

func TestHandleLedgerEventFailureStaysPending(t *testing.T) {
	repo, account := newWorkerFixture(t)
	ctx := context.Background()

	_, tx, err := repo.Credit(ctx, account.ID, core.Money{Paise: 50000}, "Deposit", "")
	if err != nil {
		t.Fatalf("credit: %v", err)
	}

	w := NewExportWorker(repo, &fakeAppender{fail: true}, 10)
	msg := amqp.NewLedgerEventMessage(tx.ID, account.ID, string(tx.Direction))

	if err := w.HandleLedgerEvent(ctx, msg); err == nil {
		t.Fatalf("expected error so the consumer requeues")
	}

	// The failure is flagged, so the sweep no longer picks it up; the
	// requeued AMQP delivery is the retry path.
	pending, err := repo.PendingExportTransactions(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending = %d, want 0 after export error", len(pending))
	}

	// The retry succeeds once the sheet is back.
	retry := NewExportWorker(repo, &fakeAppender{}, 10)
	if err := retry.HandleLedgerEvent(ctx, msg); err != nil {
		t.Fatalf("retry: %v", err)
	}
}

func TestHandleLedgerEventUnknownTransaction(t *testing.T) {
	repo, account := newWorkerFixture(t)
	w := NewExportWorker(repo, &fakeAppender{}, 10)

	msg := amqp.NewLedgerEventMessage("ghost", account.ID, "credit")
	if err := w.HandleLedgerEvent(context.Background(), msg); err == nil {
		t.Fatalf("expected error for unknown transaction")
	}
}

func TestSweepPendingDrainsBacklog(t *testing.T) {
	repo, account := newWorkerFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, _, err := repo.Credit(ctx, account.ID, core.Money{Paise: 1000}, "Deposit", ""); err != nil {
			t.Fatalf("credit %d: %v", i, err)
		}
	}

	appender := &fakeAppender{}
	w := NewExportWorker(repo, appender, 10)

	if err := w.SweepPending(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(appender.appended) != 3 {
		t.Fatalf("appended = %d, want 3", len(appender.appended))
	}

	// A second sweep finds nothing.
	if err := w.SweepPending(ctx); err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if len(appender.appended) != 3 {
		t.Fatalf("second sweep re-exported entries")
	}
}

func TestSweepRespectsBatchSize(t *testing.T) {
	repo, account := newWorkerFixture(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, _, err := repo.Credit(ctx, account.ID, core.Money{Paise: 1000}, "Deposit", ""); err != nil {
			t.Fatalf("credit %d: %v", i, err)
		}
	}

	appender := &fakeAppender{}
	w := NewExportWorker(repo, appender, 2)

	if err := w.SweepPending(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(appender.appended) != 2 {
		t.Fatalf("appended = %d, want batch size 2", len(appender.appended))
	}
}
