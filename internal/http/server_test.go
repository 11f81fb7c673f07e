package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"paisa/internal/advisor"
	"paisa/internal/core"
	"paisa/internal/log"
	"paisa/internal/services"
	"paisa/internal/storage"
)

type fakeAdvisor struct {
	advice    advisor.Advice
	adviceErr error
	reply     string
	replyErr  error
}

func (f *fakeAdvisor) EstimateGrowth(ctx context.Context, window advisor.ContextWindow) (advisor.Advice, error) {
	return f.advice, f.adviceErr
}

func (f *fakeAdvisor) Converse(ctx context.Context, window advisor.ContextWindow, turns []core.ChatTurn, message string) (string, error) {
	return f.reply, f.replyErr
}

func newTestServer(t *testing.T, adv advisor.Advisor) *Server {
	t.Helper()
	repo, err := storage.NewLedgerRepository(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	logger := log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
	ledger := services.NewLedgerService(repo, nil)
	advice := services.NewAdviceService(repo, adv)

	srv := NewServer(":0", ledger, advice, logger, 5*time.Second, 30*time.Second)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, into any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), into); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
}

func createAccount(t *testing.T, srv *Server, name string) string {
	t.Helper()
	rr := doJSON(t, srv, http.MethodPost, "/api/accounts", `{"name":"`+name+`"}`, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create account status = %d: %s", rr.Code, rr.Body.String())
	}
	var acc accountView
	decodeBody(t, rr, &acc)
	if acc.ID == "" {
		t.Fatalf("account ID empty")
	}
	return acc.ID
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t, nil)

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := doJSON(t, srv, http.MethodGet, path, "", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, rr.Code)
		}
	}
}

func TestAccountLifecycle(t *testing.T) {
	srv := newTestServer(t, nil)
	id := createAccount(t, srv, "Asha")

	rr := doJSON(t, srv, http.MethodGet, "/api/accounts/"+id, "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get account status = %d", rr.Code)
	}
	var snap snapshotView
	decodeBody(t, rr, &snap)
	if snap.Balance != "0.00" {
		t.Fatalf("fresh balance = %q", snap.Balance)
	}
	if len(snap.Transactions) != 0 {
		t.Fatalf("fresh history = %d entries", len(snap.Transactions))
	}
}

func TestGetAccountNotFound(t *testing.T) {
	srv := newTestServer(t, nil)
	rr := doJSON(t, srv, http.MethodGet, "/api/accounts/missing", "", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestCreateAccountRequiresName(t *testing.T) {
	srv := newTestServer(t, nil)
	rr := doJSON(t, srv, http.MethodPost, "/api/accounts", `{"name":"  "}`, nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestDepositAndPayFlow(t *testing.T) {
	srv := newTestServer(t, nil)
	id := createAccount(t, srv, "Asha")

	rr := doJSON(t, srv, http.MethodPost, "/api/deposit", `{"accountId":"`+id+`","amount":"100.00"}`, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("deposit status = %d: %s", rr.Code, rr.Body.String())
	}
	var dep mutationView
	decodeBody(t, rr, &dep)
	if dep.NewBalance != "100.00" {
		t.Fatalf("balance after deposit = %q", dep.NewBalance)
	}
	if dep.Transaction.Counterparty != "Deposit" || dep.Transaction.Category != "Income" {
		t.Fatalf("deposit transaction = %+v", dep.Transaction)
	}

	rr = doJSON(t, srv, http.MethodPost, "/api/pay", `{"accountId":"`+id+`","to":"Grocer","amount":30.50,"category":"Food"}`, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("pay status = %d: %s", rr.Code, rr.Body.String())
	}
	var pay mutationView
	decodeBody(t, rr, &pay)
	if pay.NewBalance != "69.50" {
		t.Fatalf("balance after pay = %q", pay.NewBalance)
	}
	if pay.Transaction.Direction != "debit" || pay.Transaction.Category != "Food" {
		t.Fatalf("pay transaction = %+v", pay.Transaction)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/accounts/"+id, "", nil)
	var snap snapshotView
	decodeBody(t, rr, &snap)
	if len(snap.Transactions) != 2 {
		t.Fatalf("history = %d entries, want 2", len(snap.Transactions))
	}
	// Newest first.
	if snap.Transactions[0].Direction != "debit" {
		t.Fatalf("history order: first entry = %+v", snap.Transactions[0])
	}
}

func TestPayRejections(t *testing.T) {
	srv := newTestServer(t, nil)
	id := createAccount(t, srv, "Asha")

	tests := []struct {
		name string
		body string
		want int
	}{
		{"insufficient funds", `{"accountId":"` + id + `","to":"Grocer","amount":"10.00"}`, http.StatusBadRequest},
		{"invalid amount", `{"accountId":"` + id + `","to":"Grocer","amount":"abc"}`, http.StatusUnprocessableEntity},
		{"negative amount", `{"accountId":"` + id + `","to":"Grocer","amount":"-5"}`, http.StatusUnprocessableEntity},
		{"missing counterparty", `{"accountId":"` + id + `","to":"","amount":"1.00"}`, http.StatusUnprocessableEntity},
		{"unknown account", `{"accountId":"ghost","to":"Grocer","amount":"1.00"}`, http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := doJSON(t, srv, http.MethodPost, "/api/pay", tc.body, nil)
			if rr.Code != tc.want {
				t.Fatalf("status = %d, want %d: %s", rr.Code, tc.want, rr.Body.String())
			}
		})
	}

	// None of the rejected payments may have left a trace.
	rr := doJSON(t, srv, http.MethodGet, "/api/accounts/"+id, "", nil)
	var snap snapshotView
	decodeBody(t, rr, &snap)
	if len(snap.Transactions) != 0 {
		t.Fatalf("rejected payments recorded: %+v", snap.Transactions)
	}
}

func TestPayWhileSubmissionInFlight(t *testing.T) {
	srv := newTestServer(t, nil)
	id := createAccount(t, srv, "Asha")
	doJSON(t, srv, http.MethodPost, "/api/deposit", `{"accountId":"`+id+`","amount":"100.00"}`, nil)

	if err := srv.gate.Begin("sess-1"); err != nil {
		t.Fatalf("begin: %v", err)
	}

	rr := doJSON(t, srv, http.MethodPost, "/api/pay",
		`{"accountId":"`+id+`","to":"Grocer","amount":"1.00"}`,
		map[string]string{"X-Session-ID": "sess-1"})
	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rr.Code)
	}

	// A different session is unaffected.
	rr = doJSON(t, srv, http.MethodPost, "/api/pay",
		`{"accountId":"`+id+`","to":"Grocer","amount":"1.00"}`,
		map[string]string{"X-Session-ID": "sess-2"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
	}
}

func TestAdviceEndpoint(t *testing.T) {
	adv := &fakeAdvisor{advice: advisor.Advice{
		Analysis:   "Looking good.",
		Tip:        "Save more.",
		Prediction: "Upward.",
		GrowthRate: decimal.NewFromFloat(0.05),
	}}
	srv := newTestServer(t, adv)
	id := createAccount(t, srv, "Asha")
	doJSON(t, srv, http.MethodPost, "/api/deposit", `{"accountId":"`+id+`","amount":"1000.00"}`, nil)

	rr := doJSON(t, srv, http.MethodPost, "/api/advice", `{"accountId":"`+id+`"}`, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("advice status = %d: %s", rr.Code, rr.Body.String())
	}
	var view adviceView
	decodeBody(t, rr, &view)
	if view.Analysis != "Looking good." {
		t.Fatalf("analysis = %q", view.Analysis)
	}
	if len(view.Forecast) != core.DefaultForecastPeriods {
		t.Fatalf("forecast length = %d", len(view.Forecast))
	}
	if view.Forecast[0].Balance != 1050 {
		t.Fatalf("first projected balance = %d", view.Forecast[0].Balance)
	}
}

func TestAdviceDegradesWhenAdvisorFails(t *testing.T) {
	srv := newTestServer(t, &fakeAdvisor{adviceErr: context.DeadlineExceeded})
	id := createAccount(t, srv, "Asha")
	doJSON(t, srv, http.MethodPost, "/api/deposit", `{"accountId":"`+id+`","amount":"1000.00"}`, nil)

	rr := doJSON(t, srv, http.MethodPost, "/api/advice", `{"accountId":"`+id+`"}`, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("advice status = %d, want 200 (flat fallback)", rr.Code)
	}
	var view adviceView
	decodeBody(t, rr, &view)
	for _, p := range view.Forecast {
		if p.Balance != 1000 {
			t.Fatalf("fallback balance = %d, want 1000", p.Balance)
		}
	}
}

func TestChatEndpoint(t *testing.T) {
	srv := newTestServer(t, &fakeAdvisor{reply: "You spent nothing yet."})
	id := createAccount(t, srv, "Asha")

	rr := doJSON(t, srv, http.MethodPost, "/api/chat", `{"accountId":"`+id+`","message":"What did I spend?"}`, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("chat status = %d: %s", rr.Code, rr.Body.String())
	}
	var view chatView
	decodeBody(t, rr, &view)
	if view.Reply != "You spent nothing yet." {
		t.Fatalf("reply = %q", view.Reply)
	}
}

func TestChatUnavailable(t *testing.T) {
	srv := newTestServer(t, &fakeAdvisor{replyErr: context.DeadlineExceeded})
	id := createAccount(t, srv, "Asha")

	rr := doJSON(t, srv, http.MethodPost, "/api/chat", `{"accountId":"`+id+`","message":"hello"}`, nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("chat status = %d, want 503", rr.Code)
	}
	var view errorView
	decodeBody(t, rr, &view)
	if view.Error != "Chat functionality unavailable" {
		t.Fatalf("error = %q", view.Error)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, nil)
	rr := doJSON(t, srv, http.MethodGet, "/api/pay", "", nil)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rr.Code)
	}
}
