package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"paisa/internal/core"
	"paisa/internal/services"
)

// accountView is the wire shape of an account. Amounts travel as decimal
// rupee strings so clients never handle paise.
type accountView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Balance   string `json:"balance"`
	CreatedAt string `json:"createdAt"`
}

type transactionView struct {
	ID           string `json:"id"`
	Counterparty string `json:"counterparty"`
	Amount       string `json:"amount"`
	Direction    string `json:"direction"`
	Category     string `json:"category"`
	Date         string `json:"date"`
}

type snapshotView struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Balance      string            `json:"balance"`
	Transactions []transactionView `json:"transactions"`
}

type mutationView struct {
	NewBalance  string          `json:"newBalance"`
	Transaction transactionView `json:"transaction"`
}

type adviceView struct {
	Analysis   string               `json:"analysis"`
	Tip        string               `json:"tip"`
	Prediction string               `json:"prediction"`
	Forecast   []core.ForecastPoint `json:"forecast"`
}

type chatView struct {
	Reply string `json:"reply"`
}

type errorView struct {
	Error string `json:"error"`
}

func toAccountView(a core.Account) accountView {
	return accountView{
		ID:        a.ID,
		Name:      a.Name,
		Balance:   formatAmount(a.Balance),
		CreatedAt: a.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

func toTransactionView(t core.Transaction) transactionView {
	return transactionView{
		ID:           t.ID,
		Counterparty: t.Counterparty,
		Amount:       formatAmount(t.Amount),
		Direction:    string(t.Direction),
		Category:     t.Category,
		Date:         t.Date.String(),
	}
}

func toSnapshotView(s core.AccountSnapshot) snapshotView {
	view := snapshotView{
		ID:           s.Account.ID,
		Name:         s.Account.Name,
		Balance:      formatAmount(s.Account.Balance),
		Transactions: make([]transactionView, 0, len(s.Transactions)),
	}
	for _, t := range s.Transactions {
		view.Transactions = append(view.Transactions, toTransactionView(t))
	}
	return view
}

// formatAmount renders paise as a plain decimal rupee string, e.g. "1234.56".
func formatAmount(m core.Money) string {
	neg := m.Paise < 0
	p := m.Paise
	if neg {
		p = -p
	}
	s := strconv.FormatInt(p/100, 10) + "." + twoDigits(p%100)
	if neg {
		return "-" + s
	}
	return s
}

func twoDigits(n int64) string {
	if n < 10 {
		return "0" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps domain errors onto the API's status codes. Unrecognized
// errors become an opaque 500 so internals never leak to clients.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrEmptyCounterparty),
		errors.Is(err, core.ErrEmptyMessage):
		writeJSON(w, http.StatusUnprocessableEntity, errorView{Error: err.Error()})
	case errors.Is(err, core.ErrInsufficientFunds):
		writeJSON(w, http.StatusBadRequest, errorView{Error: core.ErrInsufficientFunds.Error()})
	case errors.Is(err, core.ErrAccountNotFound):
		writeJSON(w, http.StatusNotFound, errorView{Error: core.ErrAccountNotFound.Error()})
	case errors.Is(err, core.ErrConflict):
		writeJSON(w, http.StatusConflict, errorView{Error: core.ErrConflict.Error()})
	case errors.Is(err, services.ErrSubmissionInFlight):
		writeJSON(w, http.StatusConflict, errorView{Error: services.ErrSubmissionInFlight.Error()})
	case errors.Is(err, core.ErrAssistantUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorView{Error: "Chat functionality unavailable"})
	default:
		writeJSON(w, http.StatusInternalServerError, errorView{Error: "internal error"})
	}
}
