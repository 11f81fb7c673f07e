package http

import (
	"net/http"
	"strings"

	"paisa/internal/core"
	"paisa/internal/log"
)

// sessionID identifies the submitting client for the submission gate.
// Browser clients send X-Session-ID; anything else is keyed by address.
func sessionID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get("X-Session-ID")); id != "" {
		return id
	}
	return clientIP(r)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	body, err := parseRequestBody(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorView{Error: "malformed request body"})
		return
	}

	name := body.Get("name")
	if name == "" {
		writeJSON(w, http.StatusUnprocessableEntity, errorView{Error: "name is required"})
		return
	}

	account, err := s.ledger.CreateAccount(r.Context(), name)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Account creation failed", log.FieldError, err)
		writeError(w, err)
		return
	}

	s.logger.InfoContext(r.Context(), "Account created",
		log.FieldAccountID, account.ID)
	writeJSON(w, http.StatusCreated, toAccountView(account))
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	snap, err := s.ledger.Snapshot(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotView(snap))
}

func (s *Server) handlePay(w http.ResponseWriter, r *http.Request) {
	body, err := parseRequestBody(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorView{Error: "malformed request body"})
		return
	}

	paise, err := core.ParseDecimalToPaise(body.Get("amount"))
	if err != nil {
		writeError(w, err)
		return
	}
	accountID := body.Get("accountId")
	counterparty := body.Get("to")
	category := body.Get("category")

	session := sessionID(r)
	if err := s.gate.Begin(session); err != nil {
		writeError(w, err)
		return
	}

	balance, tx, err := s.ledger.Pay(r.Context(), accountID, counterparty, core.Money{Paise: paise}, category)
	if err != nil {
		s.gate.Fail(session)
		s.logger.WarnContext(r.Context(), "Payment rejected",
			log.FieldAccountID, accountID,
			log.FieldAmountPaise, paise,
			log.FieldError, err)
		writeError(w, err)
		return
	}
	s.gate.Succeed(session)

	s.logger.InfoContext(r.Context(), "Payment recorded",
		log.FieldAccountID, accountID,
		log.FieldTransactionID, tx.ID,
		log.FieldAmountPaise, paise,
		log.FieldCategory, tx.Category)
	writeJSON(w, http.StatusOK, mutationView{
		NewBalance:  formatAmount(balance),
		Transaction: toTransactionView(tx),
	})
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	body, err := parseRequestBody(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorView{Error: "malformed request body"})
		return
	}

	paise, err := core.ParseDecimalToPaise(body.Get("amount"))
	if err != nil {
		writeError(w, err)
		return
	}
	accountID := body.Get("accountId")

	session := sessionID(r)
	if err := s.gate.Begin(session); err != nil {
		writeError(w, err)
		return
	}

	balance, tx, err := s.ledger.Deposit(r.Context(), accountID, core.Money{Paise: paise})
	if err != nil {
		s.gate.Fail(session)
		writeError(w, err)
		return
	}
	s.gate.Succeed(session)

	s.logger.InfoContext(r.Context(), "Deposit recorded",
		log.FieldAccountID, accountID,
		log.FieldTransactionID, tx.ID,
		log.FieldAmountPaise, paise)
	writeJSON(w, http.StatusOK, mutationView{
		NewBalance:  formatAmount(balance),
		Transaction: toTransactionView(tx),
	})
}

func (s *Server) handleAdvice(w http.ResponseWriter, r *http.Request) {
	body, err := parseRequestBody(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorView{Error: "malformed request body"})
		return
	}

	result, err := s.advice.Forecast(r.Context(), body.Get("accountId"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, adviceView{
		Analysis:   result.Analysis,
		Tip:        result.Tip,
		Prediction: result.Prediction,
		Forecast:   result.Forecast,
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	body, err := parseRequestBody(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorView{Error: "malformed request body"})
		return
	}

	reply, err := s.advice.Chat(r.Context(), body.Get("accountId"), body.Get("message"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, chatView{Reply: reply})
}
