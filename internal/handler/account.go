package handler

import (
	"encoding/json"
	"net/http"

	"banking-ledger-api/internal/model"
	"banking-ledger-api/internal/service"
)

// AccountHandler exposes the ledger operations over HTTP.
type AccountHandler struct {
	ledger *service.LedgerService
}

// NewAccountHandler creates a new account handler.
func NewAccountHandler(ledger *service.LedgerService) *AccountHandler {
	return &AccountHandler{ledger: ledger}
}

// CreateAccount handles POST /api/accounts/create
func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req model.CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	account, err := h.ledger.CreateAccount(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, "Account created successfully", account)
}

// Deposit handles PUT /api/accounts/{accountNumber}/deposit
func (h *AccountHandler) Deposit(w http.ResponseWriter, r *http.Request, accountNumber string) {
	var req model.AmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	txn, err := h.ledger.Deposit(r.Context(), accountNumber, req.Amount)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Deposit successful", txn)
}

// Withdraw handles PUT /api/accounts/{accountNumber}/withdraw
func (h *AccountHandler) Withdraw(w http.ResponseWriter, r *http.Request, accountNumber string) {
	var req model.AmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	txn, err := h.ledger.Withdraw(r.Context(), accountNumber, req.Amount)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Withdrawal successful", txn)
}

// Transfer handles POST /api/accounts/transfer
func (h *AccountHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req model.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	txn, err := h.ledger.Transfer(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Amount transferred successfully", txn)
}

// GetAccount handles GET /api/accounts/{accountNumber}
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request, accountNumber string) {
	account, err := h.ledger.GetAccountDetails(r.Context(), accountNumber)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Successfully fetched account details", account)
}

// GetTransactions handles GET /api/accounts/{accountNumber}/transactions
func (h *AccountHandler) GetTransactions(w http.ResponseWriter, r *http.Request, accountNumber string) {
	txns, err := h.ledger.GetTransactionsByAccount(r.Context(), accountNumber)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Successfully fetched transactions", txns)
}
