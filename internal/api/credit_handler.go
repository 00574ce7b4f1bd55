package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

// GetBalance возвращает баланс кредитов пользователя.
// GET /api/v1/users/{id}/balance
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid user id")
		return
	}

	balance, err := h.ledger.GetBalance(r.Context(), userID)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	Success(w, BalanceResponse{UserID: userID, Balance: balance})
}

// Deposit пополняет баланс кредитов пользователя.
// POST /api/v1/users/{id}/deposit
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid user id")
		return
	}

	var req DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Amount <= 0 {
		BadRequest(w, "amount must be positive")
		return
	}

	if err := h.ledger.Deposit(r.Context(), userID, req.Amount); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	balance, err := h.ledger.GetBalance(r.Context(), userID)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	Success(w, BalanceResponse{UserID: userID, Balance: balance})
}
