package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/adityakrmishra/BlockChainBazaar/internal/domain"
)

// TransactionLookup fetches a single transfer record.
type TransactionLookup interface {
	GetTransaction(ctx context.Context, id int64) (domain.Transaction, error)
}

// TransactionHandler serves transfer receipts.
type TransactionHandler struct {
	transactions TransactionLookup
	logger       *slog.Logger
}

// NewTransactionHandler creates a TransactionHandler.
func NewTransactionHandler(transactions TransactionLookup, logger *slog.Logger) *TransactionHandler {
	return &TransactionHandler{transactions: transactions, logger: logHandler(logger, "transaction")}
}

// Get returns one transaction with its reference hash.
// GET /api/transactions/{id}
func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	txn, err := h.transactions.GetTransaction(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, txn)
}
