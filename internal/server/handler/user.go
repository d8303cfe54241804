package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/adityakrmishra/BlockChainBazaar/internal/domain"
)

// UserLookup resolves a user identity.
type UserLookup interface {
	GetUser(ctx context.Context, id int64) (domain.User, error)
}

// TransactionHistory lists a user's purchases and sales.
type TransactionHistory interface {
	ListTransactionsByUser(ctx context.Context, userID int64, opts domain.ListOpts) ([]domain.Transaction, error)
}

// BidHistory lists a user's bids.
type BidHistory interface {
	ListBidsByBidder(ctx context.Context, bidderID int64, opts domain.ListOpts) ([]domain.Bid, error)
}

// UserHandler serves per-user history endpoints.
type UserHandler struct {
	users        UserLookup
	transactions TransactionHistory
	bids         BidHistory
	logger       *slog.Logger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(users UserLookup, transactions TransactionHistory, bids BidHistory, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, transactions: transactions, bids: bids, logger: logHandler(logger, "user")}
}

// Get returns the user's public profile.
// GET /api/users/{id}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	u, err := h.users.GetUser(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// Transactions lists purchases and sales involving the user, newest first.
// GET /api/users/{id}/transactions
func (h *UserHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	txns, err := h.transactions.ListTransactionsByUser(r.Context(), id, parseListOpts(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if txns == nil {
		txns = []domain.Transaction{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": txns})
}

// Bids lists the user's bids across auctions.
// GET /api/users/{id}/bids
func (h *UserHandler) Bids(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	bids, err := h.bids.ListBidsByBidder(r.Context(), id, parseListOpts(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if bids == nil {
		bids = []domain.Bid{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"bids": bids})
}
