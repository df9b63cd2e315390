package handler

import (
	"context"
	"net/http"

	"crm-whatsapp/internal/adapters/dto"
	"crm-whatsapp/internal/core/domain"
	"crm-whatsapp/internal/core/services"
)

// AccountManager connects and disconnects WhatsApp numbers
type AccountManager interface {
	Connect(ctx context.Context, in services.ConnectAccountInput) (*domain.Account, error)
	Disconnect(ctx context.Context, orgID string) (int64, error)
	List(ctx context.Context, orgID string) ([]domain.Account, error)
}

// AccountHandler manages the organization's WhatsApp numbers
type AccountHandler struct {
	accounts AccountManager
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(accounts AccountManager) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

// connectResponse exposes the verify token once, so the operator can paste it
// into the Meta app's webhook settings
type connectResponse struct {
	*domain.Account
	VerifyToken string `json:"verify_token"`
}

// Connect stores credentials obtained by the OAuth flow
// POST /api/whatsapp/accounts
func (h *AccountHandler) Connect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req, err := dto.ParseConnectAccount(ctx, body)
	if err != nil {
		writeError(w, r, err)
		return
	}

	account, err := h.accounts.Connect(ctx, services.ConnectAccountInput{
		OrganizationID:    organizationID(ctx),
		PhoneNumber:       req.PhoneNumber,
		PhoneID:           req.PhoneID,
		BusinessAccountID: req.BusinessAccountID,
		AccessToken:       req.AccessToken,
		AIEnabled:         req.AIEnabled,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusCreated, connectResponse{Account: account, VerifyToken: account.VerifyToken})
}

// Disconnect marks every account of the organization inactive
// DELETE /api/whatsapp/accounts
func (h *AccountHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	n, err := h.accounts.Disconnect(r.Context(), organizationID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, NewSuccessResponse(map[string]int64{"deactivated": n}))
}

// List returns the organization's accounts without their secrets
// GET /api/whatsapp/accounts
func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accounts.List(r.Context(), organizationID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, NewSuccessResponse(nonNil(accounts)))
}
