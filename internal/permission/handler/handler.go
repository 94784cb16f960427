package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"famledger/internal/permission"
	id "famledger/pkg/domain"
	dErrors "famledger/pkg/domain-errors"
	"famledger/pkg/platform/httputil"
	"famledger/pkg/requestcontext"
)

// Handler exposes the caller's effective permission set for UI gating.
type Handler struct {
	matrix *permission.Matrix
	logger *slog.Logger
}

func New(matrix *permission.Matrix, logger *slog.Logger) *Handler {
	return &Handler{matrix: matrix, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/families/{familyID}/permissions", h.HandleMyPermissions)
}

type permissionsResponse struct {
	Permissions []string `json:"permissions"`
}

// HandleMyPermissions returns the authenticated actor's enabled permissions
// within the family. Non-members get an empty set, not an error: the UI
// treats "nothing allowed" and "not a member" the same way.
func (h *Handler) HandleMyPermissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	familyID, err := id.ParseFamilyID(chi.URLParam(r, "familyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	actorID := requestcontext.ActorID(ctx)
	if actorID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	perms := h.matrix.UserPermissions(ctx, actorID, familyID)
	names := make([]string, len(perms))
	for i, p := range perms {
		names[i] = p.String()
	}
	httputil.WriteJSON(w, http.StatusOK, permissionsResponse{Permissions: names})
}
