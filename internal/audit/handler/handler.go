package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"famledger/internal/audit"
	"famledger/internal/permission"
	id "famledger/pkg/domain"
	dErrors "famledger/pkg/domain-errors"
	"famledger/pkg/platform/httputil"
	"famledger/pkg/requestcontext"
)

// Authorizer gates audit access. Viewing and exporting carry separate grants.
type Authorizer interface {
	RequirePermission(ctx context.Context, familyID id.FamilyID, perm permission.Permission) (permission.Actor, error)
}

// Trail defines the audit read operations the handler exposes.
type Trail interface {
	Find(ctx context.Context, familyID id.FamilyID, entryID id.AuditEntryID) (audit.Entry, error)
	List(ctx context.Context, familyID id.FamilyID, filter audit.Filter) ([]audit.Entry, error)
	EntityHistory(ctx context.Context, familyID id.FamilyID, entityType, entityID string) ([]audit.Entry, error)
}

// Handler wires the audit log endpoints to the trail.
type Handler struct {
	trail  Trail
	auth   Authorizer
	logger *slog.Logger
}

func New(trail Trail, auth Authorizer, logger *slog.Logger) *Handler {
	return &Handler{trail: trail, auth: auth, logger: logger}
}

// Register mounts the audit endpoints under a family scope.
func (h *Handler) Register(r chi.Router) {
	r.Route("/families/{familyID}/audit-log", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Get("/export", h.HandleExport)
		r.Get("/{entryID}", h.HandleGet)
		r.Get("/entity/{entityType}/{entityID}", h.HandleEntityHistory)
	})
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	familyID, err := id.ParseFamilyID(chi.URLParam(r, "familyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if _, err := h.auth.RequirePermission(ctx, familyID, permission.ViewAuditLog); err != nil {
		httputil.WriteError(w, err)
		return
	}

	filter, err := filterFromQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	entries, err := h.trail.List(ctx, familyID, filter)
	if err != nil {
		h.logError(ctx, "audit listing failed", familyID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromEntries(entries))
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	familyID, err := id.ParseFamilyID(chi.URLParam(r, "familyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	entryID, err := id.ParseAuditEntryID(chi.URLParam(r, "entryID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if _, err := h.auth.RequirePermission(ctx, familyID, permission.ViewAuditLog); err != nil {
		httputil.WriteError(w, err)
		return
	}

	entry, err := h.trail.Find(ctx, familyID, entryID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromEntry(entry))
}

func (h *Handler) HandleEntityHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	familyID, err := id.ParseFamilyID(chi.URLParam(r, "familyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if _, err := h.auth.RequirePermission(ctx, familyID, permission.ViewAuditLog); err != nil {
		httputil.WriteError(w, err)
		return
	}

	entries, err := h.trail.EntityHistory(ctx, familyID,
		chi.URLParam(r, "entityType"), chi.URLParam(r, "entityID"))
	if err != nil {
		h.logError(ctx, "entity history failed", familyID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromEntries(entries))
}

// HandleExport streams the family trail as a standalone HTML document.
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	familyID, err := id.ParseFamilyID(chi.URLParam(r, "familyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if _, err := h.auth.RequirePermission(ctx, familyID, permission.ExportAuditLog); err != nil {
		httputil.WriteError(w, err)
		return
	}

	entries, err := h.trail.List(ctx, familyID, audit.Filter{Limit: audit.MaxPageSize})
	if err != nil {
		h.logError(ctx, "audit export failed", familyID, err)
		httputil.WriteError(w, err)
		return
	}

	page, err := audit.RenderExport(familyID, entries, requestcontext.Now(ctx))
	if err != nil {
		h.logError(ctx, "audit export rendering failed", familyID, err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to render export"))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", "audit-log-"+familyID.String()+".html"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(page)
}

func filterFromQuery(r *http.Request) (audit.Filter, error) {
	q := r.URL.Query()
	filter := audit.Filter{
		EntityType: q.Get("entityType"),
		Action:     q.Get("action"),
		Severity:   audit.Severity(q.Get("severity")),
	}

	if actor := q.Get("actorId"); actor != "" {
		actorID, err := id.ParseUserID(actor)
		if err != nil {
			return audit.Filter{}, dErrors.New(dErrors.CodeBadRequest, "invalid actorId filter")
		}
		filter.ActorID = actorID
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			return audit.Filter{}, dErrors.New(dErrors.CodeBadRequest, "invalid limit")
		}
		filter.Limit = n
	}
	if offset := q.Get("offset"); offset != "" {
		n, err := strconv.Atoi(offset)
		if err != nil || n < 0 {
			return audit.Filter{}, dErrors.New(dErrors.CodeBadRequest, "invalid offset")
		}
		filter.Offset = n
	}
	return filter, nil
}

func (h *Handler) logError(ctx context.Context, msg string, familyID id.FamilyID, err error) {
	h.logger.ErrorContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"family_id", familyID,
		"error", err,
	)
}
