package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"famledger/internal/danger"
	id "famledger/pkg/domain"
	dErrors "famledger/pkg/domain-errors"
	"famledger/pkg/platform/httputil"
	"famledger/pkg/requestcontext"
)

// Service defines the workflow operations the handler exposes.
type Service interface {
	Create(ctx context.Context, familyID id.FamilyID, input danger.CreateInput) (danger.CriticalActionRequest, error)
	Approve(ctx context.Context, familyID id.FamilyID, requestID id.ActionRequestID, reason string) (danger.CriticalActionRequest, error)
	Reject(ctx context.Context, familyID id.FamilyID, requestID id.ActionRequestID, reason string) (danger.CriticalActionRequest, error)
	Execute(ctx context.Context, familyID id.FamilyID, requestID id.ActionRequestID) (danger.CriticalActionRequest, error)
	Get(ctx context.Context, familyID id.FamilyID, requestID id.ActionRequestID) (danger.CriticalActionRequest, error)
	List(ctx context.Context, familyID id.FamilyID, status danger.Status) ([]danger.CriticalActionRequest, error)
}

// Handler wires danger action endpoints to the workflow.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the danger action endpoints under a family scope.
func (h *Handler) Register(r chi.Router) {
	r.Route("/families/{familyID}/danger-actions", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Get("/", h.HandleList)
		r.Get("/{requestID}", h.HandleGet)
		r.Post("/{requestID}/approve", h.HandleApprove)
		r.Post("/{requestID}/reject", h.HandleReject)
		r.Post("/{requestID}/execute", h.HandleExecute)
	})
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	familyID, err := id.ParseFamilyID(chi.URLParam(r, "familyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	body, err := httputil.Decode[CreateRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, err := h.service.Create(ctx, familyID, body.ToInput())
	if err != nil {
		h.logError(ctx, "danger action creation failed", familyID, err,
			"kind", body.Kind)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "danger action created",
		"request_id", requestcontext.RequestID(ctx),
		"family_id", familyID,
		"danger_action_id", req.ID,
		"kind", req.Kind,
	)
	httputil.WriteJSON(w, http.StatusCreated, FromRequest(req))
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	familyID, err := id.ParseFamilyID(chi.URLParam(r, "familyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	status := danger.Status(r.URL.Query().Get("status"))
	switch status {
	case "", danger.StatusPending, danger.StatusApproved, danger.StatusRejected, danger.StatusExecuted:
	default:
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "unknown status filter"))
		return
	}

	requests, err := h.service.List(ctx, familyID, status)
	if err != nil {
		h.logError(ctx, "danger action listing failed", familyID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRequests(requests))
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, h.service.Get)
}

func (h *Handler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, h.service.Execute)
}

func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.service.Approve, false)
}

func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.service.Reject, true)
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request, op func(context.Context, id.FamilyID, id.ActionRequestID) (danger.CriticalActionRequest, error)) {
	ctx := r.Context()

	familyID, requestID, err := pathIDs(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, err := op(ctx, familyID, requestID)
	if err != nil {
		h.logError(ctx, "danger action operation failed", familyID, err,
			"danger_action_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRequest(req))
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, op func(context.Context, id.FamilyID, id.ActionRequestID, string) (danger.CriticalActionRequest, error), reasonRequired bool) {
	ctx := r.Context()

	familyID, requestID, err := pathIDs(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var body DecisionRequest
	if r.ContentLength != 0 {
		body, err = httputil.Decode[DecisionRequest](r)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
	}
	if reasonRequired && body.Reason == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "a reason is required to reject"))
		return
	}

	req, err := op(ctx, familyID, requestID, body.Reason)
	if err != nil {
		h.logError(ctx, "danger action decision failed", familyID, err,
			"danger_action_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRequest(req))
}

func pathIDs(r *http.Request) (id.FamilyID, id.ActionRequestID, error) {
	familyID, err := id.ParseFamilyID(chi.URLParam(r, "familyID"))
	if err != nil {
		return id.FamilyID{}, id.ActionRequestID{}, err
	}
	requestID, err := id.ParseActionRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		return id.FamilyID{}, id.ActionRequestID{}, err
	}
	return familyID, requestID, nil
}

func (h *Handler) logError(ctx context.Context, msg string, familyID id.FamilyID, err error, attrs ...any) {
	attrs = append(attrs,
		"request_id", requestcontext.RequestID(ctx),
		"family_id", familyID,
		"error", err,
	)
	h.logger.ErrorContext(ctx, msg, attrs...)
}
