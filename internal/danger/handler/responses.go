package handler

import (
	"encoding/json"
	"time"

	"famledger/internal/danger"
)

type ApproverRefResponse struct {
	UserID string `json:"userId,omitempty"`
	Role   string `json:"role,omitempty"`
}

type ApprovalResponse struct {
	UserID     string    `json:"userId"`
	Role       string    `json:"role"`
	Reason     string    `json:"reason,omitempty"`
	ApprovedAt time.Time `json:"approvedAt"`
}

type RequestResponse struct {
	ID                string                `json:"id"`
	FamilyID          string                `json:"familyId"`
	Kind              string                `json:"kind"`
	Payload           json.RawMessage       `json:"payload,omitempty"`
	Reason            string                `json:"reason"`
	RequestedBy       string                `json:"requestedBy"`
	RequestedByRole   string                `json:"requestedByRole"`
	Status            string                `json:"status"`
	RequiredApprovers []ApproverRefResponse `json:"requiredApprovers"`
	Approvals         []ApprovalResponse    `json:"approvals"`
	RejectedBy        string                `json:"rejectedBy,omitempty"`
	RejectionReason   string                `json:"rejectionReason,omitempty"`
	CoolingEndsAt     *time.Time            `json:"coolingEndsAt,omitempty"`
	ExecutedAt        *time.Time            `json:"executedAt,omitempty"`
	ExecutedBy        string                `json:"executedBy,omitempty"`
	CreatedAt         time.Time             `json:"createdAt"`
	UpdatedAt         time.Time             `json:"updatedAt"`
}

func FromRequest(req danger.CriticalActionRequest) RequestResponse {
	resp := RequestResponse{
		ID:              req.ID.String(),
		FamilyID:        req.FamilyID.String(),
		Kind:            req.Kind.String(),
		Payload:         req.Payload,
		Reason:          req.Reason,
		RequestedBy:     req.RequestedBy.String(),
		RequestedByRole: string(req.RequestedByRole),
		Status:          string(req.Status),
		RejectionReason: req.RejectionReason,
		CoolingEndsAt:   req.CoolingEndsAt,
		ExecutedAt:      req.ExecutedAt,
		ExecutedBy:      req.ExecutedBy,
		CreatedAt:       req.CreatedAt,
		UpdatedAt:       req.UpdatedAt,
	}
	if req.RejectedBy != nil {
		resp.RejectedBy = req.RejectedBy.String()
	}

	resp.RequiredApprovers = make([]ApproverRefResponse, len(req.RequiredApprovers))
	for i, ref := range req.RequiredApprovers {
		if ref.UserID != nil {
			resp.RequiredApprovers[i].UserID = ref.UserID.String()
		}
		if ref.Role != nil {
			resp.RequiredApprovers[i].Role = string(*ref.Role)
		}
	}

	resp.Approvals = make([]ApprovalResponse, len(req.Approvals))
	for i, a := range req.Approvals {
		resp.Approvals[i] = ApprovalResponse{
			UserID:     a.UserID.String(),
			Role:       string(a.Role),
			Reason:     a.Reason,
			ApprovedAt: a.ApprovedAt,
		}
	}
	return resp
}

func FromRequests(reqs []danger.CriticalActionRequest) []RequestResponse {
	out := make([]RequestResponse, len(reqs))
	for i, req := range reqs {
		out[i] = FromRequest(req)
	}
	return out
}
