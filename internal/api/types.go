package api

import "github.com/quickcheckhq/realtime/internal/model"

// ListResponse is the wire shape of the quick-check collection endpoints.
type ListResponse struct {
	QuickChecks []model.Inspection `json:"quick_checks"`
	Total       int                `json:"total"`
}

// SingleResponse wraps a single quick check.
type SingleResponse struct {
	QuickCheck model.Inspection `json:"quick_check"`
}

type archiveRequest struct {
	Reason string `json:"reason,omitempty"`
}

type submitRequest struct {
	Data model.Payload `json:"data"`
}
