package repository

import (
	"context"
	"fmt"
)

// HealthChecker is implemented by the repositories that are able to report their state.
type HealthChecker interface {
	HealthCheck(ctx context.Context) (*HealthResponse, error)
}

// HealthStatus is the state reported by the repository health check.
type HealthStatus string

// The repository is either usable or not.
const (
	StatusPass HealthStatus = "pass"
	StatusFail HealthStatus = "fail"
)

// HealthResponse describes the repository state. The 'Notes' contain driver specific
// statistics i.e. the number of tables.
type HealthResponse struct {
	Status HealthStatus `json:"status"`
	Output string       `json:"output,omitempty"`
	Notes  []string     `json:"notes,omitempty"`
}

// Passed creates the passing health response with optional notes.
func Passed(notes ...string) *HealthResponse {
	return &HealthResponse{Status: StatusPass, Notes: notes}
}

// Failed creates the failing health response with the formatted output.
func Failed(format string, args ...interface{}) *HealthResponse {
	return &HealthResponse{Status: StatusFail, Output: fmt.Sprintf(format, args...)}
}

// Healthy checks if the response status passes.
func (h *HealthResponse) Healthy() bool {
	return h != nil && h.Status == StatusPass
}
