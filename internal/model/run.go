package model

import "time"

// RunStatus tracks lifecycle of an analysis run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// RunResult is the persisted summary of a completed analysis run.
type RunResult struct {
	Total        int            `json:"total"`
	ImageCount   int            `json:"image_count"`
	NonImage     int            `json:"non_image_count"`
	Distribution map[string]int `json:"distribution,omitempty"`
	RuleCount    int            `json:"rule_count"`
	ModelCount   int            `json:"model_count"`
	AnomalyCount int            `json:"anomaly_count"`
}

// Run is one recorded analysis over a listing.
type Run struct {
	ID        string     `json:"id"`
	Listing   string     `json:"listing"`
	Status    RunStatus  `json:"status"`
	Error     string     `json:"error,omitempty"`
	Result    *RunResult `json:"result,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
