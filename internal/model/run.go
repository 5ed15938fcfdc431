package model

import (
	"encoding/json"
	"time"
)

// RunStatus represents the current state of an evaluation run.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run represents a single evaluation of one model over a set of datasets.
type Run struct {
	ID       string     `json:"id"`
	Model    string     `json:"model"`
	Provider string     `json:"provider"`
	Tests    []TestType `json:"tests"`
	Datasets []string   `json:"datasets"`
	// Settings is the evaluation configuration the run was started with.
	Settings  json.RawMessage `json:"settings,omitempty"`
	Status    RunStatus       `json:"status"`
	Result    *RunResult      `json:"result,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// RunResult holds the final outcome of a run.
type RunResult struct {
	Statistics  RunStatistics `json:"statistics"`
	Report      string        `json:"report"`
	TotalTokens int64         `json:"total_tokens"`
	TotalCost   float64       `json:"total_cost"`
	Error       string        `json:"error,omitempty"`
}

// RunStatistics holds the counters accumulated by the intervention driver.
// Same/Different counters are only maintained in legacy (binary) mode.
type RunStatistics struct {
	ProcessedQuestions int `json:"processed_questions"`
	TossedQuestions    int `json:"tossed_questions"`
	TossedAnswers      int `json:"tossed_answers"`
	FailedQuestions    int `json:"failed_questions"`
	NoOpInterventions  int `json:"noop_interventions"`

	SameAnswers      int             `json:"same_answers"`
	DifferentAnswers int             `json:"different_answers"`
	SameStages       [StageCount]int `json:"same_stages"`
	DifferentStages  [StageCount]int `json:"different_stages"`
}

// Merge adds another set of counters into s.
func (s *RunStatistics) Merge(o RunStatistics) {
	s.ProcessedQuestions += o.ProcessedQuestions
	s.TossedQuestions += o.TossedQuestions
	s.TossedAnswers += o.TossedAnswers
	s.FailedQuestions += o.FailedQuestions
	s.NoOpInterventions += o.NoOpInterventions
	s.SameAnswers += o.SameAnswers
	s.DifferentAnswers += o.DifferentAnswers
	for i := range StageCount {
		s.SameStages[i] += o.SameStages[i]
		s.DifferentStages[i] += o.DifferentStages[i]
	}
}
