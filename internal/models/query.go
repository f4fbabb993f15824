package models

import (
	"errors"
	"strings"
)

// ErrNoQuestion is returned when an ask request carries no question.
var ErrNoQuestion = errors.New("No question provided")

// AskRequest is the body of an ask request.
type AskRequest struct {
	Question string `json:"question"`
}

// Validate trims the question and rejects a blank one.
func (r *AskRequest) Validate() error {
	r.Question = strings.TrimSpace(r.Question)
	if r.Question == "" {
		return ErrNoQuestion
	}
	return nil
}

// PlanUnit is the wire view of one validated sub-question.
type PlanUnit struct {
	Question string `json:"question"`
	Strategy string `json:"function"`
	Target   string `json:"file_name"`
}

// PartialAnswer is the wire view of one routed sub-question's result.
type PartialAnswer struct {
	Question string `json:"question"`
	Target   string `json:"file_name"`
	Strategy string `json:"function"`
	Answer   string `json:"answer"`
	Answered bool   `json:"answered"`
	Fallback bool   `json:"fallback,omitempty"`
}

// AskResponse is the answer to an ask request.
type AskResponse struct {
	Answer    string          `json:"answer"`
	RequestID string          `json:"request_id,omitempty"`
	Plan      []PlanUnit      `json:"plan,omitempty"`
	Partials  []PartialAnswer `json:"partials,omitempty"`
	QueryTime int64           `json:"query_time_ms"`
}

// PlanResponse is the result of decomposing a question without answering it.
type PlanResponse struct {
	Question string     `json:"question"`
	Plan     []PlanUnit `json:"subquestion_bundle_list"`
}
