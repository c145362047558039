package models

import "strings"

// RevalidateRequest names the sessions to re-check.
type RevalidateRequest struct {
	SessionIDs []string `json:"session_ids" validate:"dive,required"`
}

func (r *RevalidateRequest) Normalize() {
	for i, v := range r.SessionIDs {
		r.SessionIDs[i] = strings.TrimSpace(v)
	}
}

// Result partitions a batch. Valid and Invalid keep request order; each
// entry in Errors names the id it concerns.
type Result struct {
	Valid   []string `json:"valid"`
	Invalid []string `json:"invalid"`
	Errors  []string `json:"errors"`
}
