package model

import (
	"strings"
	"time"
)

type ApplicationStatus string

const (
	StatusApplied    ApplicationStatus = "applied"
	StatusInProgress ApplicationStatus = "in-progress"
	StatusOffer      ApplicationStatus = "offer"
	StatusRejected   ApplicationStatus = "rejected"
)

func (s ApplicationStatus) IsValid() bool {
	switch s {
	case StatusApplied, StatusInProgress, StatusOffer, StatusRejected:
		return true
	}
	return false
}

type StageStatus string

const (
	StageUpcoming StageStatus = "upcoming"
	StagePending  StageStatus = "pending"
	StageCleared  StageStatus = "cleared"
	StageRejected StageStatus = "rejected"
)

func (s StageStatus) IsValid() bool {
	switch s {
	case StageUpcoming, StagePending, StageCleared, StageRejected:
		return true
	}
	return false
}

// Stage is an append-only milestone embedded in its application. Stages have
// no identity of their own and are never edited after being appended.
type Stage struct {
	Name   string      `json:"name"`
	Date   time.Time   `json:"date"`
	Status StageStatus `json:"status"`
	Notes  string      `json:"notes,omitempty"`
}

type Application struct {
	ID           string            `json:"id"`
	StudentID    string            `json:"student_id"` // Immutable owner reference
	CompanyName  string            `json:"company_name"`
	Role         string            `json:"role"`
	Status       ApplicationStatus `json:"status"`
	AppliedDate  time.Time         `json:"applied_date"`
	ReferralUsed bool              `json:"referral_used"`
	OALink       string            `json:"oa_link,omitempty"`
	Notes        string            `json:"notes,omitempty"`
	NextDeadline *time.Time        `json:"next_deadline,omitempty"`
	Stages       []Stage           `json:"stages"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// ApplyStageOutcome applies the derived-status rule after a stage append:
// a rejected stage makes the whole application rejected; otherwise a stage
// named "offer" (any case) makes it an offer. The rejected check runs first
// so a rejected "Offer" stage cannot flip the status back to offer.
func (a *Application) ApplyStageOutcome(stage Stage) {
	if stage.Status == StageRejected {
		a.Status = StatusRejected
		return
	}
	if strings.EqualFold(stage.Name, "offer") {
		a.Status = StatusOffer
	}
}
