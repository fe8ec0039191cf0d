package dtos

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/justsurfingit/job-tracker/internal/models"
	"github.com/justsurfingit/job-tracker/internal/services"
)

// JobCreationRequest is also the PUT body. There is deliberately no owner field: the
// owner always comes from the authenticated account.
type JobCreationRequest struct {
	Company string `json:"company" binding:"required"`
	Title   string `json:"title" binding:"required"`

	// Optional Fields
	Status    *models.Status `json:"status"` // Defaults to "applied" if omitted
	AppliedAt OptionalDate   `json:"applied_at"`
	Note      *string        `json:"note"`
}

func (r *JobCreationRequest) Input() services.JobInput {
	in := services.JobInput{
		Company:   r.Company,
		Title:     r.Title,
		Status:    r.Status,
		AppliedAt: r.AppliedAt.Value,
	}
	if r.Note != nil {
		in.Note = *r.Note
	}
	return in
}

// Patch turns a full (PUT) body into an update. Optional fields left out of the body
// keep their stored values.
func (r *JobCreationRequest) Patch() services.JobPatch {
	return services.JobPatch{
		Company:      &r.Company,
		Title:        &r.Title,
		Status:       r.Status,
		Note:         r.Note,
		SetAppliedAt: r.AppliedAt.Set,
		AppliedAt:    r.AppliedAt.Value,
	}
}

// JobUpdateRequest is the PATCH body.
type JobUpdateRequest struct {
	Company   *string        `json:"company"`
	Title     *string        `json:"title"`
	Status    *models.Status `json:"status"`
	AppliedAt OptionalDate   `json:"applied_at"`
	Note      *string        `json:"note"`
}

func (r *JobUpdateRequest) Patch() services.JobPatch {
	return services.JobPatch{
		Company:      r.Company,
		Title:        r.Title,
		Status:       r.Status,
		Note:         r.Note,
		SetAppliedAt: r.AppliedAt.Set,
		AppliedAt:    r.AppliedAt.Value,
	}
}

// TransitionRequest carries no binding tag; the service reports a missing to_status
// after the ownership lookup.
type TransitionRequest struct {
	ToStatus *models.Status `json:"to_status"`
}

type JobExtractionRequest struct {
	RawText string `json:"raw_text" binding:"required"`
}

type JobListQuery struct {
	Search   string `form:"search"`
	Ordering string `form:"ordering"`
}

func (q JobListQuery) Query() services.JobQuery {
	return services.JobQuery{Search: q.Search, Ordering: q.Ordering}
}

// OptionalDate tells an explicit null apart from a missing key.
type OptionalDate struct {
	Set   bool
	Value *models.Date
}

func (o *OptionalDate) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var d models.Date
	if err := json.Unmarshal(data, &d); err != nil {
		return err
	}
	o.Value = &d
	return nil
}

// JobResponse is the single representation of a job, including the statuses a client
// can move it to.
type JobResponse struct {
	ID              uint            `json:"id"`
	Owner           string          `json:"owner"`
	Company         string          `json:"company"`
	Title           string          `json:"title"`
	Status          models.Status   `json:"status"`
	AppliedAt       *models.Date    `json:"applied_at"`
	Note            string          `json:"note"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	CanTransitionTo []models.Status `json:"can_transition_to"`
}

func NewJobResponse(job *models.Job, owner *models.User) JobResponse {
	return JobResponse{
		ID:              job.ID,
		Owner:           owner.Username,
		Company:         job.Company,
		Title:           job.Title,
		Status:          job.Status,
		AppliedAt:       job.AppliedAt,
		Note:            job.Note,
		CreatedAt:       job.CreatedAt,
		UpdatedAt:       job.UpdatedAt,
		CanTransitionTo: job.ActionableTransitions(),
	}
}

func NewJobListResponse(jobs []models.Job, owner *models.User) []JobResponse {
	out := make([]JobResponse, 0, len(jobs))
	for i := range jobs {
		out = append(out, NewJobResponse(&jobs[i], owner))
	}
	return out
}
