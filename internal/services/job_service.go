package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/justsurfingit/job-tracker/internal/metrics"
	"github.com/justsurfingit/job-tracker/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	maxCharFieldLength = 120
	// status writes are compare-and-swap; this bounds how often a lost race is retried
	maxStatusWriteAttempts = 3
)

// ErrConcurrentUpdate is returned when the stored status kept changing underneath a write.
var ErrConcurrentUpdate = errors.New("job was modified concurrently, retry the request")

// JobInput carries the fields a client may set when creating a job.
type JobInput struct {
	Company   string
	Title     string
	Status    *models.Status // nil means applied
	AppliedAt *models.Date
	Note      string
}

// JobPatch carries the fields of an update; nil pointers leave the stored value alone.
type JobPatch struct {
	Company *string
	Title   *string
	Status  *models.Status
	Note    *string

	// SetAppliedAt distinguishes "clear applied_at" (true, nil) from "leave it" (false).
	SetAppliedAt bool
	AppliedAt    *models.Date
}

type JobService struct {
	DB     *gorm.DB
	Logger *zap.Logger
	now    func() time.Time
}

func NewJobService(db *gorm.DB, logger *zap.Logger) *JobService {
	return &JobService{
		DB:     db,
		Logger: logger.Named("jobs"),
		now:    time.Now,
	}
}

// owned scopes every query to the caller's rows before any lookup happens.
func (s *JobService) owned(ctx context.Context, ownerID uint) *gorm.DB {
	return s.DB.WithContext(ctx).Model(&models.Job{}).Where("owner_id = ?", ownerID)
}

func (s *JobService) List(ctx context.Context, ownerID uint, q JobQuery) ([]models.Job, error) {
	var jobs []models.Job
	if err := q.apply(s.owned(ctx, ownerID)).Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

func (s *JobService) Create(ctx context.Context, ownerID uint, in JobInput) (*models.Job, error) {
	company, err := cleanCharField("company", in.Company)
	if err != nil {
		return nil, err
	}
	title, err := cleanCharField("title", in.Title)
	if err != nil {
		return nil, err
	}

	status := models.StatusApplied
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, fieldError("status", (&models.InvalidStatusError{Value: string(*in.Status)}).Error())
		}
		status = *in.Status
	}

	now := s.now()
	job := &models.Job{
		CreatedAt: now,
		UpdatedAt: now,
		OwnerID:   ownerID,
		Company:   company,
		Title:     title,
		Status:    status,
		AppliedAt: in.AppliedAt,
		Note:      strings.TrimSpace(in.Note),
	}
	if err := s.DB.WithContext(ctx).Create(job).Error; err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	metrics.JobsCreated.WithLabelValues(string(status)).Inc()
	s.Logger.Info("job created",
		zap.Uint("owner_id", ownerID),
		zap.Uint("job_id", job.ID),
		zap.String("status", string(status)))
	return s.Get(ctx, ownerID, job.ID)
}

// Get returns ErrNotFound for jobs that do not exist and for jobs owned by someone else.
func (s *JobService) Get(ctx context.Context, ownerID, id uint) (*models.Job, error) {
	var job models.Job
	err := s.owned(ctx, ownerID).Where("id = ?", id).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job %d: %w", id, err)
	}
	return &job, nil
}

// Update applies a patch. A status change is checked against the stored status, not
// against anything the client claims the status was.
func (s *JobService) Update(ctx context.Context, ownerID, id uint, patch JobPatch) (*models.Job, error) {
	updates := map[string]any{}
	if patch.Company != nil {
		company, err := cleanCharField("company", *patch.Company)
		if err != nil {
			return nil, err
		}
		updates["company"] = company
	}
	if patch.Title != nil {
		title, err := cleanCharField("title", *patch.Title)
		if err != nil {
			return nil, err
		}
		updates["title"] = title
	}
	if patch.Note != nil {
		updates["note"] = strings.TrimSpace(*patch.Note)
	}
	if patch.SetAppliedAt {
		if patch.AppliedAt == nil {
			updates["applied_at"] = nil
		} else {
			updates["applied_at"] = *patch.AppliedAt
		}
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, fieldError("status", (&models.InvalidStatusError{Value: string(*patch.Status)}).Error())
	}

	for attempt := 0; attempt < maxStatusWriteAttempts; attempt++ {
		job, err := s.Get(ctx, ownerID, id)
		if err != nil {
			return nil, err
		}

		delete(updates, "status")
		if patch.Status != nil && *patch.Status != job.Status {
			if !job.CanTransitionTo(*patch.Status) {
				s.rejectTransition(ownerID, job, *patch.Status)
				return nil, fieldError("status", invalidTransitionMessage(job.Status, *patch.Status))
			}
			updates["status"] = *patch.Status
		}
		updates["updated_at"] = s.now()

		applied, err := s.compareAndSwap(ctx, ownerID, job, updates)
		if err != nil {
			return nil, err
		}
		if !applied {
			continue
		}
		if to, ok := updates["status"].(models.Status); ok {
			s.acceptTransition(ownerID, job, to)
		}
		return s.Get(ctx, ownerID, id)
	}
	return nil, ErrConcurrentUpdate
}

// Transition moves a job to a new status. Only status and updated_at are written.
func (s *JobService) Transition(ctx context.Context, ownerID, id uint, to *models.Status) (*models.Job, error) {
	for attempt := 0; attempt < maxStatusWriteAttempts; attempt++ {
		job, err := s.Get(ctx, ownerID, id)
		if err != nil {
			return nil, err
		}
		if to == nil {
			return nil, requiredError("to_status")
		}
		if !job.CanTransitionTo(*to) {
			s.rejectTransition(ownerID, job, *to)
			return nil, &ValidationError{Message: invalidTransitionMessage(job.Status, *to)}
		}

		applied, err := s.compareAndSwap(ctx, ownerID, job, map[string]any{
			"status":     *to,
			"updated_at": s.now(),
		})
		if err != nil {
			return nil, err
		}
		if !applied {
			continue
		}
		s.acceptTransition(ownerID, job, *to)
		return s.Get(ctx, ownerID, id)
	}
	return nil, ErrConcurrentUpdate
}

func (s *JobService) Delete(ctx context.Context, ownerID, id uint) error {
	res := s.owned(ctx, ownerID).Where("id = ?", id).Delete(&models.Job{})
	if res.Error != nil {
		return fmt.Errorf("delete job %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	s.Logger.Info("job deleted", zap.Uint("owner_id", ownerID), zap.Uint("job_id", id))
	return nil
}

// compareAndSwap writes updates only if the row still has the status it was read with.
func (s *JobService) compareAndSwap(ctx context.Context, ownerID uint, job *models.Job, updates map[string]any) (bool, error) {
	res := s.owned(ctx, ownerID).
		Where("id = ? AND status = ?", job.ID, job.Status).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("update job %d: %w", job.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		s.Logger.Warn("stored status changed during write, reloading",
			zap.Uint("job_id", job.ID),
			zap.String("expected_status", string(job.Status)))
		return false, nil
	}
	return true, nil
}

func (s *JobService) acceptTransition(ownerID uint, job *models.Job, to models.Status) {
	metrics.JobTransitions.WithLabelValues(string(job.Status), string(to), metrics.ResultApplied).Inc()
	s.Logger.Info("job status changed",
		zap.Uint("owner_id", ownerID),
		zap.Uint("job_id", job.ID),
		zap.String("from", string(job.Status)),
		zap.String("to", string(to)))
}

func (s *JobService) rejectTransition(ownerID uint, job *models.Job, to models.Status) {
	metrics.JobTransitions.WithLabelValues(string(job.Status), string(to), metrics.ResultRejected).Inc()
	s.Logger.Info("job status change rejected",
		zap.Uint("owner_id", ownerID),
		zap.Uint("job_id", job.ID),
		zap.String("from", string(job.Status)),
		zap.String("to", string(to)),
		zap.Bool("terminal", job.IsTerminal()))
}

// cleanCharField trims surrounding whitespace and enforces presence and length.
func cleanCharField(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fieldError(field, "This field may not be blank.")
	}
	if utf8.RuneCountInString(value) > maxCharFieldLength {
		return "", fieldError(field, fmt.Sprintf("Ensure this field has no more than %d characters.", maxCharFieldLength))
	}
	return value, nil
}
