package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/exponent-ml/exponent/internal/domain"
)

// JobRepository stores the local training job index.
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new JobRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *JobRepository: repository instance bound to db.
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a new job record.
func (r *JobRepository) Create(ctx context.Context, job *domain.TrainingJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

// GetByID retrieves a job by its ID.
// Returns domain.ErrJobNotFound for unknown ids.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.TrainingJob, error) {
	var job domain.TrainingJob
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
		}
		return nil, err
	}
	return &job, nil
}

// UpdateStatus caches a freshly polled status together with the poll time.
func (r *JobRepository) UpdateStatus(ctx context.Context, id string, status domain.JobStatus, logExcerpt string) error {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&domain.TrainingJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      status,
			"log_excerpt": logExcerpt,
			"checked_at":  &now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}
	return nil
}

// List returns all locally known jobs, newest first.
func (r *JobRepository) List(ctx context.Context) ([]domain.TrainingJob, error) {
	var jobs []domain.TrainingJob
	if err := r.db.WithContext(ctx).Order("submitted_at DESC").Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// ListByProject returns the jobs recorded for one project, newest first.
func (r *JobRepository) ListByProject(ctx context.Context, projectID string) ([]domain.TrainingJob, error) {
	var jobs []domain.TrainingJob
	if err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("submitted_at DESC").
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}
