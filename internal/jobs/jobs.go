// Package jobs provides job-draft lifecycle operations backed by GORM.
// Job drafts are created from dispatched batches and move through a
// small status flow until completed or failed.
package jobs

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/switchboard/internal/models"
	"gorm.io/gorm"
)

// CreateOpts holds parameters for creating a new job draft.
type CreateOpts struct {
	UserID      string
	UserName    string
	ChannelID   string
	Title       string
	Description string
}

// ListFilters holds optional filters for listing jobs.
type ListFilters struct {
	UserID string
	Status string
}

// ValidStatuses is the set of statuses a job may be updated to.
var ValidStatuses = []string{
	models.JobStatusActive,
	models.JobStatusPendingApproval,
	models.JobStatusProcessing,
	models.JobStatusCompleted,
	models.JobStatusFailed,
}

// GenerateID creates a unique job ID in job_xxxxxxxx format.
func GenerateID() string {
	return "job_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Create creates a new job draft with an auto-generated ID.
func Create(db *gorm.DB, opts CreateOpts) (*models.JobRecord, error) {
	if opts.UserID == "" {
		return nil, fmt.Errorf("jobs: user ID is required")
	}
	if opts.Title == "" {
		return nil, fmt.Errorf("jobs: title is required")
	}

	rec := models.JobRecord{
		JobID:       GenerateID(),
		UserID:      opts.UserID,
		UserName:    opts.UserName,
		ChannelID:   opts.ChannelID,
		Title:       opts.Title,
		Description: opts.Description,
		Status:      models.JobStatusActive,
	}
	if err := db.Create(&rec).Error; err != nil {
		return nil, fmt.Errorf("jobs: create: %w", err)
	}
	return &rec, nil
}

// Get retrieves a job by its job ID. Soft-deleted jobs are excluded.
func Get(db *gorm.DB, jobID string) (*models.JobRecord, error) {
	var rec models.JobRecord
	err := db.Where("job_id = ? AND deleted_at IS NULL", jobID).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("jobs: not found: %s", jobID)
		}
		return nil, fmt.Errorf("jobs: get %s: %w", jobID, err)
	}
	return &rec, nil
}

// List returns jobs matching the given filters, newest first.
// Soft-deleted jobs are excluded.
func List(db *gorm.DB, filters ListFilters) ([]models.JobRecord, error) {
	q := db.Model(&models.JobRecord{}).Where("deleted_at IS NULL")
	if filters.UserID != "" {
		q = q.Where("user_id = ?", filters.UserID)
	}
	if filters.Status != "" {
		q = q.Where("status = ?", filters.Status)
	}

	var recs []models.JobRecord
	if err := q.Order("created_at DESC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("jobs: list: %w", err)
	}
	return recs, nil
}

// UpdateStatus moves a job to a new status.
func UpdateStatus(db *gorm.DB, jobID, status string) error {
	if !isValidStatus(status) {
		return fmt.Errorf("jobs: invalid status %q; valid statuses: %v", status, ValidStatuses)
	}

	result := db.Model(&models.JobRecord{}).
		Where("job_id = ? AND deleted_at IS NULL", jobID).
		Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("jobs: update %s: %w", jobID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("jobs: not found: %s", jobID)
	}
	return nil
}

// Delete soft-deletes a job. The row stays in place for Restore.
func Delete(db *gorm.DB, jobID string) error {
	now := time.Now()
	result := db.Model(&models.JobRecord{}).
		Where("job_id = ? AND deleted_at IS NULL", jobID).
		Update("deleted_at", &now)
	if result.Error != nil {
		return fmt.Errorf("jobs: delete %s: %w", jobID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("jobs: not found: %s", jobID)
	}
	return nil
}

// Restore clears a job's soft-delete marker.
func Restore(db *gorm.DB, jobID string) error {
	result := db.Model(&models.JobRecord{}).
		Where("job_id = ? AND deleted_at IS NOT NULL", jobID).
		Update("deleted_at", nil)
	if result.Error != nil {
		return fmt.Errorf("jobs: restore %s: %w", jobID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("jobs: nothing to restore: %s", jobID)
	}
	return nil
}

func isValidStatus(status string) bool {
	for _, s := range ValidStatuses {
		if s == status {
			return true
		}
	}
	return false
}
