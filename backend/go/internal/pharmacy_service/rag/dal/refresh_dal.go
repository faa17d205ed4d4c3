package dal

import (
	"PharmaChat/backend/go/internal/models"
	"PharmaChat/backend/go/internal/pharmacy_service/rag/interfaces"
	"context"
	"fmt"

	"gorm.io/gorm"
)

// RefreshDAL provides data access methods for catalog refresh history.
type RefreshDAL struct {
	db *gorm.DB
}

// NewRefreshDAL creates a new RefreshDAL and migrates the refresh_runs table.
func NewRefreshDAL(db *gorm.DB) (*RefreshDAL, error) {
	if err := db.AutoMigrate(&models.RefreshRun{}); err != nil {
		return nil, fmt.Errorf("migrate refresh_runs: %w", err)
	}
	return &RefreshDAL{db: db}, nil
}

// Record inserts or updates a refresh run by ID.
func (dal *RefreshDAL) Record(ctx context.Context, run *models.RefreshRun) error {
	return dal.db.WithContext(ctx).Save(run).Error
}

// Recent returns the latest runs, newest first.
func (dal *RefreshDAL) Recent(ctx context.Context, limit int) ([]models.RefreshRun, error) {
	var runs []models.RefreshRun
	result := dal.db.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&runs)
	if result.Error != nil {
		return nil, result.Error
	}
	return runs, nil
}

// compile-time check to ensure RefreshDAL implements the RefreshLog interface
var _ interfaces.RefreshLog = (*RefreshDAL)(nil)
