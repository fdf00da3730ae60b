package repository

import (
	"context"
	"errors"
	"fmt"

	"tush00nka/schoolconnect_chat/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DirectoryRepository справочник "пользователь -> школа"
type DirectoryRepository interface {
	Upsert(ctx context.Context, member *model.SchoolMember) error
	SchoolOf(ctx context.Context, userID string) (string, bool, error)
	CountSchool(ctx context.Context, schoolID string) (int64, error)
}

type directoryRepository struct {
	db *gorm.DB
}

func NewDirectoryRepository(db *gorm.DB) DirectoryRepository {
	return &directoryRepository{db: db}
}

func (r *directoryRepository) Upsert(ctx context.Context, member *model.SchoolMember) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"school_id", "display_name", "updated_at"}),
	}).Create(member).Error
	if err != nil {
		return fmt.Errorf("failed to upsert school member: %w", err)
	}
	return nil
}

func (r *directoryRepository) SchoolOf(ctx context.Context, userID string) (string, bool, error) {
	var member model.SchoolMember
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Take(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get school member: %w", err)
	}
	return member.SchoolID, true, nil
}

func (r *directoryRepository) CountSchool(ctx context.Context, schoolID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.SchoolMember{}).Where("school_id = ?", schoolID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count school members: %w", err)
	}
	return count, nil
}
