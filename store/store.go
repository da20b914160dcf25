// Package store persists conversion records with gorm.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/soypat/depthmesh"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var (
	ErrNotFound          = errors.New("conversion not found")
	ErrForbidden         = errors.New("conversion belongs to another owner")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Status is the lifecycle state of a conversion.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool { return s == StatusCompleted || s == StatusFailed }

// CanTransition reports whether from→to is a step of
// pending → processing → {completed | failed}.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusProcessing
	case StatusProcessing:
		return to == StatusCompleted || to == StatusFailed
	}
	return false
}

// ModelRecord is one uploaded image and the model built from it.
type ModelRecord struct {
	ID               uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID          string            `gorm:"size:128;not null;index" json:"ownerId"`
	Title            string            `gorm:"size:255" json:"title"`
	Status           Status            `gorm:"size:16;not null;index" json:"status"`
	OriginalImageURL string            `gorm:"size:2048" json:"originalImageUrl"`
	ModelData        *depthmesh.Bundle `gorm:"serializer:json" json:"modelData,omitempty"`
	ErrorMessage     string            `gorm:"size:1024" json:"errorMessage,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

// TableName keeps the historical table name.
func (ModelRecord) TableName() string { return "conversions" }

// Store reads and writes ModelRecords.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Open opens the sqlite database at dsn and migrates the schema.
// Use ":memory:" for an ephemeral store.
func Open(dsn string, logger *zap.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dsn == ":memory:" {
		// Every pooled connection would otherwise see its own empty database.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return New(db, logger)
}

// New wraps an open gorm handle and migrates the schema.
func New(db *gorm.DB, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := db.AutoMigrate(&ModelRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return &Store{db: db, logger: logger.With(zap.String("component", "store"))}, nil
}

// Close releases the underlying connections.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Create inserts a pending record, assigning an ID when missing.
func (s *Store) Create(ctx context.Context, rec *ModelRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.Status == "" {
		rec.Status = StatusPending
	}
	if rec.Status != StatusPending {
		return fmt.Errorf("%w: new records start %s, got %s", ErrInvalidTransition, StatusPending, rec.Status)
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to create conversion: %w", err)
	}
	s.logger.Debug("conversion created", zap.Stringer("id", rec.ID), zap.String("owner", rec.OwnerID))
	return nil
}

// Get loads a record by ID.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*ModelRecord, error) {
	var rec ModelRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	} else if err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns the owner's records, newest first.
func (s *Store) List(ctx context.Context, owner string) ([]ModelRecord, error) {
	var recs []ModelRecord
	err := s.db.WithContext(ctx).Where("owner_id = ?", owner).Order("created_at desc").Find(&recs).Error
	return recs, err
}

// Transition moves a record from one status to the next, applying mutate
// to the record before it is saved. Only the status, model data and error
// message are persisted. The record is left untouched when it is not in
// status from or when from→to is not a valid step.
func (s *Store) Transition(ctx context.Context, id uuid.UUID, from, to Status, mutate func(*ModelRecord)) (*ModelRecord, error) {
	if !CanTransition(from, to) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, to)
	}
	var rec ModelRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.First(&rec, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		} else if err != nil {
			return err
		}
		if rec.Status != from {
			return fmt.Errorf("%w: %s is %s, not %s", ErrInvalidTransition, id, rec.Status, from)
		}
		if mutate != nil {
			mutate(&rec)
		}
		rec.ID = id
		rec.Status = to
		res := tx.Model(&rec).Where("status = ?", from).
			Select("Status", "ModelData", "ErrorMessage", "UpdatedAt").Updates(&rec)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s changed concurrently", ErrInvalidTransition, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("conversion transition", zap.Stringer("id", id), zap.String("from", string(from)), zap.String("to", string(to)))
	return &rec, nil
}

// Delete removes a record owned by owner.
func (s *Store) Delete(ctx context.Context, owner string, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec ModelRecord
		err := tx.Select("id", "owner_id").First(&rec, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		} else if err != nil {
			return err
		}
		if rec.OwnerID != owner {
			return ErrForbidden
		}
		return tx.Delete(&ModelRecord{}, "id = ?", id).Error
	})
}
