// Package models persists the operation audit trail behind the app gateway.
package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OperationRecord is the durable row for one creation attempt. The in-memory
// coordinator owns the live state; rows record intent and terminal outcome so
// clients can poll after a disconnect.
type OperationRecord struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Kind      string    `gorm:"size:32;index"`
	Username  string    `gorm:"size:64;index"`
	Symbol    string    `gorm:"size:32;index"`
	Status    string    `gorm:"size:16;index"`
	TxHash    string    `gorm:"size:66"`
	ErrorKind string    `gorm:"size:32"`
	Message   string    `gorm:"size:512"`
	Retryable bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AutoMigrate creates or updates the schema.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&OperationRecord{})
}

// ErrNotFound is returned when an operation id has no row.
var ErrNotFound = errors.New("models: operation not found")

// Store wraps the database handle with the operations the gateway needs.
type Store struct {
	db *gorm.DB
}

// NewStore builds a store over an open database handle.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// CreatePending inserts the initial row for a freshly started operation.
func (s *Store) CreatePending(ctx context.Context, id uuid.UUID, kind, username, symbol string) error {
	rec := OperationRecord{
		ID:       id,
		Kind:     kind,
		Username: username,
		Symbol:   symbol,
		Status:   "pending",
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("models: create operation: %w", err)
	}
	return nil
}

// RecordOutcome updates the row with the terminal state of the operation.
func (s *Store) RecordOutcome(ctx context.Context, id uuid.UUID, status, txHash, errorKind, message string, retryable bool) error {
	updates := map[string]interface{}{
		"status":     status,
		"tx_hash":    txHash,
		"error_kind": errorKind,
		"message":    message,
		"retryable":  retryable,
	}
	res := s.db.WithContext(ctx).Model(&OperationRecord{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("models: record outcome: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Get returns the row for an operation id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*OperationRecord, error) {
	var rec OperationRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("models: load operation: %w", err)
	}
	return &rec, nil
}

// RecentByUsername lists a user's latest operations, newest first.
func (s *Store) RecentByUsername(ctx context.Context, username string, limit int) ([]OperationRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var recs []OperationRecord
	err := s.db.WithContext(ctx).
		Where("username = ?", username).
		Order("created_at desc").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("models: list operations: %w", err)
	}
	return recs, nil
}
