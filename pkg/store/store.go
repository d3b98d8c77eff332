// Package store persists the desk's local records: the return approval queue
// and the log of issued books. The remote library system stays the source of
// truth for circulation state; this store only tracks what this desk did and
// what still awaits an admin decision.
package store

import (
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ReturnStatus is the lifecycle state of a queued return request.
type ReturnStatus string

const (
	ReturnPending  ReturnStatus = "pending"
	ReturnApproved ReturnStatus = "approved"
	ReturnRejected ReturnStatus = "rejected"
	// ReturnFailed means an admin approved the request but replaying it
	// through the browser failed; the request stays visible for retry.
	ReturnFailed ReturnStatus = "failed"
)

// ReturnRequest is a desk-submitted return awaiting an admin decision.
type ReturnRequest struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	Barcode     string       `gorm:"index;not null" json:"barcode"`
	CardBarcode string       `json:"card_barcode"`
	Status      ReturnStatus `gorm:"index;default:pending" json:"status"`
	Message     string       `json:"message"`
	CreatedAt   time.Time    `json:"created_at"`
	DecidedAt   *time.Time   `json:"decided_at,omitempty"`
}

// IssuedBook is one successful issue performed by this desk.
type IssuedBook struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Barcode     string    `gorm:"index;not null" json:"barcode"`
	ReaderID    int64     `json:"reader_id"`
	CardBarcode string    `json:"card_barcode"`
	LoanDays    int       `json:"loan_days"`
	DueDate     string    `json:"due_date"`
	IssuedAt    time.Time `json:"issued_at"`
}

// Store wraps the sqlite database behind the handful of operations the desk
// needs.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if needed) the sqlite database at path and migrates
// the schema.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	if err := db.AutoMigrate(&ReturnRequest{}, &IssuedBook{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateReturnRequest queues a return for admin approval.
func (s *Store) CreateReturnRequest(barcode, cardBarcode string) (*ReturnRequest, error) {
	req := &ReturnRequest{
		Barcode:     barcode,
		CardBarcode: cardBarcode,
		Status:      ReturnPending,
	}
	if err := s.db.Create(req).Error; err != nil {
		return nil, fmt.Errorf("create return request: %w", err)
	}
	return req, nil
}

// PendingReturns lists requests still awaiting a decision, oldest first.
// Failed requests are included so an admin can retry them.
func (s *Store) PendingReturns() ([]ReturnRequest, error) {
	var reqs []ReturnRequest
	err := s.db.
		Where("status IN ?", []ReturnStatus{ReturnPending, ReturnFailed}).
		Order("created_at asc").
		Find(&reqs).Error
	if err != nil {
		return nil, fmt.Errorf("list pending returns: %w", err)
	}
	return reqs, nil
}

// GetReturnRequest loads one request by id.
func (s *Store) GetReturnRequest(id uint) (*ReturnRequest, error) {
	var req ReturnRequest
	if err := s.db.First(&req, id).Error; err != nil {
		return nil, fmt.Errorf("load return request %d: %w", id, err)
	}
	return &req, nil
}

// Decide records the outcome of an admin decision on a return request.
func (s *Store) Decide(id uint, status ReturnStatus, message string) error {
	now := time.Now()
	res := s.db.Model(&ReturnRequest{}).Where("id = ?", id).Updates(map[string]any{
		"status":     status,
		"message":    message,
		"decided_at": &now,
	})
	if res.Error != nil {
		return fmt.Errorf("decide return request %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("return request %d not found", id)
	}
	return nil
}

// RecordIssue logs a successful issue.
func (s *Store) RecordIssue(barcode string, readerID int64, cardBarcode string, loanDays int, dueDate string) error {
	book := &IssuedBook{
		Barcode:     barcode,
		ReaderID:    readerID,
		CardBarcode: cardBarcode,
		LoanDays:    loanDays,
		DueDate:     dueDate,
		IssuedAt:    time.Now(),
	}
	if err := s.db.Create(book).Error; err != nil {
		return fmt.Errorf("record issue: %w", err)
	}
	return nil
}

// RecentIssues returns the latest issues, newest first.
func (s *Store) RecentIssues(limit int) ([]IssuedBook, error) {
	if limit <= 0 {
		limit = 50
	}
	var books []IssuedBook
	if err := s.db.Order("issued_at desc, id desc").Limit(limit).Find(&books).Error; err != nil {
		return nil, fmt.Errorf("list recent issues: %w", err)
	}
	return books, nil
}
