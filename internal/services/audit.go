package services

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/memora/backend/internal/models"
	"github.com/memora/backend/pkg/logger"
	"gorm.io/gorm"
)

const ActionStorageDivergence = "storage.divergence"

type AuditEntry struct {
	UserID       *uuid.UUID
	Action       string
	ResourceType string
	ResourceID   *uuid.UUID
	Details      map[string]interface{}
	IPAddress    string
	RequestID    string
}

// AuditService writes audit rows from a single background goroutine so
// request handlers never wait on the insert.
type AuditService struct {
	DB     *gorm.DB
	queue  chan models.AuditLog
	done   chan struct{}
	mu     sync.RWMutex
	closed bool
}

func NewAuditService(db *gorm.DB) *AuditService {
	s := &AuditService{
		DB:    db,
		queue: make(chan models.AuditLog, 1000),
		done:  make(chan struct{}),
	}
	go s.processQueue()
	return s
}

func (s *AuditService) LogAsync(entry AuditEntry) {
	if s == nil {
		return
	}

	row := models.AuditLog{
		UserID:       entry.UserID,
		Action:       entry.Action,
		ResourceType: entry.ResourceType,
		ResourceID:   entry.ResourceID,
		Details:      entry.Details,
		IPAddress:    entry.IPAddress,
		RequestID:    entry.RequestID,
		CreatedAt:    time.Now().UTC(),
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		logger.Warn("audit_log_after_close", map[string]interface{}{
			"action":  entry.Action,
			"dropped": true,
		})
		return
	}

	select {
	case s.queue <- row:
	default:
		logger.Warn("audit_queue_full", map[string]interface{}{
			"action":  entry.Action,
			"dropped": true,
		})
	}
}

// RecordDivergence notes object keys whose store state may no longer match
// the memory's key list. Operators reconcile these rows by hand.
func (s *AuditService) RecordDivergence(userID uuid.UUID, memoryID *uuid.UUID, reason string, keys []string, cause error) {
	details := map[string]interface{}{
		"reason": reason,
		"keys":   keys,
	}
	if cause != nil {
		details["error"] = cause.Error()
	}

	logger.ErrorWithUser(userID.String(), "storage_divergence", cause, details)

	uid := userID
	s.LogAsync(AuditEntry{
		UserID:       &uid,
		Action:       ActionStorageDivergence,
		ResourceType: "memory",
		ResourceID:   memoryID,
		Details:      details,
	})
}

// Close drains queued rows and stops the writer.
func (s *AuditService) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	<-s.done
}

func (s *AuditService) processQueue() {
	defer close(s.done)
	for row := range s.queue {
		if err := s.DB.Create(&row).Error; err != nil {
			logger.Error("audit_log_insert_failed", err, map[string]interface{}{
				"action": row.Action,
			})
		}
	}
}
