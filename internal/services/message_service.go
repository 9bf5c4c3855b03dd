package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/blog-admin/internal/models"
)

// MessageServiceProvider defines the interface for contact message services.
type MessageServiceProvider interface {
	CreateMessage(ctx context.Context, name, email, message string) (models.Message, error)
	GetAllMessages(ctx context.Context) ([]models.Message, error)
	DeleteMessagesBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// MessageService stores inbound contact form submissions.
type MessageService struct {
	db  *sql.DB
	now func() time.Time
}

// NewMessageService creates a new MessageService.
func NewMessageService(db *sql.DB) *MessageService {
	return &MessageService{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// CreateMessage persists a contact message with a server-assigned timestamp.
func (s *MessageService) CreateMessage(ctx context.Context, name, email, message string) (models.Message, error) {
	msg := models.Message{
		ID:        uuid.New().String(),
		Name:      name,
		Email:     email,
		Message:   message,
		CreatedAt: s.now(),
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO messages(id, name, email, message, created_at) VALUES(?, ?, ?, ?, ?)",
		msg.ID, msg.Name, msg.Email, msg.Message, msg.CreatedAt)
	if err != nil {
		return models.Message{}, fmt.Errorf("failed to insert message: %w", err)
	}
	return msg, nil
}

// GetAllMessages retrieves all messages, most recent first.
func (s *MessageService) GetAllMessages(ctx context.Context) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, email, message, created_at FROM messages ORDER BY created_at DESC, rowid DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Message, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// DeleteMessagesBefore removes messages created before cutoff and returns how many were deleted.
func (s *MessageService) DeleteMessagesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM messages WHERE created_at < ?", cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
