// Package repository provides database access for stored message records.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ErrStorageUnavailable signals that the persistence medium could not be
// reached or rejected a write. It is never retried here, callers decide.
var ErrStorageUnavailable = errors.New("storage unavailable")

// Message represents one persisted message record. Records are append-only
// and never mutated after creation.
type Message struct {
	ID              int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	GroupID         int64     `gorm:"not null;index:idx_group_timestamp,priority:1" json:"group_id"`
	GroupName       string    `gorm:"not null" json:"group_name"`
	SenderID        *int64    `json:"sender_id"`
	SenderName      *string   `json:"sender_name"`
	SourceMessageID int64     `gorm:"column:message_id;not null" json:"message_id"`
	Content         string    `json:"content"`
	Timestamp       time.Time `gorm:"not null;index:idx_group_timestamp,priority:2" json:"timestamp"`
	HasMedia        bool      `gorm:"not null" json:"has_media"`
}

// TableName sets the table name for GORM.
func (Message) TableName() string {
	return "messages"
}

// GroupStat is the per-group message count, derived on demand.
type GroupStat struct {
	GroupID      int64  `json:"group_id"`
	GroupName    string `json:"group_name"`
	MessageCount int64  `json:"message_count"`
}

// UserStat is the per-sender message count, derived on demand.
type UserStat struct {
	SenderID     int64  `json:"sender_id"`
	SenderName   string `json:"sender_name"`
	MessageCount int64  `json:"message_count"`
}

// Stats aggregates the current contents of the store.
type Stats struct {
	TotalMessages  int64       `json:"total_messages"`
	Groups         []GroupStat `json:"groups"`
	TopUsers       []UserStat  `json:"top_users"`
	RecentActivity int64       `json:"recent_activity"`
}

// QueryOptions filter a message query. Nil filters mean "all groups" and
// "no lower bound". A non-positive Limit falls back to the default of 100.
type QueryOptions struct {
	GroupID *int64
	Since   *time.Time
	Limit   int
}

const defaultQueryLimit = 100

// topUsersLimit caps the top-senders list in Stats.
const topUsersLimit = 10

// MessageRepository handles the messages table.
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new message repository.
func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Append persists a message record and assigns its ID. IDs are monotonically
// increasing in insertion order.
func (r *MessageRepository) Append(ctx context.Context, m *Message) error {
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("append message: %w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// Query returns up to Limit messages matching the options, newest first
// (timestamp desc, id desc for same-timestamp ties).
func (r *MessageRepository) Query(ctx context.Context, opts QueryOptions) ([]Message, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}

	q := r.db.WithContext(ctx).Model(&Message{})
	if opts.GroupID != nil {
		q = q.Where("group_id = ?", *opts.GroupID)
	}
	if opts.Since != nil {
		q = q.Where("timestamp >= ?", *opts.Since)
	}

	var messages []Message
	err := q.Order("timestamp DESC, id DESC").Limit(limit).Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("query messages: %w: %v", ErrStorageUnavailable, err)
	}
	return messages, nil
}

// Stats computes aggregate statistics over the whole store: total count,
// per-group counts, the ten most active senders and the trailing 24h count.
func (r *MessageRepository) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		Groups:   []GroupStat{},
		TopUsers: []UserStat{},
	}

	db := r.db.WithContext(ctx)

	if err := db.Model(&Message{}).Count(&stats.TotalMessages).Error; err != nil {
		return nil, fmt.Errorf("count messages: %w: %v", ErrStorageUnavailable, err)
	}

	err := db.Model(&Message{}).
		Select("group_id, MAX(group_name) AS group_name, COUNT(*) AS message_count").
		Group("group_id").
		Order("message_count DESC").
		Scan(&stats.Groups).Error
	if err != nil {
		return nil, fmt.Errorf("group stats: %w: %v", ErrStorageUnavailable, err)
	}

	err = db.Model(&Message{}).
		Select("sender_id, MAX(sender_name) AS sender_name, COUNT(*) AS message_count").
		Where("sender_id IS NOT NULL").
		Group("sender_id").
		Order("message_count DESC").
		Limit(topUsersLimit).
		Scan(&stats.TopUsers).Error
	if err != nil {
		return nil, fmt.Errorf("user stats: %w: %v", ErrStorageUnavailable, err)
	}

	dayAgo := time.Now().Add(-24 * time.Hour)
	err = db.Model(&Message{}).
		Where("timestamp >= ?", dayAgo).
		Count(&stats.RecentActivity).Error
	if err != nil {
		return nil, fmt.Errorf("recent activity: %w: %v", ErrStorageUnavailable, err)
	}

	return stats, nil
}

// Maintenance reclaims space and refreshes planner statistics. Meant to run
// from a periodic job, not the request path.
func (r *MessageRepository) Maintenance(ctx context.Context) error {
	db := r.db.WithContext(ctx)
	if err := db.Exec("VACUUM").Error; err != nil {
		return fmt.Errorf("vacuum: %w: %v", ErrStorageUnavailable, err)
	}
	if err := db.Exec("ANALYZE").Error; err != nil {
		return fmt.Errorf("analyze: %w: %v", ErrStorageUnavailable, err)
	}
	return nil
}
