package monitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/okgrp/groupwatch/internal/repository"
)

// ErrInvalidWindow is returned for a non-positive summary window.
var ErrInvalidWindow = errors.New("window hours must be positive")

// windowFetchLimit bounds how many records a single summary reads.
const windowFetchLimit = 1000

// topUsersInReport caps the top-senders list folded into a report.
const topUsersInReport = 5

// MessageStore is the read side of the record store.
type MessageStore interface {
	Query(ctx context.Context, opts repository.QueryOptions) ([]repository.Message, error)
	Stats(ctx context.Context) (*repository.Stats, error)
}

// GroupSummary is the per-group slice of a summary report.
type GroupSummary struct {
	GroupID      int64  `json:"group_id"`
	GroupName    string `json:"group_name"`
	MessageCount int    `json:"message_count"`
	UniqueUsers  int    `json:"unique_users"`
	MediaCount   int    `json:"media_count"`
}

// OverallStats folds whole-store statistics into a report.
type OverallStats struct {
	TotalMessagesAllTime int64                 `json:"total_messages_all_time"`
	RecentActivity24h    int64                 `json:"recent_activity_24h"`
	TopUsers             []repository.UserStat `json:"top_users"`
}

// SummaryReport is the delivery payload produced once per scheduler tick.
type SummaryReport struct {
	Timestamp     time.Time      `json:"timestamp"`
	PeriodHours   int            `json:"period_hours"`
	TotalMessages int            `json:"total_messages"`
	Groups        []GroupSummary `json:"groups"`
	OverallStats  OverallStats   `json:"overall_stats"`
}

// Summarizer computes windowed activity summaries. It holds no state of its
// own, every report reflects the store contents at call time.
type Summarizer struct {
	store MessageStore
	now   func() time.Time
}

// NewSummarizer creates a summarizer over the given store.
func NewSummarizer(store MessageStore) *Summarizer {
	return &Summarizer{
		store: store,
		now:   time.Now,
	}
}

// WindowSummary builds a report for the trailing windowHours. A window with
// no records yields an empty groups list, not an error.
func (s *Summarizer) WindowSummary(ctx context.Context, windowHours int) (*SummaryReport, error) {
	if windowHours <= 0 {
		return nil, ErrInvalidWindow
	}

	now := s.now()
	since := now.Add(-time.Duration(windowHours) * time.Hour)

	messages, err := s.store.Query(ctx, repository.QueryOptions{
		Since: &since,
		Limit: windowFetchLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch window: %w", err)
	}

	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch stats: %w", err)
	}

	// group in first-seen order so equal counts keep a stable position
	byGroup := make(map[int64]*GroupSummary)
	users := make(map[int64]map[int64]struct{})
	var order []int64

	for _, m := range messages {
		g, ok := byGroup[m.GroupID]
		if !ok {
			g = &GroupSummary{GroupID: m.GroupID, GroupName: m.GroupName}
			byGroup[m.GroupID] = g
			users[m.GroupID] = make(map[int64]struct{})
			order = append(order, m.GroupID)
		}

		g.MessageCount++
		if m.SenderID != nil {
			users[m.GroupID][*m.SenderID] = struct{}{}
		}
		if m.HasMedia {
			g.MediaCount++
		}
	}

	groups := make([]GroupSummary, 0, len(order))
	for _, id := range order {
		g := byGroup[id]
		g.UniqueUsers = len(users[id])
		groups = append(groups, *g)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].MessageCount > groups[j].MessageCount
	})

	topUsers := stats.TopUsers
	if len(topUsers) > topUsersInReport {
		topUsers = topUsers[:topUsersInReport]
	}

	return &SummaryReport{
		Timestamp:     now,
		PeriodHours:   windowHours,
		TotalMessages: len(messages),
		Groups:        groups,
		OverallStats: OverallStats{
			TotalMessagesAllTime: stats.TotalMessages,
			RecentActivity24h:    stats.RecentActivity,
			TopUsers:             topUsers,
		},
	}, nil
}
