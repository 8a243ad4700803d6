package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupRepo(t *testing.T) *MessageRepository {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Message{}))

	return NewMessageRepository(db)
}

func ptrInt64(v int64) *int64 { return &v }

func ptrString(v string) *string { return &v }

func storedMessage(groupID int64, senderID *int64, ts time.Time, hasMedia bool) *Message {
	m := &Message{
		GroupID:         groupID,
		GroupName:       fmt.Sprintf("group-%d", groupID),
		SenderID:        senderID,
		SourceMessageID: ts.UnixNano(),
		Content:         "hello",
		Timestamp:       ts,
		HasMedia:        hasMedia,
	}
	if senderID != nil {
		m.SenderName = ptrString(fmt.Sprintf("user-%d", *senderID))
	}
	return m
}

func TestAppend_AssignsIncreasingIDs(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	var lastID int64
	for i := 0; i < 5; i++ {
		m := storedMessage(10, ptrInt64(1), time.Now(), false)
		require.NoError(t, repo.Append(ctx, m))
		assert.Greater(t, m.ID, lastID, "ids must be strictly increasing")
		lastID = m.ID
	}
}

func TestQuery_OrderAndLimit(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	for i := 0; i < 10; i++ {
		m := storedMessage(10, ptrInt64(1), base.Add(time.Duration(i)*time.Minute), false)
		require.NoError(t, repo.Append(ctx, m))
	}
	// two records with the same timestamp; insertion order breaks the tie
	same := base.Add(2 * time.Hour)
	first := storedMessage(10, ptrInt64(1), same, false)
	second := storedMessage(10, ptrInt64(1), same, false)
	require.NoError(t, repo.Append(ctx, first))
	require.NoError(t, repo.Append(ctx, second))

	messages, err := repo.Query(ctx, QueryOptions{Limit: 5})
	require.NoError(t, err)
	require.Len(t, messages, 5)

	// newest first, ties by id desc
	assert.Equal(t, second.ID, messages[0].ID)
	assert.Equal(t, first.ID, messages[1].ID)
	for i := 1; i < len(messages); i++ {
		prev, cur := messages[i-1], messages[i]
		if prev.Timestamp.Equal(cur.Timestamp) {
			assert.Greater(t, prev.ID, cur.ID)
		} else {
			assert.True(t, prev.Timestamp.After(cur.Timestamp))
		}
	}
}

func TestQuery_Filters(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	old := time.Now().Add(-3 * time.Hour)
	recent := time.Now().Add(-10 * time.Minute)

	require.NoError(t, repo.Append(ctx, storedMessage(10, ptrInt64(1), old, false)))
	require.NoError(t, repo.Append(ctx, storedMessage(10, ptrInt64(1), recent, false)))
	require.NoError(t, repo.Append(ctx, storedMessage(20, ptrInt64(2), recent, false)))

	since := time.Now().Add(-time.Hour)
	messages, err := repo.Query(ctx, QueryOptions{GroupID: ptrInt64(10), Since: &since})
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, int64(10), messages[0].GroupID)

	// no filters returns everything up to the default limit
	all, err := repo.Query(ctx, QueryOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestStats_EmptyStore(t *testing.T) {
	repo := setupRepo(t)

	stats, err := repo.Stats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(0), stats.TotalMessages)
	assert.Empty(t, stats.Groups)
	assert.Empty(t, stats.TopUsers)
	assert.Equal(t, int64(0), stats.RecentActivity)
}

func TestStats_Aggregates(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	now := time.Now()
	// 3 messages in group 10, 2 in group 20
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Append(ctx, storedMessage(10, ptrInt64(1), now, false)))
	}
	for i := 0; i < 2; i++ {
		require.NoError(t, repo.Append(ctx, storedMessage(20, ptrInt64(2), now, false)))
	}
	// anonymous sender, must not show up in top users
	require.NoError(t, repo.Append(ctx, storedMessage(10, nil, now, false)))
	// old message outside the 24h window
	require.NoError(t, repo.Append(ctx, storedMessage(10, ptrInt64(1), now.Add(-48*time.Hour), false)))

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(7), stats.TotalMessages)
	assert.Equal(t, int64(6), stats.RecentActivity)

	require.Len(t, stats.Groups, 2)
	assert.Equal(t, int64(10), stats.Groups[0].GroupID)
	assert.Equal(t, int64(5), stats.Groups[0].MessageCount)
	assert.Equal(t, int64(20), stats.Groups[1].GroupID)
	assert.Equal(t, int64(2), stats.Groups[1].MessageCount)

	require.Len(t, stats.TopUsers, 2)
	assert.Equal(t, int64(1), stats.TopUsers[0].SenderID)
	assert.Equal(t, int64(4), stats.TopUsers[0].MessageCount)
	for _, u := range stats.TopUsers {
		assert.NotZero(t, u.SenderID, "null senders must be excluded")
	}
}

func TestStats_TopUsersCapped(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	now := time.Now()
	for sender := int64(1); sender <= 15; sender++ {
		require.NoError(t, repo.Append(ctx, storedMessage(10, ptrInt64(sender), now, false)))
	}

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Len(t, stats.TopUsers, 10)
}

func TestMaintenance(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, storedMessage(10, ptrInt64(1), time.Now(), false)))
	assert.NoError(t, repo.Maintenance(ctx))
}
