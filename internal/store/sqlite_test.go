package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestUser(username string) *User {
	return &User{
		ID:          uuid.NewString(),
		Username:    username,
		Email:       username + "@example.com",
		FirstName:   "Test",
		LastName:    "User",
		Role:        RoleUser,
		IsActive:    true,
		Preferences: Preferences{Theme: "system", Notifications: true},
	}
}

func newTestChat(owner string, created time.Time) *Chat {
	c := &Chat{
		ID:       uuid.NewString(),
		UserID:   owner,
		Title:    "Medication help",
		Issue:    "Need help organizing daily pills",
		Category: CategoryMedication,
		Priority: PriorityMedium,
		Status:   ChatActive,
	}
	c.CreatedAt = created
	c.Finalize(created)
	return c
}

func TestChatFinalize(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c := &Chat{}
	c.Finalize(now)
	assert.NotNil(t, c.Messages)
	assert.Equal(t, 0, c.Metadata.TotalMessages)
	assert.Equal(t, now, c.Metadata.LastActivity)
	assert.Equal(t, now, c.CreatedAt)

	later := now.Add(time.Minute)
	c.Messages = append(c.Messages, Message{ID: "1", Role: MessageUser, Content: "hi"}, Message{ID: "2", Role: MessageAssistant, Content: "hello"})
	c.Finalize(later)
	assert.Equal(t, 2, c.Metadata.TotalMessages)
	assert.Equal(t, later, c.Metadata.LastActivity)
	assert.Equal(t, later, c.UpdatedAt)
	assert.Equal(t, now, c.CreatedAt, "creation time must not move")
}

func TestPageNormalize(t *testing.T) {
	p := Page{}.Normalize()
	assert.Equal(t, Page{Number: 1, Limit: DefaultPageLimit}, p)
	assert.Equal(t, MaxPageLimit, Page{Number: 2, Limit: 1000}.Normalize().Limit)
	assert.Equal(t, 20, Page{Number: 3, Limit: 10}.Skip())
	assert.Equal(t, 3, Page{Number: 1, Limit: 10}.Pages(21))
	assert.Equal(t, 0, Page{Number: 1, Limit: 10}.Pages(0))
}

func TestSQLiteStore_UserLifecycle(t *testing.T) {
	s := setupSQLite(t)
	ctx := context.Background()

	u := newTestUser("alice")
	require.NoError(t, s.CreateUser(ctx, u))

	got, err := s.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, RoleUser, got.Role)
	assert.True(t, got.IsActive)
	assert.Nil(t, got.LastLogin)

	dup := newTestUser("alice")
	dup.Email = "other@example.com"
	err = s.CreateUser(ctx, dup)
	var dupErr *DuplicateError
	require.True(t, errors.As(err, &dupErr))
	assert.Equal(t, "username", dupErr.Field)

	login := time.Now().UTC().Truncate(time.Millisecond)
	got.LastLogin = &login
	got.IsBanned = true
	got.BanReason = "spam"
	require.NoError(t, s.UpdateUser(ctx, got))

	again, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, again.IsBanned)
	assert.Equal(t, "spam", again.BanReason)
	require.NotNil(t, again.LastLogin)
	assert.True(t, login.Equal(*again.LastLogin))

	_, err = s.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_ListUsersAndStats(t *testing.T) {
	s := setupSQLite(t)
	ctx := context.Background()

	for _, name := range []string{"bob", "carol", "dave"} {
		require.NoError(t, s.CreateUser(ctx, newTestUser(name)))
	}
	admin := newTestUser("root")
	admin.Role = RoleAdmin
	require.NoError(t, s.CreateUser(ctx, admin))
	banned := newTestUser("eve")
	banned.IsBanned = true
	require.NoError(t, s.CreateUser(ctx, banned))

	users, total, err := s.ListUsers(ctx, UserCriteria{Search: "CAR"}, Sort{}, Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, users, 1)
	assert.Equal(t, "carol", users[0].Username)

	yes := true
	_, total, err = s.ListUsers(ctx, UserCriteria{Banned: &yes}, Sort{}, Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)

	users, total, err = s.ListUsers(ctx, UserCriteria{}, Sort{Field: "username"}, Page{Number: 1, Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	require.Len(t, users, 2)
	assert.Equal(t, "bob", users[0].Username)
	assert.Equal(t, "carol", users[1].Username)

	stats, err := s.UserStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, UserStats{TotalUsers: 5, ActiveUsers: 5, BannedUsers: 1, AdminUsers: 1}, stats)

	byID, err := s.GetUsersByIDs(ctx, []string{admin.ID, banned.ID, "missing"})
	require.NoError(t, err)
	assert.Len(t, byID, 2)
	assert.Equal(t, "root", byID[admin.ID].Username)
}

func TestSQLiteStore_ChatOwnerScoping(t *testing.T) {
	s := setupSQLite(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	c := newTestChat("owner-1", now)
	require.NoError(t, s.CreateChat(ctx, c))

	_, err := s.GetChat(ctx, c.ID, "owner-2")
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := s.GetChat(ctx, c.ID, "owner-1")
	require.NoError(t, err)
	assert.Empty(t, got.Messages)
	assert.Equal(t, 0, got.Metadata.TotalMessages)

	intruder := *got
	intruder.UserID = "owner-2"
	intruder.Title = "hijacked"
	assert.ErrorIs(t, s.SaveChat(ctx, &intruder), ErrNotFound)
	assert.ErrorIs(t, s.DeleteChat(ctx, c.ID, "owner-2"), ErrNotFound)

	got.Messages = append(got.Messages, Message{ID: uuid.NewString(), Role: MessageUser, Content: "hello", Timestamp: now})
	got.Review = &Review{Rating: 4, Feedback: "thanks", ReviewedAt: now}
	got.Finalize(now.Add(time.Second))
	require.NoError(t, s.SaveChat(ctx, got))

	admin, err := s.GetChatByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Medication help", admin.Title)
	require.Len(t, admin.Messages, 1)
	assert.Equal(t, 1, admin.Metadata.TotalMessages)
	require.NotNil(t, admin.Review)
	assert.Equal(t, 4, admin.Review.Rating)

	require.NoError(t, s.DeleteChat(ctx, c.ID, "owner-1"))
	_, err = s.GetChatByID(ctx, c.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_ListChatsProjection(t *testing.T) {
	s := setupSQLite(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	c := newTestChat("owner-1", now)
	c.Messages = []Message{{ID: "m1", Role: MessageUser, Content: "hello", Timestamp: now}}
	c.Finalize(now)
	require.NoError(t, s.CreateChat(ctx, c))
	require.NoError(t, s.CreateChat(ctx, newTestChat("owner-2", now)))

	chats, total, err := s.ListChats(ctx, ChatQuery{Criteria: ChatCriteria{OwnerID: "owner-1"}})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, chats, 1)
	assert.Nil(t, chats[0].Messages)
	assert.Equal(t, 1, chats[0].Metadata.TotalMessages)

	chats, _, err = s.ListChats(ctx, ChatQuery{Criteria: ChatCriteria{OwnerID: "owner-1"}, WithMessages: true})
	require.NoError(t, err)
	require.Len(t, chats[0].Messages, 1)

	no := false
	_, total, err = s.ListChats(ctx, ChatQuery{Criteria: ChatCriteria{Reviewed: &no, Search: "pills"}})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
}

func TestSQLiteStore_ChatAnalyticsAndTrend(t *testing.T) {
	s := setupSQLite(t)
	ctx := context.Background()

	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.CreateChat(ctx, newTestChat("u", now.AddDate(0, 0, -10))))
	}
	for i := 0; i < 2; i++ {
		c := newTestChat("u", now.AddDate(0, 0, -1))
		c.Status = ChatResolved
		c.Review = &Review{Rating: 3 + i, ReviewedAt: now}
		require.NoError(t, s.CreateChat(ctx, c))
	}

	a, err := s.ChatAnalytics(ctx, now.AddDate(0, 0, -7))
	require.NoError(t, err)
	assert.EqualValues(t, 5, a.Total)
	assert.EqualValues(t, 2, a.New)
	assert.EqualValues(t, 3, a.Active)
	assert.EqualValues(t, 2, a.Resolved)
	require.NotNil(t, a.AverageRating)
	assert.InDelta(t, 3.5, *a.AverageRating, 0.001)

	trend, err := s.ChatTrend(ctx, now.AddDate(0, 0, -30))
	require.NoError(t, err)
	require.Len(t, trend, 2)
	assert.Equal(t, DailyCount{Date: "2025-06-05", Count: 3}, trend[0])
	assert.Equal(t, DailyCount{Date: "2025-06-14", Count: 2}, trend[1])

	stats, err := s.ChatStats(ctx, ChatCriteria{OwnerID: "u"}, now.AddDate(0, 0, -2))
	require.NoError(t, err)
	assert.EqualValues(t, 5, stats.TotalChats)
	assert.EqualValues(t, 2, stats.ResolvedChats)
	assert.EqualValues(t, 2, stats.RecentResolved)
	require.NotNil(t, stats.AverageRating)
	assert.InDelta(t, 3.5, *stats.AverageRating, 0.001)

	empty, err := s.ChatStats(ctx, ChatCriteria{OwnerID: "nobody"}, now)
	require.NoError(t, err)
	assert.Nil(t, empty.AverageRating)
}

func TestSQLiteStore_AnalyticsWithoutReviews(t *testing.T) {
	s := setupSQLite(t)
	a, err := s.ChatAnalytics(context.Background(), time.Now().UTC().AddDate(0, 0, -7))
	require.NoError(t, err)
	assert.EqualValues(t, 0, a.Total)
	assert.Nil(t, a.AverageRating)
}

func TestSQLiteStore_AlarmSweep(t *testing.T) {
	s := setupSQLite(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	past := &Alarm{ID: uuid.NewString(), UserID: "u", Name: "pills", Time: now.Add(-time.Hour), IsActive: true}
	future := &Alarm{ID: uuid.NewString(), UserID: "u", Name: "walk", Time: now.Add(time.Hour), IsActive: true}
	other := &Alarm{ID: uuid.NewString(), UserID: "v", Name: "water", Time: now.Add(-time.Hour), IsActive: true}
	for _, a := range []*Alarm{future, past, other} {
		require.NoError(t, s.CreateAlarm(ctx, a))
	}

	n, err := s.DeactivateOverdueAlarms(ctx, "u", now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	alarms, err := s.ListAlarms(ctx, "u")
	require.NoError(t, err)
	require.Len(t, alarms, 2)
	assert.Equal(t, "pills", alarms[0].Name)
	assert.False(t, alarms[0].IsActive)
	assert.False(t, alarms[0].IsCompleted)
	assert.True(t, alarms[1].IsActive)

	untouched, err := s.GetAlarm(ctx, other.ID, "v")
	require.NoError(t, err)
	assert.True(t, untouched.IsActive)

	_, err = s.GetAlarm(ctx, other.ID, "u")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_Reports(t *testing.T) {
	s := setupSQLite(t)
	ctx := context.Background()

	r := &Report{
		ID:          uuid.NewString(),
		UserID:      "u",
		ChatID:      "c",
		ReportType:  ReportMisinformation,
		Description: "wrong dosage advice",
		Severity:    SeverityHigh,
		Status:      ReportPending,
		Evidence:    Evidence{MessageIDs: []string{"m1"}},
	}
	require.NoError(t, s.CreateReport(ctx, r))

	got, err := s.GetReport(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1"}, got.Evidence.MessageIDs)
	assert.Nil(t, got.ResolvedBy)

	admin := "admin-1"
	at := time.Now().UTC().Truncate(time.Millisecond)
	got.Status = ReportResolved
	got.ResolvedBy = &admin
	got.ResolvedAt = &at
	require.NoError(t, s.SaveReport(ctx, got))

	reports, total, err := s.ListReports(ctx, ReportCriteria{Status: ReportResolved}, Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.NotNil(t, reports[0].ResolvedBy)
	assert.Equal(t, admin, *reports[0].ResolvedBy)

	_, total, err = s.ListReports(ctx, ReportCriteria{Severity: SeverityLow}, Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 0, total)
}

func TestSQLiteStore_WrapsDriverErrors(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	s := NewSQLiteStoreFromDB(sqlx.NewDb(mockDB, "sqlite3"))
	mock.ExpectQuery("(?s)SELECT (.+) FROM chats WHERE id = \\? AND user_id = \\?").
		WithArgs("c1", "u1").
		WillReturnError(errors.New("disk I/O error"))

	_, err = s.GetChat(context.Background(), "c1", "u1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "failed to get chat")

	mock.ExpectExec("DELETE FROM alarms").
		WithArgs("a1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, s.DeleteAlarm(context.Background(), "a1", "u1"), ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}
