package core

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sohaibansari420/careease-backened/internal/store"
)

const day = 24 * time.Hour

var timeframes = map[string]time.Duration{
	"7d":  7 * day,
	"30d": 30 * day,
	"90d": 90 * day,
}

// ResolveTimeframe maps a client timeframe onto a window; unknown values use 30d.
func ResolveTimeframe(tf string) (string, time.Duration) {
	if d, ok := timeframes[tf]; ok {
		return tf, d
	}
	return "30d", timeframes["30d"]
}

// AdminService computes read-only rollups across all owners plus the ban workflow.
type AdminService struct {
	users  store.UserStore
	chats  store.ChatStore
	stats  *AssistantStats
	clock  Clock
	logger *zap.Logger
}

func NewAdminService(users store.UserStore, chats store.ChatStore, stats *AssistantStats, clock Clock, logger *zap.Logger) *AdminService {
	if stats == nil {
		stats = &AssistantStats{}
	}
	return &AdminService{users: users, chats: chats, stats: stats, clock: clock, logger: logger}
}

type Trends struct {
	ChatCreation []store.DailyCount `json:"chatCreation"`
}

type Analytics struct {
	Users     store.UserAnalytics `json:"users"`
	Chats     store.ChatAnalytics `json:"chats"`
	Trends    Trends              `json:"trends"`
	Timeframe string              `json:"timeframe"`
}

// Analytics is computed fresh on every call.
func (s *AdminService) Analytics(ctx context.Context, timeframe string) (*Analytics, error) {
	tf, window := ResolveTimeframe(timeframe)
	since := s.clock.now().Add(-window)

	users, err := s.users.UserAnalytics(ctx, since)
	if err != nil {
		return nil, InternalError("Server error fetching analytics", err)
	}
	chats, err := s.chats.ChatAnalytics(ctx, since)
	if err != nil {
		return nil, InternalError("Server error fetching analytics", err)
	}
	trend, err := s.chats.ChatTrend(ctx, since)
	if err != nil {
		return nil, InternalError("Server error fetching analytics", err)
	}
	return &Analytics{Users: users, Chats: chats, Trends: Trends{ChatCreation: trend}, Timeframe: tf}, nil
}

func (s *AdminService) AssistantStats() AssistantSnapshot {
	return s.stats.Snapshot()
}

type UserPage struct {
	Users      []store.User    `json:"users"`
	Pagination Pagination      `json:"pagination"`
	Stats      store.UserStats `json:"stats"`
}

func (s *AdminService) ListUsers(ctx context.Context, c store.UserCriteria, sort store.Sort, page store.Page) (*UserPage, error) {
	if c.Role != "" && !c.Role.Valid() {
		return nil, fieldError("role", "Invalid role")
	}
	page = page.Normalize()
	users, total, err := s.users.ListUsers(ctx, c, sort, page)
	if err != nil {
		return nil, InternalError("Server error fetching users", err)
	}
	stats, err := s.users.UserStats(ctx)
	if err != nil {
		return nil, InternalError("Server error fetching users", err)
	}
	return &UserPage{Users: users, Pagination: paginate(page, total), Stats: stats}, nil
}

type UserDetails struct {
	User        *store.User         `json:"user"`
	ChatStats   store.ChatStats     `json:"chatStats"`
	RecentChats []store.ChatSummary `json:"recentChats"`
}

func (s *AdminService) UserDetails(ctx context.Context, userID string) (*UserDetails, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, storeError(err, "User not found", "Server error fetching user details")
	}
	stats, err := s.chats.ChatStats(ctx, store.ChatCriteria{OwnerID: userID}, s.clock.now().Add(-day))
	if err != nil {
		return nil, InternalError("Server error fetching user details", err)
	}
	recent, _, err := s.chats.ListChats(ctx, store.ChatQuery{
		Criteria: store.ChatCriteria{OwnerID: userID},
		Sort:     store.Sort{Field: "lastActivity", Desc: true},
		Page:     store.Page{Number: 1, Limit: 5},
	})
	if err != nil {
		return nil, InternalError("Server error fetching user details", err)
	}
	return &UserDetails{User: user, ChatStats: stats, RecentChats: summaries(recent)}, nil
}

// SetBan bans or unbans a user. Admin accounts cannot be banned.
func (s *AdminService) SetBan(ctx context.Context, userID string, banned bool, reason string) (*store.User, error) {
	reason = strings.TrimSpace(reason)
	if banned {
		if n := runeLen(reason); n < 1 || n > 500 {
			return nil, fieldError("banReason", "Ban reason must be between 1 and 500 characters")
		}
	}

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, storeError(err, "User not found", "Server error updating user ban status")
	}
	if banned && user.Role == store.RoleAdmin {
		return nil, ForbiddenError("Cannot ban admin users")
	}

	user.IsBanned = banned
	user.BanReason = ""
	if banned {
		user.BanReason = reason
	}
	user.UpdatedAt = s.clock.now()
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, storeError(err, "User not found", "Server error updating user ban status")
	}
	s.logger.Info("user ban status changed", zap.String("user_id", userID), zap.Bool("banned", banned))
	return user, nil
}

func validateChatCriteria(c store.ChatCriteria) error {
	var fields []FieldError
	if c.Status != "" && !c.Status.Valid() {
		fields = append(fields, FieldError{Field: "status", Message: "Invalid status"})
	}
	if c.Category != "" && !c.Category.Valid() {
		fields = append(fields, FieldError{Field: "category", Message: "Invalid category"})
	}
	if c.Priority != "" && !c.Priority.Valid() {
		fields = append(fields, FieldError{Field: "priority", Message: "Invalid priority"})
	}
	if len(fields) > 0 {
		return ValidationError("Validation failed", fields...)
	}
	return nil
}

type AdminChatPage struct {
	Chats      []store.ChatSummary `json:"chats"`
	Pagination Pagination          `json:"pagination"`
	Stats      store.ChatStats     `json:"stats"`
}

func (s *AdminService) ListChats(ctx context.Context, c store.ChatCriteria, page store.Page) (*AdminChatPage, error) {
	if err := validateChatCriteria(c); err != nil {
		return nil, err
	}
	page = page.Normalize()
	chats, total, err := s.chats.ListChats(ctx, store.ChatQuery{
		Criteria: c,
		Sort:     store.Sort{Field: "lastActivity", Desc: true},
		Page:     page,
	})
	if err != nil {
		return nil, InternalError("Server error fetching chats", err)
	}

	ownerIDs := make([]string, 0, len(chats))
	for _, chat := range chats {
		ownerIDs = append(ownerIDs, chat.UserID)
	}
	owners, err := s.users.GetUsersByIDs(ctx, ownerIDs)
	if err != nil {
		return nil, InternalError("Server error fetching chats", err)
	}
	items := summaries(chats)
	for i := range items {
		items[i].User = owners[items[i].UserID].Summary()
	}

	stats, err := s.chats.ChatStats(ctx, store.ChatCriteria{}, s.clock.now().Add(-day))
	if err != nil {
		return nil, InternalError("Server error fetching chats", err)
	}
	return &AdminChatPage{Chats: items, Pagination: paginate(page, total), Stats: stats}, nil
}

type AdminChat struct {
	*store.Chat
	User *store.UserSummary `json:"user,omitempty"`
}

func (s *AdminService) ChatDetails(ctx context.Context, chatID string) (*AdminChat, error) {
	chat, err := s.chats.GetChatByID(ctx, chatID)
	if err != nil {
		return nil, storeError(err, "Chat not found", "Server error fetching chat details")
	}
	owner, err := s.users.GetUser(ctx, chat.UserID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, InternalError("Server error fetching chat details", err)
	}
	return &AdminChat{Chat: chat, User: owner.Summary()}, nil
}

type ChatHistory struct {
	Chats      []store.Chat    `json:"chats"`
	Pagination Pagination      `json:"pagination"`
	Stats      store.ChatStats `json:"stats"`
}

func (s *AdminService) UserChatHistory(ctx context.Context, userID string, c store.ChatCriteria, sort store.Sort, page store.Page) (*ChatHistory, error) {
	c.OwnerID = userID
	if err := validateChatCriteria(c); err != nil {
		return nil, err
	}
	if sort.Field == "" {
		sort = store.Sort{Field: "createdAt", Desc: true}
	}
	page = page.Normalize()
	chats, total, err := s.chats.ListChats(ctx, store.ChatQuery{Criteria: c, Sort: sort, Page: page, WithMessages: true})
	if err != nil {
		return nil, InternalError("Server error fetching user chat history", err)
	}
	stats, err := s.chats.ChatStats(ctx, store.ChatCriteria{OwnerID: userID}, s.clock.now().Add(-day))
	if err != nil {
		return nil, InternalError("Server error fetching user chat history", err)
	}
	return &ChatHistory{Chats: chats, Pagination: paginate(page, total), Stats: stats}, nil
}
