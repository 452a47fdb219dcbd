package store

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("record not found")

// DuplicateError reports a unique-key conflict on Field.
type DuplicateError struct {
	Field string
}

func (e *DuplicateError) Error() string { return e.Field + " already exists" }

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

type Page struct {
	Number int
	Limit  int
}

func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

func (p Page) Skip() int { return (p.Number - 1) * p.Limit }

// Pages returns the number of pages needed for total records.
func (p Page) Pages(total int64) int {
	if p.Limit <= 0 {
		return 0
	}
	return int((total + int64(p.Limit) - 1) / int64(p.Limit))
}

// Sort names a whitelisted field. Unknown fields fall back to the entity default.
type Sort struct {
	Field string
	Desc  bool
}

type UserCriteria struct {
	Search string
	Role   Role
	Active *bool
	Banned *bool
}

type ChatCriteria struct {
	OwnerID  string
	Status   ChatStatus
	Category Category
	Priority Priority
	Search   string
	Reviewed *bool
}

type ChatQuery struct {
	Criteria     ChatCriteria
	Sort         Sort
	Page         Page
	WithMessages bool
}

type ReportCriteria struct {
	Status   ReportStatus
	Type     ReportType
	Severity Severity
}

type UserStats struct {
	TotalUsers  int64 `json:"totalUsers"`
	ActiveUsers int64 `json:"activeUsers"`
	BannedUsers int64 `json:"bannedUsers"`
	AdminUsers  int64 `json:"adminUsers"`
}

type ChatStats struct {
	TotalChats     int64    `json:"totalChats"`
	ActiveChats    int64    `json:"activeChats"`
	ResolvedChats  int64    `json:"resolvedChats"`
	TotalMessages  int64    `json:"totalMessages"`
	AverageRating  *float64 `json:"averageRating"`
	RecentResolved int64    `json:"recentResolved"`
}

type UserAnalytics struct {
	Total  int64 `json:"total"`
	New    int64 `json:"new"`
	Active int64 `json:"active"`
	Banned int64 `json:"banned"`
}

type ChatAnalytics struct {
	Total         int64    `json:"total"`
	New           int64    `json:"new"`
	Active        int64    `json:"active"`
	Resolved      int64    `json:"resolved"`
	AverageRating *float64 `json:"averageRating"`
}

type DailyCount struct {
	Date  string `json:"_id" bson:"_id" db:"date"`
	Count int64  `json:"count" bson:"count" db:"count"`
}

type UserStore interface {
	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	UpdateUser(ctx context.Context, u *User) error
	ListUsers(ctx context.Context, c UserCriteria, s Sort, p Page) ([]User, int64, error)
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]*User, error)
	UserStats(ctx context.Context) (UserStats, error)
	UserAnalytics(ctx context.Context, since time.Time) (UserAnalytics, error)
}

type ChatStore interface {
	CreateChat(ctx context.Context, c *Chat) error
	GetChat(ctx context.Context, id, ownerID string) (*Chat, error)
	GetChatByID(ctx context.Context, id string) (*Chat, error)
	SaveChat(ctx context.Context, c *Chat) error
	DeleteChat(ctx context.Context, id, ownerID string) error
	ListChats(ctx context.Context, q ChatQuery) ([]Chat, int64, error)
	GetChatsByIDs(ctx context.Context, ids []string) (map[string]*Chat, error)
	ChatStats(ctx context.Context, c ChatCriteria, recentSince time.Time) (ChatStats, error)
	ChatAnalytics(ctx context.Context, since time.Time) (ChatAnalytics, error)
	ChatTrend(ctx context.Context, since time.Time) ([]DailyCount, error)
}

type AlarmStore interface {
	CreateAlarm(ctx context.Context, a *Alarm) error
	GetAlarm(ctx context.Context, id, ownerID string) (*Alarm, error)
	SaveAlarm(ctx context.Context, a *Alarm) error
	DeleteAlarm(ctx context.Context, id, ownerID string) error
	DeactivateOverdueAlarms(ctx context.Context, ownerID string, now time.Time) (int64, error)
	ListAlarms(ctx context.Context, ownerID string) ([]Alarm, error)
}

type ReportStore interface {
	CreateReport(ctx context.Context, r *Report) error
	GetReport(ctx context.Context, id string) (*Report, error)
	SaveReport(ctx context.Context, r *Report) error
	ListReports(ctx context.Context, c ReportCriteria, p Page) ([]Report, int64, error)
}

// Store is implemented by MongoStore and SQLiteStore.
type Store interface {
	UserStore
	ChatStore
	AlarmStore
	ReportStore
	Ping(ctx context.Context) error
	Close() error
}

var (
	userSortFields = map[string]string{
		"createdAt": "created_at",
		"updatedAt": "updated_at",
		"username":  "username",
		"email":     "email",
		"firstName": "first_name",
		"lastName":  "last_name",
		"lastLogin": "last_login",
		"role":      "role",
	}
	chatSortFields = map[string]string{
		"createdAt":    "created_at",
		"updatedAt":    "updated_at",
		"lastActivity": "last_activity",
		"title":        "title",
		"priority":     "priority",
		"status":       "status",
		"category":     "category",
	}
)

// sortColumn resolves a client sort field against a whitelist.
func sortColumn(fields map[string]string, s Sort, fallback string) (string, bool) {
	if col, ok := fields[s.Field]; ok {
		return col, s.Desc
	}
	return fallback, true
}
