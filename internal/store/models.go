package store

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool { return r == RoleUser || r == RoleAdmin }

type Category string

const (
	CategoryHealth     Category = "health"
	CategoryMedication Category = "medication"
	CategoryMobility   Category = "mobility"
	CategoryEmotional  Category = "emotional"
	CategoryDailyCare  Category = "daily_care"
	CategoryEmergency  Category = "emergency"
	CategoryOther      Category = "other"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryHealth, CategoryMedication, CategoryMobility, CategoryEmotional,
		CategoryDailyCare, CategoryEmergency, CategoryOther:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

type ChatStatus string

const (
	ChatActive   ChatStatus = "active"
	ChatResolved ChatStatus = "resolved"
	ChatArchived ChatStatus = "archived"
)

func (s ChatStatus) Valid() bool {
	return s == ChatActive || s == ChatResolved || s == ChatArchived
}

type MessageRole string

const (
	MessageUser      MessageRole = "user"
	MessageAssistant MessageRole = "assistant"
	MessageSystem    MessageRole = "system"
)

type ReportType string

const (
	ReportInappropriate  ReportType = "inappropriate_content"
	ReportSpam           ReportType = "spam"
	ReportHarassment     ReportType = "harassment"
	ReportMisinformation ReportType = "misinformation"
	ReportTechnical      ReportType = "technical_issue"
	ReportOther          ReportType = "other"
)

func (t ReportType) Valid() bool {
	switch t {
	case ReportInappropriate, ReportSpam, ReportHarassment, ReportMisinformation, ReportTechnical, ReportOther:
		return true
	}
	return false
}

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

type ReportStatus string

const (
	ReportPending       ReportStatus = "pending"
	ReportInvestigating ReportStatus = "investigating"
	ReportResolved      ReportStatus = "resolved"
	ReportDismissed     ReportStatus = "dismissed"
)

func (s ReportStatus) Valid() bool {
	switch s {
	case ReportPending, ReportInvestigating, ReportResolved, ReportDismissed:
		return true
	}
	return false
}

type Preferences struct {
	Theme         string `json:"theme" bson:"theme"`
	Notifications bool   `json:"notifications" bson:"notifications"`
}

type User struct {
	ID           string      `json:"id" bson:"_id"`
	Username     string      `json:"username" bson:"username"`
	Email        string      `json:"email" bson:"email"`
	PasswordHash string      `json:"-" bson:"password_hash"` // never serialized to clients
	FirstName    string      `json:"firstName" bson:"first_name"`
	LastName     string      `json:"lastName" bson:"last_name"`
	Role         Role        `json:"role" bson:"role"`
	IsActive     bool        `json:"isActive" bson:"is_active"`
	IsBanned     bool        `json:"isBanned" bson:"is_banned"`
	BanReason    string      `json:"banReason,omitempty" bson:"ban_reason,omitempty"`
	LastLogin    *time.Time  `json:"lastLogin,omitempty" bson:"last_login,omitempty"`
	Preferences  Preferences `json:"preferences" bson:"preferences"`
	CreatedAt    time.Time   `json:"createdAt" bson:"created_at"`
	UpdatedAt    time.Time   `json:"updatedAt" bson:"updated_at"`
}

// UserSummary is the populated form of a user reference.
type UserSummary struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func (u *User) Summary() *UserSummary {
	if u == nil {
		return nil
	}
	return &UserSummary{ID: u.ID, Username: u.Username, Email: u.Email, FirstName: u.FirstName, LastName: u.LastName}
}

type Message struct {
	ID        string      `json:"id" bson:"id"`
	Role      MessageRole `json:"role" bson:"role"`
	Content   string      `json:"content" bson:"content"`
	Timestamp time.Time   `json:"timestamp" bson:"timestamp"`
}

type Review struct {
	Rating     int       `json:"rating" bson:"rating"`
	Feedback   string    `json:"feedback,omitempty" bson:"feedback,omitempty"`
	ReviewedAt time.Time `json:"reviewedAt" bson:"reviewed_at"`
}

type ChatMetadata struct {
	TotalMessages int       `json:"totalMessages" bson:"total_messages"`
	LastActivity  time.Time `json:"lastActivity" bson:"last_activity"`
}

type Chat struct {
	ID        string       `json:"id" bson:"_id"`
	UserID    string       `json:"userId" bson:"user_id"`
	Title     string       `json:"title" bson:"title"`
	Issue     string       `json:"issue" bson:"issue"`
	Category  Category     `json:"category" bson:"category"`
	Priority  Priority     `json:"priority" bson:"priority"`
	Status    ChatStatus   `json:"status" bson:"status"`
	Messages  []Message    `json:"messages" bson:"messages"`
	Review    *Review      `json:"review,omitempty" bson:"review,omitempty"`
	Metadata  ChatMetadata `json:"metadata" bson:"metadata"`
	CreatedAt time.Time    `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time    `json:"updatedAt" bson:"updated_at"`
}

// Finalize recomputes the derived metadata. Every mutating chat operation
// calls it right before the chat is persisted.
func (c *Chat) Finalize(now time.Time) {
	if c.Messages == nil {
		c.Messages = []Message{}
	}
	c.Metadata.TotalMessages = len(c.Messages)
	c.Metadata.LastActivity = now
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
}

// ChatSummary is a chat without its message bodies.
type ChatSummary struct {
	ID        string       `json:"id"`
	UserID    string       `json:"userId"`
	User      *UserSummary `json:"user,omitempty"`
	Title     string       `json:"title"`
	Issue     string       `json:"issue"`
	Category  Category     `json:"category"`
	Priority  Priority     `json:"priority"`
	Status    ChatStatus   `json:"status"`
	Review    *Review      `json:"review,omitempty"`
	Metadata  ChatMetadata `json:"metadata"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

func (c *Chat) Summary() ChatSummary {
	return ChatSummary{
		ID:        c.ID,
		UserID:    c.UserID,
		Title:     c.Title,
		Issue:     c.Issue,
		Category:  c.Category,
		Priority:  c.Priority,
		Status:    c.Status,
		Review:    c.Review,
		Metadata:  c.Metadata,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

type Alarm struct {
	ID          string     `json:"id" bson:"_id"`
	UserID      string     `json:"userId" bson:"user_id"`
	Name        string     `json:"name" bson:"name"`
	Description string     `json:"description,omitempty" bson:"description,omitempty"`
	Time        time.Time  `json:"time" bson:"time"`
	IsActive    bool       `json:"isActive" bson:"is_active"`
	IsCompleted bool       `json:"isCompleted" bson:"is_completed"`
	CompletedAt *time.Time `json:"completedAt,omitempty" bson:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"createdAt" bson:"created_at"`
	UpdatedAt   time.Time  `json:"updatedAt" bson:"updated_at"`
}

type Evidence struct {
	MessageIDs  []string `json:"messageIds" bson:"message_ids"`
	Screenshots []string `json:"screenshots" bson:"screenshots"`
}

type Report struct {
	ID          string       `json:"id" bson:"_id"`
	UserID      string       `json:"userId" bson:"user_id"`
	ChatID      string       `json:"chatId" bson:"chat_id"`
	ReportType  ReportType   `json:"reportType" bson:"report_type"`
	Description string       `json:"description" bson:"description"`
	Severity    Severity     `json:"severity" bson:"severity"`
	Status      ReportStatus `json:"status" bson:"status"`
	AdminNotes  string       `json:"adminNotes,omitempty" bson:"admin_notes,omitempty"`
	ResolvedBy  *string      `json:"resolvedBy,omitempty" bson:"resolved_by,omitempty"`
	ResolvedAt  *time.Time   `json:"resolvedAt,omitempty" bson:"resolved_at,omitempty"`
	Evidence    Evidence     `json:"evidence" bson:"evidence"`
	CreatedAt   time.Time    `json:"createdAt" bson:"created_at"`
	UpdatedAt   time.Time    `json:"updatedAt" bson:"updated_at"`
}
