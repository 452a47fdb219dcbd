package core

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sohaibansari420/careease-backened/internal/store"
)

const (
	defaultAITimeout = 30 * time.Second
	maxTitleLength   = 100
)

// Clock returns the current time. Services truncate it to milliseconds in UTC.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now().UTC().Truncate(time.Millisecond)
	}
	return c().UTC().Truncate(time.Millisecond)
}

type Pagination struct {
	Current int   `json:"current"`
	Pages   int   `json:"pages"`
	Total   int64 `json:"total"`
}

func paginate(p store.Page, total int64) Pagination {
	p = p.Normalize()
	return Pagination{Current: p.Number, Pages: p.Pages(total), Total: total}
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }

func checkLength(fields []FieldError, field, value string, min, max int, message string) []FieldError {
	if n := runeLen(value); n < min || n > max {
		fields = append(fields, FieldError{Field: field, Message: message})
	}
	return fields
}

func summaries(chats []store.Chat) []store.ChatSummary {
	out := make([]store.ChatSummary, 0, len(chats))
	for i := range chats {
		out = append(out, chats[i].Summary())
	}
	return out
}

type ChatOptions struct {
	AITimeout time.Duration
	AutoTitle bool
	Fallbacks *FallbackPool
	Stats     *AssistantStats
	Clock     Clock
}

type ChatService struct {
	chats     store.ChatStore
	responder Responder
	fallbacks *FallbackPool
	stats     *AssistantStats
	aiTimeout time.Duration
	autoTitle bool
	clock     Clock
	logger    *zap.Logger
}

func NewChatService(chats store.ChatStore, responder Responder, opts ChatOptions, logger *zap.Logger) *ChatService {
	if opts.Fallbacks == nil {
		opts.Fallbacks = DefaultFallbackPool()
	}
	if opts.Stats == nil {
		opts.Stats = &AssistantStats{}
	}
	if opts.AITimeout <= 0 {
		opts.AITimeout = defaultAITimeout
	}
	return &ChatService{
		chats:     chats,
		responder: responder,
		fallbacks: opts.Fallbacks,
		stats:     opts.Stats,
		aiTimeout: opts.AITimeout,
		autoTitle: opts.AutoTitle,
		clock:     opts.Clock,
		logger:    logger,
	}
}

func (s *ChatService) Stats() *AssistantStats { return s.stats }

type CreateChatInput struct {
	Title    string
	Issue    string
	Category store.Category
	Priority store.Priority
}

func (s *ChatService) Create(ctx context.Context, ownerID string, in CreateChatInput) (*store.Chat, error) {
	title := strings.TrimSpace(in.Title)
	issue := strings.TrimSpace(in.Issue)
	priority := in.Priority
	if priority == "" {
		priority = store.PriorityMedium
	}

	var fields []FieldError
	fields = checkLength(fields, "title", title, 1, maxTitleLength, "Title must be between 1 and 100 characters")
	fields = checkLength(fields, "issue", issue, 10, 500, "Issue description must be between 10 and 500 characters")
	if !in.Category.Valid() {
		fields = append(fields, FieldError{Field: "category", Message: "Invalid category"})
	}
	if !priority.Valid() {
		fields = append(fields, FieldError{Field: "priority", Message: "Invalid priority"})
	}
	if len(fields) > 0 {
		return nil, ValidationError("Validation failed", fields...)
	}

	now := s.clock.now()
	chat := &store.Chat{
		ID:        uuid.NewString(),
		UserID:    ownerID,
		Title:     title,
		Issue:     issue,
		Category:  in.Category,
		Priority:  priority,
		Status:    store.ChatActive,
		Messages:  []store.Message{},
		CreatedAt: now,
	}
	chat.Finalize(now)
	if err := s.chats.CreateChat(ctx, chat); err != nil {
		return nil, InternalError("Server error creating chat", err)
	}
	return chat, nil
}

type ChatPage struct {
	Chats      []store.ChatSummary `json:"chats"`
	Pagination Pagination          `json:"pagination"`
}

func (s *ChatService) List(ctx context.Context, ownerID string, status store.ChatStatus, page store.Page) (*ChatPage, error) {
	if status != "" && !status.Valid() {
		return nil, fieldError("status", "Invalid status")
	}
	page = page.Normalize()
	chats, total, err := s.chats.ListChats(ctx, store.ChatQuery{
		Criteria: store.ChatCriteria{OwnerID: ownerID, Status: status},
		Sort:     store.Sort{Field: "lastActivity", Desc: true},
		Page:     page,
	})
	if err != nil {
		return nil, InternalError("Server error fetching chats", err)
	}
	return &ChatPage{Chats: summaries(chats), Pagination: paginate(page, total)}, nil
}

func (s *ChatService) Get(ctx context.Context, ownerID, chatID string) (*store.Chat, error) {
	chat, err := s.chats.GetChat(ctx, chatID, ownerID)
	if err != nil {
		return nil, storeError(err, "Chat not found", "Server error fetching chat")
	}
	return chat, nil
}

type SendResult struct {
	UserMessage      store.Message `json:"userMessage"`
	AssistantMessage store.Message `json:"assistantMessage"`
}

// SendMessage appends the user's message and an assistant reply. Responder
// failures never reach the caller: a fallback reply is used instead.
func (s *ChatService) SendMessage(ctx context.Context, ownerID, chatID, content string) (*SendResult, error) {
	content = strings.TrimSpace(content)
	if n := runeLen(content); n < 1 || n > 1000 {
		return nil, fieldError("content", "Message must be between 1 and 1000 characters")
	}

	chat, err := s.chats.GetChat(ctx, chatID, ownerID)
	if err != nil {
		return nil, storeError(err, "Chat not found", "Server error sending message")
	}
	firstExchange := len(chat.Messages) == 0

	userMsg := store.Message{ID: uuid.NewString(), Role: store.MessageUser, Content: content, Timestamp: s.clock.now()}
	chat.Messages = append(chat.Messages, userMsg)

	history := make([]Turn, 0, len(chat.Messages))
	for _, m := range chat.Messages {
		history = append(history, Turn{Role: m.Role, Content: m.Content})
	}
	reply := s.complete(ctx, chat.ID, history)

	assistantMsg := store.Message{ID: uuid.NewString(), Role: store.MessageAssistant, Content: reply, Timestamp: s.clock.now()}
	chat.Messages = append(chat.Messages, assistantMsg)

	if s.autoTitle && firstExchange {
		s.retitle(ctx, chat, userMsg.Content, reply)
	}

	chat.Finalize(s.clock.now())
	if err := s.chats.SaveChat(ctx, chat); err != nil {
		return nil, storeError(err, "Chat not found", "Server error sending message")
	}
	return &SendResult{UserMessage: userMsg, AssistantMessage: assistantMsg}, nil
}

func (s *ChatService) complete(ctx context.Context, chatID string, history []Turn) string {
	callCtx, cancel := context.WithTimeout(ctx, s.aiTimeout)
	defer cancel()

	var text string
	err := ErrMissingCredential
	if s.responder != nil {
		text, err = s.responder.Complete(callCtx, history)
	}
	if err == nil && strings.TrimSpace(text) != "" {
		s.stats.recordCompletion()
		return text
	}

	reason := "empty response"
	if err != nil {
		reason = UpstreamError(err).Error()
	}
	s.stats.recordFallback(s.clock.now(), reason)
	s.logger.Warn("AI responder unavailable, using fallback reply",
		zap.String("chat_id", chatID),
		zap.String("reason", reason),
	)
	return s.fallbacks.Pick()
}

func (s *ChatService) retitle(ctx context.Context, chat *store.Chat, userMessage, reply string) {
	if s.responder == nil {
		return
	}
	others, _, err := s.chats.ListChats(ctx, store.ChatQuery{
		Criteria: store.ChatCriteria{OwnerID: chat.UserID},
		Sort:     store.Sort{Field: "createdAt", Desc: true},
		Page:     store.Page{Number: 1, Limit: 20},
	})
	if err != nil {
		s.logger.Warn("failed to load prior titles", zap.String("chat_id", chat.ID), zap.Error(err))
	}
	prior := make([]string, 0, len(others))
	for _, c := range others {
		if c.ID != chat.ID {
			prior = append(prior, c.Title)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.aiTimeout)
	defer cancel()
	title, err := s.responder.TitleFor(callCtx, userMessage, reply, prior)
	if err != nil {
		s.logger.Warn("failed to generate chat title", zap.String("chat_id", chat.ID), zap.Error(err))
		return
	}
	title = strings.Trim(title, "\"'\n\r\t .")
	if title == "" {
		return
	}
	if runeLen(title) > maxTitleLength {
		title = string([]rune(title)[:maxTitleLength])
	}
	chat.Title = title
}

type UpdateChatInput struct {
	Title    *string
	Status   *store.ChatStatus
	Priority *store.Priority
}

// Update changes only the fields that are set.
func (s *ChatService) Update(ctx context.Context, ownerID, chatID string, in UpdateChatInput) (*store.Chat, error) {
	var fields []FieldError
	var title string
	if in.Title != nil {
		title = strings.TrimSpace(*in.Title)
		fields = checkLength(fields, "title", title, 1, maxTitleLength, "Title must be between 1 and 100 characters")
	}
	if in.Status != nil && !in.Status.Valid() {
		fields = append(fields, FieldError{Field: "status", Message: "Invalid status"})
	}
	if in.Priority != nil && !in.Priority.Valid() {
		fields = append(fields, FieldError{Field: "priority", Message: "Invalid priority"})
	}
	if len(fields) > 0 {
		return nil, ValidationError("Validation failed", fields...)
	}

	chat, err := s.chats.GetChat(ctx, chatID, ownerID)
	if err != nil {
		return nil, storeError(err, "Chat not found", "Server error updating chat")
	}
	if in.Title != nil {
		chat.Title = title
	}
	if in.Status != nil {
		chat.Status = *in.Status
	}
	if in.Priority != nil {
		chat.Priority = *in.Priority
	}

	chat.Finalize(s.clock.now())
	if err := s.chats.SaveChat(ctx, chat); err != nil {
		return nil, storeError(err, "Chat not found", "Server error updating chat")
	}
	return chat, nil
}

type ReviewInput struct {
	Rating   int
	Feedback string
}

// AddReview attaches or overwrites the chat's review. An active chat is
// promoted to resolved.
func (s *ChatService) AddReview(ctx context.Context, ownerID, chatID string, in ReviewInput) (*store.Chat, error) {
	feedback := strings.TrimSpace(in.Feedback)
	var fields []FieldError
	if in.Rating < 1 || in.Rating > 5 {
		fields = append(fields, FieldError{Field: "rating", Message: "Rating must be between 1 and 5"})
	}
	fields = checkLength(fields, "feedback", feedback, 0, 1000, "Feedback must not exceed 1000 characters")
	if len(fields) > 0 {
		return nil, ValidationError("Validation failed", fields...)
	}

	chat, err := s.chats.GetChat(ctx, chatID, ownerID)
	if err != nil {
		return nil, storeError(err, "Chat not found", "Server error adding review")
	}
	now := s.clock.now()
	chat.Review = &store.Review{Rating: in.Rating, Feedback: feedback, ReviewedAt: now}
	if chat.Status == store.ChatActive {
		chat.Status = store.ChatResolved
	}

	chat.Finalize(now)
	if err := s.chats.SaveChat(ctx, chat); err != nil {
		return nil, storeError(err, "Chat not found", "Server error adding review")
	}
	return chat, nil
}

func (s *ChatService) Delete(ctx context.Context, ownerID, chatID string) error {
	if err := s.chats.DeleteChat(ctx, chatID, ownerID); err != nil {
		return storeError(err, "Chat not found", "Server error deleting chat")
	}
	return nil
}

// PendingRatings lists resolved chats that have no review yet.
func (s *ChatService) PendingRatings(ctx context.Context, ownerID string, limit int) ([]store.ChatSummary, error) {
	reviewed := false
	chats, _, err := s.chats.ListChats(ctx, store.ChatQuery{
		Criteria: store.ChatCriteria{OwnerID: ownerID, Status: store.ChatResolved, Reviewed: &reviewed},
		Sort:     store.Sort{Field: "updatedAt", Desc: true},
		Page:     store.Page{Number: 1, Limit: limit},
	})
	if err != nil {
		return nil, InternalError("Server error fetching pending ratings", err)
	}
	return summaries(chats), nil
}
