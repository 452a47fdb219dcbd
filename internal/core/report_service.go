package core

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sohaibansari420/careease-backened/internal/store"
)

type ReportService struct {
	reports store.ReportStore
	chats   store.ChatStore
	users   store.UserStore
	clock   Clock
	logger  *zap.Logger
}

func NewReportService(reports store.ReportStore, chats store.ChatStore, users store.UserStore, clock Clock, logger *zap.Logger) *ReportService {
	return &ReportService{reports: reports, chats: chats, users: users, clock: clock, logger: logger}
}

type CreateReportInput struct {
	ReportType  store.ReportType
	Description string
	Severity    store.Severity
	Evidence    store.Evidence
}

// Create files a report against a chat the reporter owns.
func (s *ReportService) Create(ctx context.Context, ownerID, chatID string, in CreateReportInput) (*store.Report, error) {
	description := strings.TrimSpace(in.Description)
	severity := in.Severity
	if severity == "" {
		severity = store.SeverityMedium
	}

	var fields []FieldError
	if !in.ReportType.Valid() {
		fields = append(fields, FieldError{Field: "reportType", Message: "Invalid report type"})
	}
	if !severity.Valid() {
		fields = append(fields, FieldError{Field: "severity", Message: "Invalid severity"})
	}
	fields = checkLength(fields, "description", description, 1, 1000, "Description must be between 1 and 1000 characters")
	if len(fields) > 0 {
		return nil, ValidationError("Validation failed", fields...)
	}

	if _, err := s.chats.GetChat(ctx, chatID, ownerID); err != nil {
		return nil, storeError(err, "Chat not found", "Server error creating report")
	}

	evidence := in.Evidence
	if evidence.MessageIDs == nil {
		evidence.MessageIDs = []string{}
	}
	if evidence.Screenshots == nil {
		evidence.Screenshots = []string{}
	}
	now := s.clock.now()
	report := &store.Report{
		ID:          uuid.NewString(),
		UserID:      ownerID,
		ChatID:      chatID,
		ReportType:  in.ReportType,
		Description: description,
		Severity:    severity,
		Status:      store.ReportPending,
		Evidence:    evidence,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.reports.CreateReport(ctx, report); err != nil {
		return nil, InternalError("Server error creating report", err)
	}
	s.logger.Info("report filed",
		zap.String("report_id", report.ID),
		zap.String("chat_id", chatID),
		zap.String("type", string(report.ReportType)),
	)
	return report, nil
}

type UpdateReportInput struct {
	Status     *store.ReportStatus
	AdminNotes *string
}

// Update applies an admin's status or notes change. Moving to resolved stamps
// the resolver and resolution time in the same write.
func (s *ReportService) Update(ctx context.Context, adminID, reportID string, in UpdateReportInput) (*store.Report, error) {
	var fields []FieldError
	var notes string
	if in.Status != nil && !in.Status.Valid() {
		fields = append(fields, FieldError{Field: "status", Message: "Invalid status"})
	}
	if in.AdminNotes != nil {
		notes = strings.TrimSpace(*in.AdminNotes)
		fields = checkLength(fields, "adminNotes", notes, 0, 1000, "Admin notes must not exceed 1000 characters")
	}
	if len(fields) > 0 {
		return nil, ValidationError("Validation failed", fields...)
	}

	report, err := s.reports.GetReport(ctx, reportID)
	if err != nil {
		return nil, storeError(err, "Report not found", "Server error updating report")
	}

	now := s.clock.now()
	if in.Status != nil {
		report.Status = *in.Status
		if *in.Status == store.ReportResolved {
			resolver := adminID
			report.ResolvedBy = &resolver
			report.ResolvedAt = &now
		}
	}
	if in.AdminNotes != nil {
		report.AdminNotes = notes
	}
	report.UpdatedAt = now

	if err := s.reports.SaveReport(ctx, report); err != nil {
		return nil, storeError(err, "Report not found", "Server error updating report")
	}
	return report, nil
}

type ChatBrief struct {
	ID       string         `json:"id"`
	Title    string         `json:"title"`
	Issue    string         `json:"issue"`
	Category store.Category `json:"category"`
}

type ReportView struct {
	store.Report
	Reporter *store.UserSummary `json:"user,omitempty"`
	Chat     *ChatBrief         `json:"chat,omitempty"`
	Resolver *store.UserSummary `json:"resolver,omitempty"`
}

type ReportPage struct {
	Reports    []ReportView `json:"reports"`
	Pagination Pagination   `json:"pagination"`
}

func (s *ReportService) List(ctx context.Context, c store.ReportCriteria, page store.Page) (*ReportPage, error) {
	var fields []FieldError
	if c.Status != "" && !c.Status.Valid() {
		fields = append(fields, FieldError{Field: "status", Message: "Invalid status"})
	}
	if c.Type != "" && !c.Type.Valid() {
		fields = append(fields, FieldError{Field: "reportType", Message: "Invalid report type"})
	}
	if c.Severity != "" && !c.Severity.Valid() {
		fields = append(fields, FieldError{Field: "severity", Message: "Invalid severity"})
	}
	if len(fields) > 0 {
		return nil, ValidationError("Validation failed", fields...)
	}

	page = page.Normalize()
	reports, total, err := s.reports.ListReports(ctx, c, page)
	if err != nil {
		return nil, InternalError("Server error fetching reports", err)
	}

	var userIDs, chatIDs []string
	for _, r := range reports {
		userIDs = append(userIDs, r.UserID)
		chatIDs = append(chatIDs, r.ChatID)
		if r.ResolvedBy != nil {
			userIDs = append(userIDs, *r.ResolvedBy)
		}
	}
	users, err := s.users.GetUsersByIDs(ctx, userIDs)
	if err != nil {
		return nil, InternalError("Server error fetching reports", err)
	}
	chats, err := s.chats.GetChatsByIDs(ctx, chatIDs)
	if err != nil {
		return nil, InternalError("Server error fetching reports", err)
	}

	views := make([]ReportView, 0, len(reports))
	for _, r := range reports {
		v := ReportView{Report: r, Reporter: users[r.UserID].Summary()}
		if c, ok := chats[r.ChatID]; ok {
			v.Chat = &ChatBrief{ID: c.ID, Title: c.Title, Issue: c.Issue, Category: c.Category}
		}
		if r.ResolvedBy != nil {
			v.Resolver = users[*r.ResolvedBy].Summary()
		}
		views = append(views, v)
	}
	return &ReportPage{Reports: views, Pagination: paginate(page, total)}, nil
}
