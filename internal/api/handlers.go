package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sohaibansari420/careease-backened/internal/core"
	"github.com/sohaibansari420/careease-backened/internal/ratelimit"
	"github.com/sohaibansari420/careease-backened/internal/store"
	"github.com/sohaibansari420/careease-backened/internal/utils"
)

type Services struct {
	Auth    *core.AuthService
	Chats   *core.ChatService
	Alarms  *core.AlarmService
	Reports *core.ReportService
	Admin   *core.AdminService
}

// Pinger reports datastore reachability for the health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Environment     string
	Database        Pinger
	FrontendOrigins []string
	// Limiter is nil when rate limiting is disabled.
	Limiter ratelimit.Limiter
}

type APIHandler struct {
	auth        *core.AuthService
	chats       *core.ChatService
	alarms      *core.AlarmService
	reports     *core.ReportService
	admin       *core.AdminService
	limiter     ratelimit.Limiter
	db          Pinger
	origins     []string
	environment string
	production  bool
	logger      *zap.Logger
}

func NewAPIHandler(svc Services, opts Options, logger *zap.Logger) *APIHandler {
	env := opts.Environment
	if env == "" {
		env = "development"
	}
	return &APIHandler{
		auth:        svc.Auth,
		chats:       svc.Chats,
		alarms:      svc.Alarms,
		reports:     svc.Reports,
		admin:       svc.Admin,
		limiter:     opts.Limiter,
		db:          opts.Database,
		origins:     opts.FrontendOrigins,
		environment: env,
		production:  env == "production",
		logger:      logger,
	}
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	status, body := http.StatusOK, map[string]any{
		"success":     true,
		"message":     "CareEase API is running",
		"timestamp":   time.Now().UTC().Format(time.RFC3339Nano),
		"environment": h.environment,
	}
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			h.logger.Warn("health check: database unreachable", zap.Error(err))
			status = http.StatusServiceUnavailable
			body["success"] = false
			body["message"] = "Database unreachable"
		}
	}
	writeJSON(w, status, body)
}

func (h *APIHandler) IndexHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "Welcome to CareEase API",
		"version":   "1.0.0",
		"endpoints": endpointIndex,
	})
}

func (h *APIHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, envelope{Success: false, Message: "API endpoint not found", Path: r.URL.RequestURI()})
}

// Auth

func (h *APIHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req core.RegisterInput
	if err := h.decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	session, err := h.auth.Register(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, "User registered successfully", session)
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req core.LoginInput
	if err := h.decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	session, err := h.auth.Login(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Login successful", session)
}

func (h *APIHandler) ProfileHandler(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.Profile(r.Context(), currentUser(r).ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "", map[string]any{"user": user})
}

func (h *APIHandler) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	var req core.UpdateProfileInput
	if err := h.decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	user, err := h.auth.UpdateProfile(r.Context(), currentUser(r).ID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Profile updated successfully", map[string]any{"user": user})
}

// LogoutHandler only acknowledges; tokens are stateless and expire on their own.
func (h *APIHandler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, "Logged out successfully", nil)
}

// Chats

type CreateChatRequest struct {
	Title    string `json:"title"`
	Issue    string `json:"issue"`
	Category string `json:"category"`
	Priority string `json:"priority"`
}

func (h *APIHandler) CreateChatHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateChatRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	chat, err := h.chats.Create(r.Context(), currentUser(r).ID, core.CreateChatInput{
		Title:    req.Title,
		Issue:    req.Issue,
		Category: store.Category(req.Category),
		Priority: store.Priority(req.Priority),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, "Chat created successfully", map[string]any{"chat": chat})
}

func (h *APIHandler) ListChatsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.chats.List(r.Context(), currentUser(r).ID, store.ChatStatus(q.Get("status")), utils.ParsePage(q))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "", page)
}

func (h *APIHandler) GetChatHandler(w http.ResponseWriter, r *http.Request) {
	chat, err := h.chats.Get(r.Context(), currentUser(r).ID, chi.URLParam(r, "chatId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "", map[string]any{"chat": chat})
}

type PostMessageRequest struct {
	Content string `json:"content"`
}

func (h *APIHandler) PostMessageHandler(w http.ResponseWriter, r *http.Request) {
	var req PostMessageRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	result, err := h.chats.SendMessage(r.Context(), currentUser(r).ID, chi.URLParam(r, "chatId"), req.Content)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "", result)
}

type UpdateChatRequest struct {
	Title    *string `json:"title"`
	Status   *string `json:"status"`
	Priority *string `json:"priority"`
}

func (h *APIHandler) UpdateChatHandler(w http.ResponseWriter, r *http.Request) {
	var req UpdateChatRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	in := core.UpdateChatInput{Title: req.Title}
	if req.Status != nil {
		s := store.ChatStatus(*req.Status)
		in.Status = &s
	}
	if req.Priority != nil {
		p := store.Priority(*req.Priority)
		in.Priority = &p
	}
	chat, err := h.chats.Update(r.Context(), currentUser(r).ID, chi.URLParam(r, "chatId"), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Chat updated successfully", map[string]any{"chat": chat})
}

type ReviewRequest struct {
	Rating   *int   `json:"rating" validate:"required" msg:"Rating must be between 1 and 5"`
	Feedback string `json:"feedback"`
}

func (h *APIHandler) ReviewChatHandler(w http.ResponseWriter, r *http.Request) {
	var req ReviewRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := core.Validate(&req); err != nil {
		h.writeError(w, r, err)
		return
	}
	chat, err := h.chats.AddReview(r.Context(), currentUser(r).ID, chi.URLParam(r, "chatId"), core.ReviewInput{
		Rating:   *req.Rating,
		Feedback: req.Feedback,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Review added successfully", map[string]any{"chat": chat})
}

func (h *APIHandler) DeleteChatHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.chats.Delete(r.Context(), currentUser(r).ID, chi.URLParam(r, "chatId")); err != nil {
		h.writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Chat deleted successfully", nil)
}

type CreateReportRequest struct {
	ReportType  string         `json:"reportType"`
	Description string         `json:"description"`
	Severity    string         `json:"severity"`
	Evidence    store.Evidence `json:"evidence"`
}

func (h *APIHandler) CreateReportHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateReportRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	report, err := h.reports.Create(r.Context(), currentUser(r).ID, chi.URLParam(r, "chatId"), core.CreateReportInput{
		ReportType:  store.ReportType(req.ReportType),
		Description: req.Description,
		Severity:    store.Severity(req.Severity),
		Evidence:    req.Evidence,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, "Report submitted successfully", map[string]any{"report": report})
}

// User area

func (h *APIHandler) DashboardHandler(w http.ResponseWriter, r *http.Request) {
	dash, err := h.chats.Dashboard(r.Context(), currentUser(r).ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "", dash)
}

func (h *APIHandler) PendingRatingsHandler(w http.ResponseWriter, r *http.Request) {
	pending, err := h.chats.PendingRatings(r.Context(), currentUser(r).ID, 10)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "", map[string]any{"pendingChats": pending})
}

type AlarmRequest struct {
	Name        *string `json:"name"`
	Time        *string `json:"time"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"isActive"`
}

func (req AlarmRequest) parseTime() (*time.Time, error) {
	if req.Time == nil {
		return nil, nil
	}
	t, err := utils.ParseTime(*req.Time)
	if err != nil {
		return nil, core.ValidationError("Validation failed", core.FieldError{Field: "time", Message: "Time must be a valid ISO 8601 date"})
	}
	return &t, nil
}

func (h *APIHandler) CreateAlarmHandler(w http.ResponseWriter, r *http.Request) {
	var req AlarmRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	at, err := req.parseTime()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	in := core.CreateAlarmInput{}
	if req.Name != nil {
		in.Name = *req.Name
	}
	if req.Description != nil {
		in.Description = *req.Description
	}
	if at != nil {
		in.Time = *at
	}
	alarm, err := h.alarms.Create(r.Context(), currentUser(r).ID, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, "Alarm created successfully", map[string]any{"alarm": alarm})
}

func (h *APIHandler) ListAlarmsHandler(w http.ResponseWriter, r *http.Request) {
	alarms, err := h.alarms.List(r.Context(), currentUser(r).ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "", map[string]any{"alarms": alarms})
}

func (h *APIHandler) UpdateAlarmHandler(w http.ResponseWriter, r *http.Request) {
	var req AlarmRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	at, err := req.parseTime()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	alarm, err := h.alarms.Update(r.Context(), currentUser(r).ID, chi.URLParam(r, "alarmId"), core.UpdateAlarmInput{
		Name:        req.Name,
		Time:        at,
		Description: req.Description,
		IsActive:    req.IsActive,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Alarm updated successfully", map[string]any{"alarm": alarm})
}

func (h *APIHandler) CompleteAlarmHandler(w http.ResponseWriter, r *http.Request) {
	alarm, err := h.alarms.Complete(r.Context(), currentUser(r).ID, chi.URLParam(r, "alarmId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Alarm marked as completed", map[string]any{"alarm": alarm})
}

func (h *APIHandler) DeleteAlarmHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.alarms.Delete(r.Context(), currentUser(r).ID, chi.URLParam(r, "alarmId")); err != nil {
		h.writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Alarm deleted successfully", nil)
}

// Admin

func (h *APIHandler) AnalyticsHandler(w http.ResponseWriter, r *http.Request) {
	analytics, err := h.admin.Analytics(r.Context(), r.URL.Query().Get("timeframe"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "", analytics)
}

func (h *APIHandler) AssistantStatsHandler(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, "", map[string]any{"assistant": h.admin.AssistantStats()})
}

func (h *APIHandler) ListUsersHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	c := store.UserCriteria{Search: q.Get("search"), Role: store.Role(q.Get("role"))}
	yes, no := true, false
	switch q.Get("status") {
	case "active":
		c.Active = &yes
	case "inactive":
		c.Active = &no
	case "banned":
		c.Banned = &yes
	}
	page, err := h.admin.ListUsers(r.Context(), c, utils.ParseSort(q, "createdAt"), utils.ParsePage(q))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "", page)
}

func (h *APIHandler) UserDetailsHandler(w http.ResponseWriter, r *http.Request) {
	details, err := h.admin.UserDetails(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "", details)
}

type BanRequest struct {
	Banned    *bool  `json:"banned" validate:"required" msg:"Banned status must be a boolean"`
	BanReason string `json:"banReason"`
}

func (h *APIHandler) BanUserHandler(w http.ResponseWriter, r *http.Request) {
	var req BanRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := core.Validate(&req); err != nil {
		h.writeError(w, r, err)
		return
	}
	user, err := h.admin.SetBan(r.Context(), chi.URLParam(r, "userId"), *req.Banned, req.BanReason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	message := "User unbanned successfully"
	if *req.Banned {
		message = "User banned successfully"
	}
	respond(w, http.StatusOK, message, map[string]any{"user": user})
}

func (h *APIHandler) UserChatsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	c := store.ChatCriteria{Status: store.ChatStatus(q.Get("status")), Category: store.Category(q.Get("category"))}
	history, err := h.admin.UserChatHistory(r.Context(), chi.URLParam(r, "userId"), c, utils.ParseSort(q, "createdAt"), utils.ParsePage(q))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "", history)
}

func (h *APIHandler) ListAllChatsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	c := store.ChatCriteria{
		OwnerID:  q.Get("userId"),
		Status:   store.ChatStatus(q.Get("status")),
		Category: store.Category(q.Get("category")),
		Priority: store.Priority(q.Get("priority")),
		Search:   q.Get("search"),
	}
	page, err := h.admin.ListChats(r.Context(), c, utils.ParsePage(q))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "", page)
}

func (h *APIHandler) ChatDetailsHandler(w http.ResponseWriter, r *http.Request) {
	chat, err := h.admin.ChatDetails(r.Context(), chi.URLParam(r, "chatId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "", map[string]any{"chat": chat})
}

func (h *APIHandler) ListReportsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	c := store.ReportCriteria{
		Status:   store.ReportStatus(q.Get("status")),
		Type:     store.ReportType(q.Get("reportType")),
		Severity: store.Severity(q.Get("severity")),
	}
	page, err := h.reports.List(r.Context(), c, utils.ParsePage(q))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "", page)
}

type UpdateReportRequest struct {
	Status     *string `json:"status"`
	AdminNotes *string `json:"adminNotes"`
}

func (h *APIHandler) UpdateReportHandler(w http.ResponseWriter, r *http.Request) {
	var req UpdateReportRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	in := core.UpdateReportInput{AdminNotes: req.AdminNotes}
	if req.Status != nil {
		s := store.ReportStatus(*req.Status)
		in.Status = &s
	}
	report, err := h.reports.Update(r.Context(), currentUser(r).ID, chi.URLParam(r, "reportId"), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Report updated successfully", map[string]any{"report": report})
}
