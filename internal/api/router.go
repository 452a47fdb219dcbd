package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sohaibansari420/careease-backened/internal/ratelimit"
)

const maxBodyBytes = 10 << 20

var endpointIndex = map[string]map[string]string{
	"auth": {
		"POST /api/auth/register": "Register a new user",
		"POST /api/auth/login":    "Login user",
		"GET /api/auth/profile":   "Get user profile",
		"PUT /api/auth/profile":   "Update user profile",
		"POST /api/auth/logout":   "Logout user",
	},
	"chat": {
		"POST /api/chat":                  "Create new chat",
		"GET /api/chat":                   "Get user chats",
		"GET /api/chat/:chatId":           "Get specific chat",
		"POST /api/chat/:chatId/messages": "Send message",
		"PUT /api/chat/:chatId":           "Update chat",
		"POST /api/chat/:chatId/review":   "Add review",
		"DELETE /api/chat/:chatId":        "Delete chat",
		"POST /api/chat/:chatId/reports":  "Report a chat",
	},
	"user": {
		"GET /api/user/dashboard":                "Get dashboard statistics",
		"GET /api/user/pending-ratings":          "Get resolved chats awaiting a review",
		"POST /api/user/alarms":                  "Create alarm",
		"GET /api/user/alarms":                   "Get alarms",
		"PUT /api/user/alarms/:alarmId":          "Update alarm",
		"PUT /api/user/alarms/:alarmId/complete": "Complete alarm",
		"DELETE /api/user/alarms/:alarmId":       "Delete alarm",
	},
	"admin": {
		"GET /api/admin/dashboard/analytics": "Get dashboard analytics",
		"GET /api/admin/assistant/stats":     "Get AI assistant counters",
		"GET /api/admin/users":               "Get all users",
		"GET /api/admin/users/:userId":       "Get user details",
		"PUT /api/admin/users/:userId/ban":   "Ban/unban user",
		"GET /api/admin/users/:userId/chats": "Get user chat history",
		"GET /api/admin/chats":               "Get all chats",
		"GET /api/admin/chats/:chatId":       "Get chat details",
		"GET /api/admin/reports":             "Get reports",
		"PUT /api/admin/reports/:reportId":   "Update report",
	},
}

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(apiHandler.logger))
	r.Use(apiHandler.recoverer)
	r.Use(securityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   apiHandler.origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"RateLimit-Limit", "RateLimit-Remaining", "RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestSize(maxBodyBytes))
	r.Use(middleware.StripSlashes)

	r.Get("/health", apiHandler.HealthHandler)

	// All API routes will be under /api
	r.Route("/api", func(r chi.Router) {
		r.Use(apiHandler.rateLimit(ratelimit.General))

		r.Get("/", apiHandler.IndexHandler)
		r.NotFound(apiHandler.NotFoundHandler)
		r.MethodNotAllowed(apiHandler.NotFoundHandler)

		r.Route("/auth", func(r chi.Router) {
			r.With(apiHandler.rateLimit(ratelimit.Auth)).Post("/register", apiHandler.RegisterHandler)
			r.With(apiHandler.rateLimit(ratelimit.Auth)).Post("/login", apiHandler.LoginHandler)

			r.Group(func(r chi.Router) {
				r.Use(apiHandler.authenticate)
				r.Get("/profile", apiHandler.ProfileHandler)
				r.Put("/profile", apiHandler.UpdateProfileHandler)
				r.Post("/logout", apiHandler.LogoutHandler)
			})
		})

		// User-authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(apiHandler.authenticate)

			r.Route("/chat", func(r chi.Router) {
				r.With(apiHandler.rateLimit(ratelimit.ChatCreate)).Post("/", apiHandler.CreateChatHandler)
				r.Get("/", apiHandler.ListChatsHandler)
				r.Get("/{chatId}", apiHandler.GetChatHandler)
				r.With(apiHandler.rateLimit(ratelimit.AIMessage)).Post("/{chatId}/messages", apiHandler.PostMessageHandler)
				r.Put("/{chatId}", apiHandler.UpdateChatHandler)
				r.Post("/{chatId}/review", apiHandler.ReviewChatHandler)
				r.Delete("/{chatId}", apiHandler.DeleteChatHandler)
				r.Post("/{chatId}/reports", apiHandler.CreateReportHandler)
			})

			r.Route("/user", func(r chi.Router) {
				r.Get("/dashboard", apiHandler.DashboardHandler)
				r.Get("/pending-ratings", apiHandler.PendingRatingsHandler)
				r.Post("/alarms", apiHandler.CreateAlarmHandler)
				r.Get("/alarms", apiHandler.ListAlarmsHandler)
				r.Put("/alarms/{alarmId}", apiHandler.UpdateAlarmHandler)
				r.Put("/alarms/{alarmId}/complete", apiHandler.CompleteAlarmHandler)
				r.Delete("/alarms/{alarmId}", apiHandler.DeleteAlarmHandler)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(apiHandler.requireAdmin)
				r.Get("/dashboard/analytics", apiHandler.AnalyticsHandler)
				r.Get("/assistant/stats", apiHandler.AssistantStatsHandler)
				r.Get("/users", apiHandler.ListUsersHandler)
				r.Get("/users/{userId}", apiHandler.UserDetailsHandler)
				r.Put("/users/{userId}/ban", apiHandler.BanUserHandler)
				r.Get("/users/{userId}/chats", apiHandler.UserChatsHandler)
				r.Get("/chats", apiHandler.ListAllChatsHandler)
				r.Get("/chats/{chatId}", apiHandler.ChatDetailsHandler)
				r.Get("/reports", apiHandler.ListReportsHandler)
				r.Put("/reports/{reportId}", apiHandler.UpdateReportHandler)
			})
		})
	})

	return r
}
