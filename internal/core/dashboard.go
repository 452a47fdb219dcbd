package core

import (
	"context"
	"time"

	"github.com/sohaibansari420/careease-backened/internal/store"
)

type Insight struct {
	Type    string `json:"type"`
	Icon    string `json:"icon"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

type DashboardStats struct {
	TotalChats      int64    `json:"totalChats"`
	ActiveChats     int64    `json:"activeChats"`
	ResolvedChats   int64    `json:"resolvedChats"`
	AverageRating   *float64 `json:"averageRating"`
	RecentResolved  int64    `json:"recentResolved"`
	AvgResponseTime string   `json:"avgResponseTime"`
}

type Dashboard struct {
	Stats          DashboardStats      `json:"stats"`
	RecentChats    []store.ChatSummary `json:"recentChats"`
	Insights       []Insight           `json:"insights"`
	PendingRatings []store.ChatSummary `json:"pendingRatings"`
}

// Dashboard summarizes the owner's chat activity.
func (s *ChatService) Dashboard(ctx context.Context, ownerID string) (*Dashboard, error) {
	now := s.clock.now()
	stats, err := s.chats.ChatStats(ctx, store.ChatCriteria{OwnerID: ownerID}, now.Add(-24*time.Hour))
	if err != nil {
		return nil, InternalError("Server error fetching dashboard statistics", err)
	}

	recent, _, err := s.chats.ListChats(ctx, store.ChatQuery{
		Criteria: store.ChatCriteria{OwnerID: ownerID},
		Sort:     store.Sort{Field: "lastActivity", Desc: true},
		Page:     store.Page{Number: 1, Limit: 5},
	})
	if err != nil {
		return nil, InternalError("Server error fetching dashboard statistics", err)
	}

	pending, err := s.PendingRatings(ctx, ownerID, 3)
	if err != nil {
		return nil, err
	}

	responseTime := "N/A"
	if stats.TotalMessages > 0 {
		responseTime = "< 2min"
	}
	return &Dashboard{
		Stats: DashboardStats{
			TotalChats:      stats.TotalChats,
			ActiveChats:     stats.ActiveChats,
			ResolvedChats:   stats.ResolvedChats,
			AverageRating:   stats.AverageRating,
			RecentResolved:  stats.RecentResolved,
			AvgResponseTime: responseTime,
		},
		RecentChats:    summaries(recent),
		Insights:       insightsFor(stats),
		PendingRatings: pending,
	}, nil
}

func insightsFor(stats store.ChatStats) []Insight {
	var insights []Insight

	switch {
	case stats.TotalChats > 10:
		insights = append(insights, Insight{
			Type:    "progress",
			Icon:    "trending-up",
			Title:   "Great Progress!",
			Content: "You've engaged in many conversations. Your proactive approach to care is commendable!",
		})
	case stats.TotalChats == 0:
		insights = append(insights, Insight{
			Type:    "welcome",
			Icon:    "heart",
			Title:   "Welcome to CareEase!",
			Content: "Start a conversation to get personalized care assistance tailored to your needs.",
		})
	}

	if r := stats.AverageRating; r != nil && *r > 0 {
		switch {
		case *r >= 4.5:
			insights = append(insights, Insight{
				Type:    "rating",
				Icon:    "star",
				Title:   "Excellent Experience",
				Content: "Your high ratings show you're receiving quality care assistance. Keep up the great feedback!",
			})
		case *r < 3.0:
			insights = append(insights, Insight{
				Type:    "improvement",
				Icon:    "shield",
				Title:   "Room for Improvement",
				Content: "We're always working to improve. Your feedback helps us provide better care.",
			})
		}
	}

	if stats.ActiveChats > 3 {
		insights = append(insights, Insight{
			Type:    "activity",
			Icon:    "activity",
			Title:   "Active Care Management",
			Content: "You have several active conversations. Consider resolving some to maintain focus.",
		})
	}

	if len(insights) == 0 {
		insights = append(insights,
			Insight{
				Type:    "tip",
				Icon:    "heart",
				Title:   "Daily Care Tip",
				Content: "Regular social interaction can significantly improve mental health in elderly care.",
			},
			Insight{
				Type:    "reminder",
				Icon:    "shield",
				Title:   "Safety First",
				Content: "Ensure all medications are stored in a cool, dry place and check expiration dates regularly.",
			},
		)
	}

	if len(insights) > 3 {
		insights = insights[:3]
	}
	return insights
}
