package ratelimit

import (
	"context"
	"time"
)

// Rule is a named quota of Limit requests per Window.
type Rule struct {
	Name   string
	Limit  int
	Window time.Duration
}

var (
	General    = Rule{Name: "general", Limit: 100, Window: 15 * time.Minute}
	Auth       = Rule{Name: "auth", Limit: 5, Window: 15 * time.Minute}
	ChatCreate = Rule{Name: "chat", Limit: 30, Window: time.Minute}
	AIMessage  = Rule{Name: "ai", Limit: 10, Window: time.Minute}
)

type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

type Limiter interface {
	Allow(ctx context.Context, key string, rule Rule) (Decision, error)
}
