package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sohaibansari420/careease-backened/internal/store"
)

func TestReportLifecycle(t *testing.T) {
	s := setupStore(t)
	now := time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)
	chats := newChatService(s, nil, ChatOptions{Clock: fixedClock(now)})
	reports := NewReportService(s, s, s, fixedClock(now), zap.NewNop())
	ctx := context.Background()

	owner := seedUser(t, s, "reporter", store.RoleUser)
	admin := seedUser(t, s, "moderator", store.RoleAdmin)
	chat := createChat(t, chats, owner.ID)

	_, err := reports.Create(ctx, admin.ID, chat.ID, CreateReportInput{ReportType: store.ReportSpam, Description: "spam"})
	assert.Equal(t, KindNotFound, KindOf(err))

	_, err = reports.Create(ctx, owner.ID, chat.ID, CreateReportInput{ReportType: "rude", Description: "x"})
	assert.Equal(t, KindValidation, KindOf(err))

	report, err := reports.Create(ctx, owner.ID, chat.ID, CreateReportInput{
		ReportType:  store.ReportMisinformation,
		Description: "The advice was wrong",
	})
	require.NoError(t, err)
	assert.Equal(t, store.SeverityMedium, report.Severity)
	assert.Equal(t, store.ReportPending, report.Status)

	investigating := store.ReportInvestigating
	got, err := reports.Update(ctx, admin.ID, report.ID, UpdateReportInput{Status: &investigating})
	require.NoError(t, err)
	assert.Nil(t, got.ResolvedBy)
	assert.Nil(t, got.ResolvedAt)

	resolved := store.ReportResolved
	notes := "Corrected the guidance"
	got, err = reports.Update(ctx, admin.ID, report.ID, UpdateReportInput{Status: &resolved, AdminNotes: &notes})
	require.NoError(t, err)
	require.NotNil(t, got.ResolvedBy)
	assert.Equal(t, admin.ID, *got.ResolvedBy)
	require.NotNil(t, got.ResolvedAt)
	assert.Equal(t, now, *got.ResolvedAt)

	page, err := reports.List(ctx, store.ReportCriteria{Status: store.ReportResolved}, store.Page{})
	require.NoError(t, err)
	require.Len(t, page.Reports, 1)
	view := page.Reports[0]
	assert.Equal(t, "reporter", view.Reporter.Username)
	assert.Equal(t, "moderator", view.Resolver.Username)
	require.NotNil(t, view.Chat)
	assert.Equal(t, chat.ID, view.Chat.ID)
	assert.Equal(t, "Corrected the guidance", view.AdminNotes)

	_, err = reports.List(ctx, store.ReportCriteria{Severity: "extreme"}, store.Page{})
	assert.Equal(t, KindValidation, KindOf(err))

	bogus := store.ReportStatus("closed")
	_, err = reports.Update(ctx, admin.ID, report.ID, UpdateReportInput{Status: &bogus})
	assert.Equal(t, KindValidation, KindOf(err))
	_, err = reports.Update(ctx, admin.ID, "missing", UpdateReportInput{Status: &resolved})
	assert.Equal(t, KindNotFound, KindOf(err))
}
