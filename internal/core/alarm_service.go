package core

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sohaibansari420/careease-backened/internal/store"
)

type AlarmService struct {
	alarms store.AlarmStore
	clock  Clock
	logger *zap.Logger
}

func NewAlarmService(alarms store.AlarmStore, clock Clock, logger *zap.Logger) *AlarmService {
	return &AlarmService{alarms: alarms, clock: clock, logger: logger}
}

type CreateAlarmInput struct {
	Name        string
	Time        time.Time
	Description string
}

func (s *AlarmService) Create(ctx context.Context, ownerID string, in CreateAlarmInput) (*store.Alarm, error) {
	name := strings.TrimSpace(in.Name)
	description := strings.TrimSpace(in.Description)

	var fields []FieldError
	fields = checkLength(fields, "name", name, 1, 100, "Name must be between 1 and 100 characters")
	fields = checkLength(fields, "description", description, 0, 500, "Description must not exceed 500 characters")
	if in.Time.IsZero() {
		fields = append(fields, FieldError{Field: "time", Message: "Time must be a valid ISO 8601 date"})
	}
	if len(fields) > 0 {
		return nil, ValidationError("Validation failed", fields...)
	}

	now := s.clock.now()
	alarm := &store.Alarm{
		ID:          uuid.NewString(),
		UserID:      ownerID,
		Name:        name,
		Description: description,
		Time:        in.Time.UTC().Truncate(time.Millisecond),
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.alarms.CreateAlarm(ctx, alarm); err != nil {
		return nil, InternalError("Server error creating alarm", err)
	}
	return alarm, nil
}

// List deactivates the owner's overdue alarms before reading them, so no
// returned alarm is both active and past due.
func (s *AlarmService) List(ctx context.Context, ownerID string) ([]store.Alarm, error) {
	now := s.clock.now()
	n, err := s.alarms.DeactivateOverdueAlarms(ctx, ownerID, now)
	if err != nil {
		return nil, InternalError("Server error fetching alarms", err)
	}
	if n > 0 {
		s.logger.Debug("deactivated overdue alarms", zap.String("user_id", ownerID), zap.Int64("count", n))
	}
	alarms, err := s.alarms.ListAlarms(ctx, ownerID)
	if err != nil {
		return nil, InternalError("Server error fetching alarms", err)
	}
	return alarms, nil
}

type UpdateAlarmInput struct {
	Name        *string
	Time        *time.Time
	Description *string
	IsActive    *bool
}

func (s *AlarmService) Update(ctx context.Context, ownerID, alarmID string, in UpdateAlarmInput) (*store.Alarm, error) {
	var fields []FieldError
	var name, description string
	if in.Name != nil {
		name = strings.TrimSpace(*in.Name)
		fields = checkLength(fields, "name", name, 1, 100, "Name must be between 1 and 100 characters")
	}
	if in.Description != nil {
		description = strings.TrimSpace(*in.Description)
		fields = checkLength(fields, "description", description, 0, 500, "Description must not exceed 500 characters")
	}
	if in.Time != nil && in.Time.IsZero() {
		fields = append(fields, FieldError{Field: "time", Message: "Time must be a valid ISO 8601 date"})
	}
	if len(fields) > 0 {
		return nil, ValidationError("Validation failed", fields...)
	}

	alarm, err := s.alarms.GetAlarm(ctx, alarmID, ownerID)
	if err != nil {
		return nil, storeError(err, "Alarm not found", "Server error updating alarm")
	}
	if in.Name != nil {
		alarm.Name = name
	}
	if in.Description != nil {
		alarm.Description = description
	}
	if in.Time != nil {
		alarm.Time = in.Time.UTC().Truncate(time.Millisecond)
	}
	if in.IsActive != nil {
		alarm.IsActive = *in.IsActive
	}
	alarm.UpdatedAt = s.clock.now()

	if err := s.alarms.SaveAlarm(ctx, alarm); err != nil {
		return nil, storeError(err, "Alarm not found", "Server error updating alarm")
	}
	return alarm, nil
}

// Complete marks an alarm done. It is independent of the automatic deactivation.
func (s *AlarmService) Complete(ctx context.Context, ownerID, alarmID string) (*store.Alarm, error) {
	alarm, err := s.alarms.GetAlarm(ctx, alarmID, ownerID)
	if err != nil {
		return nil, storeError(err, "Alarm not found", "Server error completing alarm")
	}
	now := s.clock.now()
	alarm.IsCompleted = true
	alarm.CompletedAt = &now
	alarm.UpdatedAt = now

	if err := s.alarms.SaveAlarm(ctx, alarm); err != nil {
		return nil, storeError(err, "Alarm not found", "Server error completing alarm")
	}
	return alarm, nil
}

func (s *AlarmService) Delete(ctx context.Context, ownerID, alarmID string) error {
	if err := s.alarms.DeleteAlarm(ctx, alarmID, ownerID); err != nil {
		return storeError(err, "Alarm not found", "Server error deleting alarm")
	}
	return nil
}
