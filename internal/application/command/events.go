package command

import (
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/badge"
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/dailygoal"
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/progress"
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/shared"
)

// Application-level events for badges and daily goals. The progress domain
// defines its own events; these wrap the remaining transitions the command
// handlers produce.

// BadgeAwardedEvent signals a badge was earned.
type BadgeAwardedEvent struct {
	shared.BaseEvent
	UserID   progress.UserID `json:"user_id"`
	BadgeID  string          `json:"badge_id"`
	Title    string          `json:"title"`
	XPReward int             `json:"xp_reward"`
}

// Payload implements shared.Event.
func (e *BadgeAwardedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID.String(),
		"badge_id":  e.BadgeID,
		"title":     e.Title,
		"xp_reward": e.XPReward,
	}
}

func newBadgeAwardedEvent(userID progress.UserID, b badge.Badge) *BadgeAwardedEvent {
	return &BadgeAwardedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventBadgeAwarded, userID.String()),
		UserID:    userID,
		BadgeID:   b.ID,
		Title:     b.Title,
		XPReward:  b.XPReward,
	}
}

// DailyGoalEvent covers the created, completed, and archived transitions.
type DailyGoalEvent struct {
	shared.BaseEvent
	UserID   progress.UserID `json:"user_id"`
	DayKey   string          `json:"day_key"`
	Progress float64         `json:"progress"`
}

// Payload implements shared.Event.
func (e *DailyGoalEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":  e.UserID.String(),
		"day_key":  e.DayKey,
		"progress": e.Progress,
	}
}

func newGoalEvent(eventType shared.EventType, userID progress.UserID, goal *dailygoal.Goal) *DailyGoalEvent {
	return &DailyGoalEvent{
		BaseEvent: shared.NewBaseEvent(eventType, userID.String()),
		UserID:    userID,
		DayKey:    goal.DayKey,
		Progress:  goal.Progress(),
	}
}

func newGoalCreatedEvent(userID progress.UserID, goal *dailygoal.Goal) *DailyGoalEvent {
	return newGoalEvent(shared.EventDailyGoalCreated, userID, goal)
}

func newGoalCompletedEvent(userID progress.UserID, goal *dailygoal.Goal) *DailyGoalEvent {
	return newGoalEvent(shared.EventDailyGoalCompleted, userID, goal)
}

func newGoalArchivedEvent(userID progress.UserID, goal *dailygoal.Goal) *DailyGoalEvent {
	return newGoalEvent(shared.EventDailyGoalArchived, userID, goal)
}
