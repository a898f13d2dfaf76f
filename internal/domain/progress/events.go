package progress

import (
	"time"

	"github.com/oqu-hub/oqu-progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN EVENTS
// События публикуются после коммита журнала, с данными из снимка.
// ══════════════════════════════════════════════════════════════════════════════

// XPGainedEvent - пользователь заработал XP.
type XPGainedEvent struct {
	shared.BaseEvent
	UserID     UserID   `json:"user_id"`
	Amount     XP       `json:"amount"`
	Source     XPSource `json:"source"`
	NewTotalXP XP       `json:"new_total_xp"`
	NewLevel   Level    `json:"new_level"`
}

// NewXPGainedEvent создаёт событие начисления XP.
func NewXPGainedEvent(userID UserID, amount XP, source XPSource, newTotal XP, newLevel Level) *XPGainedEvent {
	return &XPGainedEvent{
		BaseEvent:  shared.NewBaseEvent(shared.EventXPGained, userID.String()),
		UserID:     userID,
		Amount:     amount,
		Source:     source,
		NewTotalXP: newTotal,
		NewLevel:   newLevel,
	}
}

// Payload реализует shared.Event.
func (e *XPGainedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":      e.UserID.String(),
		"amount":       e.Amount.Int(),
		"source":       string(e.Source),
		"new_total_xp": e.NewTotalXP.Int(),
		"new_level":    int(e.NewLevel),
	}
}

// LevelUpEvent - пользователь достиг нового уровня. Публикуется один раз
// на событие, даже если пересечено несколько порогов.
type LevelUpEvent struct {
	shared.BaseEvent
	UserID   UserID `json:"user_id"`
	OldLevel Level  `json:"old_level"`
	NewLevel Level  `json:"new_level"`
	TotalXP  XP     `json:"total_xp"`
}

// NewLevelUpEvent создаёт событие повышения уровня.
func NewLevelUpEvent(userID UserID, oldLevel, newLevel Level, totalXP XP) *LevelUpEvent {
	return &LevelUpEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventLevelUp, userID.String()),
		UserID:    userID,
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
		TotalXP:   totalXP,
	}
}

// Payload реализует shared.Event.
func (e *LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID.String(),
		"old_level": int(e.OldLevel),
		"new_level": int(e.NewLevel),
		"total_xp":  e.TotalXP.Int(),
	}
}

// StreakUpdatedEvent - серия продлена.
type StreakUpdatedEvent struct {
	shared.BaseEvent
	UserID        UserID `json:"user_id"`
	CurrentStreak int    `json:"current_streak"`
	MaxStreak     int    `json:"max_streak"`
	NewRecord     bool   `json:"new_record"`
	BonusXP       XP     `json:"bonus_xp"`
}

// NewStreakUpdatedEvent создаёт событие продления серии.
func NewStreakUpdatedEvent(userID UserID, current, max int, newRecord bool, bonus XP) *StreakUpdatedEvent {
	return &StreakUpdatedEvent{
		BaseEvent:     shared.NewBaseEvent(shared.EventStreakUpdated, userID.String()),
		UserID:        userID,
		CurrentStreak: current,
		MaxStreak:     max,
		NewRecord:     newRecord,
		BonusXP:       bonus,
	}
}

// Payload реализует shared.Event.
func (e *StreakUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.UserID.String(),
		"current_streak": e.CurrentStreak,
		"max_streak":     e.MaxStreak,
		"new_record":     e.NewRecord,
		"bonus_xp":       e.BonusXP.Int(),
	}
}

// StreakBrokenEvent - серия потеряна: льготное окно истекло.
type StreakBrokenEvent struct {
	shared.BaseEvent
	UserID     UserID `json:"user_id"`
	LostStreak int    `json:"lost_streak"`
	MaxStreak  int    `json:"max_streak"`
}

// NewStreakBrokenEvent создаёт событие потери серии.
func NewStreakBrokenEvent(userID UserID, lostStreak, maxStreak int) *StreakBrokenEvent {
	return &StreakBrokenEvent{
		BaseEvent:  shared.NewBaseEvent(shared.EventStreakBroken, userID.String()),
		UserID:     userID,
		LostStreak: lostStreak,
		MaxStreak:  maxStreak,
	}
}

// Payload реализует shared.Event.
func (e *StreakBrokenEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":     e.UserID.String(),
		"lost_streak": e.LostStreak,
		"max_streak":  e.MaxStreak,
	}
}

// LedgerResetEvent - журнал обнулён.
type LedgerResetEvent struct {
	shared.BaseEvent
	UserID     UserID `json:"user_id"`
	OldTotalXP XP     `json:"old_total_xp"`
}

// NewLedgerResetEvent создаёт событие сброса журнала.
func NewLedgerResetEvent(userID UserID, oldTotal XP) *LedgerResetEvent {
	return &LedgerResetEvent{
		BaseEvent:  shared.NewBaseEvent(shared.EventLedgerReset, userID.String()),
		UserID:     userID,
		OldTotalXP: oldTotal,
	}
}

// Payload реализует shared.Event.
func (e *LedgerResetEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":      e.UserID.String(),
		"old_total_xp": e.OldTotalXP.Int(),
	}
}

// SyncMergedEvent - синхронизация завершилась слиянием с сервером.
type SyncMergedEvent struct {
	shared.BaseEvent
	UserID       UserID    `json:"user_id"`
	MergedTotal  XP        `json:"merged_total"`
	AppliedDelta XP        `json:"applied_delta"`
	PushedDelta  XP        `json:"pushed_delta"`
	SyncedAt     time.Time `json:"synced_at"`
}

// NewSyncMergedEvent создаёт событие успешного слияния.
func NewSyncMergedEvent(userID UserID, mergedTotal, appliedDelta, pushedDelta XP, syncedAt time.Time) *SyncMergedEvent {
	return &SyncMergedEvent{
		BaseEvent:    shared.NewBaseEvent(shared.EventSyncMerged, userID.String()),
		UserID:       userID,
		MergedTotal:  mergedTotal,
		AppliedDelta: appliedDelta,
		PushedDelta:  pushedDelta,
		SyncedAt:     syncedAt,
	}
}

// Payload реализует shared.Event.
func (e *SyncMergedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":       e.UserID.String(),
		"merged_total":  e.MergedTotal.Int(),
		"applied_delta": e.AppliedDelta.Int(),
		"pushed_delta":  e.PushedDelta.Int(),
		"synced_at":     e.SyncedAt,
	}
}
