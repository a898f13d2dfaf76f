package dailygoal

import (
	"context"

	"github.com/oqu-hub/oqu-progress-engine/internal/domain/progress"
)

// Repository определяет контракт хранилища целей дня.
// Реализации живут в infrastructure/persistence.
type Repository interface {
	// FindByDay находит цель пользователя для календарного дня dayKey.
	// Возвращает shared.ErrGoalNotFound, если цели нет.
	FindByDay(ctx context.Context, userID progress.UserID, dayKey string) (*Goal, error)

	// Save сохраняет цель целиком.
	Save(ctx context.Context, goal *Goal) error

	// FindActiveByUser возвращает незаархивированную цель пользователя,
	// если такая есть.
	FindActiveByUser(ctx context.Context, userID progress.UserID) (*Goal, error)

	// ArchiveBefore архивирует все незаархивированные цели со днём раньше
	// dayKey. Возвращает количество заархивированных целей.
	ArchiveBefore(ctx context.Context, dayKey string) (int, error)

	// CountCompletedBeforeNoon возвращает, сколько целей пользователь
	// выполнил до полудня (для значка early_bird).
	CountCompletedBeforeNoon(ctx context.Context, userID progress.UserID) (int, error)

	// DeleteByUser удаляет все цели пользователя (сброс журнала).
	DeleteByUser(ctx context.Context, userID progress.UserID) error
}
