package progress

import (
	"time"

	"github.com/google/uuid"

	"github.com/oqu-hub/oqu-progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// XP EVENTS
// Поток дискретных учебных событий - единственный источник роста XP.
// Событие неизменяемо после создания.
// ══════════════════════════════════════════════════════════════════════════════

// XPSource определяет источник XP-события.
type XPSource string

const (
	// SourceQuizCompleted - пройден квиз.
	SourceQuizCompleted XPSource = "quiz_completed"
	// SourceQuizPerfect - квиз пройден без ошибок.
	SourceQuizPerfect XPSource = "quiz_perfect"
	// SourceChapterCompleted - прочитана глава.
	SourceChapterCompleted XPSource = "chapter_completed"
	// SourceBookCompleted - прочитана книга целиком.
	SourceBookCompleted XPSource = "book_completed"
	// SourceDailyLogin - ежедневный вход.
	SourceDailyLogin XPSource = "daily_login"
	// SourceStreakBonus - бонус за серию дней.
	SourceStreakBonus XPSource = "streak_bonus"
	// SourceBadgeEarned - награда за полученный значок.
	SourceBadgeEarned XPSource = "badge_earned"
	// SourceDailyGoal - выполнена цель дня.
	SourceDailyGoal XPSource = "daily_goal"
	// SourceAIChallenge - выполнено AI-задание.
	SourceAIChallenge XPSource = "ai_challenge"
)

// IsValid проверяет, что источник известен.
func (s XPSource) IsValid() bool {
	switch s {
	case SourceQuizCompleted, SourceQuizPerfect, SourceChapterCompleted,
		SourceBookCompleted, SourceDailyLogin, SourceStreakBonus,
		SourceBadgeEarned, SourceDailyGoal, SourceAIChallenge:
		return true
	default:
		return false
	}
}

// CountsAsQuiz возвращает true для событий, увеличивающих счётчик квизов
// в цели дня.
func (s XPSource) CountsAsQuiz() bool {
	return s == SourceQuizCompleted || s == SourceQuizPerfect
}

// XPEvent - одно учебное событие, приносящее XP.
type XPEvent struct {
	// ID - уникальный идентификатор события.
	ID string

	// UserID - кому начисляется XP.
	UserID UserID

	// Amount - количество XP. Строго положительное.
	Amount XP

	// Source - источник события.
	Source XPSource

	// Description - человекочитаемое описание ("Глава 3: Абай жолы").
	Description string

	// OccurredAt - когда событие произошло.
	OccurredAt time.Time
}

// NewXPEvent создаёт событие с валидацией. Нулевой occurredAt заменяется
// на текущее время.
func NewXPEvent(userID UserID, amount XP, source XPSource, description string, occurredAt time.Time) (*XPEvent, error) {
	if !userID.IsValid() {
		return nil, shared.ErrInvalidUserID
	}
	if amount <= 0 {
		return nil, shared.ErrNonPositiveXP
	}
	if !source.IsValid() {
		return nil, shared.ErrUnknownXPSource
	}
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	return &XPEvent{
		ID:          uuid.NewString(),
		UserID:      userID,
		Amount:      amount,
		Source:      source,
		Description: description,
		OccurredAt:  occurredAt.UTC(),
	}, nil
}

// Validate проверяет событие. Повторное начисление нулевого или
// отрицательного XP - ошибка валидации, а не no-op.
func (e *XPEvent) Validate() error {
	if e == nil {
		return shared.NewDomainError("progress", "Validate", shared.ErrEmptyValue, "xp event is nil")
	}
	if !e.UserID.IsValid() {
		return shared.ErrInvalidUserID
	}
	if e.Amount <= 0 {
		return shared.ErrNonPositiveXP
	}
	if !e.Source.IsValid() {
		return shared.ErrUnknownXPSource
	}
	return nil
}
