// Package dailygoal содержит цель дня: создаётся лениво при первой
// активности дня, выполняется по любому из условий, архивируется
// при смене календарного дня.
package dailygoal

import (
	"time"

	"github.com/oqu-hub/oqu-progress-engine/internal/domain/progress"
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/shared"
	"github.com/oqu-hub/oqu-progress-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// DAILY GOAL
// Выполнение по схеме ИЛИ: цель закрыта, как только достигнута ЛЮБАЯ
// из двух планок - XP за день или квизы за день.
// ══════════════════════════════════════════════════════════════════════════════

// Targets - планки цели дня.
type Targets struct {
	// XP - сколько XP нужно заработать за день.
	XP progress.XP

	// Quizzes - сколько квизов нужно пройти за день.
	Quizzes int
}

// DefaultTargets возвращает стандартные планки Oqu.
func DefaultTargets() Targets {
	return Targets{XP: 50, Quizzes: 3}
}

// Validate проверяет планки: обе должны быть положительными.
func (t Targets) Validate() error {
	if t.XP <= 0 || t.Quizzes <= 0 {
		return shared.ErrInvalidTarget
	}
	return nil
}

// Goal - цель одного календарного дня одного пользователя.
type Goal struct {
	// UserID - владелец цели.
	UserID progress.UserID

	// DayKey - календарный день цели в формате YYYY-MM-DD (часовой пояс
	// платформы). Естественный ключ вместе с UserID.
	DayKey string

	// Targets - планки этого дня.
	Targets Targets

	// EarnedXP - заработано XP за день.
	EarnedXP progress.XP

	// CompletedQuizzes - пройдено квизов за день.
	CompletedQuizzes int

	// CompletedAt - момент выполнения цели. nil, пока цель не выполнена.
	CompletedAt *time.Time

	// Archived - цель закрыта сменой дня и больше не мутируется.
	Archived bool

	// CreatedAt - время ленивого создания.
	CreatedAt time.Time

	// UpdatedAt - время последнего изменения.
	UpdatedAt time.Time
}

// NewGoal создаёт цель для календарного дня момента at.
func NewGoal(userID progress.UserID, targets Targets, at time.Time) (*Goal, error) {
	if !userID.IsValid() {
		return nil, shared.ErrInvalidUserID
	}
	if err := targets.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Goal{
		UserID:    userID,
		DayKey:    timeutil.DayKey(at),
		Targets:   targets,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// IsCompleted возвращает true, если цель выполнена.
func (g *Goal) IsCompleted() bool {
	return g.CompletedAt != nil
}

// IsForDay проверяет, что цель относится к календарному дню момента at.
func (g *Goal) IsForDay(at time.Time) bool {
	return g.DayKey == timeutil.DayKey(at)
}

// Progress возвращает прогресс к цели в диапазоне [0, 1]:
// максимум из прогрессов по обеим планкам (схема ИЛИ).
func (g *Goal) Progress() float64 {
	xp := float64(g.EarnedXP) / float64(g.Targets.XP)
	quiz := float64(g.CompletedQuizzes) / float64(g.Targets.Quizzes)

	p := xp
	if quiz > p {
		p = quiz
	}
	if p > 1 {
		return 1
	}
	if p < 0 {
		return 0
	}
	return p
}

// RecordActivity учитывает XP-событие дня в цели. Возвращает true, если
// именно это событие выполнило цель (переход происходит ровно один раз).
// Учёт после выполнения продолжается - счётчики дня растут дальше.
func (g *Goal) RecordActivity(amount progress.XP, source progress.XPSource, at time.Time) (bool, error) {
	if g.Archived {
		return false, shared.ErrGoalArchived
	}
	if amount < 0 {
		return false, shared.NewDomainError("dailygoal", "Record", shared.ErrNegativeValue, "negative xp amount")
	}

	wasCompleted := g.IsCompleted()

	g.EarnedXP += amount
	if source.CountsAsQuiz() {
		g.CompletedQuizzes++
	}
	g.UpdatedAt = time.Now().UTC()

	completedNow := g.EarnedXP >= g.Targets.XP || g.CompletedQuizzes >= g.Targets.Quizzes
	if completedNow && !wasCompleted {
		done := at.UTC()
		g.CompletedAt = &done
		return true, nil
	}
	return false, nil
}

// Archive закрывает цель при смене дня. Повторный вызов - no-op.
func (g *Goal) Archive() {
	if g.Archived {
		return
	}
	g.Archived = true
	g.UpdatedAt = time.Now().UTC()
}

// CompletedBeforeNoon возвращает true, если цель выполнена до полудня
// по времени платформы.
func (g *Goal) CompletedBeforeNoon() bool {
	if g.CompletedAt == nil {
		return false
	}
	local := timeutil.ToPlatform(*g.CompletedAt)
	return local.Hour() < 12
}

// Clone создаёт глубокую копию цели.
func (g *Goal) Clone() *Goal {
	if g == nil {
		return nil
	}
	clone := *g
	if g.CompletedAt != nil {
		at := *g.CompletedAt
		clone.CompletedAt = &at
	}
	return &clone
}
