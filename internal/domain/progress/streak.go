package progress

import (
	"time"

	"github.com/oqu-hub/oqu-progress-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// STREAK (Серия активных дней)
// Конечный автомат: NoActivity -> ActiveToday -> (следующий день) GracePeriod
// -> (льготное окно истекло) Broken. Статус серии - функция от времени
// последней активности и "сейчас", он вычисляется заново при каждом чтении
// и никогда не кэшируется.
// ══════════════════════════════════════════════════════════════════════════════

// StreakState определяет состояние серии.
type StreakState string

const (
	// StreakNoActivity - активности ещё не было.
	StreakNoActivity StreakState = "no_activity"
	// StreakActiveToday - сегодня уже была активность.
	StreakActiveToday StreakState = "active_today"
	// StreakGracePeriod - сегодня активности не было, льготное окно ещё открыто.
	StreakGracePeriod StreakState = "grace_period"
	// StreakBroken - льготное окно истекло, серия потеряна.
	StreakBroken StreakState = "broken"
)

// GracePolicy задаёт льготное окно серии.
type GracePolicy struct {
	// ExtraDays - на сколько календарных дней после дня активности
	// продлевается окно. По умолчанию 1: серия живёт до конца
	// следующего календарного дня включительно.
	ExtraDays int
}

// DefaultGracePolicy возвращает политику по умолчанию.
func DefaultGracePolicy() GracePolicy {
	return GracePolicy{ExtraDays: 1}
}

// Deadline возвращает момент, после которого серия считается потерянной.
// Граница включительная: активность ровно в последнюю секунду окна
// ещё продлевает серию.
func (p GracePolicy) Deadline(lastActivity time.Time) time.Time {
	days := p.ExtraDays
	if days < 1 {
		days = 1
	}
	return timeutil.EndOfDay(lastActivity.AddDate(0, 0, days))
}

// StreakStatus - производное состояние серии. Не хранится, вычисляется.
type StreakStatus struct {
	// CurrentStreak - текущая серия дней.
	CurrentStreak int

	// MaxStreak - лучшая серия дней.
	MaxStreak int

	// State - текущее состояние автомата.
	State StreakState

	// StreakBroken - true, если окно истекло и серия потеряна.
	StreakBroken bool

	// HoursUntilLost - сколько часов осталось до потери серии.
	// 0, если серия уже потеряна или активности не было.
	HoursUntilLost float64

	// IsActiveToday - была ли активность сегодня.
	IsActiveToday bool
}

// StreakTransition - результат применения активности или проверки к серии.
type StreakTransition struct {
	// Extended - серия продлена этой операцией.
	Extended bool

	// Broken - серия была потеряна (окно истекло до этой операции).
	Broken bool

	// NewRecord - продление установило новый рекорд MaxStreak.
	NewRecord bool

	// CurrentStreak - серия после операции.
	CurrentStreak int

	// PreviousStreak - серия, которая была потеряна (если Broken).
	PreviousStreak int
}

// StreakStatusAt вычисляет статус серии журнала на момент now.
func (l *Ledger) StreakStatusAt(now time.Time, policy GracePolicy) StreakStatus {
	status := StreakStatus{
		CurrentStreak: l.CurrentStreak,
		MaxStreak:     l.MaxStreak,
		State:         StreakNoActivity,
	}

	if l.LastActivityAt == nil {
		return status
	}

	last := *l.LastActivityAt

	if timeutil.IsSameDay(last, now) {
		status.State = StreakActiveToday
		status.IsActiveToday = true
		status.HoursUntilLost = hoursUntil(now, policy.Deadline(last))
		return status
	}

	deadline := policy.Deadline(last)
	if !now.After(deadline) {
		status.State = StreakGracePeriod
		status.HoursUntilLost = hoursUntil(now, deadline)
		return status
	}

	status.State = StreakBroken
	status.StreakBroken = true
	status.CurrentStreak = 0
	return status
}

// RecordStreakActivity применяет активность к серии журнала.
// Тот же календарный день - no-op. Внутри льготного окна (включая границу) -
// серия продлевается. После истечения окна серия сообщается как потерянная
// (MaxStreak не трогаем) и начинается заново с 1.
func (l *Ledger) RecordStreakActivity(now time.Time, policy GracePolicy) StreakTransition {
	// Первая активность в истории журнала.
	if l.LastActivityAt == nil {
		l.CurrentStreak = 1
		if l.MaxStreak < 1 {
			l.MaxStreak = 1
		}
		return StreakTransition{Extended: true, NewRecord: l.MaxStreak == 1, CurrentStreak: 1}
	}

	last := *l.LastActivityAt

	if timeutil.IsSameDay(last, now) {
		return StreakTransition{CurrentStreak: l.CurrentStreak}
	}

	if !now.After(policy.Deadline(last)) {
		l.CurrentStreak++
		record := false
		if l.CurrentStreak > l.MaxStreak {
			l.MaxStreak = l.CurrentStreak
			record = true
		}
		return StreakTransition{Extended: true, NewRecord: record, CurrentStreak: l.CurrentStreak}
	}

	previous := l.CurrentStreak
	l.CurrentStreak = 1
	if l.MaxStreak < 1 {
		l.MaxStreak = 1
	}
	return StreakTransition{
		Extended:       true,
		Broken:         true,
		CurrentStreak:  1,
		PreviousStreak: previous,
	}
}

// RefreshStreak - периодическая проверка без активности: если льготное окно
// истекло, серия обнуляется и сообщается как потерянная. MaxStreak
// сохраняется.
func (l *Ledger) RefreshStreak(now time.Time, policy GracePolicy) StreakTransition {
	if l.LastActivityAt == nil || l.CurrentStreak == 0 {
		return StreakTransition{CurrentStreak: l.CurrentStreak}
	}

	last := *l.LastActivityAt
	if timeutil.IsSameDay(last, now) || !now.After(policy.Deadline(last)) {
		return StreakTransition{CurrentStreak: l.CurrentStreak}
	}

	previous := l.CurrentStreak
	l.CurrentStreak = 0
	l.UpdatedAt = time.Now().UTC()
	return StreakTransition{Broken: true, PreviousStreak: previous}
}

// BonusXPForStreak возвращает бонусный XP за продление серии.
// Растёт с длиной серии, но ограничен сверху, чтобы серия не обгоняла
// основной источник XP.
func BonusXPForStreak(streak int) XP {
	if streak < 2 {
		return 0
	}
	bonus := XP(5 * streak)
	if bonus > 50 {
		bonus = 50
	}
	return bonus
}

func hoursUntil(now, deadline time.Time) float64 {
	h := deadline.Sub(now).Hours()
	if h < 0 {
		return 0
	}
	return h
}
