// Package leaderboard содержит чистую логику ранжирования когорты.
package leaderboard

import (
	"time"

	"github.com/oqu-hub/oqu-progress-engine/internal/domain/progress"
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/shared"
	"github.com/oqu-hub/oqu-progress-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD ENTRIES AND SCOPES
// ══════════════════════════════════════════════════════════════════════════════

// Scope определяет временное окно лидерборда.
type Scope string

const (
	// ScopeWeekly - активность с начала текущей ISO-недели.
	ScopeWeekly Scope = "weekly"
	// ScopeMonthly - активность с начала текущего месяца.
	ScopeMonthly Scope = "monthly"
	// ScopeAllTime - без ограничения по времени.
	ScopeAllTime Scope = "all_time"
)

// IsValid проверяет, что область известна.
func (s Scope) IsValid() bool {
	switch s {
	case ScopeWeekly, ScopeMonthly, ScopeAllTime:
		return true
	default:
		return false
	}
}

// WindowStart возвращает начало окна области относительно now.
// Для ScopeAllTime возвращает нулевое время.
func (s Scope) WindowStart(now time.Time) time.Time {
	switch s {
	case ScopeWeekly:
		return timeutil.StartOfWeek(now)
	case ScopeMonthly:
		return timeutil.StartOfMonth(now)
	default:
		return time.Time{}
	}
}

// Entry - одна строка лидерборда.
type Entry struct {
	// Rank - позиция, начиная с 1. Ранги плотные и уникальные:
	// равный XP не делит позицию.
	Rank int

	// UserID - идентификатор пользователя.
	UserID progress.UserID

	// DisplayName - отображаемое имя.
	DisplayName string

	// TotalXP - XP пользователя в окне области.
	TotalXP progress.XP

	// Level - уровень, вычисленный из общего XP.
	Level progress.Level

	// IsCurrentUser - строка принадлежит запрашивающему пользователю.
	IsCurrentUser bool
}

// Snapshot - ранжированный снимок когорты.
type Snapshot struct {
	// Scope - область снимка.
	Scope Scope

	// Entries - строки в порядке возрастания ранга.
	Entries []Entry

	// GeneratedAt - когда снимок построен.
	GeneratedAt time.Time
}

// FindUser возвращает строку пользователя в снимке.
func (s *Snapshot) FindUser(userID progress.UserID) (Entry, error) {
	for _, e := range s.Entries {
		if e.UserID == userID {
			return e, nil
		}
	}
	return Entry{}, shared.ErrUserNotRanked
}

// Top возвращает первые n строк снимка.
func (s *Snapshot) Top(n int) []Entry {
	if n > len(s.Entries) {
		n = len(s.Entries)
	}
	out := make([]Entry, n)
	copy(out, s.Entries[:n])
	return out
}
