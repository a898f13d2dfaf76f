package leaderboard

import (
	"sort"
	"time"

	"github.com/oqu-hub/oqu-progress-engine/internal/domain/progress"
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RANKER
// Чистая функция: снимок когорты на входе, ранжированный список на выходе.
// Порядок детерминированный: XP по убыванию, при равном XP - по возрастанию
// идентификатора. Ранги плотные и уникальные, 1..N.
// ══════════════════════════════════════════════════════════════════════════════

// Rank строит ранжированный снимок когорты для области scope на момент now.
// Участники без активности внутри окна области отфильтровываются.
// Вход не мутируется.
func Rank(members []progress.CohortMember, scope Scope, currentUser progress.UserID, now time.Time) (*Snapshot, error) {
	if !scope.IsValid() {
		return nil, shared.ErrInvalidScope
	}

	windowStart := scope.WindowStart(now)

	eligible := make([]progress.CohortMember, 0, len(members))
	for _, m := range members {
		if !windowStart.IsZero() && m.LastActivityAt.Before(windowStart) {
			continue
		}
		eligible = append(eligible, m)
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		if eligible[i].TotalXP != eligible[j].TotalXP {
			return eligible[i].TotalXP > eligible[j].TotalXP
		}
		return eligible[i].UserID < eligible[j].UserID
	})

	entries := make([]Entry, len(eligible))
	for i, m := range eligible {
		entries[i] = Entry{
			Rank:          i + 1,
			UserID:        m.UserID,
			DisplayName:   m.DisplayName,
			TotalXP:       m.TotalXP,
			Level:         progress.LevelForXP(m.TotalXP),
			IsCurrentUser: m.UserID == currentUser,
		}
	}

	return &Snapshot{
		Scope:       scope,
		Entries:     entries,
		GeneratedAt: now,
	}, nil
}

// UserRank возвращает ранг пользователя в когорте без построения
// полного снимка строк.
func UserRank(members []progress.CohortMember, scope Scope, userID progress.UserID, now time.Time) (int, error) {
	snapshot, err := Rank(members, scope, userID, now)
	if err != nil {
		return 0, err
	}
	entry, err := snapshot.FindUser(userID)
	if err != nil {
		return 0, err
	}
	return entry.Rank, nil
}
