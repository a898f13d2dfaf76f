package badge

import (
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/progress"
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// BADGE EVALUATOR
// Условия получения - чистые функции над снимком журнала и статистикой
// пользователя. Оценка идемпотентна: уже полученные значки пропускаются,
// повторный вызов на том же состоянии возвращает пустой список.
// ══════════════════════════════════════════════════════════════════════════════

// Идентификаторы условий каталога.
const (
	PredicateQuizCount1     = "quiz_count_1"
	PredicateQuizCount50    = "quiz_count_50"
	PredicatePerfectQuiz10  = "perfect_quiz_10"
	PredicateBookCount1     = "book_count_1"
	PredicateBookCount10    = "book_count_10"
	PredicateStreak7        = "streak_7"
	PredicateStreak30       = "streak_30"
	PredicateLevel5         = "level_5"
	PredicateLevel10        = "level_10"
	PredicateGoalBeforeNoon = "goal_before_noon"
)

// UserStats - агрегированная статистика активности пользователя,
// вычисляемая из истории XP-событий.
type UserStats struct {
	QuizzesCompleted     int
	PerfectQuizzes       int
	ChaptersCompleted    int
	BooksCompleted       int
	GoalsBeforeNoonCount int
}

// Predicate - условие получения значка: проверка и прогресс к ней.
type Predicate struct {
	// Check возвращает true, если условие выполнено.
	Check func(ledger *progress.Ledger, stats UserStats) bool

	// Progress возвращает прогресс к условию в диапазоне [0, 1].
	Progress func(ledger *progress.Ledger, stats UserStats) float64
}

// ratio строит условие "счётчик достиг target".
func ratio(target int, counter func(*progress.Ledger, UserStats) int) Predicate {
	return Predicate{
		Check: func(l *progress.Ledger, s UserStats) bool {
			return counter(l, s) >= target
		},
		Progress: func(l *progress.Ledger, s UserStats) float64 {
			p := float64(counter(l, s)) / float64(target)
			if p > 1 {
				return 1
			}
			if p < 0 {
				return 0
			}
			return p
		},
	}
}

func defaultPredicates() map[string]Predicate {
	return map[string]Predicate{
		PredicateQuizCount1: ratio(1, func(_ *progress.Ledger, s UserStats) int {
			return s.QuizzesCompleted
		}),
		PredicateQuizCount50: ratio(50, func(_ *progress.Ledger, s UserStats) int {
			return s.QuizzesCompleted
		}),
		PredicatePerfectQuiz10: ratio(10, func(_ *progress.Ledger, s UserStats) int {
			return s.PerfectQuizzes
		}),
		PredicateBookCount1: ratio(1, func(_ *progress.Ledger, s UserStats) int {
			return s.BooksCompleted
		}),
		PredicateBookCount10: ratio(10, func(_ *progress.Ledger, s UserStats) int {
			return s.BooksCompleted
		}),
		PredicateStreak7: ratio(7, func(l *progress.Ledger, _ UserStats) int {
			if l.MaxStreak > l.CurrentStreak {
				return l.MaxStreak
			}
			return l.CurrentStreak
		}),
		PredicateStreak30: ratio(30, func(l *progress.Ledger, _ UserStats) int {
			if l.MaxStreak > l.CurrentStreak {
				return l.MaxStreak
			}
			return l.CurrentStreak
		}),
		PredicateLevel5: ratio(5, func(l *progress.Ledger, _ UserStats) int {
			return int(l.Level())
		}),
		PredicateLevel10: ratio(10, func(l *progress.Ledger, _ UserStats) int {
			return int(l.Level())
		}),
		PredicateGoalBeforeNoon: ratio(1, func(_ *progress.Ledger, s UserStats) int {
			return s.GoalsBeforeNoonCount
		}),
	}
}

// Evaluator оценивает каталог значков против состояния пользователя.
type Evaluator struct {
	catalog    *Catalog
	predicates map[string]Predicate
}

// NewEvaluator создаёт оценщик со стандартным реестром условий.
// Каждый значок каталога обязан ссылаться на известное условие.
func NewEvaluator(catalog *Catalog) (*Evaluator, error) {
	predicates := defaultPredicates()
	for _, b := range catalog.All() {
		if _, ok := predicates[b.PredicateID]; !ok {
			return nil, shared.WrapError("badge", "NewEvaluator", shared.ErrInvalidInput,
				"badge "+b.ID+" references unknown predicate "+b.PredicateID, shared.ErrUnknownPredicate)
		}
	}
	return &Evaluator{catalog: catalog, predicates: predicates}, nil
}

// Catalog возвращает каталог оценщика.
func (e *Evaluator) Catalog() *Catalog {
	return e.catalog
}

// NewlyEligible возвращает значки, условия которых выполнены, но которых
// ещё нет в журнале. Журнал не мутируется: начисление делает вызывающий,
// чтобы награда прошла через обычный конвейер XP.
func (e *Evaluator) NewlyEligible(ledger *progress.Ledger, stats UserStats) []Badge {
	var earned []Badge
	for _, b := range e.catalog.All() {
		if ledger.HasBadge(b.ID) {
			continue
		}
		if e.predicates[b.PredicateID].Check(ledger, stats) {
			earned = append(earned, b)
		}
	}
	return earned
}

// Describe возвращает каталог вместе с состоянием пользователя:
// получен ли каждый значок и прогресс к условию.
func (e *Evaluator) Describe(ledger *progress.Ledger, stats UserStats) []BadgeInfo {
	infos := make([]BadgeInfo, 0, e.catalog.Len())
	for _, b := range e.catalog.All() {
		info := BadgeInfo{Badge: b}
		if ledger.HasBadge(b.ID) {
			info.IsEarned = true
			info.Progress = 1
		} else {
			info.Progress = e.predicates[b.PredicateID].Progress(ledger, stats)
		}
		infos = append(infos, info)
	}
	return infos
}
