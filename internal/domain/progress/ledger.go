// Package progress содержит доменную модель журнала прогресса пользователя Oqu.
// Это ядро бизнес-логики - здесь нет внешних зависимостей.
package progress

import (
	"fmt"
	"time"

	"github.com/oqu-hub/oqu-progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// UserID представляет уникальный идентификатор пользователя.
type UserID string

// IsValid проверяет, что идентификатор не пустой.
func (u UserID) IsValid() bool {
	return len(u) > 0
}

// String возвращает строковое представление идентификатора.
func (u UserID) String() string {
	return string(u)
}

// XP представляет очки опыта пользователя.
type XP int

// IsValid проверяет, что XP неотрицательный.
func (x XP) IsValid() bool {
	return x >= 0
}

// Add складывает XP.
func (x XP) Add(delta XP) XP {
	return x + delta
}

// Diff вычисляет разницу между двумя значениями XP.
func (x XP) Diff(other XP) XP {
	return x - other
}

// Int возвращает значение как int.
func (x XP) Int() int {
	return int(x)
}

// Level представляет уровень пользователя, вычисляемый из XP.
// Уровень всегда не меньше 1.
type Level int

// ══════════════════════════════════════════════════════════════════════════════
// LEVELING MATH
// Треугольная прогрессия: каждый следующий уровень стоит дороже.
// ══════════════════════════════════════════════════════════════════════════════

// XPThreshold возвращает количество XP, необходимое для достижения уровня L.
// Формула: 100 * L * (L+1) / 2. Для L <= 0 возвращает 0.
func XPThreshold(l Level) XP {
	if l <= 0 {
		return 0
	}
	n := int(l)
	return XP(100 * n * (n + 1) / 2)
}

// LevelForXP вычисляет уровень: наибольший L, такой что XPThreshold(L) <= xp.
// Минимальный уровень - 1 (даже при xp = 0).
func LevelForXP(xp XP) Level {
	if xp < XPThreshold(1) {
		return 1
	}

	// XPThreshold растёт квадратично, линейный проход дешёвый.
	l := Level(1)
	for XPThreshold(l+1) <= xp {
		l++
	}
	return l
}

// LevelProgress возвращает прогресс внутри текущего уровня в диапазоне [0, 1].
func LevelProgress(xp XP) float64 {
	level := LevelForXP(xp)
	lo := XPThreshold(level)
	hi := XPThreshold(level + 1)

	if hi <= lo {
		return 0
	}

	p := float64(xp-lo) / float64(hi-lo)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// XPToNextLevel возвращает, сколько XP не хватает до следующего уровня.
func XPToNextLevel(xp XP) XP {
	next := XPThreshold(LevelForXP(xp) + 1)
	if next <= xp {
		return 0
	}
	return next - xp
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: LEDGER
// ══════════════════════════════════════════════════════════════════════════════

// Ledger - журнал прогресса одного пользователя: XP, уровень, серия, значки.
// Мутируется только через методы этого типа; уровень никогда не хранится
// отдельно от инварианта Level == LevelForXP(TotalXP).
type Ledger struct {
	// UserID - идентификатор владельца журнала.
	UserID UserID

	// DisplayName - отображаемое имя (для лидерборда).
	DisplayName string

	// TotalXP - накопленный XP. Не убывает, кроме явного Reset.
	TotalXP XP

	// CurrentStreak - текущая серия дней активности.
	CurrentStreak int

	// MaxStreak - лучшая серия. Всегда MaxStreak >= CurrentStreak.
	MaxStreak int

	// LastActivityAt - время последней активности.
	// nil только до первого записанного события.
	LastActivityAt *time.Time

	// Badges - идентификаторы полученных значков в порядке получения.
	Badges []string

	// SyncedXP - база XP, подтверждённая сервером при последней синхронизации.
	// Разница TotalXP - SyncedXP = неподтверждённая локальная дельта.
	SyncedXP XP

	// LastSyncedAt - время последней успешной синхронизации.
	LastSyncedAt time.Time

	// CreatedAt - время создания журнала.
	CreatedAt time.Time

	// UpdatedAt - время последнего изменения.
	UpdatedAt time.Time
}

// NewLedger создаёт журнал при первой активности пользователя:
// все счётчики обнулены, значков нет.
func NewLedger(userID UserID, displayName string) (*Ledger, error) {
	if !userID.IsValid() {
		return nil, shared.ErrInvalidUserID
	}

	now := time.Now().UTC()

	return &Ledger{
		UserID:      userID,
		DisplayName: displayName,
		TotalXP:     0,
		Badges:      make([]string, 0),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Level возвращает текущий уровень пользователя.
func (l *Ledger) Level() Level {
	return LevelForXP(l.TotalXP)
}

// UnsyncedDelta возвращает локальный XP, ещё не подтверждённый сервером.
func (l *Ledger) UnsyncedDelta() XP {
	if l.TotalXP <= l.SyncedXP {
		return 0
	}
	return l.TotalXP - l.SyncedXP
}

// XPOutcome - результат применения XP-события к журналу.
type XPOutcome struct {
	// XPEarned - начислено XP этим событием.
	XPEarned XP

	// NewTotalXP - итоговый XP после применения.
	NewTotalXP XP

	// NewLevel - итоговый уровень после применения.
	NewLevel Level

	// LeveledUp - true, если событие пересекло хотя бы один порог уровня.
	// Даже при пересечении нескольких уровней сообщается один раз,
	// NewLevel отражает конечный уровень.
	LeveledUp bool

	// StreakBonus - бонусный XP за серию, начисленный отдельным событием.
	StreakBonus XP
}

// ApplyEvent применяет XP-событие к журналу: XP добавлен, уровень пересчитан.
// Операция атомарна относительно журнала - вызывающий обязан обеспечить
// эксклюзивность записи для данного пользователя.
func (l *Ledger) ApplyEvent(event *XPEvent) (XPOutcome, error) {
	if err := event.Validate(); err != nil {
		return XPOutcome{}, err
	}

	oldLevel := l.Level()

	l.TotalXP = l.TotalXP.Add(event.Amount)
	occurred := event.OccurredAt
	l.LastActivityAt = &occurred
	l.UpdatedAt = time.Now().UTC()

	newLevel := l.Level()

	return XPOutcome{
		XPEarned:   event.Amount,
		NewTotalXP: l.TotalXP,
		NewLevel:   newLevel,
		LeveledUp:  newLevel > oldLevel,
	}, nil
}

// AwardBadge добавляет значок в журнал. Повторное добавление - no-op,
// порядок получения сохраняется.
func (l *Ledger) AwardBadge(badgeID string) bool {
	for _, id := range l.Badges {
		if id == badgeID {
			return false
		}
	}
	l.Badges = append(l.Badges, badgeID)
	l.UpdatedAt = time.Now().UTC()
	return true
}

// HasBadge проверяет наличие значка.
func (l *Ledger) HasBadge(badgeID string) bool {
	for _, id := range l.Badges {
		if id == badgeID {
			return true
		}
	}
	return false
}

// MergeRemoteTotal применяет серверный итог по принципу оптимистичного
// слияния: берём максимум из локального и серверного итога, никогда
// не суммируем вслепую. Возвращает применённую дельту (0, если локальный
// итог уже не меньше серверного).
func (l *Ledger) MergeRemoteTotal(serverTotal XP) XP {
	if serverTotal <= l.TotalXP {
		return 0
	}
	delta := serverTotal - l.TotalXP
	l.TotalXP = serverTotal
	l.UpdatedAt = time.Now().UTC()
	return delta
}

// AcknowledgeSync фиксирует подтверждённую сервером базу XP.
func (l *Ledger) AcknowledgeSync(acceptedTotal XP, at time.Time) {
	if acceptedTotal > l.TotalXP {
		// Сервер знает больше, чем мы отправляли - принимаем его итог.
		l.TotalXP = acceptedTotal
	}
	l.SyncedXP = acceptedTotal
	l.LastSyncedAt = at
	l.UpdatedAt = time.Now().UTC()
}

// Reset обнуляет журнал. Единственная операция, способная уменьшить TotalXP.
// Журнал не удаляется: MaxStreak и значки тоже сбрасываются.
func (l *Ledger) Reset() {
	l.TotalXP = 0
	l.CurrentStreak = 0
	l.MaxStreak = 0
	l.LastActivityAt = nil
	l.Badges = make([]string, 0)
	l.SyncedXP = 0
	l.UpdatedAt = time.Now().UTC()
}

// Invariants проверяет инварианты журнала. Возвращает ошибку при нарушении.
func (l *Ledger) Invariants() error {
	if !l.UserID.IsValid() {
		return shared.ErrInvalidUserID
	}
	if l.TotalXP < 0 {
		return shared.NewDomainError("progress", "Invariants", shared.ErrNegativeValue, "total xp is negative")
	}
	if l.MaxStreak < l.CurrentStreak {
		return shared.NewDomainError("progress", "Invariants", shared.ErrInvalidState, "max streak below current streak")
	}
	seen := make(map[string]struct{}, len(l.Badges))
	for _, id := range l.Badges {
		if _, dup := seen[id]; dup {
			return shared.NewDomainError("progress", "Invariants", shared.ErrInvalidState, "duplicate badge id")
		}
		seen[id] = struct{}{}
	}
	return nil
}

// Clone создаёт глубокую копию журнала. Читатели (оценка значков, цели дня,
// фиды) работают со снимком после коммита, а не с живым объектом.
func (l *Ledger) Clone() *Ledger {
	if l == nil {
		return nil
	}

	clone := *l
	clone.Badges = make([]string, len(l.Badges))
	copy(clone.Badges, l.Badges)
	if l.LastActivityAt != nil {
		at := *l.LastActivityAt
		clone.LastActivityAt = &at
	}
	return &clone
}

// String возвращает строковое представление журнала для логирования.
func (l *Ledger) String() string {
	return fmt.Sprintf(
		"Ledger{User: %s, XP: %d, Level: %d, Streak: %d/%d, Badges: %d}",
		l.UserID, l.TotalXP, l.Level(), l.CurrentStreak, l.MaxStreak, len(l.Badges),
	)
}
