// Package badge содержит каталог значков и оценку условий их получения.
package badge

import (
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// BADGE CATALOG
// Каталог статичен на время жизни процесса; сами значки неизменяемы.
// Факт получения живёт в журнале прогресса, а не здесь.
// ══════════════════════════════════════════════════════════════════════════════

// Category определяет категорию значка.
type Category string

const (
	// CategoryReading - значки за чтение книг и глав.
	CategoryReading Category = "reading"
	// CategoryQuiz - значки за квизы.
	CategoryQuiz Category = "quiz"
	// CategoryStreak - значки за серии дней.
	CategoryStreak Category = "streak"
	// CategoryLevel - значки за достигнутые уровни.
	CategoryLevel Category = "level"
	// CategorySpecial - особые значки.
	CategorySpecial Category = "special"
)

// IsValid проверяет, что категория известна.
func (c Category) IsValid() bool {
	switch c {
	case CategoryReading, CategoryQuiz, CategoryStreak, CategoryLevel, CategorySpecial:
		return true
	default:
		return false
	}
}

// Rarity определяет редкость значка.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// Badge - описание одного значка в каталоге.
type Badge struct {
	// ID - уникальный идентификатор значка ("first_quiz").
	ID string

	// Title - отображаемое название.
	Title string

	// Description - что нужно сделать, чтобы получить значок.
	Description string

	// Category - категория значка.
	Category Category

	// Rarity - редкость.
	Rarity Rarity

	// XPReward - XP, начисляемый при получении. Проходит через обычный
	// конвейер начисления с источником badge_earned.
	XPReward int

	// PredicateID - идентификатор условия получения в реестре оценщика.
	PredicateID string
}

// Validate проверяет корректность описания значка.
func (b Badge) Validate() error {
	if b.ID == "" {
		return shared.NewDomainError("badge", "Validate", shared.ErrEmptyValue, "badge id is empty")
	}
	if !b.Category.IsValid() {
		return shared.NewDomainError("badge", "Validate", shared.ErrInvalidInput, "unknown badge category")
	}
	if b.XPReward < 0 {
		return shared.NewDomainError("badge", "Validate", shared.ErrNegativeValue, "badge xp reward is negative")
	}
	if b.PredicateID == "" {
		return shared.NewDomainError("badge", "Validate", shared.ErrEmptyValue, "badge predicate id is empty")
	}
	return nil
}

// BadgeInfo - значок вместе с состоянием пользователя: получен ли
// и насколько близко пользователь к условию.
type BadgeInfo struct {
	Badge Badge

	// IsEarned - получен ли значок.
	IsEarned bool

	// Progress - прогресс к условию в диапазоне [0, 1].
	// Для полученного значка всегда 1.
	Progress float64
}

// Catalog - неизменяемый каталог значков с сохранением порядка объявления.
type Catalog struct {
	badges []Badge
	byID   map[string]int
}

// NewCatalog создаёт каталог. Дубликаты идентификаторов - ошибка.
func NewCatalog(badges []Badge) (*Catalog, error) {
	if len(badges) == 0 {
		return nil, shared.ErrEmptyCatalog
	}

	byID := make(map[string]int, len(badges))
	for i, b := range badges {
		if err := b.Validate(); err != nil {
			return nil, err
		}
		if _, dup := byID[b.ID]; dup {
			return nil, shared.NewDomainError("badge", "NewCatalog", shared.ErrAlreadyExists, "duplicate badge id: "+b.ID)
		}
		byID[b.ID] = i
	}

	return &Catalog{badges: badges, byID: byID}, nil
}

// Find возвращает значок по идентификатору.
func (c *Catalog) Find(id string) (Badge, error) {
	i, ok := c.byID[id]
	if !ok {
		return Badge{}, shared.ErrBadgeNotFound
	}
	return c.badges[i], nil
}

// All возвращает все значки в порядке объявления.
func (c *Catalog) All() []Badge {
	out := make([]Badge, len(c.badges))
	copy(out, c.badges)
	return out
}

// Len возвращает размер каталога.
func (c *Catalog) Len() int {
	return len(c.badges)
}

// DefaultCatalog возвращает стандартный каталог значков Oqu.
func DefaultCatalog() *Catalog {
	catalog, err := NewCatalog([]Badge{
		{
			ID: "first_quiz", Title: "Алғашқы квиз",
			Description: "Пройди свой первый квиз",
			Category:    CategoryQuiz, Rarity: RarityCommon,
			XPReward: 20, PredicateID: PredicateQuizCount1,
		},
		{
			ID: "quiz_master", Title: "Квиз шебері",
			Description: "Пройди 50 квизов",
			Category:    CategoryQuiz, Rarity: RarityEpic,
			XPReward: 200, PredicateID: PredicateQuizCount50,
		},
		{
			ID: "perfectionist", Title: "Мінсіз",
			Description: "Пройди 10 квизов без единой ошибки",
			Category:    CategoryQuiz, Rarity: RarityRare,
			XPReward: 100, PredicateID: PredicatePerfectQuiz10,
		},
		{
			ID: "first_book", Title: "Алғашқы кітап",
			Description: "Дочитай первую книгу до конца",
			Category:    CategoryReading, Rarity: RarityCommon,
			XPReward: 50, PredicateID: PredicateBookCount1,
		},
		{
			ID: "bookworm", Title: "Кітапқұмар",
			Description: "Дочитай 10 книг",
			Category:    CategoryReading, Rarity: RarityEpic,
			XPReward: 300, PredicateID: PredicateBookCount10,
		},
		{
			ID: "week_streak", Title: "Апта сериясы",
			Description: "Занимайся 7 дней подряд",
			Category:    CategoryStreak, Rarity: RarityRare,
			XPReward: 70, PredicateID: PredicateStreak7,
		},
		{
			ID: "month_streak", Title: "Ай сериясы",
			Description: "Занимайся 30 дней подряд",
			Category:    CategoryStreak, Rarity: RarityLegendary,
			XPReward: 500, PredicateID: PredicateStreak30,
		},
		{
			ID: "level_5", Title: "Бесінші деңгей",
			Description: "Достигни пятого уровня",
			Category:    CategoryLevel, Rarity: RarityRare,
			XPReward: 100, PredicateID: PredicateLevel5,
		},
		{
			ID: "level_10", Title: "Оныншы деңгей",
			Description: "Достигни десятого уровня",
			Category:    CategoryLevel, Rarity: RarityEpic,
			XPReward: 250, PredicateID: PredicateLevel10,
		},
		{
			ID: "early_bird", Title: "Ерте тұрған",
			Description: "Выполни цель дня до полудня",
			Category:    CategorySpecial, Rarity: RarityRare,
			XPReward: 40, PredicateID: PredicateGoalBeforeNoon,
		},
	})
	if err != nil {
		panic("badge: default catalog is invalid: " + err.Error())
	}
	return catalog
}
