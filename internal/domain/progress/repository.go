package progress

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY CONTRACTS
// Реализации живут в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// LedgerRepository определяет контракт хранилища журналов прогресса.
type LedgerRepository interface {
	// FindByUserID находит журнал пользователя.
	// Возвращает shared.ErrLedgerNotFound, если журнала ещё нет.
	FindByUserID(ctx context.Context, userID UserID) (*Ledger, error)

	// Save сохраняет журнал целиком. Запись атомарна: при любой ошибке
	// предыдущее состояние журнала остаётся читаемым.
	Save(ctx context.Context, ledger *Ledger) error

	// FindAll возвращает все журналы (для фоновой синхронизации).
	FindAll(ctx context.Context) ([]*Ledger, error)

	// Delete удаляет журнал пользователя.
	Delete(ctx context.Context, userID UserID) error
}

// XPEventRepository определяет контракт журнала XP-событий.
// Это append-only история: события не изменяются и не удаляются,
// кроме явной очистки при сбросе журнала.
type XPEventRepository interface {
	// Append добавляет событие в историю.
	Append(ctx context.Context, event *XPEvent) error

	// FindByUserSince возвращает события пользователя начиная с момента since,
	// упорядоченные по времени.
	FindByUserSince(ctx context.Context, userID UserID, since time.Time) ([]*XPEvent, error)

	// CountBySource возвращает количество событий пользователя по источнику.
	CountBySource(ctx context.Context, userID UserID, source XPSource) (int, error)

	// DeleteByUser очищает историю пользователя (сброс журнала).
	DeleteByUser(ctx context.Context, userID UserID) error
}

// CohortMember - одна запись снимка когорты с платформы Oqu.
type CohortMember struct {
	UserID         UserID
	DisplayName    string
	TotalXP        XP
	LastActivityAt time.Time
}

// RemoteLedger - состояние журнала на стороне сервера.
type RemoteLedger struct {
	UserID    UserID
	TotalXP   XP
	UpdatedAt time.Time
}

// RemoteSource определяет шлюз к платформе Oqu: источник серверного
// состояния журнала и снимков когорты. Реализация обязана
// классифицировать сбои через ошибки пакета shared.
type RemoteSource interface {
	// FetchRemoteLedger возвращает серверное состояние журнала пользователя.
	FetchRemoteLedger(ctx context.Context, userID UserID) (*RemoteLedger, error)

	// PushXPDelta отправляет неподтверждённую локальную дельту.
	// Возвращает итоговый XP, принятый сервером.
	PushXPDelta(ctx context.Context, userID UserID, delta XP) (XP, error)

	// FetchCohort возвращает снимок когорты пользователя для лидерборда.
	FetchCohort(ctx context.Context, userID UserID) ([]CohortMember, error)
}
