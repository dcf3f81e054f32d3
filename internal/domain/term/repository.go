package term

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Эти интерфейсы определяют контракт для работы с хранилищем данных.
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции над семестрами одного владельца.
type Repository interface {
	// ListByOwner возвращает все семестры владельца.
	ListByOwner(ctx context.Context, ownerID string) ([]*Term, error)

	// GetByID возвращает семестр владельца по ID.
	// Возвращает ErrTermNotFound, если семестр не найден.
	GetByID(ctx context.Context, ownerID, id string) (*Term, error)

	// ExistsByName проверяет наличие семестра с таким именем у владельца.
	ExistsByName(ctx context.Context, ownerID, name string) (bool, error)

	// Insert создаёт семестр. Возвращает false без ошибки, если семестр
	// с таким именем уже существует. Хранилище может вместо этого вернуть
	// ErrTermAlreadyExists - вызывающий код трактует оба случая одинаково.
	Insert(ctx context.Context, t *Term) (bool, error)

	// UpdateStart устанавливает дату начала и её источник.
	UpdateStart(ctx context.Context, id string, start time.Time, source StartSource) error

	// Delete удаляет семестр.
	// Возвращает ErrTermNotFound, если семестр не найден, и ErrTermInUse,
	// если к нему уже привязаны учебные материалы.
	Delete(ctx context.Context, id string) error
}

// CourseworkChecker отвечает, есть ли у семестра хотя бы одна учебная запись.
// Только чтение.
type CourseworkChecker interface {
	HasCoursework(ctx context.Context, termID string) (bool, error)
}

// OwnerSource перечисляет всех владельцев, для которых ведутся семестры.
type OwnerSource interface {
	ListOwnerIDs(ctx context.Context) ([]string, error)
}

// TxStores - хранилища, привязанные к одной единице работы.
type TxStores struct {
	Terms      Repository
	Coursework CourseworkChecker
}

// UnitOfWork выполняет fn в одной транзакции для одного владельца.
// Ошибка или паника внутри fn откатывает транзакцию.
type UnitOfWork interface {
	WithinOwner(ctx context.Context, ownerID string, fn func(ctx context.Context, stores TxStores) error) error
}
