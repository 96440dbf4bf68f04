package storage

import (
	"context"
	"errors"
	"time"

	"auth-core/internal/models"

	"github.com/google/uuid"
)

var (
	// ErrNotFound — запись не найдена (пользователь/запись blacklist).
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists — нарушение уникальности (email/отпечаток токена).
	ErrAlreadyExists = errors.New("already exists")
)

// UserStorage выполняет операции над пользователями.
type UserStorage interface {
	// SaveUser создает нового пользователя в БД.
	SaveUser(ctx context.Context, user *models.User) error
	// UserByEmail находит пользователя по email.
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	// UserByID находит пользователя по ID.
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// BlacklistStorage выполняет операции над blacklist'ом refresh-токенов.
type BlacklistStorage interface {
	// AddToBlacklist вставляет новую запись; при дубликате отпечатка
	// возвращает ErrAlreadyExists. Уникальный индекс БД — точка истины
	// для защиты от одновременного повторного обмена одного токена.
	AddToBlacklist(ctx context.Context, entry *models.BlacklistEntry) error
	// IsBlacklisted проверяет наличие отпечатка в blacklist.
	IsBlacklisted(ctx context.Context, fingerprint string) (bool, error)
	// DeleteExpiredEntries удаляет записи с expires_at < now,
	// возвращает количество удалённых.
	DeleteExpiredEntries(ctx context.Context, now time.Time) (int64, error)
}

// Storage задает контракт работы с БД.
type Storage interface {
	UserStorage
	BlacklistStorage
	Close()
}
