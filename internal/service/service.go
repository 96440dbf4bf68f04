// service содержит бизнес-логику ядра аутентификации:
// проверку паролей, выпуск/валидацию JWT и одноразовую ротацию
// refresh-токенов через blacklist отпечатков.
//
// Основные аспекты:
//   - Экземпляр Service безопасен для конкурентного использования из разных
//     горутин при условии, что переданное хранилище (storage.Storage)
//     потокобезопасно; конфигурация после старта только читается.
//   - Межпроцессная координация ротации не использует блокировок: ровно один
//     обмен на отпечаток гарантирует уникальный индекс в БД.
//   - Ошибки возвращаются и далее маппятся транспортом на HTTP-статусы
//     (см. комментарии к переменным ошибок ниже).
package service

import (
	"errors"

	"auth-core/internal/cache"
	"auth-core/internal/config"
	"auth-core/internal/storage"
)

var (
	// ErrInvalidCredentials — пара логин/пароль неверна или пользователь не найден.
	// Наружу оба случая неразличимы (анти-перечисление аккаунтов). HTTP 401.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken — токен некорректен по формату/подписи/назначению
	// или содержит невалидный subject. HTTP 401.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired — срок действия токена истёк. HTTP 401.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenReused — refresh-токен уже был обменян или отозван:
	// его отпечаток найден в blacklist либо вставка отпечатка упёрлась
	// в уникальный индекс (проигрыш гонки за один токен). HTTP 401.
	ErrTokenReused = errors.New("token reused")

	// ErrInactiveAccount — аккаунт существует, но не активен. HTTP 401.
	ErrInactiveAccount = errors.New("account is not active")

	// ErrUserNotFound — subject токена не разрешается в пользователя
	// (например, пользователь удалён). HTTP 401.
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailTaken — e-mail уже занят другим пользователем. HTTP 409.
	ErrEmailTaken = errors.New("email already taken")

	// ErrInvalidEmail — e-mail имеет некорректный формат. HTTP 400.
	ErrInvalidEmail = errors.New("invalid email format")

	// ErrWeakPassword — пароль не удовлетворяет политикам сложности. HTTP 400.
	ErrWeakPassword = errors.New("password is too weak")

	// ErrEmptyPassword — пароль пустой. HTTP 400.
	ErrEmptyPassword = errors.New("password is empty")
)

// Service описывает бизнес-логику ядра аутентификации.
type Service struct {
	storage storage.Storage
	cfg     config.AuthConfig
	bcache  cache.BlacklistCache // может быть nil, если кэш не сконфигурирован
}

// New создаёт новый экземпляр Service.
func New(storage storage.Storage, cfg config.AuthConfig) *Service {
	return &Service{
		storage: storage,
		cfg:     cfg,
	}
}

// SetBlacklistCache устанавливает кэш отпечатков blacklist'а (опционально).
// Кэш — только ускорение отказа при повторном обмене; его ошибки
// деградируют до запроса в БД и не влияют на корректность.
func (s *Service) SetBlacklistCache(c cache.BlacklistCache) {
	s.bcache = c
}
