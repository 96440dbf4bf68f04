package models

import (
	"time"

	"github.com/google/uuid"
)

// Статусы аккаунта пользователя.
//
// Описание:
//   - StatusInvited — пользователь приглашён, но ещё не активировал аккаунт;
//   - StatusActive — обычный активный пользователь;
//   - StatusInactive — аккаунт отключён (soft-delete/блокировка).
const (
	StatusInvited  = "invited"
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// User - модель пользователя в системе.
// Ядро аутентификации читает только ID, PasswordHash и Status;
// остальные поля принадлежат внешнему пользовательскому слою.
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	Role         string
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsActive сообщает, может ли пользователь аутентифицироваться.
func (u *User) IsActive() bool {
	return u.Status == StatusActive
}
