package models

import (
	"time"

	"github.com/google/uuid"
)

// Причины попадания refresh-токена в blacklist.
const (
	// ReasonUsed — токен был обменян на новую пару (штатная ротация).
	ReasonUsed = "used"
	// ReasonRevokedByAdmin — токен отозван администратором.
	ReasonRevokedByAdmin = "revoked_by_admin"
	// ReasonSecurityIncident — токен отозван в рамках инцидента безопасности.
	ReasonSecurityIncident = "security_incident"
)

// BlacklistEntry — запись об использованном или отозванном refresh-токене.
//
// Описание:
//   - TokenFingerprint — SHA-256 от исходной строки токена (hex, 64 символа);
//     сам токен никогда не сохраняется. Уникальность отпечатка обеспечивает
//     БД — это и есть механизм защиты от повторного обмена;
//   - ExpiresAt — срок действия, скопированный из claim exp токена;
//     используется только фоновой очисткой;
//   - Reason — причина блокировки (см. константы Reason*).
//
// Запись создаётся ровно один раз и никогда не обновляется; удаляется
// только очисткой после истечения ExpiresAt.
type BlacklistEntry struct {
	ID               uuid.UUID
	TokenFingerprint string
	UserID           uuid.UUID
	BlacklistedAt    time.Time
	ExpiresAt        time.Time
	Reason           string
}
