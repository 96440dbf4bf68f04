package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auth-core/internal/models"
	"auth-core/internal/storage"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// AddToBlacklist сохраняет запись об использованном/отозванном refresh-токене.
// Дубликат отпечатка превращается в storage.ErrAlreadyExists: именно так
// проигравшая сторона гонки за один и тот же токен узнаёт о повторном обмене.
func (s *Storage) AddToBlacklist(ctx context.Context, entry *models.BlacklistEntry) error {
	const op = "storage.postgres.AddToBlacklist"

	query := `
        INSERT INTO refresh_token_blacklist(id, token_fingerprint, user_id, blacklisted_at, expires_at, reason)
        VALUES ($1, $2, $3, $4, $5, $6)
    `

	_, err := s.db.Exec(ctx, query,
		entry.ID,
		entry.TokenFingerprint,
		entry.UserID,
		entry.BlacklistedAt,
		entry.ExpiresAt,
		entry.Reason,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// IsBlacklisted проверяет наличие отпечатка в blacklist.
// Срок действия записи здесь не проверяется: просроченный токен
// отсеивается раньше, на этапе декодирования JWT.
func (s *Storage) IsBlacklisted(ctx context.Context, fingerprint string) (bool, error) {
	const op = "storage.postgres.IsBlacklisted"

	query := `
        SELECT EXISTS(
            SELECT 1 FROM refresh_token_blacklist
            WHERE token_fingerprint = $1
        )
    `

	var exists bool
	if err := s.db.QueryRow(ctx, query, fingerprint).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return exists, nil
}

// DeleteExpiredEntries удаляет записи, чей срок действия (унаследованный
// от exp токена) строго в прошлом. Такие записи больше никогда не
// понадобятся: сам токен не пройдёт проверку exp при декодировании.
func (s *Storage) DeleteExpiredEntries(ctx context.Context, now time.Time) (int64, error) {
	const op = "storage.postgres.DeleteExpiredEntries"

	query := `
        DELETE FROM refresh_token_blacklist
        WHERE expires_at < $1
    `

	cmdTag, err := s.db.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return cmdTag.RowsAffected(), nil
}
