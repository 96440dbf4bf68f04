package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"auth-core/internal/models"
	"auth-core/internal/pkg/log"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// tokenClaims — полезная нагрузка выпускаемых JWT.
// Claim "type" различает access- и refresh-токены: токен одного назначения
// нельзя предъявить в операции, ожидающей другое.
type tokenClaims struct {
	Purpose string `json:"type"`
	jwt.RegisteredClaims
}

// generateToken выпускает подписанный HS256-токен {sub, exp, iat, iss, type}.
func (s *Service) generateToken(ctx context.Context, userID uuid.UUID, purpose string, ttl time.Duration, now time.Time) (string, error) {
	const op = "service.token.generateToken"

	lg := log.From(ctx)

	claims := tokenClaims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.cfg.Issuer,
			Subject:   userID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		lg.Error("token_sign_failed",
			slog.String("op", op),
			slog.String("purpose", purpose),
			slog.String("err", err.Error()),
		)
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}

// generateAccessToken выпускает access-токен с TTL из конфигурации.
func (s *Service) generateAccessToken(ctx context.Context, userID uuid.UUID, now time.Time) (string, error) {
	return s.generateToken(ctx, userID, models.PurposeAccess, s.cfg.AccessTokenTTL, now)
}

// generateRefreshToken выпускает refresh-токен с TTL из конфигурации.
// Флаг remember-me на claim exp не влияет: он управляет только временем
// жизни cookie на транспортном уровне.
func (s *Service) generateRefreshToken(ctx context.Context, userID uuid.UUID, now time.Time) (string, error) {
	return s.generateToken(ctx, userID, models.PurposeRefresh, s.cfg.RefreshTokenTTL, now)
}

// decodeToken проверяет подпись, срок действия и назначение токена,
// возвращает subject и момент истечения.
//
// Проверка exp идёт без leeway: токен недействителен строго после момента
// истечения. Несовпадение назначения, битая подпись и некорректная структура
// неразличимы для вызывающей стороны — всё ErrInvalidToken.
func (s *Service) decodeToken(tokenStr, wantPurpose string) (uuid.UUID, time.Time, error) {
	const op = "service.token.decodeToken"

	token, err := jwt.ParseWithClaims(tokenStr, &tokenClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
			}

			return []byte(s.cfg.JWTSecret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithExpirationRequired(),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, time.Time{}, fmt.Errorf("%s: %w", op, ErrTokenExpired)
		}

		return uuid.Nil, time.Time{}, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	claims, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid {
		return uuid.Nil, time.Time{}, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	if claims.Purpose != wantPurpose {
		return uuid.Nil, time.Time{}, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	uid, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, time.Time{}, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return uid, claims.ExpiresAt.Time, nil
}

// fingerprint — детерминированный односторонний отпечаток исходной строки
// токена: SHA-256 в hex, 64 символа. В таком виде токен хранится в blacklist;
// исходная строка в БД не попадает никогда.
func fingerprint(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
