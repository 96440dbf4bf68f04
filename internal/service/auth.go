package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"auth-core/internal/models"
	"auth-core/internal/pkg/log"
	"auth-core/internal/pkg/redact"
	"auth-core/internal/storage"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// dummyPasswordHash — валидный bcrypt-хэш, против которого выполняется
// сравнение при логине несуществующего пользователя. Выравнивает время ответа:
// по задержке нельзя отличить "нет такого e-mail" от "неверный пароль".
const dummyPasswordHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// RegisterUser регистрирует нового пользователя и выпускает пару токенов.
func (s *Service) RegisterUser(ctx context.Context, email, password string) (*models.TokenPair, uuid.UUID, error) {
	const op = "service.auth.RegisterUser"

	lg := log.From(ctx)

	normEmail, err := validateEmail(email)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	if err := validatePassword(password); err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	hashedPassword, err := hashPassword(password)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.New(),
		Email:        normEmail,
		PasswordHash: hashedPassword,
		Role:         "user",
		Status:       models.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.storage.SaveUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}

		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	lg.Info("user_registered",
		slog.String("user_id", user.ID.String()),
		slog.String("email", redact.Email(user.Email)),
	)

	return s.issueTokenPair(ctx, user.ID)
}

// LoginUser выполняет вход по email+пароль.
//
// Наружу "нет такого пользователя", "неверный пароль" и некорректный формат
// e-mail неразличимы: везде ErrInvalidCredentials, а bcrypt-сравнение
// выполняется в том числе для несуществующего аккаунта.
func (s *Service) LoginUser(ctx context.Context, email, password string) (*models.TokenPair, uuid.UUID, error) {
	const op = "service.auth.LoginUser"

	lg := log.From(ctx)

	normEmail, err := validateEmail(email)
	if err != nil {
		// Выравнивание времени: та же стоимость, что и на любом другом отказе.
		checkPassword(dummyPasswordHash, password)
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	user, err := s.storage.UserByEmail(ctx, normEmail)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			checkPassword(dummyPasswordHash, password)
			lg.Warn("login_failed",
				slog.String("email", redact.Email(normEmail)),
				slog.String("reason", "user_not_found"),
			)
			return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}

		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	if !checkPassword(user.PasswordHash, password) {
		lg.Warn("login_failed",
			slog.String("email", redact.Email(normEmail)),
			slog.String("reason", "invalid_password"),
		)
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	if !user.IsActive() {
		lg.Warn("login_failed",
			slog.String("user_id", user.ID.String()),
			slog.String("reason", "user_not_active"),
		)
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInactiveAccount)
	}

	lg.Info("login_success", slog.String("user_id", user.ID.String()))

	return s.issueTokenPair(ctx, user.ID)
}

// RefreshToken обменивает валидный, ещё не использованный refresh-токен
// на новую пару — ровно один раз на токен.
//
// Порядок шагов:
//  1. декодирование (подпись/срок/назначение);
//  2. отпечаток токена;
//  3. проверка blacklist (кэш — только быстрый отрицательный путь);
//  4. разрешение subject в пользователя и проверка активности;
//  5. вставка отпечатка в blacklist: конфликт уникальности означает
//     проигрыш гонки за этот же токен и неотличим от п.3;
//  6. выпуск новой пары.
//
// Subject разрешается до вставки отпечатка: при удалённом/неактивном
// пользователе запись в blacklist не создаётся. Если выпуск новой пары
// упал после п.5 — старый токен уже израсходован; откат вставки не
// выполняется намеренно (повторный логин безопаснее воспроизводимого токена).
func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (*models.TokenPair, uuid.UUID, error) {
	const op = "service.auth.RefreshToken"

	lg := log.From(ctx)

	uid, expiresAt, err := s.decodeToken(refreshToken, models.PurposeRefresh)
	if err != nil {
		lg.Warn("refresh_failed", slog.String("reason", "invalid_token"))
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	fp := fingerprint(refreshToken)

	if s.bcache != nil {
		if seen, cerr := s.bcache.Seen(ctx, fp); cerr == nil && seen {
			lg.Warn("refresh_failed",
				slog.String("user_id", uid.String()),
				slog.String("reason", "token_reused_cached"),
			)
			return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrTokenReused)
		}
	}

	blacklisted, err := s.storage.IsBlacklisted(ctx, fp)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}
	if blacklisted {
		lg.Warn("refresh_failed",
			slog.String("user_id", uid.String()),
			slog.String("reason", "token_reused"),
		)
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrTokenReused)
	}

	user, err := s.storage.UserByID(ctx, uid)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			lg.Warn("refresh_failed",
				slog.String("user_id", uid.String()),
				slog.String("reason", "user_not_found"),
			)
			return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}

		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	if !user.IsActive() {
		lg.Warn("refresh_failed",
			slog.String("user_id", uid.String()),
			slog.String("reason", "user_not_active"),
		)
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInactiveAccount)
	}

	if err := s.blacklist(ctx, fp, user.ID, expiresAt, models.ReasonUsed); err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	lg.Info("token_refreshed", slog.String("user_id", user.ID.String()))

	return s.issueTokenPair(ctx, user.ID)
}

// RevokeToken явно отзывает refresh-токен (logout, инцидент безопасности).
// Токен должен быть валидным и ещё не использованным; повторный отзыв
// неотличим от повторного обмена (ErrTokenReused).
func (s *Service) RevokeToken(ctx context.Context, refreshToken, reason string) error {
	const op = "service.auth.RevokeToken"

	lg := log.From(ctx)

	uid, expiresAt, err := s.decodeToken(refreshToken, models.PurposeRefresh)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	fp := fingerprint(refreshToken)

	if err := s.blacklist(ctx, fp, uid, expiresAt, reason); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	lg.Info("token_revoked",
		slog.String("user_id", uid.String()),
		slog.String("reason", reason),
	)

	return nil
}

// ValidateToken проверяет access-токен и возвращает пользователя.
func (s *Service) ValidateToken(ctx context.Context, accessToken string) (*models.User, error) {
	const op = "service.auth.ValidateToken"

	uid, _, err := s.decodeToken(accessToken, models.PurposeAccess)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.storage.UserByID(ctx, uid)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !user.IsActive() {
		return nil, fmt.Errorf("%s: %w", op, ErrInactiveAccount)
	}

	return user, nil
}

// CleanupExpired удаляет просроченные записи blacklist'а.
// Безопасно выполняется параллельно с ротацией: просроченный токен
// отсеивается декодированием раньше, чем дело дойдёт до blacklist.
func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	const op = "service.auth.CleanupExpired"

	lg := log.From(ctx)

	deleted, err := s.storage.DeleteExpiredEntries(ctx, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if deleted > 0 {
		lg.Info("blacklist_cleanup", slog.Int64("deleted_count", deleted))
	}

	return deleted, nil
}

// blacklist вставляет отпечаток токена в blacklist и помечает его в кэше.
// Конфликт уникальности (двойное предъявление одного токена, в том числе
// конкурентное) превращается в ErrTokenReused.
func (s *Service) blacklist(ctx context.Context, fp string, userID uuid.UUID, expiresAt time.Time, reason string) error {
	const op = "service.auth.blacklist"

	lg := log.From(ctx)

	entry := &models.BlacklistEntry{
		ID:               uuid.New(),
		TokenFingerprint: fp,
		UserID:           userID,
		BlacklistedAt:    time.Now().UTC(),
		ExpiresAt:        expiresAt,
		Reason:           reason,
	}

	if err := s.storage.AddToBlacklist(ctx, entry); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			lg.Warn("blacklist_conflict",
				slog.String("user_id", userID.String()),
			)
			return ErrTokenReused
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	if s.bcache != nil {
		// Кэш — best effort: его ошибки не влияют на результат ротации.
		if cerr := s.bcache.MarkBlacklisted(ctx, fp, time.Until(expiresAt)); cerr != nil {
			lg.Warn("blacklist_cache_mark_failed", slog.String("err", cerr.Error()))
		}
	}

	lg.Info("token_blacklisted",
		slog.String("user_id", userID.String()),
		slog.String("reason", reason),
	)

	return nil
}

// issueTokenPair выпускает новую пару access+refresh токенов.
func (s *Service) issueTokenPair(ctx context.Context, userID uuid.UUID) (*models.TokenPair, uuid.UUID, error) {
	const op = "service.auth.issueTokenPair"

	now := time.Now().UTC()

	accessToken, err := s.generateAccessToken(ctx, userID, now)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	refreshToken, err := s.generateRefreshToken(ctx, userID, now)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.TokenPair{
		AccessToken:     accessToken,
		RefreshToken:    refreshToken,
		AccessExpiresAt: now.Add(s.cfg.AccessTokenTTL),
	}, userID, nil
}

// hashPassword хэширует пароль с помощью bcrypt; каждый вызов даёт
// новый результат за счёт случайной соли.
func hashPassword(password string) (string, error) {
	const op = "service.auth.hashPassword"

	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return string(bytes), nil
}

// checkPassword сравнивает пароль с хэшем.
// Некорректный хэш — это false, а не ошибка.
func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// validateEmail проверяет базовый формат email и обрезает пробелы снаружи.
func validateEmail(raw string) (string, error) {
	const op = "service.auth.validateEmail"

	email := strings.TrimSpace(raw)
	if email == "" {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	if _, err := mail.ParseAddress(email); err != nil {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	return strings.ToLower(email), nil
}

// validatePassword проверяет минимальные требования к паролю.
// Политика по умолчанию: длина >= 8, хотя бы одна строчная, заглавная, цифра и спецсимвол.
func validatePassword(pw string) error {
	const op = "service.auth.validatePassword"

	if len(pw) == 0 {
		return fmt.Errorf("%s: %w", op, ErrEmptyPassword)
	}

	if len([]rune(pw)) < 8 {
		return fmt.Errorf("%s: %w", op, ErrWeakPassword)
	}

	var hasLower, hasUpper, hasDigit, hasSpecial bool
	for _, r := range pw {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}

	if !(hasLower && hasUpper && hasDigit && hasSpecial) {
		return fmt.Errorf("%s: %w", op, ErrWeakPassword)
	}

	return nil
}
