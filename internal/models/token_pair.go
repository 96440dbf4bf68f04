package models

import "time"

// TokenPair — пара токенов, выдаваемая при аутентификации/регистрации.
//
// Описание:
//   - AccessToken — короткоживущий JWT (claim type=access);
//   - RefreshToken — долгоживущий JWT (claim type=refresh), одноразовый:
//     при обмене его отпечаток попадает в blacklist;
//   - AccessExpiresAt — момент истечения access-токена (UTC).
type TokenPair struct {
	AccessToken     string
	RefreshToken    string
	AccessExpiresAt time.Time
}
