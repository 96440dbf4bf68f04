package models

// Назначение (claim "type") выпускаемых JWT.
const (
	// PurposeAccess — короткоживущий токен доступа к API.
	PurposeAccess = "access"
	// PurposeRefresh — долгоживущий токен обновления пары.
	PurposeRefresh = "refresh"
)
