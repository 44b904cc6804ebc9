// Package user содержит зеркальную модель пользователя основного бэкенда.
// Строка в Remote Store связана с основным бэкендом только через email.
package user

import (
	"strings"
	"time"
)

// User - зеркало пользователя основного бэкенда.
// ID принадлежит Remote Store и не совпадает с ID основного бэкенда.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash *string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NormalizeEmail приводит email к виду, в котором он используется как ключ.
func NormalizeEmail(email string) string {
	return strings.TrimSpace(email)
}

// Profile - поля, которые синхронизируются при связывании Telegram
// (password_hash не затрагивается).
type Profile struct {
	Name  string
	Email string
	Role  string
}
