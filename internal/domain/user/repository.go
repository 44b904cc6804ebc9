package user

import "context"

// Repository определяет операции над зеркалом пользователей.
// Реализация находится в infrastructure/persistence/postgres.
type Repository interface {
	// Upsert вставляет пользователя или обновляет name/password_hash/role
	// по конфликту email. Возвращает ID строки в Remote Store.
	Upsert(ctx context.Context, u *User) (int64, error)

	// UpsertProfile как Upsert, но не трогает password_hash.
	UpsertProfile(ctx context.Context, p Profile) (int64, error)

	// UpdateProfile обновляет name и role у пользователя с данным email.
	// Возвращает число затронутых строк (0 - не ошибка).
	UpdateProfile(ctx context.Context, email, name, role string) (int64, error)

	// FindIDByEmail возвращает ID пользователя.
	// Возвращает shared.ErrUserNotFound, если пользователя нет.
	FindIDByEmail(ctx context.Context, email string) (int64, error)
}
