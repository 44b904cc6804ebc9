package telegramuser

import (
	"context"
	"time"
)

// Repository определяет операции над таблицей telegram_user.
//
// Запись link_code работает по принципу "последняя запись побеждает":
// два почти одновременных сообщения "email:" от одного пользователя
// гонятся за одно поле без compare-and-swap. Очистка после успешного
// связывания условна и не затирает email, подготовленный позже.
type Repository interface {
	// FindByTelegramID возвращает строку по Telegram ID.
	// Возвращает shared.ErrTelegramUserNotFound, если строки нет.
	FindByTelegramID(ctx context.Context, telegramID int64) (*TelegramUser, error)

	// GetOrCreate возвращает существующую строку или создаёт новую с user_id = NULL.
	GetOrCreate(ctx context.Context, id Identity) (*TelegramUser, error)

	// StageLinkCode перезаписывает link_code и время подготовки.
	// Строка создаётся, если её ещё нет.
	StageLinkCode(ctx context.Context, id Identity, code string, at time.Time) error

	// ClearLinkCode обнуляет link_code, только если он всё ещё равен expected.
	ClearLinkCode(ctx context.Context, telegramID int64, expected string) (bool, error)

	// ExpireLinkCodes обнуляет link_code, подготовленные раньше before.
	ExpireLinkCodes(ctx context.Context, before time.Time) (int64, error)

	// UpsertLinked создаёт или обновляет строку по telegram_id, проставляя user_id.
	UpsertLinked(ctx context.Context, id Identity, userID int64) error
}
