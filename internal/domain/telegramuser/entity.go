// Package telegramuser содержит модель Telegram-пользователя и
// протокол промежуточного хранения email при связывании аккаунта.
//
// Связь Telegram -> пользователь существует в двух независимых проекциях:
// UserID в Remote Store (ведут только bridge-обработчики, для аналитики)
// и привязка в основном бэкенде (источник истины для вебхука).
// Вебхук никогда не читает UserID, и проекции не сверяются.
package telegramuser

import (
	"strings"
	"time"
)

// Префиксы сообщений протокола связывания.
const (
	EmailPrefix    = "email:"
	PasswordPrefix = "password:"
)

// Identity - данные отправителя из Telegram update.
type Identity struct {
	TelegramID int64
	Username   string
	FirstName  string
	LastName   string
}

// TelegramUser - строка telegram_user в Remote Store.
type TelegramUser struct {
	ID         int64
	TelegramID int64
	Username   *string
	FirstName  *string
	LastName   *string

	// UserID - слабая ссылка на user.id, проставляется только bridge-обработчиком.
	UserID *int64

	// LinkCode - "email:<addr>" пока email ожидает пароль, иначе nil.
	LinkCode         *string
	LinkCodeStagedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// EmailLinkCode строит значение link_code для первого шага связывания.
func EmailLinkCode(email string) string {
	return EmailPrefix + email
}

// HasEmailStage сообщает, что link_code содержит этап "email:", даже просроченный.
func (t *TelegramUser) HasEmailStage() bool {
	return t != nil && t.LinkCode != nil && strings.HasPrefix(*t.LinkCode, EmailPrefix)
}

// StagedEmail возвращает email, сохранённый на первом шаге.
// Этап без отметки времени считается бессрочным; ttl <= 0 отключает срок.
func (t *TelegramUser) StagedEmail(now time.Time, ttl time.Duration) (string, bool) {
	if !t.HasEmailStage() {
		return "", false
	}
	if ttl > 0 && t.LinkCodeStagedAt != nil && now.Sub(*t.LinkCodeStagedAt) > ttl {
		return "", false
	}
	return strings.TrimPrefix(*t.LinkCode, EmailPrefix), true
}

// ParseEmailMessage разбирает сообщение "email:<addr>".
// Email не валидируется, обрезаются только пробелы.
func ParseEmailMessage(text string) (string, bool) {
	if !strings.HasPrefix(text, EmailPrefix) {
		return "", false
	}
	return strings.TrimSpace(text[len(EmailPrefix):]), true
}

// ParsePasswordMessage разбирает сообщение "password:<pw>".
func ParsePasswordMessage(text string) (string, bool) {
	if !strings.HasPrefix(text, PasswordPrefix) {
		return "", false
	}
	return strings.TrimSpace(text[len(PasswordPrefix):]), true
}
