package presenter

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/auniver/quiz-bridge/internal/infrastructure/external/backend"
)

// DefaultSiteURL is the public site of the Primary Backend.
const DefaultSiteURL = "https://auniverquizes.pythonanywhere.com"

// Presenter builds reply texts. Links point to siteURL.
type Presenter struct {
	siteURL string
}

// New creates a Presenter. An empty siteURL falls back to DefaultSiteURL.
func New(siteURL string) *Presenter {
	siteURL = strings.TrimRight(siteURL, "/")
	if siteURL == "" {
		siteURL = DefaultSiteURL
	}
	return &Presenter{siteURL: siteURL}
}

// SiteURL returns the site root.
func (p *Presenter) SiteURL() string {
	return p.siteURL
}

func (p *Presenter) link(path string) string {
	return p.siteURL + path
}

// ══════════════════════════════════════════════════════════════════════════════
// /start
// ══════════════════════════════════════════════════════════════════════════════

// WelcomeLinked greets a user whose account is linked.
func (p *Presenter) WelcomeLinked(name string) string {
	return fmt.Sprintf(`🎉 <b>Добро пожаловать, %s!</b>

Ваш аккаунт связан с системой тестирования.

📚 Доступные команды:
/subjects - Список предметов
/stats - Ваша статистика
/help - Помощь

🌐 <a href="%s">Перейти на сайт</a>`, html.EscapeString(name), p.siteURL)
}

// WelcomeUnlinked explains how to link an account.
func (p *Presenter) WelcomeUnlinked() string {
	return fmt.Sprintf(`👋 <b>Добро пожаловать в систему тестирования!</b>

Для начала работы необходимо связать ваш Telegram аккаунт.

🔗 <b>Как связать аккаунт:</b>
1. Используйте команду /link
2. Введите ваш email
3. Введите ваш пароль

📝 Если у вас нет аккаунта:
🌐 <a href="%s">Зарегистрируйтесь на сайте</a>

📚 Команды:
/link - Связать аккаунт
/help - Помощь`, p.link("/register"))
}

// ══════════════════════════════════════════════════════════════════════════════
// LINKING
// ══════════════════════════════════════════════════════════════════════════════

// LinkInstructions describes the email/password protocol.
func (p *Presenter) LinkInstructions() string {
	return fmt.Sprintf(`🔗 <b>Связывание аккаунта</b>

Для связывания вашего Telegram аккаунта:

1️⃣ Отправьте ваш email в формате:
<code>email:ваш@email.com</code>

2️⃣ Затем отправьте пароль в формате:
<code>password:ваш_пароль</code>

📝 Пример:
<code>email:student@example.com</code>
<code>password:mypassword123</code>

⚠️ <b>Важно:</b> Используйте те же данные, что и для входа на сайт.

🌐 Нет аккаунта? <a href="%s">Зарегистрируйтесь</a>`, p.link("/register"))
}

// EmailSaved confirms the first linking step.
func (p *Presenter) EmailSaved(email string) string {
	return fmt.Sprintf("✅ Email сохранен: %s\n\nТеперь отправьте пароль в формате:\n<code>password:ваш_пароль</code>",
		html.EscapeString(email))
}

// EmailSaveFailed is sent when the email could not be stored.
func (p *Presenter) EmailSaveFailed() string {
	return "❌ Ошибка сохранения email. Попробуйте еще раз."
}

// SendEmailFirst is sent for a password without a staged email.
func (p *Presenter) SendEmailFirst() string {
	return "❌ Сначала отправьте email в формате:\n<code>email:ваш@email.com</code>"
}

// LinkSuccess confirms a linked account.
func (p *Presenter) LinkSuccess(name string) string {
	return fmt.Sprintf(`🎉 <b>Аккаунт успешно связан!</b>

👤 Добро пожаловать, %s!

📚 Теперь вы можете:
/subjects - Посмотреть предметы
/stats - Посмотреть статистику

🌐 <a href="%s">Перейти в личный кабинет</a>`, html.EscapeString(name), p.link("/dashboard"))
}

// InvalidCredentials covers both rejected credentials and backend failures.
func (p *Presenter) InvalidCredentials() string {
	return "❌ Неверный email или пароль. Попробуйте еще раз."
}

// LinkFailed is sent when the Remote Store failed during linking.
func (p *Presenter) LinkFailed() string {
	return "❌ Ошибка связывания аккаунта. Попробуйте позже."
}

// LinkFirst is sent to unlinked users asking for linked-only data.
func (p *Presenter) LinkFirst() string {
	return "❌ Сначала свяжите аккаунт командой /link"
}

// ══════════════════════════════════════════════════════════════════════════════
// SUBJECTS & STATS
// ══════════════════════════════════════════════════════════════════════════════

// NoSubjects is sent when the subject list is empty.
func (p *Presenter) NoSubjects() string {
	return "📚 Предметы пока не добавлены."
}

// SubjectList renders subjects in backend order, starting a faculty
// header whenever the faculty changes.
func (p *Presenter) SubjectList(subjects []backend.SubjectDTO) string {
	var b strings.Builder
	b.WriteString("📚 <b>Доступные предметы:</b>\n\n")

	current := ""
	for i, s := range subjects {
		if i == 0 || s.FacultyName != current {
			current = s.FacultyName
			fmt.Fprintf(&b, "\n🏛️ <b>%s</b>\n", html.EscapeString(current))
		}
		fmt.Fprintf(&b, "  📖 %s (%d вопросов)\n", html.EscapeString(s.Name), s.QuestionCount)
	}

	fmt.Fprintf(&b, "\n🌐 <a href='%s'>Пройти тест на сайте</a>", p.link("/test_select"))
	return b.String()
}

// Stats renders the stats card.
func (p *Presenter) Stats(s *backend.StatsDTO) string {
	return fmt.Sprintf(`📊 <b>Ваша статистика:</b>

🎯 Пройдено тестов: %d
📈 Средний результат: %s%%
🏆 Лучший результат: %s%%
📚 Предметов изучено: %d

🌐 <a href="%s">Подробная статистика</a>`,
		s.TotalTests,
		formatPercent(s.AvgPercentage),
		formatPercent(s.BestPercentage),
		s.SubjectsTested,
		p.link("/dashboard"),
	)
}

// StatsEmpty is sent when the user has no tests yet.
func (p *Presenter) StatsEmpty() string {
	return fmt.Sprintf(`📊 <b>Статистика пуста</b>

Вы еще не проходили тесты.

🌐 <a href="%s">Пройти первый тест</a>`, p.link("/test_select"))
}

// UnknownCommand lists every command and the linking format.
func (p *Presenter) UnknownCommand() string {
	return `❓ Неизвестная команда.

📚 Доступные команды:
/start - Начать работу
/link - Связать аккаунт
/subjects - Список предметов
/stats - Статистика
/help - Помощь

🔗 Для связывания аккаунта используйте:
<code>email:ваш@email.com</code>
<code>password:ваш_пароль</code>`
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
