package telegram

import (
	"context"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auniver/quiz-bridge/internal/application/linking"
	"github.com/auniver/quiz-bridge/internal/domain/shared"
	"github.com/auniver/quiz-bridge/internal/domain/telegramuser"
	"github.com/auniver/quiz-bridge/internal/infrastructure/external/backend"
	"github.com/auniver/quiz-bridge/internal/interface/telegram/middleware"
	"github.com/auniver/quiz-bridge/internal/interface/telegram/presenter"
	"github.com/auniver/quiz-bridge/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// FAKES
// ══════════════════════════════════════════════════════════════════════════════

type sentMessage struct {
	chatID int64
	text   string
	markup *tgbotapi.InlineKeyboardMarkup
}

type fakeSender struct {
	mu       sync.Mutex
	messages []sentMessage
	answered []string
}

func (s *fakeSender) SendMessage(_ context.Context, chatID int64, text string, markup *tgbotapi.InlineKeyboardMarkup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, sentMessage{chatID, text, markup})
	return nil
}

func (s *fakeSender) AnswerCallbackQuery(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answered = append(s.answered, id)
	return nil
}

func (s *fakeSender) last(t *testing.T) sentMessage {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.messages)
	return s.messages[len(s.messages)-1]
}

// fakeBackend plays the Primary Backend: it links on the right password.
type fakeBackend struct {
	password string
	linked   map[int64]*backend.UserDTO
	calls    map[string]int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{password: "correct", linked: map[int64]*backend.UserDTO{}, calls: map[string]int{}}
}

func (f *fakeBackend) GetTelegramUser(_ context.Context, id int64) (*backend.UserDTO, error) {
	f.calls["user"]++
	if u, ok := f.linked[id]; ok {
		return u, nil
	}
	return nil, backend.ErrNotLinked
}

func (f *fakeBackend) ListSubjects(context.Context) ([]backend.SubjectDTO, error) {
	f.calls["subjects"]++
	return nil, nil
}

func (f *fakeBackend) GetUserStats(context.Context, int64) (*backend.StatsDTO, error) {
	f.calls["stats"]++
	return &backend.StatsDTO{}, nil
}

func (f *fakeBackend) LinkAccount(_ context.Context, req backend.LinkRequest) (*backend.LinkResponse, error) {
	f.calls["link"]++
	if req.Password != f.password {
		return &backend.LinkResponse{Success: false, Error: "Invalid credentials"}, backend.ErrLinkRejected
	}
	u := &backend.UserDTO{ID: 900, Name: "Данияр", Email: req.Email}
	f.linked[req.TelegramData.ID] = u
	return &backend.LinkResponse{Success: true, User: u}, nil
}

type memTelegramUsers struct {
	mu   sync.Mutex
	rows map[int64]*telegramuser.TelegramUser
}

func (m *memTelegramUsers) row(id telegramuser.Identity) *telegramuser.TelegramUser {
	r, ok := m.rows[id.TelegramID]
	if !ok {
		r = &telegramuser.TelegramUser{TelegramID: id.TelegramID}
		m.rows[id.TelegramID] = r
	}
	return r
}

func (m *memTelegramUsers) FindByTelegramID(_ context.Context, id int64) (*telegramuser.TelegramUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return nil, shared.ErrTelegramUserNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memTelegramUsers) GetOrCreate(_ context.Context, id telegramuser.Identity) (*telegramuser.TelegramUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *m.row(id)
	return &cp, nil
}

func (m *memTelegramUsers) StageLinkCode(_ context.Context, id telegramuser.Identity, code string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.row(id)
	r.LinkCode, r.LinkCodeStagedAt = &code, &at
	return nil
}

func (m *memTelegramUsers) ClearLinkCode(_ context.Context, id int64, expected string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok || r.LinkCode == nil || *r.LinkCode != expected {
		return false, nil
	}
	r.LinkCode, r.LinkCodeStagedAt = nil, nil
	return true, nil
}

func (m *memTelegramUsers) ExpireLinkCodes(context.Context, time.Time) (int64, error) { return 0, nil }

func (m *memTelegramUsers) UpsertLinked(_ context.Context, id telegramuser.Identity, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.row(id).UserID = &userID
	return nil
}

type fixture struct {
	sender  *fakeSender
	backend *fakeBackend
	users   *memTelegramUsers
	bot     *Bot
	pres    *presenter.Presenter
}

func newFixture() *fixture {
	f := &fixture{
		sender:  &fakeSender{},
		backend: newFakeBackend(),
		users:   &memTelegramUsers{rows: map[int64]*telegramuser.TelegramUser{}},
		pres:    presenter.New(""),
	}
	log := logger.Nop()
	svc := linking.NewService(f.users, f.backend, linking.Config{LinkCodeTTL: linking.DefaultLinkCodeTTL})
	router := NewDefaultRouter(RouterDependencies{
		Backend:   f.backend,
		Users:     f.users,
		Linker:    svc,
		Presenter: f.pres,
		Logger:    log,
	})
	f.bot = NewBot(BotDependencies{
		Sender:   f.sender,
		Router:   router,
		Recovery: middleware.NewRecovery(middleware.DefaultRecoveryConfig(), log),
		Logger:   log,
	})
	return f
}

var carol = &tgbotapi.User{ID: 31, FirstName: "Carol", UserName: "carol"}

func message(updateID int, text string) *tgbotapi.Update {
	return &tgbotapi.Update{
		UpdateID: updateID,
		Message: &tgbotapi.Message{
			MessageID: updateID,
			From:      carol,
			Chat:      &tgbotapi.Chat{ID: 31},
			Text:      text,
		},
	}
}

func callback(updateID int, data string) *tgbotapi.Update {
	return &tgbotapi.Update{
		UpdateID: updateID,
		CallbackQuery: &tgbotapi.CallbackQuery{
			ID:      "cb-1",
			From:    carol,
			Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 500}},
			Data:    data,
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// TESTS
// ══════════════════════════════════════════════════════════════════════════════

func TestBot_LinkingFlow(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	require.NoError(t, f.bot.HandleUpdate(ctx, message(1, "email:carol@uni.kz")))
	assert.Equal(t, f.pres.EmailSaved("carol@uni.kz"), f.sender.last(t).text)

	require.NoError(t, f.bot.HandleUpdate(ctx, message(2, "password:wrong")))
	assert.Equal(t, f.pres.InvalidCredentials(), f.sender.last(t).text)
	require.NotNil(t, f.users.rows[31].LinkCode)
	assert.Equal(t, "email:carol@uni.kz", *f.users.rows[31].LinkCode)

	require.NoError(t, f.bot.HandleUpdate(ctx, message(3, "password:correct")))
	assert.Equal(t, f.pres.LinkSuccess("Данияр"), f.sender.last(t).text)
	assert.Nil(t, f.users.rows[31].LinkCode)

	require.NoError(t, f.bot.HandleUpdate(ctx, message(4, "/start")))
	assert.Contains(t, f.sender.last(t).text, "Добро пожаловать, Данияр!")
}

func TestBot_PasswordWithoutEmail(t *testing.T) {
	f := newFixture()

	require.NoError(t, f.bot.HandleUpdate(context.Background(), message(1, "password:correct")))

	assert.Equal(t, f.pres.SendEmailFirst(), f.sender.last(t).text)
	assert.Zero(t, f.backend.calls["link"])
}

func TestBot_UnlinkedCommands(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	require.NoError(t, f.bot.HandleUpdate(ctx, message(1, "/subjects")))
	assert.Equal(t, f.pres.LinkFirst(), f.sender.last(t).text)
	require.NoError(t, f.bot.HandleUpdate(ctx, message(2, "/stats")))
	assert.Equal(t, f.pres.LinkFirst(), f.sender.last(t).text)

	assert.Zero(t, f.backend.calls["subjects"])
	assert.Zero(t, f.backend.calls["stats"])
}

func TestBot_StartRecordsUserAndSendsKeyboard(t *testing.T) {
	f := newFixture()

	require.NoError(t, f.bot.HandleUpdate(context.Background(), message(1, "/start")))

	msg := f.sender.last(t)
	assert.Equal(t, int64(31), msg.chatID)
	assert.Equal(t, f.pres.WelcomeUnlinked(), msg.text)
	assert.NotNil(t, msg.markup)
	require.Contains(t, f.users.rows, int64(31))
	assert.Nil(t, f.users.rows[31].UserID)
}

func TestBot_ExactMatchOnly(t *testing.T) {
	f := newFixture()

	require.NoError(t, f.bot.HandleUpdate(context.Background(), message(1, "/start now")))

	assert.Equal(t, f.pres.UnknownCommand(), f.sender.last(t).text)
}

func TestBot_Callbacks(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	require.NoError(t, f.bot.HandleUpdate(ctx, callback(1, "link_account")))
	msg := f.sender.last(t)
	assert.Equal(t, int64(500), msg.chatID)
	assert.Equal(t, f.pres.LinkInstructions(), msg.text)

	require.NoError(t, f.bot.HandleUpdate(ctx, callback(2, "help")))
	assert.Equal(t, f.pres.WelcomeUnlinked(), f.sender.last(t).text)
	assert.Contains(t, f.users.rows, int64(31))

	sent := len(f.sender.messages)
	require.NoError(t, f.bot.HandleUpdate(ctx, callback(3, "whatever")))
	assert.Len(t, f.sender.messages, sent)

	assert.Len(t, f.sender.answered, 3)
}

func TestBot_IgnoresOtherUpdates(t *testing.T) {
	f := newFixture()

	require.NoError(t, f.bot.HandleUpdate(context.Background(), &tgbotapi.Update{UpdateID: 9}))
	require.NoError(t, f.bot.HandleUpdate(context.Background(), nil))

	assert.Empty(t, f.sender.messages)
}

func TestRouter_PrefixOrderAndFallback(t *testing.T) {
	r := NewDefaultRouter(RouterDependencies{Backend: newFakeBackend()})

	_, route := r.Route("email:x")
	assert.Equal(t, telegramuser.EmailPrefix, route)
	_, route = r.Route("password:x")
	assert.Equal(t, telegramuser.PasswordPrefix, route)
	_, route = r.Route("")
	assert.Equal(t, "unknown", route)
	_, route = r.Route(CommandHelp)
	assert.Equal(t, CommandHelp, route)
}
