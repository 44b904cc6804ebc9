package handler

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auniver/quiz-bridge/internal/domain/shared"
	"github.com/auniver/quiz-bridge/internal/domain/telegramuser"
	"github.com/auniver/quiz-bridge/internal/infrastructure/external/backend"
	"github.com/auniver/quiz-bridge/internal/interface/telegram/presenter"
	"github.com/auniver/quiz-bridge/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// FAKES
// ══════════════════════════════════════════════════════════════════════════════

type fakeBackend struct {
	linked   map[int64]*backend.UserDTO
	subjects []backend.SubjectDTO
	stats    *backend.StatsDTO

	subjectCalls int
	statsCalls   []int64
}

func (f *fakeBackend) GetTelegramUser(_ context.Context, id int64) (*backend.UserDTO, error) {
	if u, ok := f.linked[id]; ok {
		return u, nil
	}
	return nil, backend.ErrNotLinked
}

func (f *fakeBackend) ListSubjects(context.Context) ([]backend.SubjectDTO, error) {
	f.subjectCalls++
	return f.subjects, nil
}

func (f *fakeBackend) GetUserStats(_ context.Context, id int64) (*backend.StatsDTO, error) {
	f.statsCalls = append(f.statsCalls, id)
	return f.stats, nil
}

type fakeRegistrar struct {
	seen []telegramuser.Identity
	err  error
}

func (f *fakeRegistrar) GetOrCreate(_ context.Context, id telegramuser.Identity) (*telegramuser.TelegramUser, error) {
	f.seen = append(f.seen, id)
	return &telegramuser.TelegramUser{TelegramID: id.TelegramID}, f.err
}

type fakeLinker struct {
	stageErr  error
	linkUser  *backend.UserDTO
	linkErr   error
	staged    string
	passwords []string
}

func (f *fakeLinker) StageEmail(_ context.Context, _ telegramuser.Identity, email string) error {
	f.staged = email
	return f.stageErr
}

func (f *fakeLinker) CompleteLink(_ context.Context, _ telegramuser.Identity, _ backend.TelegramData, password string) (*backend.UserDTO, error) {
	f.passwords = append(f.passwords, password)
	return f.linkUser, f.linkErr
}

var (
	pres = presenter.New("")
	nop  = logger.Nop()
	bob  = &tgbotapi.User{ID: 77, FirstName: "Bob", UserName: "bob"}
)

func req(text string) Request {
	return Request{ChatID: 77, From: bob, Text: text}
}

// ══════════════════════════════════════════════════════════════════════════════
// TESTS
// ══════════════════════════════════════════════════════════════════════════════

func TestStartHandler(t *testing.T) {
	t.Run("linked", func(t *testing.T) {
		be := &fakeBackend{linked: map[int64]*backend.UserDTO{77: {ID: 5, Name: "Роберт"}}}
		reg := &fakeRegistrar{}
		h := NewStartHandler(be, reg, pres, nop)

		resp, err := h.Handle(context.Background(), req("/start"))

		require.NoError(t, err)
		assert.Contains(t, resp.Text, "Добро пожаловать, Роберт!")
		require.NotNil(t, resp.Keyboard)
		require.Len(t, reg.seen, 1)
		assert.Equal(t, "bob", reg.seen[0].Username)
	})

	t.Run("unlinked", func(t *testing.T) {
		h := NewStartHandler(&fakeBackend{}, &fakeRegistrar{}, pres, nop)

		resp, err := h.Handle(context.Background(), req("/start"))

		require.NoError(t, err)
		assert.Equal(t, pres.WelcomeUnlinked(), resp.Text)
		assert.NotNil(t, resp.Keyboard)
	})

	t.Run("store failure does not block reply", func(t *testing.T) {
		h := NewStartHandler(&fakeBackend{}, &fakeRegistrar{err: errors.New("db down")}, pres, nop)

		resp, err := h.Handle(context.Background(), req("/start"))

		require.NoError(t, err)
		assert.NotEmpty(t, resp.Text)
	})
}

func TestSubjectsHandler_UnlinkedSkipsEndpoint(t *testing.T) {
	be := &fakeBackend{subjects: []backend.SubjectDTO{{Name: "X", FacultyName: "F"}}}
	h := NewSubjectsHandler(be, be, pres, nop)

	resp, err := h.Handle(context.Background(), req("/subjects"))

	require.NoError(t, err)
	assert.Equal(t, pres.LinkFirst(), resp.Text)
	assert.Zero(t, be.subjectCalls)
}

func TestSubjectsHandler_Linked(t *testing.T) {
	be := &fakeBackend{linked: map[int64]*backend.UserDTO{77: {ID: 5}}}
	h := NewSubjectsHandler(be, be, pres, nop)

	resp, err := h.Handle(context.Background(), req("/subjects"))
	require.NoError(t, err)
	assert.Equal(t, pres.NoSubjects(), resp.Text)

	be.subjects = []backend.SubjectDTO{{Name: "Алгебра", FacultyName: "Математика", QuestionCount: 3}}
	resp, err = h.Handle(context.Background(), req("/subjects"))
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "Алгебра (3 вопросов)")
	assert.Equal(t, 2, be.subjectCalls)
}

func TestStatsHandler_UnlinkedSkipsEndpoint(t *testing.T) {
	be := &fakeBackend{}
	h := NewStatsHandler(be, be, pres, nop)

	resp, err := h.Handle(context.Background(), req("/stats"))

	require.NoError(t, err)
	assert.Equal(t, pres.LinkFirst(), resp.Text)
	assert.Empty(t, be.statsCalls)
}

func TestStatsHandler_UsesBackendUserID(t *testing.T) {
	be := &fakeBackend{
		linked: map[int64]*backend.UserDTO{77: {ID: 901}},
		stats:  &backend.StatsDTO{TotalTests: 2, AvgPercentage: 50, BestPercentage: 80, SubjectsTested: 1},
	}
	h := NewStatsHandler(be, be, pres, nop)

	resp, err := h.Handle(context.Background(), req("/stats"))

	require.NoError(t, err)
	assert.Equal(t, []int64{901}, be.statsCalls)
	assert.Contains(t, resp.Text, "Пройдено тестов: 2")
}

func TestStatsHandler_Empty(t *testing.T) {
	be := &fakeBackend{
		linked: map[int64]*backend.UserDTO{77: {ID: 901}},
		stats:  &backend.StatsDTO{},
	}
	h := NewStatsHandler(be, be, pres, nop)

	resp, err := h.Handle(context.Background(), req("/stats"))

	require.NoError(t, err)
	assert.Equal(t, pres.StatsEmpty(), resp.Text)
}

func TestCredentialsHandler_Email(t *testing.T) {
	linker := &fakeLinker{}
	h := NewCredentialsHandler(linker, pres, nop)

	resp, err := h.HandleEmail(context.Background(), req("email:  a@b.com "))
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", linker.staged)
	assert.Equal(t, pres.EmailSaved("a@b.com"), resp.Text)

	linker.stageErr = errors.New("db down")
	resp, err = h.HandleEmail(context.Background(), req("email:a@b.com"))
	require.NoError(t, err)
	assert.Equal(t, pres.EmailSaveFailed(), resp.Text)
}

func TestCredentialsHandler_Password(t *testing.T) {
	tests := []struct {
		name string
		user *backend.UserDTO
		err  error
		want string
	}{
		{"success", &backend.UserDTO{Name: "Bob"}, nil, pres.LinkSuccess("Bob")},
		{"not staged", nil, shared.ErrLinkNotStaged, pres.SendEmailFirst()},
		{"stage expired", nil, shared.ErrLinkExpired, pres.SendEmailFirst()},
		{"bad credentials", nil, shared.ErrInvalidCredentials, pres.InvalidCredentials()},
		{"store failure", nil, errors.New("db down"), pres.LinkFailed()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			linker := &fakeLinker{linkUser: tt.user, linkErr: tt.err}
			h := NewCredentialsHandler(linker, pres, nop)

			resp, err := h.HandlePassword(context.Background(), req("password: secret"))

			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.Text)
			assert.Equal(t, []string{"secret"}, linker.passwords)
		})
	}
}

func TestRequest_TelegramData(t *testing.T) {
	r := Request{From: &tgbotapi.User{ID: 1, IsBot: false, FirstName: "A", LastName: "B", UserName: "ab", LanguageCode: "ru"}}

	assert.Equal(t, backend.TelegramData{ID: 1, FirstName: "A", LastName: "B", Username: "ab", LanguageCode: "ru"}, r.TelegramData())
	assert.Equal(t, int64(0), Request{}.SenderID())
}
