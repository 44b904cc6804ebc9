package mirror

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auniver/quiz-bridge/internal/domain/shared"
	"github.com/auniver/quiz-bridge/internal/domain/telegramuser"
	"github.com/auniver/quiz-bridge/internal/domain/testresult"
	"github.com/auniver/quiz-bridge/internal/domain/user"
	"github.com/auniver/quiz-bridge/internal/infrastructure/messaging"
)

// ══════════════════════════════════════════════════════════════════════════════
// FAKES
// ══════════════════════════════════════════════════════════════════════════════

type memUsers struct {
	byEmail map[string]*user.User
	nextID  int64
	err     error
}

func newMemUsers() *memUsers {
	return &memUsers{byEmail: make(map[string]*user.User), nextID: 1}
}

func (m *memUsers) upsert(name, email, role string, hash *string, keepHash bool) int64 {
	if u, ok := m.byEmail[email]; ok {
		u.Name, u.Role = name, role
		if !keepHash {
			u.PasswordHash = hash
		}
		return u.ID
	}
	u := &user.User{ID: m.nextID, Name: name, Email: email, Role: role, PasswordHash: hash}
	m.byEmail[email] = u
	m.nextID++
	return u.ID
}

func (m *memUsers) Upsert(_ context.Context, u *user.User) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	return m.upsert(u.Name, u.Email, u.Role, u.PasswordHash, false), nil
}

func (m *memUsers) UpsertProfile(_ context.Context, p user.Profile) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	return m.upsert(p.Name, p.Email, p.Role, nil, true), nil
}

func (m *memUsers) UpdateProfile(_ context.Context, email, name, role string) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	u, ok := m.byEmail[email]
	if !ok {
		return 0, nil
	}
	u.Name, u.Role = name, role
	return 1, nil
}

func (m *memUsers) FindIDByEmail(_ context.Context, email string) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	u, ok := m.byEmail[email]
	if !ok {
		return 0, shared.ErrUserNotFound
	}
	return u.ID, nil
}

type memResults struct {
	rows []testresult.TestResult
}

func (m *memResults) Insert(_ context.Context, r *testresult.TestResult) (int64, error) {
	r.ID = int64(len(m.rows) + 1)
	m.rows = append(m.rows, *r)
	return r.ID, nil
}

type memTelegram struct {
	telegramuser.Repository
	linked map[int64]int64
	ids    map[int64]telegramuser.Identity
}

func newMemTelegram() *memTelegram {
	return &memTelegram{linked: make(map[int64]int64), ids: make(map[int64]telegramuser.Identity)}
}

func (m *memTelegram) UpsertLinked(_ context.Context, id telegramuser.Identity, userID int64) error {
	m.linked[id.TelegramID] = userID
	m.ids[id.TelegramID] = id
	return nil
}

type recordingPublisher struct {
	events []messaging.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e messaging.Event) error {
	p.events = append(p.events, e)
	return p.err
}

type fixture struct {
	users     *memUsers
	results   *memResults
	telegram  *memTelegram
	publisher *recordingPublisher
	svc       *Service
}

func newFixture() *fixture {
	f := &fixture{
		users:     newMemUsers(),
		results:   &memResults{},
		telegram:  newMemTelegram(),
		publisher: &recordingPublisher{},
	}
	f.svc = NewService(f.users, f.results, f.telegram, f.publisher,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	return f
}

// ══════════════════════════════════════════════════════════════════════════════
// TESTS
// ══════════════════════════════════════════════════════════════════════════════

func TestRegisterUser_IdempotentOnEmail(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	id1, err := f.svc.RegisterUser(ctx, UserInput{Name: "A", Email: "a@b.com", PasswordHash: "h1", Role: "student"})
	require.NoError(t, err)
	id2, err := f.svc.RegisterUser(ctx, UserInput{Name: "B", Email: "a@b.com", PasswordHash: "h2", Role: "admin"})
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	require.Len(t, f.users.byEmail, 1)
	u := f.users.byEmail["a@b.com"]
	assert.Equal(t, "B", u.Name)
	assert.Equal(t, "admin", u.Role)
	assert.Equal(t, "h2", *u.PasswordHash)

	require.Len(t, f.publisher.events, 2)
	assert.Equal(t, messaging.EventUserRegistered, f.publisher.events[0].Type)
}

func TestRegisterUser_StoreError(t *testing.T) {
	f := newFixture()
	f.users.err = errors.New("connection refused")

	_, err := f.svc.RegisterUser(context.Background(), UserInput{Email: "a@b.com"})

	assert.Error(t, err)
	assert.Empty(t, f.publisher.events)
}

func TestUpdateUser(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.svc.RegisterUser(ctx, UserInput{Name: "A", Email: "a@b.com", Role: "student"})
	require.NoError(t, err)

	require.NoError(t, f.svc.UpdateUser(ctx, UserInput{Name: "A2", Email: "a@b.com", Role: "teacher"}))

	u := f.users.byEmail["a@b.com"]
	assert.Equal(t, "A2", u.Name)
	assert.Equal(t, "teacher", u.Role)
}

func TestUpdateUser_MissingUserIsNotAnError(t *testing.T) {
	f := newFixture()

	err := f.svc.UpdateUser(context.Background(), UserInput{Name: "X", Email: "nobody@b.com", Role: "student"})

	require.NoError(t, err)
	assert.Empty(t, f.users.byEmail)
}

func TestRecordTestResult(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	userID, err := f.svc.RegisterUser(ctx, UserInput{Name: "A", Email: "a@b.com", Role: "student"})
	require.NoError(t, err)

	id, err := f.svc.RecordTestResult(ctx, "a@b.com", ResultInput{SubjectID: 3, CorrectAnswers: 7, TotalQuestions: 10})

	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	require.Len(t, f.results.rows, 1)
	assert.Equal(t, userID, f.results.rows[0].UserID)
	assert.Equal(t, 7, f.results.rows[0].CorrectAnswers)
}

func TestRecordTestResult_UnknownEmailWritesNothing(t *testing.T) {
	f := newFixture()

	_, err := f.svc.RecordTestResult(context.Background(), "ghost@b.com", ResultInput{SubjectID: 1})

	assert.True(t, shared.IsNotFound(err))
	assert.Empty(t, f.results.rows)
	assert.Empty(t, f.publisher.events)
}

func TestLinkTelegram_KeepsPasswordHash(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.svc.RegisterUser(ctx, UserInput{Name: "A", Email: "a@b.com", PasswordHash: "hash", Role: "student"})
	require.NoError(t, err)

	res, err := f.svc.LinkTelegram(ctx,
		UserInput{Name: "A", Email: "a@b.com", Role: "student"},
		TelegramInput{TelegramID: 555, Username: "alice"},
	)

	require.NoError(t, err)
	assert.Equal(t, int64(555), res.TelegramID)
	assert.Equal(t, res.UserID, f.telegram.linked[555])
	assert.Equal(t, "alice", f.telegram.ids[555].Username)
	assert.Equal(t, "hash", *f.users.byEmail["a@b.com"].PasswordHash)
}

func TestLinkTelegram_CreatesUser(t *testing.T) {
	f := newFixture()

	res, err := f.svc.LinkTelegram(context.Background(),
		UserInput{Name: "New", Email: "new@b.com", Role: "student"},
		TelegramInput{TelegramID: 7},
	)

	require.NoError(t, err)
	assert.NotZero(t, res.UserID)
	assert.Nil(t, f.users.byEmail["new@b.com"].PasswordHash)
}

func TestPublishFailureDoesNotFailSync(t *testing.T) {
	f := newFixture()
	f.publisher.err = errors.New("broker down")

	id, err := f.svc.RegisterUser(context.Background(), UserInput{Name: "A", Email: "a@b.com", Role: "student"})

	require.NoError(t, err)
	assert.NotZero(t, id)
	require.Len(t, f.publisher.events, 1)
	assert.WithinDuration(t, time.Now(), f.publisher.events[0].OccurredAt, time.Minute)
}

func TestRejectsUnkeyedRows(t *testing.T) {
	tests := []struct {
		name string
		run  func(*Service) error
	}{
		{"register without email", func(s *Service) error {
			_, err := s.RegisterUser(context.Background(), UserInput{Name: "A", Email: "  ", Role: "student"})
			return err
		}},
		{"link without email", func(s *Service) error {
			_, err := s.LinkTelegram(context.Background(), UserInput{Name: "A", Role: "student"}, TelegramInput{TelegramID: 5})
			return err
		}},
		{"link with zero telegram id", func(s *Service) error {
			_, err := s.LinkTelegram(context.Background(), UserInput{Name: "A", Email: "a@b.com", Role: "student"}, TelegramInput{})
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()

			err := tt.run(f.svc)

			assert.ErrorIs(t, err, shared.ErrInvalidInput)
			assert.Empty(t, f.users.byEmail)
			assert.Empty(t, f.telegram.linked)
			assert.Empty(t, f.publisher.events)
		})
	}
}
