package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultClientConfig("TOKEN")
	cfg.BaseURL = srv.URL
	return NewClient(cfg)
}

func TestSendMessage(t *testing.T) {
	var gotPath string
	var got map[string]any

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1}}`))
	})

	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Link", "link_account")),
	)
	err := client.SendMessage(context.Background(), 42, "<b>hi</b>", &markup)
	require.NoError(t, err)

	assert.Equal(t, "/botTOKEN/sendMessage", gotPath)
	assert.Equal(t, float64(42), got["chat_id"])
	assert.Equal(t, "<b>hi</b>", got["text"])
	assert.Equal(t, "HTML", got["parse_mode"])

	keyboard, ok := got["reply_markup"].(map[string]any)
	require.True(t, ok)
	rows := keyboard["inline_keyboard"].([]any)
	button := rows[0].([]any)[0].(map[string]any)
	assert.Equal(t, "link_account", button["callback_data"])
}

func TestSendMessageWithoutMarkup(t *testing.T) {
	var got map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"ok":true,"result":{}}`))
	})

	require.NoError(t, client.SendMessage(context.Background(), 1, "text", nil))
	_, present := got["reply_markup"]
	assert.False(t, present)
}

func TestSendMessageAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`))
	})

	err := client.SendMessage(context.Background(), 1, "text", nil)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 403, apiErr.Code)
	assert.Contains(t, apiErr.Description, "blocked")
}

func TestAnswerCallbackQuery(t *testing.T) {
	var got map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/answerCallbackQuery", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
	})

	require.NoError(t, client.AnswerCallbackQuery(context.Background(), "cb-1"))
	assert.Equal(t, "cb-1", got["callback_query_id"])
}
