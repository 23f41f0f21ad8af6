package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mymmrac/telego"
	ta "github.com/mymmrac/telego/telegoapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bansync/internal/models"
)

const testToken = "123456789:AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

func TestIsNotModified(t *testing.T) {
	notModified := &ta.Error{
		ErrorCode:   400,
		Description: "Bad Request: message is not modified: specified new message content and reply markup are exactly the same",
	}
	assert.True(t, isNotModified(fmt.Errorf("telego: editMessageText: api: %w", notModified)))

	assert.False(t, isNotModified(&ta.Error{ErrorCode: 400, Description: "Bad Request: message to edit not found"}))
	assert.False(t, isNotModified(errors.New("message is not modified")))
}

// telegramServer answers Bot API calls by method name.
func telegramServer(t *testing.T, methods map[string]func(body map[string]any) string) *Telegram {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		handle, ok := methods[method]
		if !ok {
			t.Errorf("unexpected Bot API call %s", method)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		body := map[string]any{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode %s request: %v", method, err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(handle(body)))
	}))
	t.Cleanup(srv.Close)

	bot, err := telego.NewBot(testToken,
		telego.WithAPIServer(srv.URL),
		telego.WithHTTPClient(srv.Client()),
		telego.WithDiscardLogger(),
	)
	require.NoError(t, err)
	return NewTelegram(bot, -100500, true)
}

func message(id int) string {
	return fmt.Sprintf(`{"ok":true,"result":{"message_id":%d,"date":0,"chat":{"id":-100500,"type":"channel"}}}`, id)
}

func TestTelegramPublishDecisionReplies(t *testing.T) {
	replies := make(chan map[string]any, 1)
	tg := telegramServer(t, map[string]func(map[string]any) string{
		"editMessageText": func(body map[string]any) string {
			assert.EqualValues(t, 77, body["message_id"])
			assert.Contains(t, body["text"], "Ban confirmed")
			return message(77)
		},
		"sendMessage": func(body map[string]any) string {
			replies <- body
			return message(901)
		},
	})

	comment, err := tg.PublishDecision(context.Background(), &models.BanRecord{ID: 3, Subject: "griefer", Status: models.DecisionApproved}, 77)
	require.NoError(t, err)
	assert.EqualValues(t, 901, comment)

	reply := <-replies
	params, ok := reply["reply_parameters"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 77, params["message_id"])
}

func TestTelegramPublishDecisionToleratesRepeatedEdit(t *testing.T) {
	tg := telegramServer(t, map[string]func(map[string]any) string{
		"editMessageText": func(map[string]any) string {
			return `{"ok":false,"error_code":400,"description":"Bad Request: message is not modified"}`
		},
		"sendMessage": func(map[string]any) string {
			return message(902)
		},
	})

	comment, err := tg.PublishDecision(context.Background(), &models.BanRecord{ID: 3, Status: models.DecisionRejected}, 77)
	require.NoError(t, err)
	assert.EqualValues(t, 902, comment)
}

func TestTelegramPublishDecisionFailsOnEditError(t *testing.T) {
	tg := telegramServer(t, map[string]func(map[string]any) string{
		"editMessageText": func(map[string]any) string {
			return `{"ok":false,"error_code":400,"description":"Bad Request: message to edit not found"}`
		},
	})

	_, err := tg.PublishDecision(context.Background(), &models.BanRecord{ID: 3, Status: models.DecisionRejected}, 77)
	assert.Error(t, err)
}

func TestTelegramPublishAddsModerationButtons(t *testing.T) {
	tg := telegramServer(t, map[string]func(map[string]any) string{
		"sendMessage": func(body map[string]any) string {
			assert.Equal(t, "HTML", body["parse_mode"])
			assert.Contains(t, body, "reply_markup")
			return message(55)
		},
	})

	id, err := tg.Publish(context.Background(), &models.BanRecord{ID: 1, Subject: "griefer"})
	require.NoError(t, err)
	assert.EqualValues(t, 55, id)
}
