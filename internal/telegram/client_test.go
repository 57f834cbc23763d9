package telegram

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psds-microservice/supportbot/internal/conversation"
	"github.com/psds-microservice/supportbot/internal/errs"
)

type sentLog struct {
	mu   sync.Mutex
	msgs []string
}

func (s *sentLog) add(m string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, m)
}

func (s *sentLog) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.msgs...)
}

// fakeAPI answers the handful of Bot API methods the client uses.
func fakeAPI(t *testing.T, sendOK bool) (*httptest.Server, *sentLog) {
	t.Helper()
	sent := &sentLog{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			io.WriteString(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"support","username":"support_bot"}}`)
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			assert.NoError(t, r.ParseForm())
			if !sendOK {
				io.WriteString(w, `{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`)
				return
			}
			sent.add(r.Form.Get("chat_id") + ":" + r.Form.Get("text"))
			io.WriteString(w, `{"ok":true,"result":{"message_id":5,"date":0,"chat":{"id":42,"type":"private"}}}`)
		case strings.HasSuffix(r.URL.Path, "/getFile"):
			io.WriteString(w, `{"ok":true,"result":{"file_id":"abc","file_unique_id":"u","file_path":"photos/file_1.jpg"}}`)
		case strings.HasPrefix(r.URL.Path, "/file/"):
			io.WriteString(w, "jpeg-bytes")
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, sent
}

func newTestClient(srv *httptest.Server) *Client {
	return NewClient("123:abc", time.Second, time.Second,
		WithEndpoints(srv.URL+"/bot%s/%s", srv.URL+"/file/bot%s/%s"))
}

func TestSendMenu(t *testing.T) {
	srv, sent := fakeAPI(t, true)
	c := newTestClient(srv)

	require.NoError(t, c.SendMenu(context.Background(), 42, "hi", conversation.CancelKeyboard))
	assert.Equal(t, []string{"42:hi"}, sent.all())
}

func TestSendTextWrapsPlatformError(t *testing.T) {
	srv, _ := fakeAPI(t, false)
	err := newTestClient(srv).SendText(context.Background(), 42, "hi")
	require.Error(t, err)
	assert.True(t, errs.IsTransport(err))
}

func TestConnectFailureIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"ok":false,"error_code":401,"description":"Unauthorized"}`)
	}))
	defer srv.Close()

	err := newTestClient(srv).Connect()
	assert.True(t, errs.IsTransport(err))
}

func TestFetch(t *testing.T) {
	srv, _ := fakeAPI(t, true)
	body, path, err := newTestClient(srv).Fetch(context.Background(), "abc")
	require.NoError(t, err)
	defer body.Close()

	assert.Equal(t, "photos/file_1.jpg", path)
	b, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(b))
}
