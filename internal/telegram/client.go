package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/psds-microservice/supportbot/internal/conversation"
	"github.com/psds-microservice/supportbot/internal/errs"
	"github.com/psds-microservice/supportbot/internal/logger"
)

const downloadTimeout = 2 * time.Minute

// Client talks to the Bot API. The connection is established on first use
// and retried on the next call when it fails.
type Client struct {
	token        string
	apiEndpoint  string
	fileEndpoint string
	pollTimeout  time.Duration
	http         *http.Client
	download     *http.Client
	log          *logger.Logger

	mu  sync.Mutex
	api *tgbotapi.BotAPI
}

type Option func(*Client)

// WithEndpoints overrides the Bot API and file download URL templates.
// Both take the token and the method or file path as %s verbs.
func WithEndpoints(api, file string) Option {
	return func(c *Client) {
		c.apiEndpoint = api
		c.fileEndpoint = file
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(c *Client) { c.log = l }
}

func NewClient(token string, requestTimeout, pollTimeout time.Duration, opts ...Option) *Client {
	c := &Client{
		token:        token,
		apiEndpoint:  tgbotapi.APIEndpoint,
		fileEndpoint: tgbotapi.FileEndpoint,
		pollTimeout:  pollTimeout,
		// Long polling holds the request open for pollTimeout.
		http:     &http.Client{Timeout: requestTimeout + pollTimeout},
		download: &http.Client{Timeout: downloadTimeout},
		log:      logger.Discard(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) bot() (*tgbotapi.BotAPI, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.api != nil {
		return c.api, nil
	}
	api, err := tgbotapi.NewBotAPIWithClient(c.token, c.apiEndpoint, c.http)
	if err != nil {
		return nil, &errs.TransportError{Op: "connect", Err: err}
	}
	c.log.Info("telegram connected", "bot", api.Self.UserName)
	c.api = api
	return api, nil
}

// Connect verifies the token against the Bot API.
func (c *Client) Connect() error {
	_, err := c.bot()
	return err
}

// SendText implements service.Sender.
func (c *Client) SendText(ctx context.Context, chatID int64, text string) error {
	return c.SendMenu(ctx, chatID, text, nil)
}

// SendMenu sends text with a reply keyboard; a nil keyboard leaves the
// user's current keyboard in place.
func (c *Client) SendMenu(ctx context.Context, chatID int64, text string, kb conversation.Keyboard) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	api, err := c.bot()
	if err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if len(kb) > 0 {
		msg.ReplyMarkup = replyKeyboard(kb)
	}
	if _, err := api.Send(msg); err != nil {
		return &errs.TransportError{Op: "sendMessage", Err: err}
	}
	return nil
}

// Fetch opens a download of the file and returns its platform-side path,
// whose extension hints at the content type.
func (c *Client) Fetch(ctx context.Context, fileID string) (io.ReadCloser, string, error) {
	api, err := c.bot()
	if err != nil {
		return nil, "", err
	}
	f, err := api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, "", &errs.TransportError{Op: "getFile", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(c.fileEndpoint, c.token, f.FilePath), nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := c.download.Do(req)
	if err != nil {
		return nil, "", &errs.TransportError{Op: "download", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, "", &errs.TransportError{Op: "download", Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}
	return resp.Body, f.FilePath, nil
}

// Listen long-polls for updates and hands each message to handle, one at a
// time, until ctx is cancelled.
func (c *Client) Listen(ctx context.Context, handle func(context.Context, conversation.Event, int64)) error {
	api, err := c.bot()
	if err != nil {
		return err
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = int(c.pollTimeout.Seconds())
	updates := api.GetUpdatesChan(u)
	defer api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			ev, chatID, ok := ToEvent(upd)
			if !ok {
				continue
			}
			handle(ctx, ev, chatID)
		}
	}
}

func replyKeyboard(kb conversation.Keyboard) tgbotapi.ReplyKeyboardMarkup {
	rows := make([][]tgbotapi.KeyboardButton, 0, len(kb))
	for _, r := range kb {
		row := make([]tgbotapi.KeyboardButton, 0, len(r))
		for _, label := range r {
			row = append(row, tgbotapi.NewKeyboardButton(label))
		}
		rows = append(rows, row)
	}
	m := tgbotapi.NewReplyKeyboard(rows...)
	m.ResizeKeyboard = true
	return m
}
