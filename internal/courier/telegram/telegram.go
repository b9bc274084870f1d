// Package telegram implements the courier Adapter for Telegram using
// long polling.
package telegram

import (
	"context"
	"fmt"
	"image"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/daryatsv/chapel/internal/courier"

	_ "image/jpeg"
	_ "image/png"
)

// pollTimeout is the long-poll timeout in seconds for GetUpdates.
const pollTimeout = 30

// api abstracts the tgbotapi.BotAPI methods we use, enabling test mocks.
type api interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(u tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	GetUserProfilePhotos(cfg tgbotapi.UserProfilePhotosConfig) (tgbotapi.UserProfilePhotos, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Adapter implements courier.Adapter for Telegram.
type Adapter struct {
	botToken  string
	bot       api
	mu        sync.Mutex
	connected bool
	closed    bool
	inbound   chan courier.Event
	botName   string
	http      *http.Client
}

// AdapterOpts holds parameters for creating a Telegram Adapter.
type AdapterOpts struct {
	BotToken string
	// For testing: inject a mock API instead of the real Telegram API.
	API api
}

// New creates a Telegram Adapter.
func New(opts AdapterOpts) (*Adapter, error) {
	if opts.API == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("telegram: bot token is required")
	}
	return &Adapter{
		botToken: opts.BotToken,
		bot:      opts.API,
		inbound:  make(chan courier.Event, 100),
		http:     http.DefaultClient,
	}, nil
}

// Connect authenticates against the Telegram Bot API.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return fmt.Errorf("telegram: adapter already closed")
	}
	if a.connected {
		return nil
	}

	if a.bot == nil {
		bot, err := tgbotapi.NewBotAPI(a.botToken)
		if err != nil {
			return fmt.Errorf("telegram: authenticate: %w", err)
		}
		a.botName = bot.Self.UserName
		a.bot = bot
		log.Printf("telegram: connected as @%s", bot.Self.UserName)
	}

	a.connected = true
	return nil
}

// Listen starts long polling and returns the inbound event channel. The
// channel is closed when the context is cancelled or the adapter is
// closed. Must be called after Connect.
func (a *Adapter) Listen(ctx context.Context) (<-chan courier.Event, error) {
	a.mu.Lock()
	if !a.connected {
		a.mu.Unlock()
		return nil, fmt.Errorf("telegram: not connected")
	}
	bot := a.bot
	a.mu.Unlock()

	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = pollTimeout
	updates := bot.GetUpdatesChan(cfg)

	go func() {
		defer close(a.inbound)
		for {
			select {
			case <-ctx.Done():
				bot.StopReceivingUpdates()
				return
			case upd, ok := <-updates:
				if !ok {
					return
				}
				if ev, ok := convertUpdate(upd); ok {
					select {
					case a.inbound <- ev:
					case <-ctx.Done():
						bot.StopReceivingUpdates()
						return
					}
				}
			}
		}
	}()

	return a.inbound, nil
}

// Send delivers an HTML-formatted message and returns its message ID as
// the surface reference.
func (a *Adapter) Send(ctx context.Context, msg courier.Outbound) (string, error) {
	m := tgbotapi.NewMessage(msg.ChatID, msg.Text)
	m.ParseMode = tgbotapi.ModeHTML
	if len(msg.Buttons) > 0 {
		m.ReplyMarkup = buildKeyboard(msg.Buttons)
	}

	sent, err := a.bot.Send(m)
	if err != nil {
		return "", fmt.Errorf("telegram: send message: %w", err)
	}
	return strconv.Itoa(sent.MessageID), nil
}

// Edit replaces the text and buttons of a previously sent message.
func (a *Adapter) Edit(ctx context.Context, chatID int64, surfaceRef string, msg courier.Outbound) error {
	messageID, err := strconv.Atoi(surfaceRef)
	if err != nil {
		return fmt.Errorf("telegram: bad surface ref %q: %w", surfaceRef, err)
	}

	var edit tgbotapi.EditMessageTextConfig
	if len(msg.Buttons) > 0 {
		edit = tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, msg.Text, buildKeyboard(msg.Buttons))
	} else {
		edit = tgbotapi.NewEditMessageText(chatID, messageID, msg.Text)
	}
	edit.ParseMode = tgbotapi.ModeHTML

	if _, err := a.bot.Send(edit); err != nil {
		return fmt.Errorf("telegram: edit message: %w", err)
	}
	return nil
}

// SendPhoto delivers a PNG with an HTML caption.
func (a *Adapter) SendPhoto(ctx context.Context, chatID int64, pngData []byte, caption string) error {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "card.png", Bytes: pngData})
	photo.Caption = caption
	photo.ParseMode = tgbotapi.ModeHTML

	if _, err := a.bot.Send(photo); err != nil {
		return fmt.Errorf("telegram: send photo: %w", err)
	}
	return nil
}

// Alert shows a popup to the user who pressed the button.
func (a *Adapter) Alert(ctx context.Context, pressID, text string) error {
	if _, err := a.bot.Request(tgbotapi.NewCallbackWithAlert(pressID, text)); err != nil {
		return fmt.Errorf("telegram: answer callback: %w", err)
	}
	return nil
}

// Ack dismisses the button press spinner, optionally with a toast.
func (a *Adapter) Ack(ctx context.Context, pressID, text string) error {
	if _, err := a.bot.Request(tgbotapi.NewCallback(pressID, text)); err != nil {
		return fmt.Errorf("telegram: answer callback: %w", err)
	}
	return nil
}

// Avatar fetches the user's current profile photo at the largest
// available size. Returns (nil, nil) when the user has none.
func (a *Adapter) Avatar(ctx context.Context, userID int64) (image.Image, error) {
	photos, err := a.bot.GetUserProfilePhotos(tgbotapi.UserProfilePhotosConfig{UserID: userID, Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("telegram: profile photos: %w", err)
	}
	if photos.TotalCount == 0 || len(photos.Photos) == 0 || len(photos.Photos[0]) == 0 {
		return nil, nil
	}

	// Sizes are ordered small to large; take the last.
	sizes := photos.Photos[0]
	fileID := sizes[len(sizes)-1].FileID

	url, err := a.bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("telegram: file url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("telegram: avatar request: %w", err)
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram: download avatar: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telegram: download avatar: status %d", resp.StatusCode)
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("telegram: decode avatar: %w", err)
	}
	return img, nil
}

// Close gracefully shuts down the adapter.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	a.connected = false
	if a.bot != nil {
		a.bot.StopReceivingUpdates()
	}
	return nil
}

// convertUpdate translates a Telegram update into a courier event.
// Updates we don't handle (edits, channel posts) return ok=false.
func convertUpdate(upd tgbotapi.Update) (courier.Event, bool) {
	switch {
	case upd.Message != nil:
		return convertMessage(upd.Message), true
	case upd.CallbackQuery != nil:
		return convertCallback(upd.CallbackQuery), true
	}
	return courier.Event{}, false
}

func convertMessage(m *tgbotapi.Message) courier.Event {
	ev := courier.Event{
		Kind:     courier.EventMessage,
		Platform: "telegram",
		ChatID:   m.Chat.ID,
		Private:  m.Chat.IsPrivate(),
		Text:     m.Text,
	}
	if m.From != nil {
		ev.UserID = m.From.ID
		ev.Handle = m.From.UserName
		ev.FirstName = m.From.FirstName
		ev.LastName = m.From.LastName
		ev.IsBot = m.From.IsBot
	}
	if m.IsCommand() {
		ev.Kind = courier.EventCommand
		ev.Command = m.Command()
		ev.Args = strings.Fields(m.CommandArguments())
	}
	return ev
}

func convertCallback(cb *tgbotapi.CallbackQuery) courier.Event {
	ev := courier.Event{
		Kind:      courier.EventPress,
		Platform:  "telegram",
		PressID:   cb.ID,
		PressData: cb.Data,
	}
	if cb.From != nil {
		ev.UserID = cb.From.ID
		ev.Handle = cb.From.UserName
		ev.FirstName = cb.From.FirstName
		ev.LastName = cb.From.LastName
		ev.IsBot = cb.From.IsBot
	}
	if cb.Message != nil {
		ev.ChatID = cb.Message.Chat.ID
		ev.Private = cb.Message.Chat.IsPrivate()
		ev.SurfaceRef = strconv.Itoa(cb.Message.MessageID)
	}
	return ev
}

// buildKeyboard translates button rows into an inline keyboard.
func buildKeyboard(rows [][]courier.Button) tgbotapi.InlineKeyboardMarkup {
	var kb [][]tgbotapi.InlineKeyboardButton
	for _, row := range rows {
		var r []tgbotapi.InlineKeyboardButton
		for _, b := range row {
			r = append(r, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Data))
		}
		kb = append(kb, r)
	}
	return tgbotapi.NewInlineKeyboardMarkup(kb...)
}
