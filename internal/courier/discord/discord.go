// Package discord implements the courier Adapter for Discord using the
// Gateway WebSocket. Commands arrive as "!"-prefixed messages and button
// presses as message component interactions.
package discord

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/daryatsv/chapel/internal/courier"

	_ "image/jpeg"
	_ "image/png"
)

// commandPrefix marks a message as a bot command.
const commandPrefix = "!"

// session abstracts the discordgo.Session methods we use, enabling test mocks.
type session interface {
	Open() error
	Close() error
	AddHandler(handler interface{}) func()
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error)
}

// realSession wraps *discordgo.Session to implement the session interface.
type realSession struct {
	s *discordgo.Session
}

func (r *realSession) Open() error  { return r.s.Open() }
func (r *realSession) Close() error { return r.s.Close() }
func (r *realSession) AddHandler(handler interface{}) func() {
	return r.s.AddHandler(handler)
}
func (r *realSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	return r.s.ChannelMessageSendComplex(channelID, data, options...)
}
func (r *realSession) ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	return r.s.ChannelMessageEditComplex(m, options...)
}
func (r *realSession) InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error {
	return r.s.InteractionRespond(interaction, resp, options...)
}
func (r *realSession) User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error) {
	return r.s.User(userID, options...)
}

// Adapter implements courier.Adapter for Discord via the Gateway WebSocket.
type Adapter struct {
	sess           session
	botToken       string
	mu             sync.Mutex
	connected      bool
	closed         bool
	inbound        chan courier.Event
	botUserID      string
	removeHandlers []func()
	// presses maps a press ID to its interaction so Alert/Ack can
	// respond to it. Entries are removed once responded to.
	presses map[string]*discordgo.Interaction
	http    *http.Client
}

// AdapterOpts holds parameters for creating a Discord Adapter.
type AdapterOpts struct {
	BotToken string
	// For testing: inject a mock session instead of real Discord API.
	Session session
}

// New creates a Discord Adapter.
func New(opts AdapterOpts) (*Adapter, error) {
	if opts.Session == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("discord: bot token is required")
	}
	return &Adapter{
		botToken: opts.BotToken,
		sess:     opts.Session,
		inbound:  make(chan courier.Event, 100),
		presses:  make(map[string]*discordgo.Interaction),
		http:     http.DefaultClient,
	}, nil
}

// Connect establishes the Discord Gateway WebSocket connection.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return fmt.Errorf("discord: adapter already closed")
	}
	if a.connected {
		return nil
	}

	if a.sess == nil {
		dg, err := discordgo.New("Bot " + a.botToken)
		if err != nil {
			return fmt.Errorf("discord: create session: %w", err)
		}
		dg.Identify.Intents = discordgo.IntentsGuildMessages |
			discordgo.IntentsDirectMessages |
			discordgo.IntentsMessageContent
		a.sess = &realSession{s: dg}
	}

	a.sess.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		a.mu.Lock()
		a.botUserID = r.User.ID
		a.mu.Unlock()
		log.Printf("discord: connected as %s (ID: %s)", r.User.Username, r.User.ID)
	})

	if err := a.sess.Open(); err != nil {
		return fmt.Errorf("discord: open gateway: %w", err)
	}

	a.connected = true
	return nil
}

// Listen registers Gateway handlers and returns the inbound event
// channel. Must be called after Connect.
func (a *Adapter) Listen(ctx context.Context) (<-chan courier.Event, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.connected {
		return nil, fmt.Errorf("discord: not connected")
	}

	rm1 := a.sess.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		a.handleMessage(ctx, m)
	})
	rm2 := a.sess.AddHandler(func(_ *discordgo.Session, i *discordgo.InteractionCreate) {
		a.handleInteraction(ctx, i)
	})
	a.removeHandlers = append(a.removeHandlers, rm1, rm2)

	return a.inbound, nil
}

// Send delivers a message, optionally with button components, and
// returns the message ID as the surface reference.
func (a *Adapter) Send(ctx context.Context, msg courier.Outbound) (string, error) {
	data := &discordgo.MessageSend{
		Content:    renderText(msg.Text),
		Components: buildComponents(msg.Buttons),
	}
	sent, err := a.sess.ChannelMessageSendComplex(formatSnowflake(msg.ChatID), data)
	if err != nil {
		return "", fmt.Errorf("discord: send message: %w", err)
	}
	return sent.ID, nil
}

// Edit replaces the text and buttons of a previously sent message.
func (a *Adapter) Edit(ctx context.Context, chatID int64, surfaceRef string, msg courier.Outbound) error {
	content := renderText(msg.Text)
	components := buildComponents(msg.Buttons)
	if components == nil {
		components = []discordgo.MessageComponent{}
	}
	_, err := a.sess.ChannelMessageEditComplex(&discordgo.MessageEdit{
		ID:         surfaceRef,
		Channel:    formatSnowflake(chatID),
		Content:    &content,
		Components: &components,
	})
	if err != nil {
		return fmt.Errorf("discord: edit message: %w", err)
	}
	return nil
}

// SendPhoto delivers a PNG attachment with a caption.
func (a *Adapter) SendPhoto(ctx context.Context, chatID int64, pngData []byte, caption string) error {
	data := &discordgo.MessageSend{
		Content: renderText(caption),
		Files: []*discordgo.File{{
			Name:        "card.png",
			ContentType: "image/png",
			Reader:      bytes.NewReader(pngData),
		}},
	}
	if _, err := a.sess.ChannelMessageSendComplex(formatSnowflake(chatID), data); err != nil {
		return fmt.Errorf("discord: send photo: %w", err)
	}
	return nil
}

// Alert responds to a button press with an ephemeral message only the
// presser can see.
func (a *Adapter) Alert(ctx context.Context, pressID, text string) error {
	interaction := a.takePress(pressID)
	if interaction == nil {
		return fmt.Errorf("discord: unknown press %q", pressID)
	}
	err := a.sess.InteractionRespond(interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: renderText(text),
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		return fmt.Errorf("discord: respond to press: %w", err)
	}
	return nil
}

// Ack acknowledges a button press without visible output. Discord has
// no toast equivalent, so the text is dropped.
func (a *Adapter) Ack(ctx context.Context, pressID, text string) error {
	interaction := a.takePress(pressID)
	if interaction == nil {
		return fmt.Errorf("discord: unknown press %q", pressID)
	}
	err := a.sess.InteractionRespond(interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	})
	if err != nil {
		return fmt.Errorf("discord: respond to press: %w", err)
	}
	return nil
}

// Avatar fetches and decodes a user's profile picture. Returns
// (nil, nil) when the user has the default avatar.
func (a *Adapter) Avatar(ctx context.Context, userID int64) (image.Image, error) {
	u, err := a.sess.User(formatSnowflake(userID))
	if err != nil {
		return nil, fmt.Errorf("discord: fetch user: %w", err)
	}
	if u.Avatar == "" {
		return nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.AvatarURL("256"), nil)
	if err != nil {
		return nil, fmt.Errorf("discord: avatar request: %w", err)
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("discord: download avatar: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discord: download avatar: status %d", resp.StatusCode)
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("discord: decode avatar: %w", err)
	}
	return img, nil
}

// Close gracefully shuts down the adapter connection.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	a.connected = false
	for _, rm := range a.removeHandlers {
		rm()
	}
	close(a.inbound)
	if a.sess != nil {
		return a.sess.Close()
	}
	return nil
}

// handleMessage converts a Discord message event into a courier event.
func (a *Adapter) handleMessage(ctx context.Context, m *discordgo.MessageCreate) {
	if m.Author == nil {
		return
	}

	a.mu.Lock()
	botID := a.botUserID
	a.mu.Unlock()
	if m.Author.ID == botID {
		return
	}

	ev := courier.Event{
		Kind:      courier.EventMessage,
		Platform:  "discord",
		ChatID:    parseSnowflake(m.ChannelID),
		Private:   m.GuildID == "",
		UserID:    parseSnowflake(m.Author.ID),
		Handle:    m.Author.Username,
		FirstName: displayName(m.Author),
		IsBot:     m.Author.Bot,
		Text:      m.Content,
	}

	if strings.HasPrefix(m.Content, commandPrefix) {
		fields := strings.Fields(strings.TrimPrefix(m.Content, commandPrefix))
		if len(fields) > 0 && fields[0] != "" {
			ev.Kind = courier.EventCommand
			ev.Command = strings.ToLower(fields[0])
			ev.Args = fields[1:]
		}
	}

	a.deliver(ctx, ev)
}

// handleInteraction converts a button component press into a courier
// event and parks the interaction for Alert/Ack.
func (a *Adapter) handleInteraction(ctx context.Context, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionMessageComponent {
		return
	}

	user := i.User
	if i.Member != nil {
		user = i.Member.User
	}
	if user == nil {
		return
	}

	a.mu.Lock()
	a.presses[i.ID] = i.Interaction
	a.mu.Unlock()

	ev := courier.Event{
		Kind:      courier.EventPress,
		Platform:  "discord",
		ChatID:    parseSnowflake(i.ChannelID),
		Private:   i.GuildID == "",
		UserID:    parseSnowflake(user.ID),
		Handle:    user.Username,
		FirstName: displayName(user),
		IsBot:     user.Bot,
		PressID:   i.ID,
		PressData: i.MessageComponentData().CustomID,
	}
	if i.Message != nil {
		ev.SurfaceRef = i.Message.ID
	}

	a.deliver(ctx, ev)
}

func (a *Adapter) deliver(ctx context.Context, ev courier.Event) {
	select {
	case a.inbound <- ev:
	case <-ctx.Done():
	}
}

// takePress removes and returns the parked interaction for a press ID.
func (a *Adapter) takePress(pressID string) *discordgo.Interaction {
	a.mu.Lock()
	defer a.mu.Unlock()
	interaction := a.presses[pressID]
	delete(a.presses, pressID)
	return interaction
}

func displayName(u *discordgo.User) string {
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

func parseSnowflake(id string) int64 {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func formatSnowflake(id int64) string {
	return strconv.FormatInt(id, 10)
}

// buildComponents translates button rows into Discord action rows.
func buildComponents(rows [][]courier.Button) []discordgo.MessageComponent {
	var out []discordgo.MessageComponent
	for _, row := range rows {
		var r []discordgo.MessageComponent
		for _, b := range row {
			r = append(r, discordgo.Button{
				Label:    b.Label,
				Style:    discordgo.SecondaryButton,
				CustomID: b.Data,
			})
		}
		out = append(out, discordgo.ActionsRow{Components: r})
	}
	return out
}

// htmlReplacer converts the router's HTML markup to Discord markdown.
var htmlReplacer = strings.NewReplacer(
	"<b>", "**", "</b>", "**",
	"<i>", "*", "</i>", "*",
	"<code>", "`", "</code>", "`",
)

func renderText(text string) string {
	return htmlReplacer.Replace(text)
}
