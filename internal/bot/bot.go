package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// inboxSize bounds how many unprocessed events one user may queue up.
const inboxSize = 32

// Bot is the Telegram adapter: it runs the long-poll update loop, feeds the
// dispatcher and implements the outbound Gateway. Events from distinct users
// are handled concurrently; events from one user go through a dedicated
// worker so conversation order is preserved.
type Bot struct {
	api    *tgbotapi.BotAPI
	http   *http.Client
	logger *zap.Logger

	mu      sync.Mutex
	inboxes map[string]chan tgbotapi.Update
	wg      sync.WaitGroup
}

func New(token string, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return &Bot{
		api:     api,
		http:    http.DefaultClient,
		logger:  logger,
		inboxes: make(map[string]chan tgbotapi.Update),
	}, nil
}

// Start registers the command menu and pumps updates into per-user workers
// until ctx is cancelled.
func (b *Bot) Start(ctx context.Context, d *Dispatcher) error {
	commands := tgbotapi.NewSetMyCommands(
		tgbotapi.BotCommand{Command: "start", Description: "Start the bot"},
		tgbotapi.BotCommand{Command: "menu", Description: "Show main menu"},
		tgbotapi.BotCommand{Command: "add_cow", Description: "Add a new cow"},
		tgbotapi.BotCommand{Command: "list_cows", Description: "List your cows"},
		tgbotapi.BotCommand{Command: "identify", Description: "Identify a cow"},
	)
	if _, err := b.api.Request(commands); err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.closeInboxes()
			b.wg.Wait()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				b.closeInboxes()
				b.wg.Wait()
				return nil
			}
			from := updateSender(update)
			if from == nil {
				continue
			}
			b.inbox(ctx, d, userKey(from.ID)) <- update
		}
	}
}

// inbox returns the user's event channel, starting its worker on first use.
func (b *Bot) inbox(ctx context.Context, d *Dispatcher, userID string) chan tgbotapi.Update {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.inboxes[userID]
	if !ok {
		ch = make(chan tgbotapi.Update, inboxSize)
		b.inboxes[userID] = ch
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			for update := range ch {
				b.handleUpdate(ctx, d, update)
			}
		}()
	}
	return ch
}

func (b *Bot) closeInboxes() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.inboxes {
		close(ch)
	}
	b.inboxes = make(map[string]chan tgbotapi.Update)
}

func (b *Bot) handleUpdate(ctx context.Context, d *Dispatcher, update tgbotapi.Update) {
	if q := update.CallbackQuery; q != nil {
		if _, err := b.api.Request(tgbotapi.NewCallback(q.ID, "")); err != nil {
			b.logger.Error("failed to answer callback", zap.Error(err))
		}
		d.OnButton(ctx, identity(q.From), q.Data)
		return
	}

	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	from := identity(msg.From)

	switch {
	case msg.IsCommand():
		d.OnCommand(ctx, from, msg.Command())
	case len(msg.Photo) > 0:
		// Telegram lists sizes ascending; take the largest.
		photo := msg.Photo[len(msg.Photo)-1]
		image, err := b.downloadPhoto(ctx, photo.FileID)
		if err != nil {
			b.logger.Error("failed to download photo",
				zap.Error(err),
				zap.String("user_id", from.ID),
				zap.String("file_id", photo.FileID))
			b.SendText(ctx, from.ID, replyTryAgain, nil)
			return
		}
		d.OnPhoto(ctx, from, photo.FileID, image)
	case msg.Text != "":
		d.OnText(ctx, from, msg.Text)
	}
}

func (b *Bot) downloadPhoto(ctx context.Context, fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve file: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("file download returned %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// SendText implements Gateway.
func (b *Bot) SendText(ctx context.Context, userID, text string, actions []Action) error {
	chatID, err := parseChatID(userID)
	if err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if len(actions) > 0 {
		msg.ReplyMarkup = keyboard(actions)
	}
	_, err = b.api.Send(msg)
	return err
}

// SendPhoto implements Gateway, re-sending a photo the transport already
// holds by its file id.
func (b *Bot) SendPhoto(ctx context.Context, userID, photoRef, caption string, actions []Action) error {
	chatID, err := parseChatID(userID)
	if err != nil {
		return err
	}
	msg := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(photoRef))
	msg.Caption = caption
	if len(actions) > 0 {
		msg.ReplyMarkup = keyboard(actions)
	}
	_, err = b.api.Send(msg)
	return err
}

// SendAlert implements broadcast.Sender.
func (b *Bot) SendAlert(ctx context.Context, userID, photoRef, caption string) error {
	return b.SendPhoto(ctx, userID, photoRef, caption, nil)
}

func keyboard(actions []Action) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(actions))
	for _, a := range actions {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(a.Label, a.ID)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func parseChatID(userID string) (int64, error) {
	id, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad user id %q: %w", userID, err)
	}
	return id, nil
}

func identity(u *tgbotapi.User) Identity {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.UserName
	}
	return Identity{ID: userKey(u.ID), Name: name}
}

func userKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

func updateSender(update tgbotapi.Update) *tgbotapi.User {
	switch {
	case update.CallbackQuery != nil:
		return update.CallbackQuery.From
	case update.Message != nil:
		return update.Message.From
	default:
		return nil
	}
}
