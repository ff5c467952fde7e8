package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/m3rciful/vouchershop/core/telegram/keyboard"
	tgsender "github.com/m3rciful/vouchershop/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// TelegramMessenger implements Messenger over a telebot instance. Outbound
// calls go through the async dispatcher when one is attached; otherwise they
// run inline.
type TelegramMessenger struct {
	bot  *tele.Bot
	disp *tgsender.Dispatcher

	mu    sync.Mutex
	chats map[string]*tele.Chat
}

// NewTelegramMessenger wraps a bot. disp may be nil.
func NewTelegramMessenger(bot *tele.Bot, disp *tgsender.Dispatcher) *TelegramMessenger {
	return &TelegramMessenger{
		bot:   bot,
		disp:  disp,
		chats: make(map[string]*tele.Chat),
	}
}

// SetDispatcher attaches the async sender after startup.
func (t *TelegramMessenger) SetDispatcher(d *tgsender.Dispatcher) {
	t.disp = d
}

// SetBot attaches the bot instance once the transport runtime has built it.
func (t *TelegramMessenger) SetBot(b *tele.Bot) {
	t.bot = b
}

func (t *TelegramMessenger) send(ctx context.Context, action, endpoint string, run func() error) error {
	if t.disp == nil {
		return run()
	}
	if err := t.disp.Enqueue(ctx, action, endpoint, run); err != nil {
		return run()
	}
	return nil
}

// recipient resolves a canonical string id into a telebot recipient.
// Numeric ids address users and chats directly; @names go through the API
// once and are cached.
func (t *TelegramMessenger) recipient(id string) (tele.Recipient, error) {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return tele.ChatID(n), nil
	}
	chat, err := t.chatByRef(id)
	if err != nil {
		return nil, err
	}
	return chat, nil
}

func (t *TelegramMessenger) chatByRef(ref string) (*tele.Chat, error) {
	t.mu.Lock()
	chat, ok := t.chats[ref]
	t.mu.Unlock()
	if ok {
		return chat, nil
	}

	if n, err := strconv.ParseInt(ref, 10, 64); err == nil {
		chat = &tele.Chat{ID: n}
	} else {
		resolved, err := t.bot.ChatByUsername(ref)
		if err != nil {
			return nil, fmt.Errorf("telegram: resolve %s: %w", ref, err)
		}
		chat = resolved
	}

	t.mu.Lock()
	t.chats[ref] = chat
	t.mu.Unlock()
	return chat, nil
}

// markup renders button rows: rows whose buttons carry an Action become an
// inline keyboard, plain-label rows become a reply keyboard.
func markup(kb [][]Button) *tele.ReplyMarkup {
	if len(kb) == 0 {
		return nil
	}

	inline := false
	for _, row := range kb {
		for _, b := range row {
			if b.Action != "" {
				inline = true
			}
		}
	}

	if !inline {
		rows := make([][]string, 0, len(kb))
		for _, row := range kb {
			labels := make([]string, 0, len(row))
			for _, b := range row {
				labels = append(labels, b.Label)
			}
			rows = append(rows, labels)
		}
		return keyboard.ReplyButtons(rows...)
	}

	rows := make([][]keyboard.InlineBtn, 0, len(kb))
	for _, row := range kb {
		btns := make([]keyboard.InlineBtn, 0, len(row))
		for _, b := range row {
			btns = append(btns, keyboard.InlineBtn{Text: b.Label, Unique: b.Action, Data: b.Data})
		}
		rows = append(rows, btns)
	}
	return keyboard.InlineButtonsRows(rows...)
}

// SendText delivers a text message with an optional keyboard.
func (t *TelegramMessenger) SendText(ctx context.Context, recipientID, text string, kb ...[]Button) error {
	to, err := t.recipient(recipientID)
	if err != nil {
		return err
	}
	rm := markup(kb)
	return t.send(ctx, "send.text", "sendMessage", func() error {
		if rm != nil {
			_, err := t.bot.Send(to, text, rm)
			return err
		}
		_, err := t.bot.Send(to, text)
		return err
	})
}

// SendPhoto delivers a photo by file reference with an optional keyboard.
func (t *TelegramMessenger) SendPhoto(ctx context.Context, recipientID, photoRef, caption string, kb ...[]Button) error {
	to, err := t.recipient(recipientID)
	if err != nil {
		return err
	}
	photo := &tele.Photo{File: tele.File{FileID: photoRef}, Caption: caption}
	rm := markup(kb)
	return t.send(ctx, "send.photo", "sendPhoto", func() error {
		if rm != nil {
			_, err := t.bot.Send(to, photo, rm)
			return err
		}
		_, err := t.bot.Send(to, photo)
		return err
	})
}

// AnswerInteraction acknowledges a callback press.
func (t *TelegramMessenger) AnswerInteraction(_ context.Context, interactionID, note string) error {
	resp := &tele.CallbackResponse{Text: note}
	return t.bot.Respond(&tele.Callback{ID: interactionID}, resp)
}

// GetMembership reports the user's membership in the given channel.
func (t *TelegramMessenger) GetMembership(_ context.Context, channelRef, userID string) (Membership, error) {
	uid, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return "", fmt.Errorf("telegram: bad user id %q: %w", userID, err)
	}
	chat, err := t.chatByRef(channelRef)
	if err != nil {
		return "", err
	}

	member, err := t.bot.ChatMemberOf(chat, &tele.User{ID: uid})
	if err != nil {
		return "", fmt.Errorf("telegram: member lookup: %w", err)
	}
	return Membership(strings.ToLower(string(member.Role))), nil
}
