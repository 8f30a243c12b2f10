package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/raine/visual-measurement/internal/measurement"
	"github.com/raine/visual-measurement/internal/storage"
	"github.com/rs/zerolog/log"
)

// BotAPI defines the interface for Telegram bot API operations.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Processor measures one product.
type Processor interface {
	Process(ctx context.Context, productID string, urls []string) *measurement.ProductMeasurement
}

// Bot is the Telegram front-end for the measurement pipeline.
type Bot struct {
	tg        BotAPI
	store     storage.WhitelistStore
	processor Processor
	adminID   int64

	// users with a measurement in flight
	busyMu sync.Mutex
	busy   map[int64]bool
}

// NewBot creates a new Bot instance.
func NewBot(tg BotAPI, store storage.WhitelistStore, processor Processor, adminID int64) *Bot {
	return &Bot{
		tg:        tg,
		store:     store,
		processor: processor,
		adminID:   adminID,
		busy:      make(map[int64]bool),
	}
}

// HandleUpdate is the main message router.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	userId := update.Message.From.ID

	// Admin is always allowed. Fail closed when the whitelist can't be read.
	if userId != b.adminID {
		allowed, err := b.store.IsUserAllowed(userId)
		if err != nil {
			log.Error().Err(err).Int64("userId", userId).Msg("whitelist check failed")
			return
		}
		if !allowed {
			log.Info().Int64("userId", userId).Msg("ignoring message from non-whitelisted user")
			b.reply(userId, MsgNotAllowed, userId)
			return
		}
	}

	log.Info().Int64("userId", userId).Str("text", update.Message.Text).Msg("got message")
	b.handleCommand(ctx, userId, update.Message.Text)
}

func (b *Bot) handleCommand(ctx context.Context, userId int64, text string) {
	command, args := parseCommand(text)
	switch command {
	case "/start", "/help":
		b.reply(userId, MsgStart)
	case "/measure":
		b.handleMeasureCommand(ctx, userId, args)
	case "/allow":
		b.handleAllowCommand(userId, args)
	case "/deny":
		b.handleDenyCommand(userId, args)
	case "/users":
		b.handleUsersCommand(userId)
	default:
		b.reply(userId, MsgUnknownCommand)
	}
}

// handleMeasureCommand handles /measure <product_id> <url> [url...].
func (b *Bot) handleMeasureCommand(ctx context.Context, userId int64, args []string) {
	if len(args) < 2 {
		b.reply(userId, MsgMeasureUsage)
		return
	}
	productID, urls := args[0], args[1:]

	if !b.acquire(userId) {
		b.reply(userId, MsgMeasureInProgress)
		return
	}
	defer b.release(userId)

	b.reply(userId, MsgMeasureStarted, escapeMarkdown(productID), len(urls))
	b.sendTypingAction(userId)

	result := b.processor.Process(ctx, productID, urls)
	b.reply(userId, formatMeasurement(result))
}

func (b *Bot) handleAllowCommand(userId int64, args []string) {
	if userId != b.adminID {
		b.reply(userId, MsgAdminOnly)
		return
	}
	target, ok := b.parseUserIDArg(userId, args, MsgAllowUsage)
	if !ok {
		return
	}
	if err := b.store.AddAllowedUser(target, userId); err != nil {
		b.replyWithError(userId, err)
		return
	}
	b.reply(userId, MsgUserAllowed, target)
}

func (b *Bot) handleDenyCommand(userId int64, args []string) {
	if userId != b.adminID {
		b.reply(userId, MsgAdminOnly)
		return
	}
	target, ok := b.parseUserIDArg(userId, args, MsgDenyUsage)
	if !ok {
		return
	}
	if err := b.store.RemoveAllowedUser(target); err != nil {
		b.replyWithError(userId, err)
		return
	}
	b.reply(userId, MsgUserDenied, target)
}

func (b *Bot) handleUsersCommand(userId int64) {
	if userId != b.adminID {
		b.reply(userId, MsgAdminOnly)
		return
	}
	users, err := b.store.GetAllowedUsers()
	if err != nil {
		b.replyWithError(userId, err)
		return
	}
	if len(users) == 0 {
		b.reply(userId, MsgNoAllowedUsers)
		return
	}
	var sb strings.Builder
	sb.WriteString(MsgAllowedUsersHeader)
	for _, u := range users {
		sb.WriteString(fmt.Sprintf("• `%d` (added %s)\n", u.TelegramID, u.AddedAt.Format("2006-01-02")))
	}
	b.reply(userId, sb.String())
}

func (b *Bot) parseUserIDArg(userId int64, args []string, usage string) (int64, bool) {
	if len(args) < 1 {
		b.reply(userId, usage)
		return 0, false
	}
	target, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		b.reply(userId, MsgInvalidUserID)
		return 0, false
	}
	return target, true
}

func (b *Bot) acquire(userId int64) bool {
	b.busyMu.Lock()
	defer b.busyMu.Unlock()
	if b.busy[userId] {
		return false
	}
	b.busy[userId] = true
	return true
}

func (b *Bot) release(userId int64) {
	b.busyMu.Lock()
	defer b.busyMu.Unlock()
	delete(b.busy, userId)
}

func (b *Bot) reply(chatId int64, text string, a ...any) tgbotapi.Message {
	msg := tgbotapi.NewMessage(chatId, formatReplyText(text, a...))
	msg.ParseMode = tgbotapi.ModeMarkdown
	sent, err := b.tg.Send(msg)
	if err != nil {
		log.Error().Err(fmt.Errorf("failed to send reply message: %w", err)).Int64("chatId", chatId).Send()
	}
	return sent
}

func (b *Bot) replyWithError(chatId int64, err error) tgbotapi.Message {
	log.Error().Stack().Err(err).Send()
	return b.reply(chatId, MsgUnexpectedErr, err)
}

// sendTypingAction shows the typing indicator. It expires after ~5 seconds.
func (b *Bot) sendTypingAction(chatId int64) {
	action := tgbotapi.NewChatAction(chatId, tgbotapi.ChatTyping)
	// sendChatAction returns a boolean, not a Message
	if _, err := b.tg.Request(action); err != nil {
		log.Debug().Err(err).Int64("chatId", chatId).Msg("failed to send typing action")
	}
}
