package controller

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/scinklja/vip-bot/logic"
	"github.com/scinklja/vip-bot/pkg"
)

// BotController dispatches inbound platform updates: command messages
// go to the verification engine, everything else to moderation. Each
// update is handled in isolation; a failing handler is logged and the
// update is considered consumed.
type BotController struct {
	verifier  *logic.VerificationEngine
	moderator *logic.ModerationEngine
	chat      *pkg.ChatClient
	log       *slog.Logger
}

func NewBotController(
	verifier *logic.VerificationEngine,
	moderator *logic.ModerationEngine,
	chat *pkg.ChatClient,
	log *slog.Logger,
) *BotController {
	return &BotController{
		verifier:  verifier,
		moderator: moderator,
		chat:      chat,
		log:       log,
	}
}

// Start begins long-polling for updates.
func (c *BotController) Start(ctx context.Context) {
	c.chat.StartPolling(ctx, func(u pkg.Update) {
		c.handleUpdate(ctx, u)
	})
}

func displayName(u *pkg.ChatUser) string {
	if u.Username != "" {
		return "@" + u.Username
	}
	return u.FirstName
}

func isGroup(chatType string) bool {
	return chatType == "group" || chatType == "supergroup"
}

func (c *BotController) handleUpdate(parent context.Context, u pkg.Update) {
	if u.Message == nil || u.Message.From == nil || u.Message.From.IsBot {
		return
	}

	log := c.log.With("update_id", u.UpdateID, "corr", uuid.NewString())
	defer func() {
		if r := recover(); r != nil {
			log.Error("handler panicked", "panic", r)
		}
	}()

	ctx, cancel := context.WithTimeout(parent, 30*time.Second)
	defer cancel()

	msg := u.Message
	in := logic.Incoming{
		ChatID:     msg.Chat.ID,
		MessageID:  msg.MessageID,
		SenderID:   msg.From.ID,
		SenderName: displayName(msg.From),
		Group:      isGroup(msg.Chat.Type),
		Text:       msg.Text,
	}

	var err error
	if cmd, args, ok := parseCommand(msg.Text); ok {
		switch cmd {
		case "/start", "/help":
			c.verifier.Help(ctx, in)
		case "/verify":
			err = c.verifier.Verify(ctx, in, args)
		case "/revoke":
			err = c.verifier.Revoke(ctx, in, args)
		case "/merit":
			err = c.verifier.Merit(ctx, in)
		case "/list":
			err = c.verifier.List(ctx, in)
		case "/stats":
			err = c.verifier.Stats(ctx, in)
		default:
			// Unknown commands are ordinary speech.
			err = c.moderator.HandleMessage(ctx, in)
		}
	} else {
		err = c.moderator.HandleMessage(ctx, in)
	}

	if err != nil {
		// Backend failure: logged, no reply, update consumed.
		log.Error("handler failed", "sender", in.SenderID, "error", err)
	}
}

// parseCommand splits a message into a command keyword and its
// space-delimited arguments. Keyword match is case-sensitive; a bot
// mention suffix ("/verify@SomeBot") is stripped.
func parseCommand(text string) (string, []string, bool) {
	if !strings.HasPrefix(text, "/") {
		return "", nil, false
	}
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", nil, false
	}
	cmd, _, _ := strings.Cut(fields[0], "@")
	return cmd, fields[1:], true
}
