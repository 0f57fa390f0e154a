package logic

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/scinklja/vip-bot/pkg"
)

// ModerationEngine decides, per inbound message, whether the author is
// currently entitled to speak. The message has already been delivered
// by the platform; the only available action is deletion after the
// fact, so a brief visibility window is accepted.
type ModerationEngine struct {
	verifier  *VerificationEngine
	transport ChatTransport
	log       *slog.Logger
}

func NewModerationEngine(verifier *VerificationEngine, transport ChatTransport, log *slog.Logger) *ModerationEngine {
	return &ModerationEngine{
		verifier:  verifier,
		transport: transport,
		log:       log,
	}
}

// HandleMessage moderates one non-command message.
func (m *ModerationEngine) HandleMessage(ctx context.Context, in Incoming) error {
	rec, created, err := m.verifier.Resolve(ctx, in.SenderID, in.SenderName)
	if err != nil {
		return err
	}

	// First-ever contact with no text (a join event, a sticker) only
	// creates the record.
	if created && in.Text == "" {
		return nil
	}

	if !rec.IsVerified {
		if in.Text == "" {
			return nil
		}
		// Deletion is a no-op where the bot lacks delete rights, e.g.
		// one-on-one chats.
		if err := m.transport.DeleteMessage(ctx, in.ChatID, in.MessageID); err != nil {
			m.log.Debug("moderation delete failed", "chat", in.ChatID, "message", in.MessageID, "error", err)
		}
		pkg.MessagesModerated.Inc()

		notice := fmt.Sprintf(
			"your message was removed because you are not verified:\n%q\nuse /verify <address> <signature> to gain speaking rights",
			in.Text)
		if _, err := m.transport.SendMessage(ctx, in.SenderID, notice); err != nil {
			m.log.Debug("deletion notice not delivered", "identity", in.SenderID, "error", err)
		}
		return nil
	}

	return m.verifier.RecheckIfStale(ctx, rec, time.Now())
}
