package logic

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/scinklja/vip-bot/pkg"
)

// CleanupScheduler removes transient bot replies and the commands that
// triggered them after a delay, keeping the room free of verification
// chatter. Work items live in memory only: cleanup is advisory and is
// allowed to be lost on shutdown. Each deletion is independently
// best-effort and never retried.
type CleanupScheduler struct {
	transport ChatTransport
	delay     time.Duration
	log       *slog.Logger

	mu      sync.Mutex
	pending map[string]struct{}
}

func NewCleanupScheduler(transport ChatTransport, delay time.Duration, log *slog.Logger) *CleanupScheduler {
	return &CleanupScheduler{
		transport: transport,
		delay:     delay,
		log:       log,
		pending:   make(map[string]struct{}),
	}
}

// Schedule arms a timer to delete both the triggering message and the
// bot's reply. A reply already scheduled is not scheduled twice.
func (s *CleanupScheduler) Schedule(chatID, triggerID, replyID int64) {
	key := fmt.Sprintf("%d:%d", chatID, replyID)

	s.mu.Lock()
	if _, ok := s.pending[key]; ok {
		s.mu.Unlock()
		return
	}
	s.pending[key] = struct{}{}
	s.mu.Unlock()

	time.AfterFunc(s.delay, func() {
		defer func() {
			s.mu.Lock()
			delete(s.pending, key)
			s.mu.Unlock()
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		for _, msgID := range []int64{triggerID, replyID} {
			if err := s.transport.DeleteMessage(ctx, chatID, msgID); err != nil {
				s.log.Debug("cleanup delete failed", "chat", chatID, "message", msgID, "error", err)
				continue
			}
			pkg.CleanupDeletions.Inc()
		}
	})
}
