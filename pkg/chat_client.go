package pkg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/scinklja/vip-bot/common"
)

// ChatUser is the platform-side author of a message.
type ChatUser struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	Username  string `json:"username,omitempty"`
}

// Chat is the conversation a message belongs to. Type is "private" for
// one-on-one exchanges and "group"/"supergroup" for rooms.
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// ChatMessage is one inbound or outbound platform message.
type ChatMessage struct {
	MessageID      int64      `json:"message_id"`
	From           *ChatUser  `json:"from,omitempty"`
	Chat           Chat       `json:"chat"`
	Text           string     `json:"text,omitempty"`
	NewChatMembers []ChatUser `json:"new_chat_members,omitempty"`
}

// Update is one long-poll event delivered by the platform.
type Update struct {
	UpdateID int64        `json:"update_id"`
	Message  *ChatMessage `json:"message,omitempty"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

// ChatClient talks to a Telegram-compatible Bot HTTP API.
type ChatClient struct {
	client      *http.Client
	baseURL     string
	token       string
	pollTimeout int
	log         *slog.Logger
}

func NewChatClient(baseURL, token string, pollTimeoutSec int, log *slog.Logger) *ChatClient {
	return &ChatClient{
		client:      &http.Client{Timeout: time.Duration(pollTimeoutSec+15) * time.Second},
		baseURL:     baseURL,
		token:       token,
		pollTimeout: pollTimeoutSec,
		log:         log,
	}
}

func (c *ChatClient) post(ctx context.Context, method string, body interface{}) (json.RawMessage, error) {
	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(raw, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if !apiResp.OK {
		// 400/403 means the platform refused the action (missing
		// permission, recipient blocked the bot). Expected condition.
		if apiResp.ErrorCode == http.StatusBadRequest || apiResp.ErrorCode == http.StatusForbidden {
			return nil, fmt.Errorf("%s: %s: %w", method, apiResp.Description, common.ErrTransportDenied)
		}
		return nil, fmt.Errorf("%s failed with code %d: %s", method, apiResp.ErrorCode, apiResp.Description)
	}
	return apiResp.Result, nil
}

// SendMessage posts text to a chat and returns the new message id.
func (c *ChatClient) SendMessage(ctx context.Context, chatID int64, text string) (int64, error) {
	req := map[string]interface{}{
		"chat_id": chatID,
		"text":    text,
	}
	result, err := c.post(ctx, "sendMessage", req)
	if err != nil {
		return 0, err
	}
	var msg ChatMessage
	if err := json.Unmarshal(result, &msg); err != nil {
		return 0, fmt.Errorf("failed to unmarshal sent message: %w", err)
	}
	return msg.MessageID, nil
}

// DeleteMessage removes a message from a chat. Deleting a message the
// bot has no rights over returns common.ErrTransportDenied.
func (c *ChatClient) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	req := map[string]interface{}{
		"chat_id":    chatID,
		"message_id": messageID,
	}
	_, err := c.post(ctx, "deleteMessage", req)
	return err
}

// GetUpdates long-polls the platform for inbound events.
func (c *ChatClient) GetUpdates(ctx context.Context, offset int64) ([]Update, error) {
	req := map[string]interface{}{
		"offset":  offset,
		"timeout": c.pollTimeout,
	}
	result, err := c.post(ctx, "getUpdates", req)
	if err != nil {
		return nil, err
	}
	var updates []Update
	if err := json.Unmarshal(result, &updates); err != nil {
		return nil, fmt.Errorf("failed to unmarshal updates: %w", err)
	}
	return updates, nil
}

// StartPolling launches the long-poll dispatch loop in a goroutine and
// returns immediately. Each received update is handed to handler; a
// failed poll is logged and retried after a short pause.
func (c *ChatClient) StartPolling(ctx context.Context, handler func(Update)) {
	go func() {
		var offset int64
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			updates, err := c.GetUpdates(ctx, offset)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				c.log.Error("poll failed", "error", err)
				time.Sleep(3 * time.Second)
				continue
			}
			for _, u := range updates {
				if u.UpdateID >= offset {
					offset = u.UpdateID + 1
				}
				handler(u)
			}
		}
	}()
}
