// ABOUTME: Message-side gateway calls: sends, registration checks, chat ID
// ABOUTME: normalization to the @c.us/@g.us wire form.

package sessiongw

import (
	"context"
	"strings"
)

// Chat ID suffixes used on the wire. A bare phone number normalizes to an
// individual chat.
const (
	SuffixIndividual = "@c.us"
	SuffixGroup      = "@g.us"
)

// ChatID normalizes a recipient to wire form. Values that already carry a
// recognized suffix pass through unchanged, so the function is idempotent;
// anything else is stripped to digits and given the individual suffix.
func ChatID(recipient string) string {
	if strings.HasSuffix(recipient, SuffixIndividual) || strings.HasSuffix(recipient, SuffixGroup) {
		return recipient
	}

	var digits strings.Builder
	for _, r := range recipient {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	return digits.String() + SuffixIndividual
}

// SendOptions carries optional send parameters for media messages.
type SendOptions struct {
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

type sendRequest struct {
	ChatID      string       `json:"chatId"`
	Content     string       `json:"content"`
	ContentType string       `json:"contentType"`
	Options     *SendOptions `json:"options,omitempty"`
}

type registeredRequest struct {
	ID string `json:"id"`
}

// SendMessage sends a text message to the recipient through the tenant's
// session. The recipient may be a bare phone number or a full chat ID.
func (c *Client) SendMessage(ctx context.Context, tenantID, recipient, text string) (SendResult, error) {
	env, err := c.post(ctx, "send_message", "/client/sendMessage/"+tenantID, sendRequest{
		ChatID:      ChatID(recipient),
		Content:     text,
		ContentType: "string",
	})
	if err != nil {
		return SendResult{}, err
	}

	c.logger.Debug("message sent", "tenant_id", tenantID, "message_id", env.MessageID)
	return SendResult{Success: env.Success, MessageID: env.MessageID}, nil
}

// SendMediaFromURL sends a media message whose content the gateway fetches
// from the given URL.
func (c *Client) SendMediaFromURL(ctx context.Context, tenantID, recipient, url string, opts *SendOptions) (SendResult, error) {
	env, err := c.post(ctx, "send_media", "/client/sendMessage/"+tenantID, sendRequest{
		ChatID:      ChatID(recipient),
		Content:     url,
		ContentType: "MessageMediaFromURL",
		Options:     opts,
	})
	if err != nil {
		return SendResult{}, err
	}
	return SendResult{Success: env.Success, MessageID: env.MessageID}, nil
}

// IsRegisteredUser reports whether the recipient exists on the messaging
// network. Best-effort: transport failures read as not registered.
func (c *Client) IsRegisteredUser(ctx context.Context, tenantID, recipient string) bool {
	env, err := c.post(ctx, "is_registered", "/client/isRegisteredUser/"+tenantID, registeredRequest{
		ID: ChatID(recipient),
	})
	if err != nil {
		c.logger.Debug("registration check failed", "tenant_id", tenantID, "error", err)
		return false
	}
	return env.Success && env.Result
}
