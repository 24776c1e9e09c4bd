// Package whatsapp talks to the WhatsApp Cloud API: outbound message sends
// and the inbound webhook envelope/handshake formats.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// SendResult is the structured outcome of an outbound send. Transport
// failures are captured here, never raised: the caller decides whether a
// failed send matters.
type SendResult struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Client sends messages through the WhatsApp Cloud API.
type Client struct {
	baseURL       string
	accessToken   string
	phoneNumberID string
	httpClient    *http.Client
}

// New creates a Client for the given Graph API base URL and business phone
// number id.
func New(baseURL, accessToken, phoneNumberID string) *Client {
	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		accessToken:   accessToken,
		phoneNumberID: phoneNumberID,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type textPayload struct {
	Body string `json:"body"`
}

type sendRequest struct {
	MessagingProduct string             `json:"messaging_product"`
	To               string             `json:"to"`
	Type             string             `json:"type"`
	Text             *textPayload       `json:"text,omitempty"`
	Interactive      *interactive       `json:"interactive,omitempty"`
	Template         *templatePayload   `json:"template,omitempty"`
}

type interactive struct {
	Type   string            `json:"type"`
	Body   textPayload       `json:"body"`
	Action interactiveAction `json:"action"`
}

type interactiveAction struct {
	Buttons []interactiveButton `json:"buttons"`
}

type interactiveButton struct {
	Type  string      `json:"type"`
	Reply buttonReply `json:"reply"`
}

type buttonReply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type templatePayload struct {
	Name     string           `json:"name"`
	Language templateLanguage `json:"language"`
}

type templateLanguage struct {
	Code string `json:"code"`
}

// sendResponse is the JSON returned by POST /{phone_number_id}/messages.
type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// Button is one quick-reply option on an interactive message.
type Button struct {
	ID    string
	Title string
}

// SendText delivers a plain text message.
func (c *Client) SendText(ctx context.Context, to, body string) SendResult {
	return c.send(ctx, sendRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             &textPayload{Body: body},
	})
}

// SendInteractiveButtons delivers a message with up to three quick-reply buttons.
func (c *Client) SendInteractiveButtons(ctx context.Context, to, body string, buttons []Button) SendResult {
	action := interactiveAction{Buttons: make([]interactiveButton, len(buttons))}
	for i, b := range buttons {
		action.Buttons[i] = interactiveButton{
			Type:  "reply",
			Reply: buttonReply{ID: b.ID, Title: b.Title},
		}
	}
	return c.send(ctx, sendRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "interactive",
		Interactive: &interactive{
			Type:   "button",
			Body:   textPayload{Body: body},
			Action: action,
		},
	})
}

// SendTemplate delivers a pre-approved template message, used to open a
// conversation outside the 24-hour customer service window.
func (c *Client) SendTemplate(ctx context.Context, to, name, languageCode string) SendResult {
	return c.send(ctx, sendRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "template",
		Template: &templatePayload{
			Name:     name,
			Language: templateLanguage{Code: languageCode},
		},
	})
}

func (c *Client) send(ctx context.Context, payload sendRequest) SendResult {
	body, err := json.Marshal(payload)
	if err != nil {
		return SendResult{Error: fmt.Sprintf("encoding request: %v", err)}
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return SendResult{Error: fmt.Sprintf("creating request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return SendResult{Error: fmt.Sprintf("sending message: %v", err)}
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return SendResult{Error: fmt.Sprintf("reading response: %v", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return SendResult{Error: fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, truncate(buf.String(), 200))}
	}

	var result sendResponse
	if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
		return SendResult{Error: fmt.Sprintf("decoding response: %v", err)}
	}
	if len(result.Messages) == 0 {
		return SendResult{Error: "response contained no message id"}
	}

	return SendResult{Success: true, MessageID: result.Messages[0].ID}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
