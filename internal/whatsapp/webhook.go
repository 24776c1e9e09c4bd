package whatsapp

import "crypto/subtle"

// Envelope is the inbound webhook payload Meta posts on new messages.
// Only the fields the bridge reads are mapped.
type Envelope struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string      `json:"field"`
	Value ChangeValue `json:"value"`
}

type ChangeValue struct {
	MessagingProduct string           `json:"messaging_product"`
	Messages         []InboundMessage `json:"messages"`
}

// InboundMessage is a single message inside a webhook delivery. The
// provider-assigned ID is stable across redeliveries, which makes it the
// natural deduplication key.
type InboundMessage struct {
	From string      `json:"from"`
	ID   string      `json:"id"`
	Type string      `json:"type"`
	Text InboundText `json:"text"`
}

type InboundText struct {
	Body string `json:"body"`
}

// TextMessages flattens the envelope into the text messages it carries,
// skipping media, reactions and status updates.
func (e *Envelope) TextMessages() []InboundMessage {
	var out []InboundMessage
	for _, entry := range e.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				if msg.Type == "text" {
					out = append(out, msg)
				}
			}
		}
	}
	return out
}

// VerifyWebhook implements the Cloud API subscription handshake: the mode
// must be "subscribe" and the token must match the configured verify token.
func VerifyWebhook(mode, token, verifyToken string) bool {
	if mode != "subscribe" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(verifyToken)) == 1
}
