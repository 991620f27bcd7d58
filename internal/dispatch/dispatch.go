// Package dispatch interprets inbound chat-platform webhook events and
// decides which reply goes back to the sender.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// Outcome is the terminal state of handling one inbound event.
type Outcome string

const (
	// OutcomeAcknowledged means the sender is bound and got an echo reply.
	OutcomeAcknowledged Outcome = "acknowledged"
	// OutcomePromptedToBind means the sender is unbound and got the bind prompt.
	OutcomePromptedToBind Outcome = "prompted_to_bind"
	// OutcomeMalformedPayload means the body could not be parsed; nothing was sent.
	OutcomeMalformedPayload Outcome = "malformed_payload"
)

const (
	ackTemplate = "Received your message: %s"
	bindPrompt  = "Please bind your account first."
)

// Notifier delivers a text message to a chat identity.
type Notifier interface {
	Send(ctx context.Context, externalID, text string) error
}

// Bindings resolves a chat identity to its bound local identity.
type Bindings interface {
	LookupLocal(ctx context.Context, externalID string) (string, bool, error)
}

// Dispatcher routes inbound events: bound senders get an acknowledgment
// embedding their text, unbound senders get a fixed bind prompt. Exactly
// one send attempt per valid event; none for malformed payloads.
type Dispatcher struct {
	bindings Bindings
	notifier Notifier
	logger   *slog.Logger
}

func NewDispatcher(log *slog.Logger, bindings Bindings, notifier Notifier) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		bindings: bindings,
		notifier: notifier,
		logger:   log.With(slog.String("service", "dispatch")),
	}
}

// inboundEvent is the slice of the platform payload the bridge cares
// about. The sender id arrives as a JSON number or string depending on
// the platform client.
type inboundEvent struct {
	Message struct {
		From struct {
			ID flexibleID `json:"id"`
		} `json:"from"`
		Text *string `json:"text"`
	} `json:"message"`
}

type flexibleID string

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexibleID(n.String())
	return nil
}

// Handle processes one raw webhook body. The returned error is only ever
// an internal lookup failure; parse and delivery problems are absorbed
// into the outcome so the webhook can still acknowledge receipt.
func (d *Dispatcher) Handle(ctx context.Context, rawBody []byte) (Outcome, error) {
	event, ok := parseEvent(rawBody)
	if !ok {
		d.logger.Warn("malformed webhook payload", slog.Int("body_bytes", len(rawBody)))
		return OutcomeMalformedPayload, nil
	}

	senderID := string(event.Message.From.ID)
	_, bound, err := d.bindings.LookupLocal(ctx, senderID)
	if err != nil {
		return "", fmt.Errorf("resolve sender binding: %w", err)
	}

	outcome := OutcomePromptedToBind
	reply := bindPrompt
	if bound {
		outcome = OutcomeAcknowledged
		reply = fmt.Sprintf(ackTemplate, *event.Message.Text)
	}

	if err := d.notifier.Send(ctx, senderID, reply); err != nil {
		// Delivery is best effort; the platform still gets its ack.
		d.logger.Error("reply delivery failed",
			slog.String("sender", senderID),
			slog.String("outcome", string(outcome)),
			slog.Any("error", err))
	}
	return outcome, nil
}

func parseEvent(rawBody []byte) (inboundEvent, bool) {
	var event inboundEvent
	if err := json.Unmarshal(rawBody, &event); err != nil {
		return inboundEvent{}, false
	}
	senderID := strings.TrimSpace(string(event.Message.From.ID))
	if senderID == "" {
		return inboundEvent{}, false
	}
	// A text-message event always carries message.text; anything else
	// (stickers, joins, edits of other kinds) has no reply to compose.
	if event.Message.Text == nil || *event.Message.Text == "" {
		return inboundEvent{}, false
	}
	event.Message.From.ID = flexibleID(senderID)
	return event, true
}
