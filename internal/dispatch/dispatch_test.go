package dispatch

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeBindings struct {
	locals map[string]string
	err    error
}

func (f *fakeBindings) LookupLocal(_ context.Context, externalID string) (string, bool, error) {
	if f.err != nil {
		return "", false, f.err
	}
	local, ok := f.locals[externalID]
	return local, ok, nil
}

type sentMessage struct {
	target string
	text   string
}

type fakeNotifier struct {
	sent []sentMessage
	err  error
}

func (f *fakeNotifier) Send(_ context.Context, externalID, text string) error {
	f.sent = append(f.sent, sentMessage{target: externalID, text: text})
	return f.err
}

func TestHandleBoundSender(t *testing.T) {
	notifier := &fakeNotifier{}
	d := NewDispatcher(nil, &fakeBindings{locals: map[string]string{"tg123": "u55"}}, notifier)

	outcome, err := d.Handle(context.Background(), []byte(`{"message":{"from":{"id":"tg123"},"text":"hi"}}`))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if outcome != OutcomeAcknowledged {
		t.Fatalf("outcome = %q, want %q", outcome, OutcomeAcknowledged)
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(notifier.sent))
	}
	if notifier.sent[0].target != "tg123" {
		t.Errorf("target = %q, want tg123", notifier.sent[0].target)
	}
	if !strings.Contains(notifier.sent[0].text, "hi") {
		t.Errorf("reply %q does not embed the inbound text", notifier.sent[0].text)
	}
}

func TestHandleUnboundSender(t *testing.T) {
	notifier := &fakeNotifier{}
	d := NewDispatcher(nil, &fakeBindings{locals: map[string]string{}}, notifier)

	outcome, err := d.Handle(context.Background(), []byte(`{"message":{"from":{"id":"tg999"},"text":"whatever"}}`))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if outcome != OutcomePromptedToBind {
		t.Fatalf("outcome = %q, want %q", outcome, OutcomePromptedToBind)
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(notifier.sent))
	}
	if notifier.sent[0].text != bindPrompt {
		t.Errorf("reply = %q, want the fixed bind prompt", notifier.sent[0].text)
	}
	if strings.Contains(notifier.sent[0].text, "whatever") {
		t.Errorf("bind prompt must not embed inbound text, got %q", notifier.sent[0].text)
	}
}

func TestHandleNumericSenderID(t *testing.T) {
	notifier := &fakeNotifier{}
	d := NewDispatcher(nil, &fakeBindings{locals: map[string]string{"88001": "u1"}}, notifier)

	outcome, err := d.Handle(context.Background(), []byte(`{"message":{"from":{"id":88001},"text":"ping"}}`))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if outcome != OutcomeAcknowledged {
		t.Fatalf("outcome = %q, want %q", outcome, OutcomeAcknowledged)
	}
	if notifier.sent[0].target != "88001" {
		t.Errorf("target = %q, want 88001", notifier.sent[0].target)
	}
}

func TestHandleMalformedPayload(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"invalid json", `{"message":`},
		{"empty body", ``},
		{"missing sender", `{"message":{"text":"hi"}}`},
		{"blank sender", `{"message":{"from":{"id":"  "},"text":"hi"}}`},
		{"non-object id", `{"message":{"from":{"id":[1]},"text":"hi"}}`},
		{"missing text", `{"message":{"from":{"id":"tg123"}}}`},
		{"empty text", `{"message":{"from":{"id":"tg123"},"text":""}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			notifier := &fakeNotifier{}
			d := NewDispatcher(nil, &fakeBindings{}, notifier)

			outcome, err := d.Handle(context.Background(), []byte(tc.body))
			if err != nil {
				t.Fatalf("Handle: %v", err)
			}
			if outcome != OutcomeMalformedPayload {
				t.Fatalf("outcome = %q, want %q", outcome, OutcomeMalformedPayload)
			}
			if len(notifier.sent) != 0 {
				t.Fatalf("sent %d messages, want 0", len(notifier.sent))
			}
		})
	}
}

func TestHandleDeliveryFailureKeepsOutcome(t *testing.T) {
	notifier := &fakeNotifier{err: errors.New("telegram down")}
	d := NewDispatcher(nil, &fakeBindings{locals: map[string]string{"tg123": "u55"}}, notifier)

	outcome, err := d.Handle(context.Background(), []byte(`{"message":{"from":{"id":"tg123"},"text":"hi"}}`))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if outcome != OutcomeAcknowledged {
		t.Fatalf("outcome = %q, want %q", outcome, OutcomeAcknowledged)
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("sent %d messages, want exactly 1 attempt", len(notifier.sent))
	}
}

func TestHandleLookupError(t *testing.T) {
	notifier := &fakeNotifier{}
	d := NewDispatcher(nil, &fakeBindings{err: errors.New("db down")}, notifier)

	if _, err := d.Handle(context.Background(), []byte(`{"message":{"from":{"id":"tg123"},"text":"hi"}}`)); err == nil {
		t.Fatal("Handle should surface the lookup error")
	}
	if len(notifier.sent) != 0 {
		t.Fatalf("sent %d messages, want 0", len(notifier.sent))
	}
}
