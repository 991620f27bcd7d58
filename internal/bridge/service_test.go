package bridge

import (
	"context"
	"errors"
	"testing"

	"github.com/forumgram/forumgram/internal/bindings"
	"github.com/forumgram/forumgram/internal/dispatch"
)

type fakeStore struct {
	bound map[string]string
	err   error
}

func (f *fakeStore) Bind(_ context.Context, externalID, localID string) (bindings.Binding, error) {
	if f.err != nil {
		return bindings.Binding{}, f.err
	}
	if f.bound == nil {
		f.bound = map[string]string{}
	}
	f.bound[externalID] = localID
	return bindings.Binding{ExternalID: externalID, LocalID: localID}, nil
}

type fakeAccounts struct {
	localID string
	err     error
	calls   int
}

func (f *fakeAccounts) CreateAccount(_ context.Context, _, _, _ string) (string, error) {
	f.calls++
	return f.localID, f.err
}

type fakeDispatcher struct {
	outcome dispatch.Outcome
	body    []byte
}

func (f *fakeDispatcher) Handle(_ context.Context, rawBody []byte) (dispatch.Outcome, error) {
	f.body = rawBody
	return f.outcome, nil
}

func TestBindDelegatesToStore(t *testing.T) {
	store := &fakeStore{}
	s := NewService(nil, store, &fakeAccounts{}, &fakeDispatcher{})

	b, err := s.Bind(context.Background(), BindRequest{ExternalID: "tg123", LocalID: "u55"})
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if b.LocalID != "u55" {
		t.Errorf("LocalID = %q, want u55", b.LocalID)
	}
	if store.bound["tg123"] != "u55" {
		t.Errorf("store not updated: %v", store.bound)
	}
}

func TestRegisterAndBind(t *testing.T) {
	store := &fakeStore{}
	accounts := &fakeAccounts{localID: "77"}
	s := NewService(nil, store, accounts, &fakeDispatcher{})

	b, err := s.RegisterAndBind(context.Background(), RegisterRequest{
		Username:   "alice",
		Email:      "alice@example.com",
		Password:   "s3cret",
		ExternalID: "tg123",
	})
	if err != nil {
		t.Fatalf("RegisterAndBind: %v", err)
	}
	if b.LocalID != "77" {
		t.Errorf("LocalID = %q, want 77", b.LocalID)
	}
	if store.bound["tg123"] != "77" {
		t.Errorf("binding not written: %v", store.bound)
	}
}

func TestRegisterAndBindMissingFields(t *testing.T) {
	accounts := &fakeAccounts{localID: "77"}
	s := NewService(nil, &fakeStore{}, accounts, &fakeDispatcher{})

	_, err := s.RegisterAndBind(context.Background(), RegisterRequest{Username: "alice"})
	if !errors.Is(err, bindings.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
	if accounts.calls != 0 {
		t.Errorf("CreateAccount called %d times, want 0", accounts.calls)
	}
}

func TestRegisterAndBindAccountFailureWritesNoBinding(t *testing.T) {
	store := &fakeStore{}
	accounts := &fakeAccounts{err: errors.New("username taken")}
	s := NewService(nil, store, accounts, &fakeDispatcher{})

	_, err := s.RegisterAndBind(context.Background(), RegisterRequest{
		Username:   "alice",
		Email:      "alice@example.com",
		Password:   "s3cret",
		ExternalID: "tg123",
	})
	if !errors.Is(err, ErrAccountCreationFailed) {
		t.Fatalf("err = %v, want ErrAccountCreationFailed", err)
	}
	if len(store.bound) != 0 {
		t.Errorf("binding written despite failed registration: %v", store.bound)
	}
}

func TestHandleWebhookDelegates(t *testing.T) {
	dispatcher := &fakeDispatcher{outcome: dispatch.OutcomeAcknowledged}
	s := NewService(nil, &fakeStore{}, &fakeAccounts{}, dispatcher)

	body := []byte(`{"message":{"from":{"id":"tg123"},"text":"hi"}}`)
	outcome, err := s.HandleWebhook(context.Background(), body)
	if err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}
	if outcome != dispatch.OutcomeAcknowledged {
		t.Errorf("outcome = %q, want acknowledged", outcome)
	}
	if string(dispatcher.body) != string(body) {
		t.Errorf("dispatcher got %q", dispatcher.body)
	}
}
