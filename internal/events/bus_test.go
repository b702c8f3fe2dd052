package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
)

type memStore struct {
	events []Event
	err    error
}

func (m *memStore) InsertEvent(_ context.Context, topic, subject string, payload []byte) (Event, error) {
	if m.err != nil {
		return Event{}, m.err
	}
	ev := Event{ID: uuid.New(), Topic: topic, Subject: subject, Payload: payload}
	m.events = append(m.events, ev)
	return ev, nil
}

type recordingNotifier struct {
	seen []Event
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, event Event) error {
	n.seen = append(n.seen, event)
	return n.err
}

func TestEmitPersistsAndNotifies(t *testing.T) {
	store := &memStore{}
	notifier := &recordingNotifier{}
	bus := &Bus{Store: store, Notifiers: []Notifier{notifier}}

	ev, err := bus.Emit(context.Background(), TopicRateChanged, "123:DE", map[string]string{"rate": "7"})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if ev.Topic != TopicRateChanged || ev.Subject != "123:DE" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if len(store.events) != 1 || len(notifier.seen) != 1 {
		t.Fatalf("expected persist and notify, got %d/%d", len(store.events), len(notifier.seen))
	}
	var payload map[string]string
	if err := json.Unmarshal(ev.Payload, &payload); err != nil || payload["rate"] != "7" {
		t.Fatalf("unexpected payload: %s", ev.Payload)
	}
}

func TestEmitRequiresTopicAndSubject(t *testing.T) {
	bus := &Bus{Store: &memStore{}}
	if _, err := bus.Emit(context.Background(), "", "x", nil); err == nil {
		t.Fatal("expected error for empty topic")
	}
	if _, err := bus.Emit(context.Background(), TopicRateChanged, " ", nil); err == nil {
		t.Fatal("expected error for empty subject")
	}
}

func TestEmitRejectsInvalidJSONPayload(t *testing.T) {
	bus := &Bus{Store: &memStore{}}
	if _, err := bus.Emit(context.Background(), TopicRateChanged, "x", []byte("{broken")); err == nil {
		t.Fatal("expected error for invalid json payload")
	}
}

func TestEmitCollectsNotifierErrors(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("boom")}
	bus := &Bus{Store: &memStore{}, Notifiers: []Notifier{notifier}}

	if _, err := bus.Emit(context.Background(), TopicRateChanged, "x", nil); err == nil {
		t.Fatal("expected notifier error to surface")
	}
	if len(notifier.seen) != 1 {
		t.Fatal("expected notifier to still run")
	}
}
