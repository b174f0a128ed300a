package ws

import (
	"context"
	"errors"
	"testing"
	"time"

	"clubdesk/internal/models"
)

type mockWS struct {
	readCh      chan models.ClientEvent
	writeCh     chan any
	closeCh     chan struct{}
	closed      bool
	errToReturn error
}

func newMockWS() *mockWS {
	return &mockWS{
		readCh:  make(chan models.ClientEvent, 10),
		writeCh: make(chan any, 10),
		closeCh: make(chan struct{}),
	}
}

func (m *mockWS) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	close(m.closeCh)
	return nil
}

func (m *mockWS) WriteJSON(v interface{}) error {
	if m.errToReturn != nil {
		return m.errToReturn
	}
	m.writeCh <- v
	return nil
}

func (m *mockWS) ReadJSON(v interface{}) error {
	if m.errToReturn != nil {
		return m.errToReturn
	}
	select {
	case ev, ok := <-m.readCh:
		if !ok {
			return errors.New("closed")
		}
		if ptr, ok := v.(*models.ClientEvent); ok {
			*ptr = ev
		}
		return nil
	case <-m.closeCh:
		return errors.New("connection closed")
	}
}

type mockRegistry struct {
	joinCh       chan string
	deregisterCh chan string
}

func newMockRegistry() *mockRegistry {
	return &mockRegistry{
		joinCh:       make(chan string, 10),
		deregisterCh: make(chan string, 10),
	}
}

func (m *mockRegistry) JoinConversation(sessionID, conversationID string) {
	m.joinCh <- conversationID
}

func (m *mockRegistry) Deregister(sessionID string) {
	m.deregisterCh <- sessionID
}

func newTestSession(id string) *Session {
	return &Session{
		ID:        id,
		Principal: models.Principal{ID: "u1", Role: models.RoleStaff},
		events:    make(chan models.ServerEvent, 10),
	}
}

func TestConnection_Lifecycle(t *testing.T) {
	registry := newMockRegistry()
	ws := newMockWS()
	session := newTestSession("sess1")

	conn := NewConnection(registry, ws, session)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error)
	go func() {
		done <- conn.Handle(ctx)
	}()

	// 1. Client join request forwarded to the registry
	ws.readCh <- models.ClientEvent{
		Event:          models.EventJoinConversation,
		ConversationID: "conv1",
	}
	select {
	case convID := <-registry.joinCh:
		if convID != "conv1" {
			t.Errorf("registry joined wrong conversation: %s", convID)
		}
	case <-time.After(time.Second):
		t.Error("registry did not receive join request")
	}

	// 2. Room broadcast written out to the client
	session.events <- models.ServerEvent{
		Event:          models.EventMessageCreated,
		ConversationID: "conv1",
		Message:        &models.Message{Body: "hello"},
	}
	select {
	case got := <-ws.writeCh:
		ev, ok := got.(models.ServerEvent)
		if !ok {
			t.Fatalf("client received wrong type: %T", got)
		}
		if ev.Message == nil || ev.Message.Body != "hello" {
			t.Errorf("client received wrong event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Error("client did not receive the broadcast")
	}

	// 3. Stop
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Handle returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Error("Handle did not return after cancel")
	}

	select {
	case id := <-registry.deregisterCh:
		if id != session.ID {
			t.Errorf("expected Deregister for %s, got %s", session.ID, id)
		}
	default:
		t.Error("Deregister not called")
	}

	if !ws.closed {
		t.Error("socket not closed")
	}
}

func TestConnection_ClosedSessionStream(t *testing.T) {
	registry := newMockRegistry()
	ws := newMockWS()
	session := newTestSession("sess2")

	conn := NewConnection(registry, ws, session)

	done := make(chan error)
	go func() {
		done <- conn.Handle(context.Background())
	}()

	// Registry-side close (shutdown or eviction) ends the connection cleanly
	close(session.events)

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Handle returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Error("Handle did not return after session stream closed")
	}

	if !ws.closed {
		t.Error("socket not closed")
	}
}

func TestConnection_WSError(t *testing.T) {
	registry := newMockRegistry()
	ws := newMockWS()
	session := newTestSession("sess3")

	conn := NewConnection(registry, ws, session)
	ws.errToReturn = errors.New("read error")

	done := make(chan error)
	go func() {
		done <- conn.Handle(context.Background())
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Error("expected error from Handle, got nil")
		}
	case <-time.After(time.Second):
		t.Error("Handle did not return on error")
	}

	if !ws.closed {
		t.Error("socket not closed")
	}
}
