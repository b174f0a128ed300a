package ws

import (
	"context"
	"errors"
	"sync"

	"clubdesk/internal/models"
)

type wsConnection interface {
	Close() error
	WriteJSON(v interface{}) error
	ReadJSON(v interface{}) error
}

type sessionRegistry interface {
	JoinConversation(sessionID, conversationID string)
	Deregister(sessionID string)
}

// Connection pumps a single socket: client events go to the registry,
// room broadcasts go out to the client.
type Connection struct {
	ws         wsConnection
	registry   sessionRegistry
	session    *Session
	fromClient chan models.ClientEvent
	errorCh    chan error
}

func NewConnection(registry sessionRegistry, ws wsConnection, session *Session) *Connection {
	return &Connection{
		ws:         ws,
		registry:   registry,
		session:    session,
		fromClient: make(chan models.ClientEvent),
		errorCh:    make(chan error, 2),
	}
}

func (c *Connection) Handle(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		c.registry.Deregister(c.session.ID)
		close(c.errorCh)
	}()

	var wg sync.WaitGroup
	wg.Go(func() {
		c.errorCh <- c.pumpEvents(ctx)
		cancel()
	})

	wg.Go(func() {
		c.errorCh <- c.mainLoop(ctx)
		cancel()
	})

	var err error
	select {
	case err = <-c.errorCh:
	case <-ctx.Done():
	}
	c.ws.Close()
	wg.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

func (c *Connection) pumpEvents(ctx context.Context) error {
	for {
		var ev models.ClientEvent
		if err := c.ws.ReadJSON(&ev); err != nil {
			return err
		}
		select {
		case c.fromClient <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Connection) mainLoop(ctx context.Context) error {
	for {
		select {
		case ev := <-c.fromClient:
			c.processClientEvent(ev)
		case ev, ok := <-c.session.events:
			if !ok {
				return nil
			}
			if err := c.ws.WriteJSON(ev); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *Connection) processClientEvent(ev models.ClientEvent) {
	switch ev.Event {
	case models.EventJoinConversation:
		// Staff-only; the registry drops the request silently otherwise.
		c.registry.JoinConversation(c.session.ID, ev.ConversationID)
	}
}
