package ws

import (
	"testing"
	"time"

	"clubdesk/internal/chat"
	"clubdesk/internal/models"
)

func TestRegistry_RegisterDefaults(t *testing.T) {
	r := NewRegistry()

	member := r.Register(models.Principal{ID: "m1", Role: models.RoleMember}, "conv1")
	if member == nil {
		t.Fatal("Register returned nil")
	}
	if r.RoomSize(chat.ConversationRoom("conv1")) != 1 {
		t.Error("member session should auto-join its conversation room")
	}
	if r.RoomSize(chat.StaffRoom) != 0 {
		t.Error("member session must not join the staff room")
	}

	staff := r.Register(models.Principal{ID: "s1", Role: models.RoleStaff}, "")
	if r.RoomSize(chat.StaffRoom) != 1 {
		t.Error("staff session should auto-join the staff room")
	}

	owner := r.Register(models.Principal{ID: "o1", Role: models.RoleOwner}, "")
	if r.RoomSize(chat.StaffRoom) != 2 {
		t.Error("owner session should auto-join the staff room")
	}

	r.Deregister(member.ID)
	r.Deregister(staff.ID)
	r.Deregister(owner.ID)
	if r.RoomSize(chat.StaffRoom) != 0 || r.RoomSize(chat.ConversationRoom("conv1")) != 0 {
		t.Error("deregister should empty the rooms")
	}
}

func TestRegistry_JoinConversation(t *testing.T) {
	r := NewRegistry()
	room := chat.ConversationRoom("conv2")

	staff := r.Register(models.Principal{ID: "s1", Role: models.RoleStaff}, "")
	r.JoinConversation(staff.ID, "conv2")
	if r.RoomSize(room) != 1 {
		t.Error("staff join request should subscribe the session")
	}

	// Non-staff join requests are dropped without error
	member := r.Register(models.Principal{ID: "m1", Role: models.RoleMember}, "own")
	r.JoinConversation(member.ID, "conv2")
	if r.RoomSize(room) != 1 {
		t.Error("member join request must be silently ignored")
	}

	// Unknown sessions are dropped too
	r.JoinConversation("no-such-session", "conv2")
	if r.RoomSize(room) != 1 {
		t.Error("unknown session join must be a no-op")
	}
}

func TestRegistry_ToRoom(t *testing.T) {
	r := NewRegistry()
	room := chat.ConversationRoom("conv3")

	// Two tabs for the same staff principal get independent deliveries
	a := r.Register(models.Principal{ID: "s1", Role: models.RoleStaff}, "")
	b := r.Register(models.Principal{ID: "s1", Role: models.RoleStaff}, "")
	r.JoinConversation(a.ID, "conv3")
	r.JoinConversation(b.ID, "conv3")

	outsider := r.Register(models.Principal{ID: "s2", Role: models.RoleStaff}, "")

	event := models.ServerEvent{Event: models.EventMessageCreated, ConversationID: "conv3"}
	r.ToRoom(room, event)

	for i, s := range []*Session{a, b} {
		select {
		case got := <-s.Events():
			if got.ConversationID != "conv3" {
				t.Errorf("session %d got wrong event: %+v", i, got)
			}
		case <-time.After(time.Second):
			t.Errorf("session %d did not receive the room event", i)
		}
	}

	select {
	case got := <-outsider.Events():
		t.Errorf("session outside the room received %+v", got)
	default:
	}

	// Deregistered sessions stop receiving
	r.Deregister(a.ID)
	r.ToRoom(room, event)
	select {
	case got := <-b.Events():
		if got.ConversationID != "conv3" {
			t.Errorf("unexpected event %+v", got)
		}
	case <-time.After(time.Second):
		t.Error("remaining session did not receive the event")
	}
}

func TestRegistry_ToRoom_DropsOnFullBuffer(t *testing.T) {
	r := NewRegistry()
	s := r.Register(models.Principal{ID: "m1", Role: models.RoleMember}, "conv4")
	room := chat.ConversationRoom("conv4")

	// Fill the buffer without a reader, then overflow it
	for i := 0; i < sessionBuffer+10; i++ {
		r.ToRoom(room, models.ServerEvent{Event: models.EventMessageCreated})
	}

	// The registry must not have blocked; drain what fit
	drained := 0
	for {
		select {
		case <-s.Events():
			drained++
		default:
			if drained != sessionBuffer {
				t.Errorf("expected %d buffered events, got %d", sessionBuffer, drained)
			}
			return
		}
	}
}

func TestRegistry_Shutdown(t *testing.T) {
	r := NewRegistry()
	s := r.Register(models.Principal{ID: "m1", Role: models.RoleMember}, "conv5")

	r.Shutdown()

	select {
	case _, ok := <-s.Events():
		if ok {
			t.Error("expected no pending events")
		}
	case <-time.After(time.Second):
		t.Error("session stream not closed on shutdown")
	}

	if got := r.Register(models.Principal{ID: "m2", Role: models.RoleMember}, "conv6"); got != nil {
		t.Error("Register should return nil after Shutdown")
	}
}
