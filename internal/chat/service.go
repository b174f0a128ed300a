package chat

import (
	"sync"

	"clubdesk/internal/content"
	"clubdesk/internal/models"
)

// StaffRoom is the shared broadcast group all staff sessions join.
const StaffRoom = "staff"

// ConversationRoom names the broadcast group for one conversation.
func ConversationRoom(conversationID string) string {
	return "conversation:" + conversationID
}

// Broadcaster fans a server event out to every session currently in a
// room. Delivery is fire-and-forget; the store stays the source of truth.
type Broadcaster interface {
	ToRoom(room string, event models.ServerEvent)
}

// Store is the conversation store surface the service drives.
type Store interface {
	GetOrCreateConversation(memberID string) (models.Conversation, error)
	GetConversation(id string) (models.Conversation, error)
	AppendMessage(conversationID, authorID string, authorRole models.Role, body string) (models.Message, error)
	MarkRead(conversationID string, readerRole models.Role) (int, error)
	ListMessages(conversationID string, afterSeq uint64, limit int) ([]models.Message, error)
	CountUnread(conversationID string) (int, error)
	ListConversationSummaries() ([]models.ConversationSummary, error)
}

// Service is the single choke point for all conversation writes. The HTTP
// handlers and the socket layer both go through it, so every committed
// write broadcasts exactly once, and broadcasts for one conversation go
// out in persistence order: the per-conversation lock is held from append
// until the events are handed to the broadcaster.
type Service struct {
	store Store
	bcast Broadcaster

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(store Store, bcast Broadcaster) *Service {
	return &Service{
		store: store,
		bcast: bcast,
		locks: make(map[string]*sync.Mutex),
	}
}

func (s *Service) conversationLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// ConversationFor returns the member's conversation, creating it lazily.
func (s *Service) ConversationFor(memberID string) (models.Conversation, error) {
	return s.store.GetOrCreateConversation(memberID)
}

// GetOwnConversation loads the caller's conversation and history. Staff
// messages get their read marker set as a side effect of the member
// opening the page; no read receipt is broadcast for that direction.
func (s *Service) GetOwnConversation(p models.Principal) (models.Conversation, []models.Message, error) {
	conv, err := s.store.GetOrCreateConversation(p.ID)
	if err != nil {
		return models.Conversation{}, nil, err
	}

	if !p.Role.IsStaff() {
		if _, err := s.store.MarkRead(conv.ID, p.Role); err != nil {
			return models.Conversation{}, nil, err
		}
	}

	messages, err := s.store.ListMessages(conv.ID, 0, 0)
	if err != nil {
		return models.Conversation{}, nil, err
	}
	return conv, decorate(messages), nil
}

// PostMessage appends a member message to their own conversation and
// notifies the conversation room plus the staff dashboard channel.
func (s *Service) PostMessage(p models.Principal, body string) (models.Message, error) {
	if p.Role != models.RoleMember {
		return models.Message{}, models.ErrForbidden
	}

	body, err := content.NormalizeBody(body)
	if err != nil {
		return models.Message{}, err
	}

	conv, err := s.store.GetOrCreateConversation(p.ID)
	if err != nil {
		return models.Message{}, err
	}

	lock := s.conversationLock(conv.ID)
	lock.Lock()
	defer lock.Unlock()

	msg, err := s.store.AppendMessage(conv.ID, p.ID, p.Role, body)
	if err != nil {
		return models.Message{}, err
	}
	msg.BodyHTML = content.RenderBody(msg.Body)

	s.bcast.ToRoom(ConversationRoom(conv.ID), models.ServerEvent{
		Event:          models.EventMessageCreated,
		ConversationID: conv.ID,
		Message:        &msg,
	})
	s.bcast.ToRoom(StaffRoom, models.ServerEvent{
		Event:          models.EventConversationUpdated,
		ConversationID: conv.ID,
		MemberID:       p.ID,
		LastMessageAt:  msg.CreatedAt,
	})

	return msg, nil
}

// PostStaffMessage appends a staff reply to the given conversation. Only
// the conversation room is notified; the dashboard channel is for member
// activity.
func (s *Service) PostStaffMessage(conversationID string, p models.Principal, body string) (models.Message, error) {
	if !p.Role.IsStaff() {
		return models.Message{}, models.ErrForbidden
	}

	body, err := content.NormalizeBody(body)
	if err != nil {
		return models.Message{}, err
	}

	if _, err := s.store.GetConversation(conversationID); err != nil {
		return models.Message{}, err
	}

	lock := s.conversationLock(conversationID)
	lock.Lock()
	defer lock.Unlock()

	msg, err := s.store.AppendMessage(conversationID, p.ID, p.Role, body)
	if err != nil {
		return models.Message{}, err
	}
	msg.BodyHTML = content.RenderBody(msg.Body)

	s.bcast.ToRoom(ConversationRoom(conversationID), models.ServerEvent{
		Event:          models.EventMessageCreated,
		ConversationID: conversationID,
		Message:        &msg,
	})

	return msg, nil
}

// GetConversationMessages returns a conversation's full history. A staff
// caller marks member messages read as a side effect, and the room is
// told via a read receipt so the member UI can reflect delivery state.
func (s *Service) GetConversationMessages(conversationID string, p models.Principal) (models.Conversation, []models.Message, error) {
	conv, err := s.store.GetConversation(conversationID)
	if err != nil {
		return models.Conversation{}, nil, err
	}

	messages, err := s.store.ListMessages(conversationID, 0, 0)
	if err != nil {
		return models.Conversation{}, nil, err
	}

	if p.Role.IsStaff() {
		lock := s.conversationLock(conversationID)
		lock.Lock()
		if _, err := s.store.MarkRead(conversationID, p.Role); err != nil {
			lock.Unlock()
			return models.Conversation{}, nil, err
		}
		s.bcast.ToRoom(ConversationRoom(conversationID), models.ServerEvent{
			Event:          models.EventReadReceipt,
			ConversationID: conversationID,
			ReaderRole:     p.Role,
		})
		lock.Unlock()
	}

	return conv, decorate(messages), nil
}

// ListStaffConversations returns the dashboard rows: every conversation
// with its newest message and unread count, most recent activity first.
func (s *Service) ListStaffConversations() ([]models.ConversationSummary, error) {
	summaries, err := s.store.ListConversationSummaries()
	if err != nil {
		return nil, err
	}
	for i := range summaries {
		if summaries[i].LastMessage != nil {
			summaries[i].LastMessage.BodyHTML = content.RenderBody(summaries[i].LastMessage.Body)
		}
	}
	return summaries, nil
}

// UnreadCount exposes the store's per-conversation unread computation.
func (s *Service) UnreadCount(conversationID string) (int, error) {
	return s.store.CountUnread(conversationID)
}

func decorate(messages []models.Message) []models.Message {
	for i := range messages {
		messages[i].BodyHTML = content.RenderBody(messages[i].Body)
	}
	return messages
}
