package storage

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"clubdesk/internal/models"
)

// GetOrCreateConversation returns the member's conversation, creating it on
// first access. Idempotent: a repeated call returns the existing record
// unchanged, LastMessageAt included.
func (s *BboltStorage) GetOrCreateConversation(memberID string) (models.Conversation, error) {
	var conv models.Conversation
	err := s.db.Update(func(tx *bbolt.Tx) error {
		byMember := tx.Bucket(bucketConvByMember)
		if id := byMember.Get([]byte(memberID)); id != nil {
			existing, err := getConversation(tx, string(id))
			if err != nil {
				return err
			}
			conv = existing
			return nil
		}

		dbConv := DBConversation{
			ID:        uuid.NewString(),
			MemberID:  memberID,
			CreatedAt: s.now().UnixMilli(),
		}
		data, err := dbConv.MarshalBinary()
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketConversations).Put(dbConv.Key(), data); err != nil {
			return err
		}
		if err := byMember.Put([]byte(memberID), []byte(dbConv.ID)); err != nil {
			return err
		}
		conv = fromDBConversation(dbConv)
		return nil
	})
	return conv, err
}

func (s *BboltStorage) GetConversation(id string) (models.Conversation, error) {
	var conv models.Conversation
	err := s.db.View(func(tx *bbolt.Tx) error {
		c, err := getConversation(tx, id)
		if err != nil {
			return err
		}
		conv = c
		return nil
	})
	return conv, err
}

// AppendMessage persists a message and advances the conversation's
// LastMessageAt in the same transaction, so no reader can observe the
// message without the updated summary. CreatedAt is assigned here and is
// monotonic per conversation; the bucket sequence breaks wall-clock ties.
func (s *BboltStorage) AppendMessage(conversationID, authorID string, authorRole models.Role, body string) (models.Message, error) {
	var msg models.Message
	err := s.db.Update(func(tx *bbolt.Tx) error {
		conv, err := getConversation(tx, conversationID)
		if err != nil {
			return err
		}

		msgBucket, err := tx.Bucket(bucketMessages).CreateBucketIfNotExists([]byte(conversationID))
		if err != nil {
			return fmt.Errorf("failed to create message bucket: %w", err)
		}
		seq, err := msgBucket.NextSequence()
		if err != nil {
			return err
		}

		createdAt := s.now().UnixMilli()
		if createdAt <= conv.LastMessageAt {
			createdAt = conv.LastMessageAt + 1
		}

		dbMsg := DBMessage{
			ID:             uuid.NewString(),
			Seq:            seq,
			ConversationID: conversationID,
			AuthorID:       authorID,
			AuthorRole:     string(authorRole),
			Body:           body,
			CreatedAt:      createdAt,
		}
		data, err := dbMsg.MarshalBinary()
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}
		if err := msgBucket.Put(dbMsg.Key(), data); err != nil {
			return fmt.Errorf("failed to put message: %w", err)
		}

		conv.LastMessageAt = createdAt
		if err := putConversation(tx, conv); err != nil {
			return err
		}

		msg = fromDBMessage(dbMsg)
		return nil
	})
	return msg, err
}

// MarkRead stamps ReadAt on every unread message authored by the role class
// complementary to the reader's: staff readers consume member messages and
// vice versa. Idempotent; returns how many messages were newly marked.
func (s *BboltStorage) MarkRead(conversationID string, readerRole models.Role) (int, error) {
	marked := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := getConversation(tx, conversationID); err != nil {
			return err
		}
		msgBucket := tx.Bucket(bucketMessages).Bucket([]byte(conversationID))
		if msgBucket == nil {
			return nil
		}

		now := s.now().UnixMilli()
		c := msgBucket.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var dbMsg DBMessage
			if err := dbMsg.UnmarshalBinary(v); err != nil {
				return err
			}
			if dbMsg.ReadAt != 0 {
				continue
			}
			if models.Role(dbMsg.AuthorRole).IsStaff() == readerRole.IsStaff() {
				continue
			}
			dbMsg.ReadAt = now
			data, err := dbMsg.MarshalBinary()
			if err != nil {
				return err
			}
			if err := msgBucket.Put(dbMsg.Key(), data); err != nil {
				return err
			}
			marked++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return marked, nil
}

// ListMessages returns the conversation history in persistence order.
// afterSeq is a forward cursor: only messages with Seq > afterSeq are
// returned. limit <= 0 means no ceiling.
func (s *BboltStorage) ListMessages(conversationID string, afterSeq uint64, limit int) ([]models.Message, error) {
	var messages []models.Message
	err := s.db.View(func(tx *bbolt.Tx) error {
		if _, err := getConversation(tx, conversationID); err != nil {
			return err
		}
		msgBucket := tx.Bucket(bucketMessages).Bucket([]byte(conversationID))
		if msgBucket == nil {
			return nil
		}

		c := msgBucket.Cursor()
		for k, v := c.Seek(seqKey(afterSeq + 1)); k != nil; k, v = c.Next() {
			var dbMsg DBMessage
			if err := dbMsg.UnmarshalBinary(v); err != nil {
				return err
			}
			messages = append(messages, fromDBMessage(dbMsg))
			if limit > 0 && len(messages) >= limit {
				break
			}
		}
		return nil
	})
	return messages, err
}

// CountUnread counts member-authored messages not yet read by staff.
// Runs inside a single view transaction so the count is a consistent
// snapshot of the conversation.
func (s *BboltStorage) CountUnread(conversationID string) (int, error) {
	count := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		msgBucket := tx.Bucket(bucketMessages).Bucket([]byte(conversationID))
		if msgBucket == nil {
			return nil
		}
		count = countUnread(msgBucket)
		return nil
	})
	return count, err
}

// ListConversationSummaries builds the staff dashboard listing in one view
// transaction: conversation, member, newest message and unread count per
// row, sorted by LastMessageAt descending with empty conversations last.
func (s *BboltStorage) ListConversationSummaries() ([]models.ConversationSummary, error) {
	var summaries []models.ConversationSummary
	err := s.db.View(func(tx *bbolt.Tx) error {
		messages := tx.Bucket(bucketMessages)
		return tx.Bucket(bucketConversations).ForEach(func(k, v []byte) error {
			var dbConv DBConversation
			if err := dbConv.UnmarshalBinary(v); err != nil {
				return err
			}

			member, err := getUser(tx, dbConv.MemberID)
			if err != nil {
				return err
			}
			member.PasswordHash = ""

			summary := models.ConversationSummary{
				Conversation: fromDBConversation(dbConv),
				Member:       member,
			}
			if msgBucket := messages.Bucket([]byte(dbConv.ID)); msgBucket != nil {
				if _, last := msgBucket.Cursor().Last(); last != nil {
					var dbMsg DBMessage
					if err := dbMsg.UnmarshalBinary(last); err != nil {
						return err
					}
					msg := fromDBMessage(dbMsg)
					summary.LastMessage = &msg
				}
				summary.UnreadCount = countUnread(msgBucket)
			}
			summaries = append(summaries, summary)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		a, b := summaries[i].Conversation, summaries[j].Conversation
		if (a.LastMessageAt == 0) != (b.LastMessageAt == 0) {
			return b.LastMessageAt == 0
		}
		if a.LastMessageAt != b.LastMessageAt {
			return a.LastMessageAt > b.LastMessageAt
		}
		return a.CreatedAt > b.CreatedAt
	})
	return summaries, nil
}

func countUnread(msgBucket *bbolt.Bucket) int {
	count := 0
	_ = msgBucket.ForEach(func(k, v []byte) error {
		var dbMsg DBMessage
		if err := dbMsg.UnmarshalBinary(v); err != nil {
			return err
		}
		if dbMsg.ReadAt == 0 && models.Role(dbMsg.AuthorRole) == models.RoleMember {
			count++
		}
		return nil
	})
	return count
}

func getConversation(tx *bbolt.Tx, id string) (models.Conversation, error) {
	data := tx.Bucket(bucketConversations).Get([]byte(id))
	if data == nil {
		return models.Conversation{}, fmt.Errorf("conversation %s: %w", id, models.ErrNotFound)
	}
	var dbConv DBConversation
	if err := dbConv.UnmarshalBinary(data); err != nil {
		return models.Conversation{}, err
	}
	return fromDBConversation(dbConv), nil
}

func putConversation(tx *bbolt.Tx, conv models.Conversation) error {
	dbConv := DBConversation{
		ID:            conv.ID,
		MemberID:      conv.MemberID,
		LastMessageAt: conv.LastMessageAt,
		CreatedAt:     conv.CreatedAt,
	}
	data, err := dbConv.MarshalBinary()
	if err != nil {
		return err
	}
	return tx.Bucket(bucketConversations).Put(dbConv.Key(), data)
}

func fromDBConversation(c DBConversation) models.Conversation {
	return models.Conversation{
		ID:            c.ID,
		MemberID:      c.MemberID,
		LastMessageAt: c.LastMessageAt,
		CreatedAt:     c.CreatedAt,
	}
}

func fromDBMessage(m DBMessage) models.Message {
	return models.Message{
		ID:             m.ID,
		Seq:            m.Seq,
		ConversationID: m.ConversationID,
		AuthorID:       m.AuthorID,
		AuthorRole:     models.Role(m.AuthorRole),
		Body:           m.Body,
		CreatedAt:      m.CreatedAt,
		ReadAt:         m.ReadAt,
	}
}
