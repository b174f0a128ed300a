package storage

import (
	"encoding"
	"encoding/binary"

	"github.com/vmihailenco/msgpack/v5"
)

type Storeable interface {
	Key() []byte
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

type DBUser struct {
	ID               string `msgpack:"id"`
	Username         string `msgpack:"username"`
	Email            string `msgpack:"email"`
	PasswordHash     string `msgpack:"passwordHash"`
	Role             string `msgpack:"role"`
	MembershipStatus string `msgpack:"membershipStatus"`
	Active           bool   `msgpack:"active"`
	CreatedAt        int64  `msgpack:"createdAt"`
}

func (u *DBUser) Key() []byte {
	return []byte(u.ID)
}

func (u *DBUser) MarshalBinary() (data []byte, err error) {
	type alias DBUser
	return msgpack.Marshal((*alias)(u))
}

func (u *DBUser) UnmarshalBinary(data []byte) error {
	type alias DBUser
	return msgpack.Unmarshal(data, (*alias)(u))
}

type DBConversation struct {
	ID            string `msgpack:"id"`
	MemberID      string `msgpack:"memberId"`
	LastMessageAt int64  `msgpack:"lastMessageAt"`
	CreatedAt     int64  `msgpack:"createdAt"`
}

func (c *DBConversation) Key() []byte {
	return []byte(c.ID)
}

func (c *DBConversation) MarshalBinary() (data []byte, err error) {
	type alias DBConversation
	return msgpack.Marshal((*alias)(c))
}

func (c *DBConversation) UnmarshalBinary(data []byte) error {
	type alias DBConversation
	return msgpack.Unmarshal(data, (*alias)(c))
}

type DBMessage struct {
	ID             string `msgpack:"id"`
	Seq            uint64 `msgpack:"seq"`
	ConversationID string `msgpack:"conversationId"`
	AuthorID       string `msgpack:"authorId"`
	AuthorRole     string `msgpack:"authorRole"`
	Body           string `msgpack:"body"`
	CreatedAt      int64  `msgpack:"createdAt"`
	ReadAt         int64  `msgpack:"readAt"`
}

// Key is the big-endian sequence number so that bbolt cursor order equals
// persistence order.
func (m *DBMessage) Key() []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, m.Seq)
	return key
}

func (m *DBMessage) MarshalBinary() (data []byte, err error) {
	type alias DBMessage
	return msgpack.Marshal((*alias)(m))
}

func (m *DBMessage) UnmarshalBinary(data []byte) error {
	type alias DBMessage
	return msgpack.Unmarshal(data, (*alias)(m))
}

type DBApplication struct {
	ID                    string `msgpack:"id"`
	UserID                string `msgpack:"userId"`
	SenderBankAccountName string `msgpack:"senderBankAccountName"`
	BankName              string `msgpack:"bankName"`
	TransferDate          int64  `msgpack:"transferDate"`
	Amount                int64  `msgpack:"amount"`
	Status                string `msgpack:"status"`
	AdminNote             string `msgpack:"adminNote"`
	ReviewedBy            string `msgpack:"reviewedBy"`
	ReviewedAt            int64  `msgpack:"reviewedAt"`
	ProofFileURL          string `msgpack:"proofFileUrl"`
	ProofFileType         string `msgpack:"proofFileType"`
	ProofFileSizeBytes    int64  `msgpack:"proofFileSizeBytes"`
	CreatedAt             int64  `msgpack:"createdAt"`
}

func (a *DBApplication) Key() []byte {
	return []byte(a.ID)
}

func (a *DBApplication) MarshalBinary() (data []byte, err error) {
	type alias DBApplication
	return msgpack.Marshal((*alias)(a))
}

func (a *DBApplication) UnmarshalBinary(data []byte) error {
	type alias DBApplication
	return msgpack.Unmarshal(data, (*alias)(a))
}

type DBAuditEntry struct {
	ID           string            `msgpack:"id"`
	Seq          uint64            `msgpack:"seq"`
	ActorID      string            `msgpack:"actorId"`
	TargetUserID string            `msgpack:"targetUserId"`
	Action       string            `msgpack:"action"`
	Metadata     map[string]string `msgpack:"metadata"`
	CreatedAt    int64             `msgpack:"createdAt"`
}

func (e *DBAuditEntry) Key() []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, e.Seq)
	return key
}

func (e *DBAuditEntry) MarshalBinary() (data []byte, err error) {
	type alias DBAuditEntry
	return msgpack.Marshal((*alias)(e))
}

func (e *DBAuditEntry) UnmarshalBinary(data []byte) error {
	type alias DBAuditEntry
	return msgpack.Unmarshal(data, (*alias)(e))
}
