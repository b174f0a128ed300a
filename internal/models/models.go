package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
)

// ValidationError names the constraint a rejected input violated.
type ValidationError struct {
	Field      string
	Constraint string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Constraint)
}

type Role string

const (
	RoleMember Role = "MEMBER"
	RoleStaff  Role = "STAFF"
	RoleOwner  Role = "OWNER"
)

// IsStaff reports whether the role belongs to the staff class.
// Owners are staff with extra capabilities.
func (r Role) IsStaff() bool {
	return r == RoleStaff || r == RoleOwner
}

type MembershipStatus string

const (
	MembershipNone     MembershipStatus = "NONE"
	MembershipPending  MembershipStatus = "PENDING"
	MembershipActive   MembershipStatus = "ACTIVE"
	MembershipRejected MembershipStatus = "REJECTED"
)

// Principal is an authenticated actor resolved from a bearer credential.
// Role is fixed for the lifetime of a session.
type Principal struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// User is the full account record backing a Principal.
type User struct {
	ID               string           `json:"id"`
	Username         string           `json:"username"`
	Email            string           `json:"email"`
	PasswordHash     string           `json:"-"`
	Role             Role             `json:"role"`
	MembershipStatus MembershipStatus `json:"membershipStatus"`
	Active           bool             `json:"active"`
	CreatedAt        int64            `json:"createdAt"`
}

// Conversation is the single persistent support channel between one member
// and staff collectively. LastMessageAt is zero iff no messages exist.
type Conversation struct {
	ID            string `json:"id"`
	MemberID      string `json:"memberId"`
	LastMessageAt int64  `json:"lastMessageAt,omitempty"`
	CreatedAt     int64  `json:"createdAt"`
}

// Message is immutable once created except for the single
// ReadAt zero -> timestamp transition.
type Message struct {
	ID             string `json:"id"`
	Seq            uint64 `json:"seq"`
	ConversationID string `json:"conversationId"`
	AuthorID       string `json:"authorId"`
	AuthorRole     Role   `json:"authorRole"`
	Body           string `json:"body"`
	BodyHTML       string `json:"bodyHtml,omitempty"`
	CreatedAt      int64  `json:"createdAt"`
	ReadAt         int64  `json:"readAt,omitempty"`
}

// ConversationSummary is one row of the staff dashboard listing.
type ConversationSummary struct {
	Conversation Conversation `json:"conversation"`
	Member       User         `json:"member"`
	LastMessage  *Message     `json:"lastMessage"`
	UnreadCount  int          `json:"unreadCount"`
}

type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "PENDING"
	ApplicationVerified ApplicationStatus = "VERIFIED"
	ApplicationRejected ApplicationStatus = "REJECTED"
)

// Application is a bank-transfer membership enrollment request.
type Application struct {
	ID                    string            `json:"id"`
	UserID                string            `json:"userId"`
	SenderBankAccountName string            `json:"senderBankAccountName"`
	BankName              string            `json:"bankName"`
	TransferDate          int64             `json:"transferDate"`
	Amount                int64             `json:"amount"`
	Status                ApplicationStatus `json:"status"`
	AdminNote             string            `json:"adminNote,omitempty"`
	ReviewedBy            string            `json:"reviewedBy,omitempty"`
	ReviewedAt            int64             `json:"reviewedAt,omitempty"`
	PaymentProof          *PaymentProof     `json:"paymentProof,omitempty"`
	CreatedAt             int64             `json:"createdAt"`
}

// PaymentProof is the stored upload attached to an application.
type PaymentProof struct {
	FileURL       string `json:"fileUrl"`
	FileType      string `json:"fileType"`
	FileSizeBytes int64  `json:"fileSizeBytes"`
}

// AuditEntry records a staff-visible mutation. Written in the same
// transaction as the change it describes.
type AuditEntry struct {
	ID           string            `json:"id"`
	ActorID      string            `json:"actorId"`
	TargetUserID string            `json:"targetUserId,omitempty"`
	Action       string            `json:"action"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    int64             `json:"createdAt"`
}

// Socket protocol event names. Clients send join requests, the server
// pushes new messages, dashboard refresh hints and read receipts.
const (
	EventJoinConversation    = "chat:join"
	EventMessageCreated      = "chat:message"
	EventConversationUpdated = "chat:updated"
	EventReadReceipt         = "chat:read"
)

// ClientEvent is a message sent from a connected socket to the server.
type ClientEvent struct {
	Event          string `json:"event"`
	ConversationID string `json:"conversationId,omitempty"`
}

// ServerEvent is a realtime push to sockets in a room. Which payload
// fields are set depends on Event.
type ServerEvent struct {
	Event          string   `json:"event"`
	ConversationID string   `json:"conversationId,omitempty"`
	Message        *Message `json:"message,omitempty"`
	MemberID       string   `json:"memberId,omitempty"`
	LastMessageAt  int64    `json:"lastMessageAt,omitempty"`
	ReaderRole     Role     `json:"readerRole,omitempty"`
}
