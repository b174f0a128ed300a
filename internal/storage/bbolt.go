package storage

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"clubdesk/internal/models"
)

var (
	bucketUsers         = []byte("users")
	bucketUserEmails    = []byte("user_emails")
	bucketUserNames     = []byte("user_names")
	bucketConversations = []byte("conversations")
	bucketConvByMember  = []byte("conversations_by_member")
	bucketMessages      = []byte("messages")
	bucketApplications  = []byte("applications")
	bucketAuditLog      = []byte("audit_log")
	bucketFiles         = []byte("files")
)

type BboltStorage struct {
	db  *bbolt.DB
	now func() time.Time
}

func NewBboltStorage(path string) (*BboltStorage, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt db: %w", err)
	}

	buckets := [][]byte{
		bucketUsers,
		bucketUserEmails,
		bucketUserNames,
		bucketConversations,
		bucketConvByMember,
		bucketMessages,
		bucketApplications,
		bucketAuditLog,
		bucketFiles,
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &BboltStorage{db: db, now: time.Now}, nil
}

func (s *BboltStorage) Close() error {
	return s.db.Close()
}

// CreateUser stores a new user record. Email and username uniqueness is
// enforced via index buckets; a clash returns ErrConflict.
func (s *BboltStorage) CreateUser(user models.User) (models.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.CreatedAt = s.now().UnixMilli()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		emails := tx.Bucket(bucketUserEmails)
		names := tx.Bucket(bucketUserNames)
		if emails.Get([]byte(user.Email)) != nil {
			return fmt.Errorf("email already registered: %w", models.ErrConflict)
		}
		if names.Get([]byte(user.Username)) != nil {
			return fmt.Errorf("username already used: %w", models.ErrConflict)
		}

		dbUser := toDBUser(user)
		data, err := dbUser.MarshalBinary()
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketUsers).Put(dbUser.Key(), data); err != nil {
			return err
		}
		if err := emails.Put([]byte(user.Email), []byte(user.ID)); err != nil {
			return err
		}
		return names.Put([]byte(user.Username), []byte(user.ID))
	})
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (s *BboltStorage) GetUser(id string) (models.User, error) {
	var user models.User
	err := s.db.View(func(tx *bbolt.Tx) error {
		u, err := getUser(tx, id)
		if err != nil {
			return err
		}
		user = u
		return nil
	})
	return user, err
}

func (s *BboltStorage) GetUserByEmail(email string) (models.User, error) {
	var user models.User
	err := s.db.View(func(tx *bbolt.Tx) error {
		id := tx.Bucket(bucketUserEmails).Get([]byte(email))
		if id == nil {
			return fmt.Errorf("user %s: %w", email, models.ErrNotFound)
		}
		u, err := getUser(tx, string(id))
		if err != nil {
			return err
		}
		user = u
		return nil
	})
	return user, err
}

// ListUsers returns users matching the membership status filter,
// or all users when status is empty.
func (s *BboltStorage) ListUsers(status models.MembershipStatus) ([]models.User, error) {
	var users []models.User
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketUsers).ForEach(func(k, v []byte) error {
			var dbUser DBUser
			if err := dbUser.UnmarshalBinary(v); err != nil {
				return err
			}
			u := fromDBUser(dbUser)
			if status == "" || u.MembershipStatus == status {
				users = append(users, u)
			}
			return nil
		})
	})
	return users, err
}

// ListStaff returns staff and owner accounts.
func (s *BboltStorage) ListStaff() ([]models.User, error) {
	var staff []models.User
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketUsers).ForEach(func(k, v []byte) error {
			var dbUser DBUser
			if err := dbUser.UnmarshalBinary(v); err != nil {
				return err
			}
			u := fromDBUser(dbUser)
			if u.Role.IsStaff() {
				staff = append(staff, u)
			}
			return nil
		})
	})
	return staff, err
}

// PromoteToStaff flips the user's role to STAFF and reactivates the
// account. An audit entry is written in the same transaction.
func (s *BboltStorage) PromoteToStaff(userID, actorID string) (models.User, error) {
	var user models.User
	err := s.db.Update(func(tx *bbolt.Tx) error {
		u, err := getUser(tx, userID)
		if err != nil {
			return err
		}
		previousRole := u.Role
		u.Role = models.RoleStaff
		u.Active = true
		if err := putUser(tx, u); err != nil {
			return err
		}
		user = u
		return s.appendAudit(tx, models.AuditEntry{
			ActorID:      actorID,
			TargetUserID: userID,
			Action:       "ADMIN_PROMOTED",
			Metadata:     map[string]string{"previousRole": string(previousRole)},
		})
	})
	return user, err
}

// SetUserActive toggles the active flag. Existing sockets stay connected
// until their next reconnect; only new authentications see the change.
func (s *BboltStorage) SetUserActive(userID string, active bool, actorID string) (models.User, error) {
	var user models.User
	err := s.db.Update(func(tx *bbolt.Tx) error {
		u, err := getUser(tx, userID)
		if err != nil {
			return err
		}
		u.Active = active
		if err := putUser(tx, u); err != nil {
			return err
		}
		user = u
		return s.appendAudit(tx, models.AuditEntry{
			ActorID:      actorID,
			TargetUserID: userID,
			Action:       "ADMIN_STATUS_CHANGED",
			Metadata:     map[string]string{"active": fmt.Sprintf("%t", active)},
		})
	})
	return user, err
}

// ListAuditEntries returns the newest entries first, at most limit.
func (s *BboltStorage) ListAuditEntries(limit int) ([]models.AuditEntry, error) {
	var entries []models.AuditEntry
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketAuditLog).Cursor()
		for k, v := c.Last(); k != nil && len(entries) < limit; k, v = c.Prev() {
			var dbEntry DBAuditEntry
			if err := dbEntry.UnmarshalBinary(v); err != nil {
				return err
			}
			entries = append(entries, models.AuditEntry{
				ID:           dbEntry.ID,
				ActorID:      dbEntry.ActorID,
				TargetUserID: dbEntry.TargetUserID,
				Action:       dbEntry.Action,
				Metadata:     dbEntry.Metadata,
				CreatedAt:    dbEntry.CreatedAt,
			})
		}
		return nil
	})
	return entries, err
}

// appendAudit writes an audit entry inside the caller's transaction so the
// log never disagrees with the mutation it describes.
func (s *BboltStorage) appendAudit(tx *bbolt.Tx, entry models.AuditEntry) error {
	b := tx.Bucket(bucketAuditLog)
	seq, err := b.NextSequence()
	if err != nil {
		return err
	}
	dbEntry := DBAuditEntry{
		ID:           uuid.NewString(),
		Seq:          seq,
		ActorID:      entry.ActorID,
		TargetUserID: entry.TargetUserID,
		Action:       entry.Action,
		Metadata:     entry.Metadata,
		CreatedAt:    s.now().UnixMilli(),
	}
	data, err := dbEntry.MarshalBinary()
	if err != nil {
		return err
	}
	return b.Put(dbEntry.Key(), data)
}

func getUser(tx *bbolt.Tx, id string) (models.User, error) {
	data := tx.Bucket(bucketUsers).Get([]byte(id))
	if data == nil {
		return models.User{}, fmt.Errorf("user %s: %w", id, models.ErrNotFound)
	}
	var dbUser DBUser
	if err := dbUser.UnmarshalBinary(data); err != nil {
		return models.User{}, err
	}
	return fromDBUser(dbUser), nil
}

func putUser(tx *bbolt.Tx, user models.User) error {
	dbUser := toDBUser(user)
	data, err := dbUser.MarshalBinary()
	if err != nil {
		return err
	}
	return tx.Bucket(bucketUsers).Put(dbUser.Key(), data)
}

func toDBUser(u models.User) DBUser {
	return DBUser{
		ID:               u.ID,
		Username:         u.Username,
		Email:            u.Email,
		PasswordHash:     u.PasswordHash,
		Role:             string(u.Role),
		MembershipStatus: string(u.MembershipStatus),
		Active:           u.Active,
		CreatedAt:        u.CreatedAt,
	}
}

func fromDBUser(u DBUser) models.User {
	return models.User{
		ID:               u.ID,
		Username:         u.Username,
		Email:            u.Email,
		PasswordHash:     u.PasswordHash,
		Role:             models.Role(u.Role),
		MembershipStatus: models.MembershipStatus(u.MembershipStatus),
		Active:           u.Active,
		CreatedAt:        u.CreatedAt,
	}
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
