package storage

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"clubdesk/internal/models"
)

// CreateApplication stores a new enrollment application with its payment
// proof and moves the applicant's membership to PENDING, all in one
// transaction. A user may hold at most one pending application.
func (s *BboltStorage) CreateApplication(app models.Application) (models.Application, error) {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketApplications)

		var pending bool
		err := b.ForEach(func(k, v []byte) error {
			var dbApp DBApplication
			if err := dbApp.UnmarshalBinary(v); err != nil {
				return err
			}
			if dbApp.UserID == app.UserID && dbApp.Status == string(models.ApplicationPending) {
				pending = true
			}
			return nil
		})
		if err != nil {
			return err
		}
		if pending {
			return fmt.Errorf("pending application exists: %w", models.ErrConflict)
		}

		app.ID = uuid.NewString()
		app.Status = models.ApplicationPending
		app.CreatedAt = s.now().UnixMilli()

		dbApp := toDBApplication(app)
		data, err := dbApp.MarshalBinary()
		if err != nil {
			return err
		}
		if err := b.Put(dbApp.Key(), data); err != nil {
			return err
		}

		user, err := getUser(tx, app.UserID)
		if err != nil {
			return err
		}
		user.MembershipStatus = models.MembershipPending
		return putUser(tx, user)
	})
	if err != nil {
		return models.Application{}, err
	}
	return app, nil
}

func (s *BboltStorage) GetApplication(id string) (models.Application, error) {
	var app models.Application
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketApplications).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("application %s: %w", id, models.ErrNotFound)
		}
		var dbApp DBApplication
		if err := dbApp.UnmarshalBinary(data); err != nil {
			return err
		}
		app = fromDBApplication(dbApp)
		return nil
	})
	return app, err
}

// ListApplications returns all applications newest first. userID narrows
// the listing to one applicant when non-empty.
func (s *BboltStorage) ListApplications(userID string) ([]models.Application, error) {
	var apps []models.Application
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketApplications).ForEach(func(k, v []byte) error {
			var dbApp DBApplication
			if err := dbApp.UnmarshalBinary(v); err != nil {
				return err
			}
			if userID != "" && dbApp.UserID != userID {
				return nil
			}
			apps = append(apps, fromDBApplication(dbApp))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(apps, func(i, j int) bool {
		return apps[i].CreatedAt > apps[j].CreatedAt
	})
	return apps, nil
}

// ReviewApplication records a staff decision. VERIFIED activates the
// applicant's membership, REJECTED rejects it. The status change, the
// membership flip and the audit entry commit together.
func (s *BboltStorage) ReviewApplication(id string, status models.ApplicationStatus, adminNote, reviewerID string) (models.Application, error) {
	var app models.Application
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketApplications)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("application %s: %w", id, models.ErrNotFound)
		}
		var dbApp DBApplication
		if err := dbApp.UnmarshalBinary(data); err != nil {
			return err
		}

		dbApp.Status = string(status)
		dbApp.AdminNote = adminNote
		dbApp.ReviewedBy = reviewerID
		dbApp.ReviewedAt = s.now().UnixMilli()

		updated, err := dbApp.MarshalBinary()
		if err != nil {
			return err
		}
		if err := b.Put(dbApp.Key(), updated); err != nil {
			return err
		}

		membership := models.MembershipRejected
		if status == models.ApplicationVerified {
			membership = models.MembershipActive
		}
		user, err := getUser(tx, dbApp.UserID)
		if err != nil {
			return err
		}
		user.MembershipStatus = membership
		if err := putUser(tx, user); err != nil {
			return err
		}

		app = fromDBApplication(dbApp)
		return s.appendAudit(tx, models.AuditEntry{
			ActorID:      reviewerID,
			TargetUserID: dbApp.UserID,
			Action:       "APPLICATION_STATUS_UPDATED",
			Metadata: map[string]string{
				"applicationId": dbApp.ID,
				"status":        string(status),
				"adminNote":     adminNote,
			},
		})
	})
	if err != nil {
		return models.Application{}, err
	}
	return app, nil
}

func toDBApplication(a models.Application) DBApplication {
	dbApp := DBApplication{
		ID:                    a.ID,
		UserID:                a.UserID,
		SenderBankAccountName: a.SenderBankAccountName,
		BankName:              a.BankName,
		TransferDate:          a.TransferDate,
		Amount:                a.Amount,
		Status:                string(a.Status),
		AdminNote:             a.AdminNote,
		ReviewedBy:            a.ReviewedBy,
		ReviewedAt:            a.ReviewedAt,
		CreatedAt:             a.CreatedAt,
	}
	if a.PaymentProof != nil {
		dbApp.ProofFileURL = a.PaymentProof.FileURL
		dbApp.ProofFileType = a.PaymentProof.FileType
		dbApp.ProofFileSizeBytes = a.PaymentProof.FileSizeBytes
	}
	return dbApp
}

func fromDBApplication(a DBApplication) models.Application {
	app := models.Application{
		ID:                    a.ID,
		UserID:                a.UserID,
		SenderBankAccountName: a.SenderBankAccountName,
		BankName:              a.BankName,
		TransferDate:          a.TransferDate,
		Amount:                a.Amount,
		Status:                models.ApplicationStatus(a.Status),
		AdminNote:             a.AdminNote,
		ReviewedBy:            a.ReviewedBy,
		ReviewedAt:            a.ReviewedAt,
		CreatedAt:             a.CreatedAt,
	}
	if a.ProofFileURL != "" {
		app.PaymentProof = &models.PaymentProof{
			FileURL:       a.ProofFileURL,
			FileType:      a.ProofFileType,
			FileSizeBytes: a.ProofFileSizeBytes,
		}
	}
	return app
}
