package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"assinatura-bot/internal/dates"
	"assinatura-bot/internal/models"
)

// ErrStore marks any failure of the backing storage, including the
// missing-subject case on status and notification updates. Callers that
// must keep going (the reconciliation loop) match it with errors.Is.
var ErrStore = errors.New("store error")

// PendingWindowDays is the look-ahead used by Summarize: active records
// expiring inside this window count as pending.
const PendingWindowDays = 5

// Summary is the report shape consumed by the admin commands. All three
// lists are ordered by expiry ascending.
type Summary struct {
	ActiveCount  int
	ExpiredCount int
	PendingCount int
	Active       []models.SubscriptionRecord
	Expired      []models.SubscriptionRecord
	Pending      []models.SubscriptionRecord
}

type Store struct {
	db  *gorm.DB
	log *zap.Logger
}

func New(db *gorm.DB, log *zap.Logger) *Store {
	return &Store{db: db, log: log}
}

// Upsert inserts or overwrites the record for subjectID. Both paths start a
// fresh cycle: status ACTIVE, activated now, notification clock reset. An
// existing record is the normal renewal path, never an error.
func (s *Store) Upsert(ctx context.Context, subjectID int64, displayName string, expiresAt time.Time, planLabel string) error {
	rec := models.SubscriptionRecord{
		SubjectID:      subjectID,
		DisplayName:    displayName,
		ExpiresAt:      dates.FormatForStorage(expiresAt),
		PlanLabel:      planLabel,
		ActivatedAt:    dates.FormatForStorage(time.Now()),
		Status:         models.StatusActive,
		LastNotifiedAt: nil,
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "subject_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"display_name", "expires_at", "plan_label", "activated_at", "status", "last_notified_at",
		}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("%w: upsert subject %d: %v", ErrStore, subjectID, err)
	}

	s.log.Info("subscription upserted",
		zap.Int64("subject_id", subjectID),
		zap.String("display_name", displayName),
		zap.String("expires_at", rec.ExpiresAt))
	return nil
}

// SetStatus updates the record's status and appends a STATUS_<status>
// history entry with the reason. The record must already exist; a missing
// subject is a logic error surfaced as ErrStore.
func (s *Store) SetStatus(ctx context.Context, subjectID int64, status, reason string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.SubscriptionRecord{}).
			Where("subject_id = ?", subjectID).
			Update("status", status)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("subject %d has no record", subjectID)
		}
		return tx.Create(&models.HistoryEntry{
			SubjectID: subjectID,
			Action:    "STATUS_" + status,
			Detail:    reason,
		}).Error
	})
	if err != nil {
		return fmt.Errorf("%w: set status for subject %d: %v", ErrStore, subjectID, err)
	}

	s.log.Info("subscription status updated",
		zap.Int64("subject_id", subjectID),
		zap.String("status", status),
		zap.String("reason", reason))
	return nil
}

// MarkNotified stamps last_notified_at with now and appends an AVISO history
// entry tagged with the category. The stamp only ever moves forward because
// it is always "now"; a missing subject is ErrStore, not a silent no-op.
func (s *Store) MarkNotified(ctx context.Context, subjectID int64, category string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.SubscriptionRecord{}).
			Where("subject_id = ?", subjectID).
			Update("last_notified_at", dates.FormatForStorage(time.Now()))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("subject %d has no record", subjectID)
		}
		return tx.Create(&models.HistoryEntry{
			SubjectID: subjectID,
			Action:    "AVISO",
			Detail:    "Tipo: " + category,
		}).Error
	})
	if err != nil {
		return fmt.Errorf("%w: mark notified for subject %d: %v", ErrStore, subjectID, err)
	}
	return nil
}

// Get is a point lookup. A missing subject returns (nil, nil).
func (s *Store) Get(ctx context.Context, subjectID int64) (*models.SubscriptionRecord, error) {
	var rec models.SubscriptionRecord
	err := s.db.WithContext(ctx).Where("subject_id = ?", subjectID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get subject %d: %v", ErrStore, subjectID, err)
	}
	return &rec, nil
}

// ListAll returns every record ordered by expiry ascending. Reporting only;
// the reconciliation loop is driven by the membership source instead.
func (s *Store) ListAll(ctx context.Context) ([]models.SubscriptionRecord, error) {
	var recs []models.SubscriptionRecord
	err := s.db.WithContext(ctx).Order("expires_at asc").Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("%w: list records: %v", ErrStore, err)
	}
	return recs, nil
}

// Summarize builds the admin report. The canonical encoding sorts
// lexicographically, so the pending window is a plain string comparison.
func (s *Store) Summarize(ctx context.Context) (*Summary, error) {
	var summary Summary

	err := s.db.WithContext(ctx).
		Where("status = ?", models.StatusActive).
		Order("expires_at asc").
		Find(&summary.Active).Error
	if err != nil {
		return nil, fmt.Errorf("%w: summarize active: %v", ErrStore, err)
	}

	err = s.db.WithContext(ctx).
		Where("status = ?", models.StatusExpired).
		Order("expires_at asc").
		Find(&summary.Expired).Error
	if err != nil {
		return nil, fmt.Errorf("%w: summarize expired: %v", ErrStore, err)
	}

	limit := dates.FormatForStorage(time.Now().AddDate(0, 0, PendingWindowDays))
	err = s.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", models.StatusActive, limit).
		Order("expires_at asc").
		Find(&summary.Pending).Error
	if err != nil {
		return nil, fmt.Errorf("%w: summarize pending: %v", ErrStore, err)
	}

	summary.ActiveCount = len(summary.Active)
	summary.ExpiredCount = len(summary.Expired)
	summary.PendingCount = len(summary.Pending)
	return &summary, nil
}
