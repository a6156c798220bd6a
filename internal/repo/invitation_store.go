package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"staffdesk/internal/models"
)

type InvitationStore struct{ db *gorm.DB }

func NewInvitationStore(db *gorm.DB) *InvitationStore { return &InvitationStore{db: db} }

func (s *InvitationStore) Create(ctx context.Context, inv *models.Invitation) error {
	return translate(conn(ctx, s.db).Create(inv).Error)
}

func (s *InvitationStore) Save(ctx context.Context, inv *models.Invitation) error {
	return translate(conn(ctx, s.db).Save(inv).Error)
}

func (s *InvitationStore) GetByID(ctx context.Context, id uint) (*models.Invitation, error) {
	var inv models.Invitation
	if err := conn(ctx, s.db).First(&inv, id).Error; err != nil {
		return nil, translate(err)
	}
	return &inv, nil
}

func (s *InvitationStore) GetByToken(ctx context.Context, token string) (*models.Invitation, error) {
	var inv models.Invitation
	if err := conn(ctx, s.db).Where("token = ?", token).First(&inv).Error; err != nil {
		return nil, translate(err)
	}
	return &inv, nil
}

func (s *InvitationStore) List(ctx context.Context, status models.InvitationStatus) ([]models.Invitation, error) {
	q := conn(ctx, s.db).Order("created_at desc, id desc")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []models.Invitation
	return out, q.Find(&out).Error
}

// MarkRegistered performs the one-way pending -> registered transition.
// The conditional update makes a concurrent second redemption affect zero rows,
// which is reported as ErrConflict.
func (s *InvitationStore) MarkRegistered(ctx context.Context, id, userID uint, at time.Time) error {
	res := conn(ctx, s.db).Model(&models.Invitation{}).
		Where("id = ? AND status = ? AND expires_at > ?", id, models.InvitationPending, at).
		Updates(map[string]any{
			"status":        models.InvitationRegistered,
			"user_id":       userID,
			"registered_at": at,
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected != 1 {
		return ErrConflict
	}
	return nil
}

// ExpireStale flips pending invitations past their expiry to expired.
func (s *InvitationStore) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	res := conn(ctx, s.db).Model(&models.Invitation{}).
		Where("status = ? AND expires_at <= ?", models.InvitationPending, now).
		Update("status", models.InvitationExpired)
	return res.RowsAffected, res.Error
}
