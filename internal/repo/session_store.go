package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"staffdesk/internal/models"
)

type SessionStore struct{ db *gorm.DB }

func NewSessionStore(db *gorm.DB) *SessionStore { return &SessionStore{db: db} }

func (s *SessionStore) Create(ctx context.Context, sess *models.Session) error {
	return translate(conn(ctx, s.db).Create(sess).Error)
}

// GetActive returns the session with its user if it has not expired at now.
func (s *SessionStore) GetActive(ctx context.Context, id string, now time.Time) (*models.Session, error) {
	var sess models.Session
	err := conn(ctx, s.db).Preload("User").
		Where("id = ? AND expires_at > ?", id, now).
		First(&sess).Error
	if err != nil {
		return nil, translate(err)
	}
	return &sess, nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	return conn(ctx, s.db).Where("id = ?", id).Delete(&models.Session{}).Error
}

func (s *SessionStore) DeleteForUser(ctx context.Context, userID uint, exceptID string) error {
	q := conn(ctx, s.db).Where("user_id = ?", userID)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	return q.Delete(&models.Session{}).Error
}

func (s *SessionStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res := conn(ctx, s.db).Where("expires_at <= ?", now).Delete(&models.Session{})
	return res.RowsAffected, res.Error
}
