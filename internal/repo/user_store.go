package repo

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"staffdesk/internal/models"
)

type UserStore struct{ db *gorm.DB }

func NewUserStore(db *gorm.DB) *UserStore { return &UserStore{db: db} }

func (s *UserStore) Create(ctx context.Context, u *models.User) error {
	return translate(conn(ctx, s.db).Create(u).Error)
}

func (s *UserStore) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := conn(ctx, s.db).First(&u, id).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *UserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	err := conn(ctx, s.db).Where("username = ?", strings.TrimSpace(username)).First(&u).Error
	if err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := conn(ctx, s.db).Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).First(&u).Error
	if err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *UserStore) UpdatePassword(ctx context.Context, id uint, hash string, requireChange bool) error {
	res := conn(ctx, s.db).Model(&models.User{}).Where("id = ?", id).Updates(map[string]any{
		"password_hash":           hash,
		"require_password_change": requireChange,
	})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *UserStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := conn(ctx, s.db).Model(&models.User{}).Count(&n).Error
	return n, err
}

func (s *UserStore) List(ctx context.Context) ([]models.User, error) {
	var out []models.User
	err := conn(ctx, s.db).Order("id asc").Find(&out).Error
	return out, err
}
