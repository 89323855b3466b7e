package notification

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type Query struct {
	OrderID int `query:"order_id"`
	UserID  int `query:"user_id"`
	Limit   int `query:"limit"`
	Page    int `query:"page"`
}

func (query *Query) Parse(c *fiber.Ctx) {
	if err := c.QueryParser(query); err != nil {
		query.Limit = 10
		query.Page = 1
	}
	if query.Page <= 0 {
		query.Page = 1
	}
	if query.Limit <= 0 {
		query.Limit = 10
	}
}

type Repo interface {
	Create(tx *gorm.DB, n *Notification) error
	List(ctx context.Context, q Query) ([]Notification, int64, error)
	SaveDeviceToken(ctx context.Context, t *DeviceToken) error
	ActiveTokens(ctx context.Context, userID int) ([]string, error)
}

type gormRepo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) Repo {
	return &gormRepo{db: db}
}

func (r *gormRepo) Create(tx *gorm.DB, n *Notification) error {
	return tx.Create(n).Error
}

func (r *gormRepo) List(ctx context.Context, q Query) ([]Notification, int64, error) {
	db := r.db.WithContext(ctx).Model(&Notification{})
	if q.OrderID > 0 {
		db = db.Where("order_id = ?", q.OrderID)
	}
	if q.UserID > 0 {
		db = db.Where("user_id = ?", q.UserID)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var out []Notification
	err := db.Order("created_at DESC").
		Limit(q.Limit).
		Offset((q.Page - 1) * q.Limit).
		Find(&out).Error
	return out, total, err
}

func (r *gormRepo) SaveDeviceToken(ctx context.Context, t *DeviceToken) error {
	return r.db.WithContext(ctx).
		Where(DeviceToken{DeviceToken: t.DeviceToken}).
		Assign(DeviceToken{UserID: t.UserID, DeviceType: t.DeviceType, Expired: false}).
		FirstOrCreate(t).Error
}

func (r *gormRepo) ActiveTokens(ctx context.Context, userID int) ([]string, error) {
	var tokens []string
	err := r.db.WithContext(ctx).Model(&DeviceToken{}).
		Where("user_id = ? AND expired = ?", userID, false).
		Pluck("device_token", &tokens).Error
	return tokens, err
}
