package payment

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("payment not found")

type Repo interface {
	Create(tx *gorm.DB, p *Payment) error
	Save(tx *gorm.DB, p *Payment) error
	ExistsByOrderID(tx *gorm.DB, orderID int) (bool, error)
	FindByOrderIDForUpdate(tx *gorm.DB, orderID int) (*Payment, error)
	FindByOrderID(ctx context.Context, orderID int) (*Payment, error)
}

type gormRepo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) Repo {
	return &gormRepo{db: db}
}

func (r *gormRepo) Create(tx *gorm.DB, p *Payment) error {
	return tx.Create(p).Error
}

func (r *gormRepo) Save(tx *gorm.DB, p *Payment) error {
	return tx.Save(p).Error
}

func (r *gormRepo) ExistsByOrderID(tx *gorm.DB, orderID int) (bool, error) {
	var count int64
	err := tx.Model(&Payment{}).Where("order_id = ?", orderID).Count(&count).Error
	return count > 0, err
}

func (r *gormRepo) FindByOrderIDForUpdate(tx *gorm.DB, orderID int) (*Payment, error) {
	var p Payment
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("order_id = ?", orderID).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *gormRepo) FindByOrderID(ctx context.Context, orderID int) (*Payment, error) {
	var p Payment
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}
