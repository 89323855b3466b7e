package order

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("order not found")

type Repo interface {
	Create(tx *gorm.DB, o *Order) error
	// FindForUpdate loads the order and its items under an exclusive row lock.
	FindForUpdate(tx *gorm.DB, id int) (*Order, error)
	Save(tx *gorm.DB, o *Order) error
	ListByUser(ctx context.Context, userID int) ([]Order, error)
}

type gormRepo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) Repo {
	return &gormRepo{db: db}
}

func (r *gormRepo) Create(tx *gorm.DB, o *Order) error {
	return tx.Create(o).Error
}

func (r *gormRepo) FindForUpdate(tx *gorm.DB, id int) (*Order, error) {
	var o Order
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Items").
		First(&o, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *gormRepo) Save(tx *gorm.DB, o *Order) error {
	return tx.Save(o).Error
}

func (r *gormRepo) ListByUser(ctx context.Context, userID int) ([]Order, error) {
	var orders []Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error
	return orders, err
}
