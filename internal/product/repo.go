package product

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("product not found")

type Repo interface {
	Create(ctx context.Context, p *Product) error
	FindByID(ctx context.Context, id int) (*Product, error)
	List(ctx context.Context) ([]Product, error)

	// LockByID reads the row FOR UPDATE inside tx so concurrent
	// reservations serialize per product.
	LockByID(tx *gorm.DB, id int) (*Product, error)
	UpdateStock(tx *gorm.DB, id, stock int) error
}

type gormRepo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) Repo {
	return &gormRepo{db: db}
}

func (r *gormRepo) Create(ctx context.Context, p *Product) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *gormRepo) FindByID(ctx context.Context, id int) (*Product, error) {
	var p Product
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *gormRepo) List(ctx context.Context) ([]Product, error) {
	var products []Product
	if err := r.db.WithContext(ctx).Order("id").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (r *gormRepo) LockByID(tx *gorm.DB, id int) (*Product, error) {
	var p Product
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *gormRepo) UpdateStock(tx *gorm.DB, id, stock int) error {
	return tx.Model(&Product{}).Where("id = ?", id).Update("stock", stock).Error
}
