package audit

import (
	"context"
	"errors"

	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"gorm.io/gorm"
)

// Repository persists checkout attempts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, attempt *models.CheckoutAttempt) error
	Save(ctx context.Context, attempt *models.CheckoutAttempt) error
	FindByOrderID(ctx context.Context, orderID string) (*models.CheckoutAttempt, error)
	FindByOrderNumber(ctx context.Context, orderNumber string) (*models.CheckoutAttempt, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an audit repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, attempt *models.CheckoutAttempt) error {
	return r.db.WithContext(ctx).Create(attempt).Error
}

func (r *repository) Save(ctx context.Context, attempt *models.CheckoutAttempt) error {
	return r.db.WithContext(ctx).Save(attempt).Error
}

func (r *repository) FindByOrderID(ctx context.Context, orderID string) (*models.CheckoutAttempt, error) {
	return r.findOne(ctx, "order_id = ?", orderID)
}

func (r *repository) FindByOrderNumber(ctx context.Context, orderNumber string) (*models.CheckoutAttempt, error) {
	return r.findOne(ctx, "order_number = ?", orderNumber)
}

func (r *repository) findOne(ctx context.Context, query string, arg any) (*models.CheckoutAttempt, error) {
	var attempt models.CheckoutAttempt
	err := r.db.WithContext(ctx).
		Where(query, arg).
		Order("created_at DESC").
		First(&attempt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &attempt, nil
}
