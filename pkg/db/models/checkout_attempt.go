package models

import (
	"time"

	"github.com/angelmondragon/storefront-checkout/pkg/enums"
)

// CheckoutAttempt is the local diagnostic record of one order persistence
// attempt and its payment hand-off. The commerce backend stays authoritative.
type CheckoutAttempt struct {
	ID            string              `gorm:"column:id;primaryKey"`
	OrderID       string              `gorm:"column:order_id;not null"`
	OrderNumber   string              `gorm:"column:order_number;not null"`
	UserID        *string             `gorm:"column:user_id"`
	TotalCents    int64               `gorm:"column:total_cents;not null"`
	LinesCreated  int                 `gorm:"column:lines_created;not null"`
	LinesDegraded int                 `gorm:"column:lines_degraded;not null"`
	LinesDropped  int                 `gorm:"column:lines_dropped;not null"`
	Succeeded     bool                `gorm:"column:succeeded;not null"`
	LinkField     *string             `gorm:"column:link_field"`
	LinkMode      *string             `gorm:"column:link_mode"`
	VerifiedField *string             `gorm:"column:verified_field"`
	PaymentStatus enums.PaymentStatus `gorm:"column:payment_status;not null"`
	PaymentID     *string             `gorm:"column:payment_id"`
	FailureReason *string             `gorm:"column:failure_reason"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (CheckoutAttempt) TableName() string {
	return "checkout_attempts"
}
