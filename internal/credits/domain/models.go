// Package domain defines the append-only credit ledger.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// TransactionKind classifies ledger entries.
type TransactionKind string

const (
	KindDeduction       TransactionKind = "deduction"
	KindEarned          TransactionKind = "earned"
	KindBonus           TransactionKind = "bonus"
	KindRefund          TransactionKind = "refund"
	KindAdminAdjustment TransactionKind = "admin_adjustment"
)

// CreditTransaction is one immutable ledger row. BalanceAfter always reflects
// the post-mutation balance, so the log alone justifies every balance.
type CreditTransaction struct {
	ID           snowflake.ID      `gorm:"primaryKey"`
	UserID       snowflake.ID      `gorm:"not null;index:ix_credit_transactions_user_created,priority:1"`
	Kind         TransactionKind   `gorm:"type:text;not null"`
	Amount       int               `gorm:"not null"`
	BalanceAfter int               `gorm:"not null"`
	Description  string            `gorm:"type:text"`
	Metadata     datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt    time.Time         `gorm:"not null;index:ix_credit_transactions_user_created,priority:2"`
}

// TableName sets the database table name.
func (CreditTransaction) TableName() string { return "credit_transactions" }
