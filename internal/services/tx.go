package services

import (
	"context"

	"gorm.io/gorm"
)

// TxRunner runs a function inside one database transaction. The complaint
// service performs every transition through it.
type TxRunner interface {
	InTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type gormTxRunner struct {
	db *gorm.DB
}

func NewTxRunner(db *gorm.DB) TxRunner {
	return &gormTxRunner{db: db}
}

func (r *gormTxRunner) InTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}
