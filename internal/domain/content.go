// internal/domain/content.go
package domain

import "github.com/shopspring/decimal"

// Content is the catalog view the ledger needs: its authoritative reward.
type Content struct {
	ID     int64           `db:"id" json:"id"`
	Title  string          `db:"title" json:"title"`
	Reward decimal.Decimal `db:"reward" json:"reward"`
	Active bool            `db:"active" json:"active"`
}
