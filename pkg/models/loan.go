package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Loan links a book to a borrower. A loan is open while ReturnedAt is nil and
// is closed exactly once; loans are never deleted.
type Loan struct {
	bun.BaseModel `bun:"table:loans,alias:ln" tstype:"-"`

	ID         int        `bun:",pk,nullzero" json:"id"`
	BookID     int        `bun:",nullzero" json:"book_id"`
	BorrowerID int        `bun:",nullzero" json:"borrower_id"`
	LoanedAt   time.Time  `json:"loaned_at"`
	ReturnedAt *time.Time `json:"returned_at"`
}

// IsOpen reports whether the loan has not been returned yet.
func (l *Loan) IsOpen() bool {
	return l.ReturnedAt == nil
}
