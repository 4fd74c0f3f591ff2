package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Book is one physical unit in the catalog. Available is only written by the
// loan ledger; it is false exactly while the book has an open loan.
type Book struct {
	bun.BaseModel `bun:"table:books,alias:b" tstype:"-"`

	ID        int        `bun:",pk,nullzero" json:"id"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `bun:",soft_delete" json:"-"`
	Title     string     `bun:",nullzero" json:"title"`
	Author    string     `bun:",nullzero" json:"author"`
	Year      int        `json:"year"`
	Available bool       `json:"available"`
}
