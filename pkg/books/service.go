package books

import (
	"context"
	"database/sql"
	"slices"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shishobooks/circulation/pkg/errcodes"
	"github.com/shishobooks/circulation/pkg/models"
	"github.com/uptrace/bun"
)

type RetrieveBookOptions struct {
	ID *int
}

type ListBooksOptions struct {
	Limit     *int
	Offset    *int
	Available *bool
	Search    *string

	includeTotal bool
}

type UpdateBookOptions struct {
	Columns []string
}

// updatableColumns are the only book columns the catalog may write after
// creation. Availability belongs to the loan ledger.
var updatableColumns = map[string]struct{}{
	"title":  {},
	"author": {},
	"year":   {},
}

// OpenLoanChecker reports whether a book currently has an open loan. It is
// implemented by the loan ledger and called with the transaction the caller
// is about to write in.
type OpenLoanChecker interface {
	HasOpenLoanForBook(ctx context.Context, db bun.IDB, bookID int) (bool, error)
}

type Service struct {
	db    *bun.DB
	loans OpenLoanChecker
}

func NewService(db *bun.DB, loans OpenLoanChecker) *Service {
	return &Service{db, loans}
}

func (svc *Service) CreateBook(ctx context.Context, book *models.Book) error {
	now := time.Now()
	if book.CreatedAt.IsZero() {
		book.CreatedAt = now
	}
	book.UpdatedAt = book.CreatedAt
	// New books always start on the shelf.
	book.Available = true

	_, err := svc.db.
		NewInsert().
		Model(book).
		Returning("*").
		Exec(ctx)
	return errors.WithStack(err)
}

func (svc *Service) RetrieveBook(ctx context.Context, opts RetrieveBookOptions) (*models.Book, error) {
	return svc.RetrieveBookTx(ctx, svc.db, opts)
}

// RetrieveBookTx is RetrieveBook run on the given connection or transaction.
func (svc *Service) RetrieveBookTx(ctx context.Context, db bun.IDB, opts RetrieveBookOptions) (*models.Book, error) {
	book := &models.Book{}

	q := db.
		NewSelect().
		Model(book)

	if opts.ID != nil {
		q = q.Where("b.id = ?", *opts.ID)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Book")
		}
		return nil, errors.WithStack(err)
	}

	return book, nil
}

func (svc *Service) ListBooks(ctx context.Context, opts ListBooksOptions) ([]*models.Book, error) {
	b, _, err := svc.listBooksWithTotal(ctx, opts)
	return b, errors.WithStack(err)
}

func (svc *Service) ListBooksWithTotal(ctx context.Context, opts ListBooksOptions) ([]*models.Book, int, error) {
	opts.includeTotal = true
	return svc.listBooksWithTotal(ctx, opts)
}

func (svc *Service) listBooksWithTotal(ctx context.Context, opts ListBooksOptions) ([]*models.Book, int, error) {
	var books []*models.Book
	var total int
	var err error

	q := svc.db.
		NewSelect().
		Model(&books).
		Order("b.id ASC")

	if opts.Available != nil {
		q = q.Where("b.available = ?", *opts.Available)
	}
	if opts.Search != nil && *opts.Search != "" {
		search := "%" + strings.ToLower(*opts.Search) + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("LOWER(b.title) LIKE ?", search).
				WhereOr("LOWER(b.author) LIKE ?", search)
		})
	}
	if opts.Limit != nil {
		q = q.Limit(*opts.Limit)
	}
	if opts.Offset != nil {
		q = q.Offset(*opts.Offset)
	}

	if opts.includeTotal {
		total, err = q.ScanAndCount(ctx)
	} else {
		err = q.Scan(ctx)
	}
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	return books, total, nil
}

// UpdateBook writes the given bibliographic columns. Any other column,
// including available, is rejected.
func (svc *Service) UpdateBook(ctx context.Context, book *models.Book, opts UpdateBookOptions) error {
	if len(opts.Columns) == 0 {
		return nil
	}
	for _, col := range opts.Columns {
		if _, ok := updatableColumns[col]; !ok {
			return errcodes.ValidationError("Book field " + col + " can't be updated.")
		}
	}

	book.UpdatedAt = time.Now()
	columns := append(slices.Clone(opts.Columns), "updated_at")

	res, err := svc.db.
		NewUpdate().
		Model(book).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.WithStack(err)
	}
	if n == 0 {
		return errcodes.NotFound("Book")
	}
	return nil
}

// DeleteBook soft-deletes a book. A book that is out on loan can't be
// deleted; its closed loans keep referencing the removed row.
func (svc *Service) DeleteBook(ctx context.Context, bookID int) error {
	return svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := svc.RetrieveBookTx(ctx, tx, RetrieveBookOptions{ID: &bookID}); err != nil {
			return err
		}

		onLoan, err := svc.loans.HasOpenLoanForBook(ctx, tx, bookID)
		if err != nil {
			return errors.WithStack(err)
		}
		if onLoan {
			return errcodes.Conflict("Book is on loan and can't be deleted.")
		}

		_, err = tx.NewDelete().
			Model((*models.Book)(nil)).
			Where("id = ?", bookID).
			Exec(ctx)
		return errors.WithStack(err)
	})
}
