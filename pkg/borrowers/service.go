package borrowers

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shishobooks/circulation/pkg/database"
	"github.com/shishobooks/circulation/pkg/errcodes"
	"github.com/shishobooks/circulation/pkg/models"
	"github.com/uptrace/bun"
)

const emailTakenMessage = "Email is already registered."

type RetrieveBorrowerOptions struct {
	ID    *int
	Email *string
}

type ListBorrowersOptions struct {
	Limit  *int
	Offset *int

	includeTotal bool
}

// OpenLoanChecker reports whether a borrower currently holds an open loan. It
// is implemented by the loan ledger and called inside the deleting
// transaction.
type OpenLoanChecker interface {
	HasOpenLoan(ctx context.Context, db bun.IDB, borrowerID int) (bool, error)
}

type Service struct {
	db    *bun.DB
	loans OpenLoanChecker
}

func NewService(db *bun.DB, loans OpenLoanChecker) *Service {
	return &Service{db, loans}
}

// CreateBorrower registers a borrower. Emails are unique among borrowers that
// haven't been deleted, compared case-insensitively.
func (svc *Service) CreateBorrower(ctx context.Context, borrower *models.Borrower) error {
	borrower.Name = strings.TrimSpace(borrower.Name)
	borrower.Email = strings.ToLower(strings.TrimSpace(borrower.Email))

	now := time.Now()
	if borrower.CreatedAt.IsZero() {
		borrower.CreatedAt = now
	}
	borrower.UpdatedAt = borrower.CreatedAt

	return svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		_, err := svc.RetrieveBorrowerTx(ctx, tx, RetrieveBorrowerOptions{Email: &borrower.Email})
		if err == nil {
			return errcodes.ValidationError(emailTakenMessage)
		}
		if !errors.Is(err, errcodes.NotFound("Borrower")) {
			return err
		}

		_, err = tx.
			NewInsert().
			Model(borrower).
			Returning("*").
			Exec(ctx)
		if database.IsUniqueViolation(err) {
			return errcodes.ValidationError(emailTakenMessage)
		}
		return errors.WithStack(err)
	})
}

func (svc *Service) RetrieveBorrower(ctx context.Context, opts RetrieveBorrowerOptions) (*models.Borrower, error) {
	return svc.RetrieveBorrowerTx(ctx, svc.db, opts)
}

// RetrieveBorrowerTx is RetrieveBorrower run on the given connection or
// transaction.
func (svc *Service) RetrieveBorrowerTx(ctx context.Context, db bun.IDB, opts RetrieveBorrowerOptions) (*models.Borrower, error) {
	borrower := &models.Borrower{}

	q := db.
		NewSelect().
		Model(borrower)

	if opts.ID != nil {
		q = q.Where("br.id = ?", *opts.ID)
	}
	if opts.Email != nil {
		// Case-insensitive match
		q = q.Where("LOWER(br.email) = LOWER(?)", strings.TrimSpace(*opts.Email))
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Borrower")
		}
		return nil, errors.WithStack(err)
	}

	return borrower, nil
}

func (svc *Service) ListBorrowers(ctx context.Context, opts ListBorrowersOptions) ([]*models.Borrower, error) {
	b, _, err := svc.listBorrowersWithTotal(ctx, opts)
	return b, errors.WithStack(err)
}

func (svc *Service) ListBorrowersWithTotal(ctx context.Context, opts ListBorrowersOptions) ([]*models.Borrower, int, error) {
	opts.includeTotal = true
	return svc.listBorrowersWithTotal(ctx, opts)
}

func (svc *Service) listBorrowersWithTotal(ctx context.Context, opts ListBorrowersOptions) ([]*models.Borrower, int, error) {
	var borrowers []*models.Borrower
	var total int
	var err error

	q := svc.db.
		NewSelect().
		Model(&borrowers).
		Order("br.id ASC")

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

	return borrowers, total, nil
}

// DeleteBorrower soft-deletes a borrower unless they hold an open loan. The
// check and the delete share one transaction, so a loan created concurrently
// is either seen by the check or blocked until the delete commits.
func (svc *Service) DeleteBorrower(ctx context.Context, borrowerID int) error {
	return svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := svc.RetrieveBorrowerTx(ctx, tx, RetrieveBorrowerOptions{ID: &borrowerID}); err != nil {
			return err
		}

		hasOpenLoan, err := svc.loans.HasOpenLoan(ctx, tx, borrowerID)
		if err != nil {
			return errors.WithStack(err)
		}
		if hasOpenLoan {
			return errcodes.Conflict("Borrower has an open loan and can't be deleted.")
		}

		_, err = tx.NewDelete().
			Model((*models.Borrower)(nil)).
			Where("id = ?", borrowerID).
			Exec(ctx)
		return errors.WithStack(err)
	})
}
