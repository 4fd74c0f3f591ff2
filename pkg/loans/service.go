package loans

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/circulation/pkg/books"
	"github.com/shishobooks/circulation/pkg/borrowers"
	"github.com/shishobooks/circulation/pkg/database"
	"github.com/shishobooks/circulation/pkg/errcodes"
	"github.com/shishobooks/circulation/pkg/models"
	"github.com/uptrace/bun"
)

const bookOnLoanMessage = "Book is already on loan."

// ErrAvailabilityOutOfSync is returned when a book's available flag doesn't
// match its loan rows. The transaction is rolled back when this happens.
var ErrAvailabilityOutOfSync = errors.New("book availability is out of sync with its loans")

type CreateLoanOptions struct {
	BookID     int
	BorrowerID int
}

// BookSummary is the part of a book shown alongside a loan.
type BookSummary struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	Year      int    `json:"year"`
	Available bool   `json:"available"`
}

// BorrowerSummary is the part of a borrower shown alongside a loan.
type BorrowerSummary struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// LoanDetail is a loan joined with the book and borrower it references.
// Soft-deleted books and borrowers are still resolved so history stays
// readable.
type LoanDetail struct {
	*models.Loan
	Book     *BookSummary     `json:"book"`
	Borrower *BorrowerSummary `json:"borrower"`
}

type ListLoansOptions struct {
	Limit      *int
	Offset     *int
	BookID     *int
	BorrowerID *int
	Open       *bool

	includeTotal bool
}

// Service is the loan ledger. It is the only writer of Book.Available and the
// only component that decides whether a book or borrower has an open loan.
// Every write runs in a single transaction that covers both the book row and
// the loan row.
type Service struct {
	db              *bun.DB
	bookService     *books.Service
	borrowerService *borrowers.Service
}

func NewService(db *bun.DB) *Service {
	svc := &Service{db: db}
	svc.bookService = books.NewService(db, svc)
	svc.borrowerService = borrowers.NewService(db, svc)
	return svc
}

// Books is the catalog the ledger reads and guards. Callers use it instead of
// building a second catalog over the same database.
func (svc *Service) Books() *books.Service {
	return svc.bookService
}

// Borrowers is the registry the ledger reads and guards.
func (svc *Service) Borrowers() *borrowers.Service {
	return svc.borrowerService
}

// CreateLoan lends a book to a borrower. The book must be available; the
// availability flip is guarded on the current value so that concurrent
// requests for the same book can't both succeed.
func (svc *Service) CreateLoan(ctx context.Context, opts CreateLoanOptions) (*models.Loan, error) {
	log := logger.FromContext(ctx)

	loan := &models.Loan{
		BookID:     opts.BookID,
		BorrowerID: opts.BorrowerID,
		LoanedAt:   time.Now(),
	}

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		_, err := svc.bookService.RetrieveBookTx(ctx, tx, books.RetrieveBookOptions{ID: &opts.BookID})
		if err != nil {
			return err
		}
		_, err = svc.borrowerService.RetrieveBorrowerTx(ctx, tx, borrowers.RetrieveBorrowerOptions{ID: &opts.BorrowerID})
		if err != nil {
			return err
		}

		flipped, err := setAvailability(ctx, tx, opts.BookID, false)
		if err != nil {
			return err
		}
		if !flipped {
			return errcodes.Conflict(bookOnLoanMessage)
		}

		_, err = tx.
			NewInsert().
			Model(loan).
			Returning("*").
			Exec(ctx)
		if database.IsUniqueViolation(err) {
			// The open-loan index caught a second open loan for this book.
			return errcodes.Conflict(bookOnLoanMessage)
		}
		return errors.WithStack(err)
	})
	if err != nil {
		return nil, err
	}

	log.Info("loan created", logger.Data{"loan_id": loan.ID, "book_id": loan.BookID, "borrower_id": loan.BorrowerID})
	return loan, nil
}

// ReturnLoan closes the open loan for a book and puts the book back on the
// shelf.
func (svc *Service) ReturnLoan(ctx context.Context, bookID int) (*models.Loan, error) {
	log := logger.FromContext(ctx)

	loan := &models.Loan{}

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		_, err := svc.bookService.RetrieveBookTx(ctx, tx, books.RetrieveBookOptions{ID: &bookID})
		if err != nil {
			return err
		}

		err = tx.
			NewSelect().
			Model(loan).
			Where("ln.book_id = ?", bookID).
			Where("ln.returned_at IS NULL").
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errcodes.NotFound("Active loan")
			}
			return errors.WithStack(err)
		}

		now := time.Now()
		loan.ReturnedAt = &now
		res, err := tx.
			NewUpdate().
			Model(loan).
			Column("returned_at").
			WherePK().
			Where("returned_at IS NULL").
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return errors.WithStack(err)
		}
		if n == 0 {
			return errcodes.NotFound("Active loan")
		}

		flipped, err := setAvailability(ctx, tx, bookID, true)
		if err != nil {
			return err
		}
		if !flipped {
			return errors.WithStack(ErrAvailabilityOutOfSync)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("loan returned", logger.Data{"loan_id": loan.ID, "book_id": loan.BookID, "borrower_id": loan.BorrowerID})
	return loan, nil
}

// HasOpenLoan reports whether the borrower holds at least one open loan. db
// is the connection or transaction to read from; nil means the service's own
// connection.
func (svc *Service) HasOpenLoan(ctx context.Context, db bun.IDB, borrowerID int) (bool, error) {
	if db == nil {
		db = svc.db
	}
	exists, err := db.
		NewSelect().
		Model((*models.Loan)(nil)).
		Where("borrower_id = ?", borrowerID).
		Where("returned_at IS NULL").
		Exists(ctx)
	return exists, errors.WithStack(err)
}

// HasOpenLoanForBook reports whether the book is currently on loan.
func (svc *Service) HasOpenLoanForBook(ctx context.Context, db bun.IDB, bookID int) (bool, error) {
	if db == nil {
		db = svc.db
	}
	exists, err := db.
		NewSelect().
		Model((*models.Loan)(nil)).
		Where("book_id = ?", bookID).
		Where("returned_at IS NULL").
		Exists(ctx)
	return exists, errors.WithStack(err)
}

// setAvailability moves a book's available flag to the given value. It only
// matches the row when the flag currently holds the opposite value and
// reports whether the row was changed.
func setAvailability(ctx context.Context, db bun.IDB, bookID int, available bool) (bool, error) {
	res, err := db.
		NewUpdate().
		Model((*models.Book)(nil)).
		Set("available = ?", available).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", bookID).
		Where("available = ?", !available).
		Exec(ctx)
	if err != nil {
		return false, errors.WithStack(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.WithStack(err)
	}
	return n == 1, nil
}

func (svc *Service) RetrieveLoan(ctx context.Context, id int) (*LoanDetail, error) {
	var detail *LoanDetail

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		loan := &models.Loan{}
		err := tx.
			NewSelect().
			Model(loan).
			Where("ln.id = ?", id).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errcodes.NotFound("Loan")
			}
			return errors.WithStack(err)
		}

		details, err := attachDetails(ctx, tx, []*models.Loan{loan})
		if err != nil {
			return err
		}
		detail = details[0]
		return nil
	})
	if err != nil {
		return nil, err
	}

	return detail, nil
}

func (svc *Service) ListLoans(ctx context.Context, opts ListLoansOptions) ([]*LoanDetail, error) {
	l, _, err := svc.listLoansWithTotal(ctx, opts)
	return l, errors.WithStack(err)
}

func (svc *Service) ListLoansWithTotal(ctx context.Context, opts ListLoansOptions) ([]*LoanDetail, int, error) {
	opts.includeTotal = true
	return svc.listLoansWithTotal(ctx, opts)
}

func (svc *Service) listLoansWithTotal(ctx context.Context, opts ListLoansOptions) ([]*LoanDetail, int, error) {
	var details []*LoanDetail
	var total int

	// The loans and the rows they reference are read in one transaction so a
	// listing never mixes states from before and after a write.
	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var loans []*models.Loan
		var err error

		q := tx.
			NewSelect().
			Model(&loans).
			Order("ln.id ASC")

		if opts.BookID != nil {
			q = q.Where("ln.book_id = ?", *opts.BookID)
		}
		if opts.BorrowerID != nil {
			q = q.Where("ln.borrower_id = ?", *opts.BorrowerID)
		}
		if opts.Open != nil {
			if *opts.Open {
				q = q.Where("ln.returned_at IS NULL")
			} else {
				q = q.Where("ln.returned_at IS NOT NULL")
			}
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
			return errors.WithStack(err)
		}

		details, err = attachDetails(ctx, tx, loans)
		return err
	})
	if err != nil {
		return nil, 0, err
	}

	return details, total, nil
}

// attachDetails resolves the book and borrower of every loan, including ones
// that have since been deleted.
func attachDetails(ctx context.Context, db bun.IDB, loans []*models.Loan) ([]*LoanDetail, error) {
	details := make([]*LoanDetail, 0, len(loans))
	if len(loans) == 0 {
		return details, nil
	}

	bookIDs := make([]int, 0, len(loans))
	borrowerIDs := make([]int, 0, len(loans))
	for _, l := range loans {
		bookIDs = append(bookIDs, l.BookID)
		borrowerIDs = append(borrowerIDs, l.BorrowerID)
	}

	var bookRows []*models.Book
	err := db.
		NewSelect().
		Model(&bookRows).
		Where("b.id IN (?)", bun.In(bookIDs)).
		WhereAllWithDeleted().
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	bookByID := make(map[int]*BookSummary, len(bookRows))
	for _, b := range bookRows {
		bookByID[b.ID] = &BookSummary{
			ID:        b.ID,
			Title:     b.Title,
			Author:    b.Author,
			Year:      b.Year,
			Available: b.Available,
		}
	}

	var borrowerRows []*models.Borrower
	err = db.
		NewSelect().
		Model(&borrowerRows).
		Where("br.id IN (?)", bun.In(borrowerIDs)).
		WhereAllWithDeleted().
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	borrowerByID := make(map[int]*BorrowerSummary, len(borrowerRows))
	for _, br := range borrowerRows {
		borrowerByID[br.ID] = &BorrowerSummary{
			ID:    br.ID,
			Name:  br.Name,
			Email: br.Email,
		}
	}

	for _, l := range loans {
		details = append(details, &LoanDetail{
			Loan:     l,
			Book:     bookByID[l.BookID],
			Borrower: borrowerByID[l.BorrowerID],
		})
	}
	return details, nil
}
