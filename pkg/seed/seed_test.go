package seed

import (
	"context"
	"testing"

	"github.com/shishobooks/circulation/pkg/books"
	"github.com/shishobooks/circulation/pkg/borrowers"
	"github.com/shishobooks/circulation/pkg/config"
	"github.com/shishobooks/circulation/pkg/database"
	"github.com/shishobooks/circulation/pkg/loans"
	"github.com/shishobooks/circulation/pkg/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	db, err := database.New(config.NewForTest())
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close()
	})
	_, err = migrations.BringUpToDate(ctx, db)
	require.NoError(t, err)

	ledger := loans.NewService(db)
	bookService := ledger.Books()
	borrowerService := ledger.Borrowers()

	res, err := Run(ctx, bookService, borrowerService)
	require.NoError(t, err)
	assert.Equal(t, len(sampleBooks), res.Books)
	assert.Equal(t, len(sampleBorrowers), res.Borrowers)

	bookRows, total, err := bookService.ListBooksWithTotal(ctx, books.ListBooksOptions{})
	require.NoError(t, err)
	assert.Equal(t, len(sampleBooks), total)
	for _, b := range bookRows {
		assert.True(t, b.Available, b.Title)
	}

	// Running again leaves the tables alone.
	res, err = Run(ctx, bookService, borrowerService)
	require.NoError(t, err)
	assert.Zero(t, res.Books)
	assert.Zero(t, res.Borrowers)

	_, total, err = borrowerService.ListBorrowersWithTotal(ctx, borrowers.ListBorrowersOptions{})
	require.NoError(t, err)
	assert.Equal(t, len(sampleBorrowers), total)
}
