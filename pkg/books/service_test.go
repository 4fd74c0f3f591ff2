package books

import (
	"context"
	"testing"

	"github.com/shishobooks/circulation/pkg/config"
	"github.com/shishobooks/circulation/pkg/database"
	"github.com/shishobooks/circulation/pkg/errcodes"
	"github.com/shishobooks/circulation/pkg/migrations"
	"github.com/shishobooks/circulation/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

// stubLoans reports every book in onLoan as having an open loan.
type stubLoans struct {
	onLoan map[int]bool
}

func (s *stubLoans) HasOpenLoanForBook(_ context.Context, _ bun.IDB, bookID int) (bool, error) {
	return s.onLoan[bookID], nil
}

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	db, err := database.New(config.NewForTest())
	require.NoError(t, err)

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func createBook(ctx context.Context, t *testing.T, svc *Service, title, author string, year int) *models.Book {
	t.Helper()

	book := &models.Book{Title: title, Author: author, Year: year}
	require.NoError(t, svc.CreateBook(ctx, book))
	return book
}

func TestCreateBook_StartsAvailable(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := NewService(newTestDB(t), &stubLoans{})

	book := &models.Book{Title: "Germinal", Author: "Émile Zola", Year: 1885, Available: false}
	require.NoError(t, svc.CreateBook(ctx, book))

	assert.NotZero(t, book.ID)
	assert.True(t, book.Available)
	assert.False(t, book.CreatedAt.IsZero())

	retrieved, err := svc.RetrieveBook(ctx, RetrieveBookOptions{ID: &book.ID})
	require.NoError(t, err)
	assert.Equal(t, "Germinal", retrieved.Title)
	assert.Equal(t, "Émile Zola", retrieved.Author)
	assert.Equal(t, 1885, retrieved.Year)
	assert.True(t, retrieved.Available)
}

func TestRetrieveBook_NotFound(t *testing.T) {
	t.Parallel()
	svc := NewService(newTestDB(t), &stubLoans{})

	id := 999
	_, err := svc.RetrieveBook(context.Background(), RetrieveBookOptions{ID: &id})
	assert.ErrorIs(t, err, errcodes.NotFound("Book"))
}

func TestListBooks_FiltersAndPaginates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewService(db, &stubLoans{})

	hugo := createBook(ctx, t, svc, "Les Misérables", "Victor Hugo", 1862)
	createBook(ctx, t, svc, "Madame Bovary", "Gustave Flaubert", 1857)
	notreDame := createBook(ctx, t, svc, "Notre-Dame de Paris", "Victor Hugo", 1831)

	// Only the ledger flips availability; the test does it by hand.
	_, err := db.NewUpdate().
		Model((*models.Book)(nil)).
		Set("available = ?", false).
		Where("id = ?", notreDame.ID).
		Exec(ctx)
	require.NoError(t, err)

	t.Run("all", func(t *testing.T) {
		books, total, err := svc.ListBooksWithTotal(ctx, ListBooksOptions{})
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		require.Len(t, books, 3)
		assert.Equal(t, hugo.ID, books[0].ID)
	})

	t.Run("available", func(t *testing.T) {
		available := true
		books, total, err := svc.ListBooksWithTotal(ctx, ListBooksOptions{Available: &available})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		for _, b := range books {
			assert.True(t, b.Available)
		}
	})

	t.Run("search matches author case-insensitively", func(t *testing.T) {
		search := "victor"
		books, err := svc.ListBooks(ctx, ListBooksOptions{Search: &search})
		require.NoError(t, err)
		require.Len(t, books, 2)
		assert.Equal(t, hugo.ID, books[0].ID)
		assert.Equal(t, notreDame.ID, books[1].ID)
	})

	t.Run("limit and offset", func(t *testing.T) {
		limit, offset := 1, 1
		books, total, err := svc.ListBooksWithTotal(ctx, ListBooksOptions{Limit: &limit, Offset: &offset})
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		require.Len(t, books, 1)
		assert.Equal(t, "Madame Bovary", books[0].Title)
	})
}

func TestUpdateBook(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := NewService(newTestDB(t), &stubLoans{})

	book := createBook(ctx, t, svc, "Le Rouge et le Noir", "Stendal", 1830)

	book.Author = "Stendhal"
	require.NoError(t, svc.UpdateBook(ctx, book, UpdateBookOptions{Columns: []string{"author"}}))

	retrieved, err := svc.RetrieveBook(ctx, RetrieveBookOptions{ID: &book.ID})
	require.NoError(t, err)
	assert.Equal(t, "Stendhal", retrieved.Author)
	assert.True(t, retrieved.Available)
}

func TestUpdateBook_LeavesCallerColumnsUntouched(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := NewService(newTestDB(t), &stubLoans{})

	book := createBook(ctx, t, svc, "Bel-Ami", "Guy de Maupassant", 1885)
	book.Year = 1886

	backing := make([]string, 1, 2)
	backing[0] = "year"
	spare := backing[:2]
	spare[1] = "title"

	require.NoError(t, svc.UpdateBook(ctx, book, UpdateBookOptions{Columns: backing}))
	assert.Equal(t, []string{"year"}, backing)
	assert.Equal(t, "title", spare[1])
}

func TestUpdateBook_RejectsAvailability(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := NewService(newTestDB(t), &stubLoans{})

	book := createBook(ctx, t, svc, "Germinal", "Émile Zola", 1885)
	book.Available = false

	err := svc.UpdateBook(ctx, book, UpdateBookOptions{Columns: []string{"available"}})
	var e *errcodes.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "validation_error", e.Code)

	retrieved, err := svc.RetrieveBook(ctx, RetrieveBookOptions{ID: &book.ID})
	require.NoError(t, err)
	assert.True(t, retrieved.Available)
}

func TestUpdateBook_NotFound(t *testing.T) {
	t.Parallel()
	svc := NewService(newTestDB(t), &stubLoans{})

	book := &models.Book{ID: 42, Title: "Ghost"}
	err := svc.UpdateBook(context.Background(), book, UpdateBookOptions{Columns: []string{"title"}})
	assert.ErrorIs(t, err, errcodes.NotFound("Book"))
}

func TestDeleteBook(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	loans := &stubLoans{onLoan: map[int]bool{}}
	svc := NewService(newTestDB(t), loans)

	book := createBook(ctx, t, svc, "L'Étranger", "Albert Camus", 1942)

	t.Run("blocked while on loan", func(t *testing.T) {
		loans.onLoan[book.ID] = true
		err := svc.DeleteBook(ctx, book.ID)
		assert.ErrorIs(t, err, errcodes.Conflict("Book is on loan and can't be deleted."))

		_, err = svc.RetrieveBook(ctx, RetrieveBookOptions{ID: &book.ID})
		require.NoError(t, err)
	})

	t.Run("removes a book on the shelf", func(t *testing.T) {
		loans.onLoan[book.ID] = false
		require.NoError(t, svc.DeleteBook(ctx, book.ID))

		_, err := svc.RetrieveBook(ctx, RetrieveBookOptions{ID: &book.ID})
		assert.ErrorIs(t, err, errcodes.NotFound("Book"))

		err = svc.DeleteBook(ctx, book.ID)
		assert.ErrorIs(t, err, errcodes.NotFound("Book"))
	})
}
