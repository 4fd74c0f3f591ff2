// Package seed loads a small sample collection into an empty database.
package seed

import (
	"context"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/circulation/pkg/books"
	"github.com/shishobooks/circulation/pkg/borrowers"
	"github.com/shishobooks/circulation/pkg/models"
)

type Result struct {
	Books     int
	Borrowers int
}

var sampleBorrowers = []models.Borrower{
	{Name: "Jean Dupont", Email: "jean.dupont@email.com"},
	{Name: "Marie Martin", Email: "marie.martin@email.com"},
	{Name: "Pierre Durand", Email: "pierre.durand@email.com"},
	{Name: "Sophie Bernard", Email: "sophie.bernard@email.com"},
	{Name: "Lucas Petit", Email: "lucas.petit@email.com"},
}

var sampleBooks = []models.Book{
	{Title: "Les Misérables", Author: "Victor Hugo", Year: 1862},
	{Title: "Don Quichotte", Author: "Miguel de Cervantes", Year: 1605},
	{Title: "Madame Bovary", Author: "Gustave Flaubert", Year: 1857},
	{Title: "L'Étranger", Author: "Albert Camus", Year: 1942},
	{Title: "Le Comte de Monte-Cristo", Author: "Alexandre Dumas", Year: 1844},
	{Title: "Anna Karénine", Author: "Léon Tolstoï", Year: 1877},
	{Title: "Les Fleurs du Mal", Author: "Charles Baudelaire", Year: 1857},
	{Title: "Germinal", Author: "Émile Zola", Year: 1885},
	{Title: "Le Rouge et le Noir", Author: "Stendhal", Year: 1830},
	{Title: "Notre-Dame de Paris", Author: "Victor Hugo", Year: 1831},
}

// Run inserts the sample borrowers and books. Each set is only inserted when
// its table has no rows, so running it twice is a no-op.
func Run(ctx context.Context, bookService *books.Service, borrowerService *borrowers.Service) (*Result, error) {
	log := logger.FromContext(ctx)
	res := &Result{}

	existing, err := borrowerService.ListBorrowers(ctx, borrowers.ListBorrowersOptions{Limit: intPtr(1)})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if len(existing) == 0 {
		for _, b := range sampleBorrowers {
			borrower := b
			if err := borrowerService.CreateBorrower(ctx, &borrower); err != nil {
				return nil, errors.Wrapf(err, "failed to create borrower %s", b.Email)
			}
			res.Borrowers++
		}
	} else {
		log.Info("borrowers already present, skipping")
	}

	existingBooks, err := bookService.ListBooks(ctx, books.ListBooksOptions{Limit: intPtr(1)})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if len(existingBooks) == 0 {
		for _, b := range sampleBooks {
			book := b
			if err := bookService.CreateBook(ctx, &book); err != nil {
				return nil, errors.Wrapf(err, "failed to create book %q", b.Title)
			}
			res.Books++
		}
	} else {
		log.Info("books already present, skipping")
	}

	log.Info("seed complete", logger.Data{"books": res.Books, "borrowers": res.Borrowers})
	return res, nil
}

func intPtr(i int) *int {
	return &i
}
