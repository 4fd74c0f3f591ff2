package borrowers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shishobooks/circulation/pkg/errcodes"
	"github.com/shishobooks/circulation/pkg/models"
)

type handler struct {
	borrowerService *Service
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Borrower")
	}

	borrower, err := h.borrowerService.RetrieveBorrower(ctx, RetrieveBorrowerOptions{
		ID: &id,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, borrower))
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListBorrowersQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	borrowers, total, err := h.borrowerService.ListBorrowersWithTotal(ctx, ListBorrowersOptions{
		Limit:  &params.Limit,
		Offset: &params.Offset,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	response := map[string]any{
		"borrowers": borrowers,
		"total":     total,
	}

	return errors.WithStack(c.JSON(http.StatusOK, response))
}

func (h *handler) create(c echo.Context) error {
	ctx := c.Request().Context()

	params := CreateBorrowerPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	borrower := &models.Borrower{
		Name:  params.Name,
		Email: params.Email,
	}
	if err := h.borrowerService.CreateBorrower(ctx, borrower); err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusCreated, borrower))
}

func (h *handler) deleteBorrower(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Borrower")
	}

	if err := h.borrowerService.DeleteBorrower(ctx, id); err != nil {
		return errors.WithStack(err)
	}

	return c.NoContent(http.StatusNoContent)
}
