package borrowers

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutesWithGroup registers borrower routes on a pre-configured group.
func RegisterRoutesWithGroup(g *echo.Group, borrowerService *Service) {
	h := &handler{
		borrowerService: borrowerService,
	}

	g.GET("", h.list)
	g.GET("/:id", h.retrieve)
	g.POST("", h.create)
	g.DELETE("/:id", h.deleteBorrower)
}
