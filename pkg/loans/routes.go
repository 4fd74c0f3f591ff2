package loans

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers the loan routes and the return route, which is
// keyed by book rather than by loan.
func RegisterRoutes(e *echo.Echo, loanService *Service) {
	h := &handler{
		loanService: loanService,
	}

	g := e.Group("/emprunts")
	g.GET("", h.list)
	g.GET("/:id", h.retrieve)
	g.POST("", h.create)

	e.POST("/retours/:bookId", h.returnLoan)
}
