package books

type ListBooksQuery struct {
	Limit     int     `query:"limit" json:"limit,omitempty" default:"100" validate:"min=1,max=100"`
	Offset    int     `query:"offset" json:"offset,omitempty" validate:"min=0"`
	Available *bool   `query:"available" json:"available,omitempty" tstype:"boolean"`
	Search    *string `query:"search" json:"search,omitempty" validate:"omitempty,max=100" tstype:"string"`
}

type CreateBookPayload struct {
	Title  string `json:"title" mod:"trim" validate:"required,max=255"`
	Author string `json:"author" mod:"trim" validate:"required,max=255"`
	Year   int    `json:"year" validate:"required,min=1000,notfuture"`
}

// UpdateBookPayload has no available field, so the binder rejects any
// attempt to set it as an unknown parameter.
type UpdateBookPayload struct {
	Title  *string `json:"title,omitempty" mod:"trim" validate:"omitempty,min=1,max=255"`
	Author *string `json:"author,omitempty" mod:"trim" validate:"omitempty,min=1,max=255"`
	Year   *int    `json:"year,omitempty" validate:"omitempty,min=1000,notfuture"`
}
