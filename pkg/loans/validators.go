package loans

type ListLoansQuery struct {
	Limit      int   `query:"limit" json:"limit,omitempty" default:"100" validate:"min=1,max=100"`
	Offset     int   `query:"offset" json:"offset,omitempty" validate:"min=0"`
	BookID     *int  `query:"book_id" json:"book_id,omitempty" validate:"omitempty,min=1" tstype:"number"`
	BorrowerID *int  `query:"borrower_id" json:"borrower_id,omitempty" validate:"omitempty,min=1" tstype:"number"`
	Open       *bool `query:"open" json:"open,omitempty" tstype:"boolean"`
}

type CreateLoanPayload struct {
	BookID     int `json:"book_id" validate:"required,min=1"`
	BorrowerID int `json:"borrower_id" validate:"required,min=1"`
}
