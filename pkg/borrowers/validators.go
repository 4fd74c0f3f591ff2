package borrowers

type ListBorrowersQuery struct {
	Limit  int `query:"limit" json:"limit,omitempty" default:"100" validate:"min=1,max=100"`
	Offset int `query:"offset" json:"offset,omitempty" validate:"min=0"`
}

type CreateBorrowerPayload struct {
	Name  string `json:"name" mod:"trim" validate:"required,max=255"`
	Email string `json:"email" mod:"trim,lcase" validate:"required,max=255,email"`
}
