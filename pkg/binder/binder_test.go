package binder

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type params struct {
	Hello string `json:"hello" mod:"trim" validate:"max=9"`
	Omit  string `json:"-"`
}

type bookParams struct {
	Title string `json:"title" mod:"trim" validate:"required,max=255"`
	Year  int    `json:"year" validate:"required,min=1000,notfuture"`
}

type borrowerParams struct {
	Email string `json:"email" mod:"trim,lcase" validate:"required,email"`
}

type listParams struct {
	Limit  int   `query:"limit" json:"limit,omitempty" default:"100" validate:"min=1,max=100"`
	Offset int   `query:"offset" json:"offset,omitempty" validate:"min=0"`
	Open   *bool `query:"open" json:"open,omitempty"`
}

var (
	goodJSON             = `{"hello":" world "}`
	unknownFieldsErrJSON = `{"hello":"world","foo":"bar"}`
	typeErrJSON          = `{"hello":123}`
	validationErrJSON    = `{"hello":"0123456789"}`
)

func TestNew(t *testing.T) {
	t.Parallel()
	b, err := New()
	require.NoError(t, err)
	assert.NotNil(t, b)

	t.Run("only allows application/json", func(tt *testing.T) {
		c := newContext(http.MethodPost, "/", goodJSON, echo.MIMEApplicationForm)
		p := params{}
		err := b.Bind(&p, c)
		assert.Contains(tt, err.Error(), "Unsupported Media Type")
	})

	t.Run("disallows unknown fields", func(tt *testing.T) {
		c := newContext(http.MethodPost, "/", unknownFieldsErrJSON, echo.MIMEApplicationJSON)
		p := params{}
		err := b.Bind(&p, c)
		assert.Contains(tt, err.Error(), `Unknown Parameter "foo"`)
	})

	t.Run("returns a good message for type errors", func(tt *testing.T) {
		c := newContext(http.MethodPost, "/", typeErrJSON, echo.MIMEApplicationJSON)
		p := params{}
		err := b.Bind(&p, c)
		assert.Contains(tt, err.Error(), `"hello" should be of type string`)
	})

	t.Run("use mod tag to modify params", func(tt *testing.T) {
		c := newContext(http.MethodPost, "/", goodJSON, echo.MIMEApplicationJSON)
		p := params{}
		err := b.Bind(&p, c)
		require.NoError(tt, err)
		assert.Equal(tt, "world", p.Hello)
	})

	t.Run("use validate tag to validate params", func(tt *testing.T) {
		c := newContext(http.MethodPost, "/", validationErrJSON, echo.MIMEApplicationJSON)
		p := params{}
		err := b.Bind(&p, c)
		assert.Contains(tt, err.Error(), "length must be less than or equal to 9 characters")
	})

	t.Run("rejects an empty body on POST", func(tt *testing.T) {
		c := newContext(http.MethodPost, "/", "", echo.MIMEApplicationJSON)
		p := params{}
		err := b.Bind(&p, c)
		assert.Contains(tt, err.Error(), "Request body can't be empty.")
	})

	t.Run("rejects a year in the future", func(tt *testing.T) {
		next := strconv.Itoa(time.Now().Year() + 1)
		c := newContext(http.MethodPost, "/", `{"title":"Dune","year":`+next+`}`, echo.MIMEApplicationJSON)
		p := bookParams{}
		err := b.Bind(&p, c)
		assert.Contains(tt, err.Error(), `"year" can't be in the future`)
	})

	t.Run("lowercases and validates emails", func(tt *testing.T) {
		c := newContext(http.MethodPost, "/", `{"email":"  Jean@Example.COM "}`, echo.MIMEApplicationJSON)
		p := borrowerParams{}
		err := b.Bind(&p, c)
		require.NoError(tt, err)
		assert.Equal(tt, "jean@example.com", p.Email)

		c = newContext(http.MethodPost, "/", `{"email":"not-an-email"}`, echo.MIMEApplicationJSON)
		err = b.Bind(&borrowerParams{}, c)
		assert.Contains(tt, err.Error(), `"email" is not a valid email`)
	})

	t.Run("binds query params with defaults", func(tt *testing.T) {
		c := newContext(http.MethodGet, "/?offset=10&open=true", "", "")
		p := listParams{}
		err := b.Bind(&p, c)
		require.NoError(tt, err)
		assert.Equal(tt, 100, p.Limit)
		assert.Equal(tt, 10, p.Offset)
		require.NotNil(tt, p.Open)
		assert.True(tt, *p.Open)
	})

	t.Run("validates query params", func(tt *testing.T) {
		c := newContext(http.MethodGet, "/?limit=500", "", "")
		err := b.Bind(&listParams{}, c)
		assert.Contains(tt, err.Error(), `"limit" must be less than or equal to 100`)

		c = newContext(http.MethodGet, "/?limit=abc", "", "")
		err = b.Bind(&listParams{}, c)
		assert.Contains(tt, err.Error(), `"limit" should be of type int`)

		c = newContext(http.MethodGet, "/?bogus=1", "", "")
		err = b.Bind(&listParams{}, c)
		assert.Contains(tt, err.Error(), `Unknown Parameter "bogus"`)
	})
}

func newContext(method, target, payload, mime string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(payload))
	if mime != "" {
		req.Header.Set(echo.HeaderContentType, mime)
	}
	rr := httptest.NewRecorder()
	return e.NewContext(req, rr)
}
