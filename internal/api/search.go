package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/shelfarr/booksearch/internal/logging"
	"github.com/shelfarr/booksearch/internal/openlibrary"
	"github.com/shelfarr/booksearch/internal/search"
)

// searchBooks runs one undebounced search and answers with the rendered view
func (s *Server) searchBooks(c echo.Context) error {
	keyword := c.QueryParam("q")
	if keyword == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Query parameter 'q' is required"})
	}

	page := 0
	if p := c.QueryParam("page"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Query parameter 'page' must be a non-negative integer"})
		}
		page = n
	}

	ctx := c.Request().Context()
	resp, err := s.client.SearchBooks(ctx, keyword, page)
	if err != nil {
		if errors.Is(err, openlibrary.ErrEmptyKeyword) || errors.Is(err, openlibrary.ErrInvalidPage) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		logging.Ctx(ctx).Warn().Err(err).
			Str(logging.FieldKeyword, keyword).
			Int(logging.FieldPage, page).
			Msg("search request failed")
		return c.JSON(http.StatusBadGateway, map[string]string{"error": search.ErrorMessage(err)})
	}

	return c.JSON(http.StatusOK, search.NewView(search.Query{Keyword: keyword, Page: page}, resp))
}
