package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const DefaultLimit = 10

// Params holds the page-based pagination window extracted from a request.
type Params struct {
	Page  int
	Limit int
}

// FromContext extracts page/limit from the echo context. Page defaults to 1,
// limit to DefaultLimit. No upper bound is enforced on limit; callers that
// need one clamp it themselves.
func FromContext(c echo.Context) Params {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 {
		limit = DefaultLimit
	}
	return Params{Page: page, Limit: limit}
}

// Skip returns the row offset for the window.
func (p Params) Skip() int {
	return (p.Page - 1) * p.Limit
}

// Meta describes the page of a result set.
type Meta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// NewMeta computes totalPages as ceil(total/limit). Limit must be positive.
func NewMeta(page, limit, total int) Meta {
	return Meta{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: (total + limit - 1) / limit,
	}
}

// Response wraps a paginated API response.
type Response struct {
	Data interface{} `json:"data"`
	Meta Meta        `json:"meta"`
}

func NewResponse(data interface{}, page, limit, total int) *Response {
	return &Response{Data: data, Meta: NewMeta(page, limit, total)}
}
