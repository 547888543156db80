package echoapi

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

var (
	pageParam     = "page"
	pageSizeParam = "page_size"
	maxPageSize   = 100
)

// Pagination is the page requested with `?page=N&page_size=M`. Pages start at 1.
type Pagination struct {
	Page     int
	PageSize int
}

func (p *Pagination) Bind(ctx echo.Context, defaultSize int) error {
	p.Page, p.PageSize = 1, defaultSize

	if val := ctx.QueryParam(pageParam); val != "" {
		page, err := strconv.Atoi(val)
		if err != nil || page < 1 {
			return errInvalidPage
		}
		p.Page = page
	}
	if val := ctx.QueryParam(pageSizeParam); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			p.PageSize = size
		}
	}
	if p.PageSize > maxPageSize {
		p.PageSize = maxPageSize
	}
	return nil
}

// Bounds returns the slice bounds of the page among count items. Any page past the last one is
// invalid, except the first page of an empty list.
func (p Pagination) Bounds(count int) (start, end int, err error) {
	start = (p.Page - 1) * p.PageSize
	if start >= count && p.Page > 1 {
		return 0, 0, errInvalidPage
	}
	end = start + p.PageSize
	if end > count {
		end = count
	}
	return start, end, nil
}

// link is the absolute URL of the current request pointing at another page.
func (p Pagination) link(ctx echo.Context, page int) *string {
	req := ctx.Request()
	q := req.URL.Query()
	q.Set(pageParam, strconv.Itoa(page))
	u := ctx.Scheme() + "://" + req.Host + req.URL.Path + "?" + q.Encode()
	return &u
}

// PageResponse is the pagination envelope.
type PageResponse struct {
	Count    int         `json:"count"`
	Next     *string     `json:"next"`
	Previous *string     `json:"previous"`
	Results  interface{} `json:"results"`
}

func (p Pagination) Response(ctx echo.Context, count int, results interface{}) PageResponse {
	resp := PageResponse{Count: count, Results: results}
	if p.Page*p.PageSize < count {
		resp.Next = p.link(ctx, p.Page+1)
	}
	if p.Page > 1 {
		resp.Previous = p.link(ctx, p.Page-1)
	}
	return resp
}
