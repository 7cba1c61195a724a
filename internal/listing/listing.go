// Package listing holds the filtering, paging and date formatting rules shared
// by every list endpoint.
package listing

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Query is the search and paging request of a list endpoint.
type Query struct {
	Search   string
	Page     int
	PageSize int
}

// Offset is the number of rows skipped before the requested page. It
// saturates at math.MaxInt instead of overflowing for very large pages.
func (q Query) Offset() int {
	return offset(q.Page, q.PageSize)
}

func offset(page, pageSize int) int {
	if page <= 1 || pageSize <= 0 {
		return 0
	}
	if page-1 > math.MaxInt/pageSize {
		return math.MaxInt
	}
	return (page - 1) * pageSize
}

// Page is one slice of a list together with the paging totals.
type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// ParseQuery reads q, page and pageSize. Missing values take the defaults.
func ParseQuery(values url.Values) (Query, error) {
	q := Query{
		Search:   strings.TrimSpace(values.Get("q")),
		Page:     1,
		PageSize: DefaultPageSize,
	}

	if raw := strings.TrimSpace(values.Get("page")); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return Query{}, fmt.Errorf("page must be an integer")
		}
		if page < 1 {
			return Query{}, fmt.Errorf("page must be at least 1")
		}
		q.Page = page
	}

	if raw := strings.TrimSpace(values.Get("pageSize")); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil {
			return Query{}, fmt.Errorf("pageSize must be an integer")
		}
		if size < 1 {
			return Query{}, fmt.Errorf("pageSize must be at least 1")
		}
		if size > MaxPageSize {
			return Query{}, fmt.Errorf("pageSize must be at most %d", MaxPageSize)
		}
		q.PageSize = size
	}

	return q, nil
}

// TotalPages is ceil(total/pageSize); an empty list has zero pages.
func TotalPages(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

// Filter keeps the items where any of the fields contains search, ignoring case.
func Filter[T any](items []T, search string, fields func(T) []string) []T {
	search = strings.TrimSpace(search)
	if search == "" {
		return nonNil(items)
	}
	folder := cases.Fold()
	needle := folder.String(search)

	out := make([]T, 0, len(items))
	for _, item := range items {
		for _, field := range fields(item) {
			if strings.Contains(folder.String(field), needle) {
				out = append(out, item)
				break
			}
		}
	}
	return out
}

// Paginate cuts one page out of items. A page past the end is empty.
func Paginate[T any](items []T, page, pageSize int) Page[T] {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if page < 1 {
		page = 1
	}
	total := len(items)
	start := total
	if page-1 <= total/pageSize {
		start = min((page-1)*pageSize, total)
	}
	end := start + pageSize
	if end > total || end < start {
		end = total
	}
	return Page[T]{
		Items:      nonNil(items[start:end]),
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: TotalPages(total, pageSize),
	}
}

// Apply filters then paginates an in-memory list.
func Apply[T any](items []T, q Query, fields func(T) []string) Page[T] {
	return Paginate(Filter(items, q.Search, fields), q.Page, q.PageSize)
}

// NewPage wraps items that were already paged by the database.
func NewPage[T any](items []T, q Query, total int) Page[T] {
	return Page[T]{
		Items:      nonNil(items),
		Page:       q.Page,
		PageSize:   q.PageSize,
		Total:      total,
		TotalPages: TotalPages(total, q.PageSize),
	}
}

// Map converts the items of a page, keeping the totals.
func Map[T, U any](page Page[T], fn func(T) U) Page[U] {
	items := make([]U, 0, len(page.Items))
	for _, item := range page.Items {
		items = append(items, fn(item))
	}
	return Page[U]{
		Items:      items,
		Page:       page.Page,
		PageSize:   page.PageSize,
		Total:      page.Total,
		TotalPages: page.TotalPages,
	}
}

const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = time.RFC3339
)

// FormatDate renders a calendar date, or "" for a nil or zero time.
func FormatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

// FormatDateTime renders a UTC timestamp, or "" for a nil or zero time.
func FormatDateTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(DateTimeLayout)
}

// ParseDate parses a YYYY-MM-DD value. Blank input yields nil.
func ParseDate(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	parsed, err := time.Parse(DateLayout, value)
	if err != nil {
		return nil, fmt.Errorf("date must use YYYY-MM-DD")
	}
	return &parsed, nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
