package models

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// ProductPage is one page of the catalog listing.
type ProductPage struct {
	Data       []*Product `json:"data"`
	Total      int        `json:"total"`
	Page       int        `json:"page"`
	PageSize   int        `json:"pageSize"`
	TotalPages int        `json:"totalPages"`
}

// NormalizePaging moves a page below one to the first page and replaces a
// size outside 1..MaxPageSize with DefaultPageSize.
func NormalizePaging(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		pageSize = DefaultPageSize
	}
	return page, pageSize
}

// NewProductPage always encodes Data as an array, even past the last page.
func NewProductPage(products []*Product, total, page, pageSize int) ProductPage {
	if products == nil {
		products = []*Product{}
	}

	totalPages := 0
	if pageSize > 0 {
		totalPages = (total + pageSize - 1) / pageSize
	}

	return ProductPage{
		Data:       products,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}
