package models

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 200
)

type Pagination struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}

// NormalizePage clamps page/limit to sane bounds and returns the SQL
// offset alongside them.
func NormalizePage(page, limit int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	offset := (page - 1) * limit
	return page, limit, offset
}
