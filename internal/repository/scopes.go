package repository

import (
	"strings"

	"gorm.io/gorm"
)

// Paginate limits a query to one page; page and limit below 1 fall back to the first page of 20
func Paginate(page, limit int) func(*gorm.DB) *gorm.DB {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset((page - 1) * limit).Limit(limit)
	}
}

// Search matches term case-insensitively against any of columns
func Search(term string, columns ...string) func(*gorm.DB) *gorm.DB {
	term = strings.TrimSpace(term)
	return func(db *gorm.DB) *gorm.DB {
		if term == "" || len(columns) == 0 {
			return db
		}
		pattern := "%" + strings.ToLower(term) + "%"
		clauses := make([]string, len(columns))
		args := make([]interface{}, len(columns))
		for i, col := range columns {
			clauses[i] = "LOWER(" + col + ") LIKE ?"
			args[i] = pattern
		}
		return db.Where(strings.Join(clauses, " OR "), args...)
	}
}

// countAndFind counts the filtered rows, then loads the requested page into dst.
// extra scopes (preloads) apply to the page query only.
func countAndFind(query *gorm.DB, dst interface{}, order string, page, limit int, extra ...func(*gorm.DB) *gorm.DB) (int64, error) {
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return 0, err
	}
	scopes := append([]func(*gorm.DB) *gorm.DB{Paginate(page, limit)}, extra...)
	if err := query.Order(order).Scopes(scopes...).Find(dst).Error; err != nil {
		return 0, err
	}
	return total, nil
}
