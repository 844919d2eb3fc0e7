package repository

import (
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx/types"
)

func clampPage(page, size, defaultSize, maxSize int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = defaultSize
	}
	if size > maxSize {
		size = maxSize
	}
	return page, size
}

func requireAffected(res sql.Result, op string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows: %w", op, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// nullJSON stores empty documents as NULL rather than an invalid empty string.
func nullJSON(doc types.JSONText) interface{} {
	if len(doc) == 0 {
		return nil
	}
	return []byte(doc)
}
