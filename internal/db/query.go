package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// QueryRunner is satisfied by both *sql.DB and *sql.Tx.
type QueryRunner interface {
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// TxRunner runs fn in a transaction that commits only if fn succeeds and ctx
// is still live.
func TxRunner[T any](ctx context.Context, sqlite *sql.DB, fn func(*sql.Tx) (T, error)) (T, error) {
	var zero T
	tx, err := sqlite.BeginTx(ctx, nil)
	if err != nil {
		return zero, fmt.Errorf("failed to begin transaction: %w", err)
	}

	result, err := fn(tx)
	if err == nil && ctx.Err() != nil {
		err = fmt.Errorf("context canceled before commit: %w", ctx.Err())
	} else if err != nil {
		err = fmt.Errorf("failed to execute transaction: %w", err)
	}
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			zap.L().Error("Failed to rollback transaction", zap.Error(rbErr))
		}
		return zero, err
	}

	if err := tx.Commit(); err != nil {
		zap.L().Error("Failed to commit transaction", zap.Error(err))
		return zero, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return result, nil
}

type RowScanner interface {
	Scan(dest ...interface{}) error
}

type Scannable interface {
	ScanRow(scanner RowScanner) error
}

// ScanAll drains rows into fresh values from factory.
func ScanAll[T Scannable](rows *sql.Rows, factory func() T) ([]T, error) {
	var items []T
	for rows.Next() {
		item := factory()
		if err := item.ScanRow(rows); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

type QueryDirection string

const (
	QueryDirectionAsc  QueryDirection = "ASC"
	QueryDirectionDesc QueryDirection = "DESC"
)

// PageQuery selects one page of a table. Select must be a full SELECT ... FROM
// Table statement without a WHERE clause. Pages start at 1.
type PageQuery struct {
	Table     string
	Select    string
	Where     string
	Params    []interface{}
	OrderBy   []string
	Direction QueryDirection
	Page      int
	PageSize  int
}

func (q PageQuery) validate() error {
	if q.Table == "" || q.Select == "" {
		return errors.New("page query needs a table and a select statement")
	}
	if len(q.OrderBy) == 0 {
		return errors.New("no order columns provided")
	}
	if q.Direction != QueryDirectionAsc && q.Direction != QueryDirectionDesc {
		return fmt.Errorf("invalid query direction %q", q.Direction)
	}
	if q.PageSize < 1 {
		return fmt.Errorf("invalid page size %d", q.PageSize)
	}
	return nil
}

// Paginate returns the total number of rows matching q.Where together with
// the requested page.
func Paginate[T Scannable](rq QueryRunner, q PageQuery, factory func() T) (int, []T, error) {
	if err := q.validate(); err != nil {
		return 0, nil, err
	}
	page := q.Page
	if page < 1 {
		page = 1
	}

	var where string
	if q.Where != "" {
		where = " WHERE " + q.Where
	}

	var total int
	if err := rq.QueryRow("SELECT COUNT(*) FROM "+q.Table+where, q.Params...).Scan(&total); err != nil {
		return 0, nil, err
	}

	order := make([]string, len(q.OrderBy))
	for i, col := range q.OrderBy {
		order[i] = col + " " + string(q.Direction)
	}
	params := append(append([]interface{}{}, q.Params...), q.PageSize, (page-1)*q.PageSize)
	rows, err := rq.Query(q.Select+where+" ORDER BY "+strings.Join(order, ", ")+" LIMIT ? OFFSET ?", params...)
	if err != nil {
		return 0, nil, err
	}
	defer rows.Close()

	items, err := ScanAll(rows, factory)
	if err != nil {
		return 0, nil, err
	}
	return total, items, nil
}
