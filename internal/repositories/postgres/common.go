package postgres

import (
	"context"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	domain "github.com/Unit659z/Clover-studio/internal/domain"
	"github.com/Unit659z/Clover-studio/internal/platform/pagination"
	ppostgres "github.com/Unit659z/Clover-studio/internal/platform/postgres"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds an ILIKE pattern matching value anywhere in the column.
func containsPattern(value string) string {
	return "%" + likeEscaper.Replace(value) + "%"
}

// queryOne builds and runs a single-row select.
func queryOne[T any](ctx context.Context, db ppostgres.DBTX, op string, builder sq.Sqlizer, scan pgx.RowToFunc[T]) (T, error) {
	var zero T
	query, args, err := builder.ToSql()
	if err != nil {
		return zero, ppostgres.WrapError(op, err)
	}
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return zero, ppostgres.WrapError(op, err)
	}
	item, err := pgx.CollectExactlyOneRow(rows, scan)
	if err != nil {
		return zero, ppostgres.WrapError(op, err)
	}
	return item, nil
}

// queryPage applies the offset window of pager to builder and collects one page.
func queryPage[T any](ctx context.Context, db ppostgres.DBTX, op string, builder sq.SelectBuilder, pager domain.Pagination, scan pgx.RowToFunc[T]) (domain.CursorPage[T], error) {
	limit, offset, err := pagination.Window(pager.PageSize, pager.PageToken)
	if err != nil {
		return domain.CursorPage[T]{}, err
	}
	query, args, err := builder.Limit(uint64(limit)).Offset(uint64(offset)).ToSql()
	if err != nil {
		return domain.CursorPage[T]{}, ppostgres.WrapError(op, err)
	}
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return domain.CursorPage[T]{}, ppostgres.WrapError(op, err)
	}
	items, err := pgx.CollectRows(rows, scan)
	if err != nil {
		return domain.CursorPage[T]{}, ppostgres.WrapError(op, err)
	}
	items, next := pagination.Trim(items, limit, offset)
	return domain.CursorPage[T]{Items: items, NextPageToken: next}, nil
}

// exec runs a write and reports a missing row when requireRow is set and nothing changed.
func exec(ctx context.Context, db ppostgres.DBTX, op string, builder sq.Sqlizer, requireRow bool) error {
	query, args, err := builder.ToSql()
	if err != nil {
		return ppostgres.WrapError(op, err)
	}
	tag, err := db.Exec(ctx, query, args...)
	if err != nil {
		return ppostgres.WrapError(op, err)
	}
	if requireRow && tag.RowsAffected() == 0 {
		return ppostgres.NotFound(op)
	}
	return nil
}

func sortDirection(order domain.SortOrder) string {
	if order == domain.SortDesc {
		return "DESC"
	}
	return "ASC"
}
