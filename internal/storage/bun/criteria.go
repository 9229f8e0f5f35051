package bunrepo

import (
	"database/sql"
	"time"

	"github.com/goliatone/go-clinic-notifications/pkg/interfaces/store"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

func withID(id uuid.UUID) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("id = ?", id)
	}
}

func withoutDeleted() repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("deleted_at IS NULL")
	}
}

func withTimeRange(field string, since, until time.Time) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		if !since.IsZero() {
			q = q.Where("? >= ?", bun.Ident(field), since)
		}
		if !until.IsZero() {
			q = q.Where("? <= ?", bun.Ident(field), until)
		}
		return q
	}
}

func withUser(userID string) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("user_id = ?", userID)
	}
}

func withUnreadOnly(enabled bool) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		if !enabled {
			return q
		}
		return q.Where("read_at IS NULL")
	}
}

func withNewestFirst(opts store.ListOptions) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		if opts.Limit > 0 {
			q = q.Limit(opts.Limit)
		}
		if opts.Offset > 0 {
			q = q.Offset(opts.Offset)
		}
		if !opts.IncludeSoftDeleted {
			q = q.Where("deleted_at IS NULL")
		}
		q = withTimeRange("created_at", opts.Since, opts.Until)(q)
		return q.Order("created_at DESC", "id DESC")
	}
}

func rowsAffected(res sql.Result) int {
	if res == nil {
		return 0
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return int(n)
}

// mapError translates repository not-found errors to store.ErrNotFound.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if repository.IsRecordNotFound(err) {
		return store.ErrNotFound
	}
	return err
}
