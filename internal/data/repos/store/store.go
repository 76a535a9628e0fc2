package store

import (
	"errors"
	"fmt"
	"reflect"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	"github.com/yungbote/personaforge-backend/internal/domain"
	"github.com/yungbote/personaforge-backend/internal/platform/dbctx"
	"github.com/yungbote/personaforge-backend/internal/platform/logger"
)

// ErrUnscopedDelete is returned when a destructive call carries no filter.
var ErrUnscopedDelete = errors.New("refusing to delete without a filter")

const defaultBatchSize = 200

// Filter is a conjunction of column equality predicates.
// Slice values (other than []byte) become IN predicates.
type Filter map[string]any

// Cond is an extra predicate applied on top of a Filter.
type Cond struct {
	expr clause.Expression
}

// NonEmpty matches rows whose column is neither NULL nor the empty string.
func NonEmpty(column string) Cond {
	col := clause.Column{Name: column}
	return Cond{expr: clause.And(
		clause.Expr{SQL: "? IS NOT NULL", Vars: []any{col}},
		clause.Neq{Column: col, Value: ""},
	)}
}

type ReplaceResult[T any] struct {
	Deleted  int64
	Inserted []*T
	Failed   int
}

// Table is a typed gateway to one relational table.
type Table[T any] struct {
	db        *gorm.DB
	log       *logger.Logger
	name      string
	batchSize int
}

func NewTable[T any](db *gorm.DB, baseLog *logger.Logger) *Table[T] {
	name := tableName[T]()
	return &Table[T]{
		db:        db,
		log:       baseLog.With("repo", "Table", "table", name),
		name:      name,
		batchSize: defaultBatchSize,
	}
}

func tableName[T any]() string {
	var zero T
	if t, ok := any(&zero).(schema.Tabler); ok {
		return t.TableName()
	}
	return reflect.TypeOf(zero).Name()
}

func (t *Table[T]) Name() string { return t.name }

func (t *Table[T]) conn(dbc dbctx.Context) *gorm.DB {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = t.db
	}
	return transaction.WithContext(dbc.Context())
}

func applyFilter(q *gorm.DB, f Filter, conds []Cond) *gorm.DB {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		col := clause.Column{Name: k}
		v := f[k]
		if values, ok := sliceValues(v); ok {
			q = q.Where(clause.IN{Column: col, Values: values})
			continue
		}
		q = q.Where(clause.Eq{Column: col, Value: v})
	}
	for _, c := range conds {
		if c.expr != nil {
			q = q.Where(c.expr)
		}
	}
	return q
}

func sliceValues(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	if _, isBytes := v.([]byte); isBytes {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	// uuid.UUID is a byte array and compares as a scalar.
	if rv.Kind() == reflect.Array && rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func (t *Table[T]) Find(dbc dbctx.Context, f Filter, conds ...Cond) ([]*T, error) {
	var out []*T
	q := applyFilter(t.conn(dbc).Model(new(T)), f, conds)
	if err := q.Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("%s find: %w", t.name, err)
	}
	return out, nil
}

// First returns nil, nil when nothing matches.
func (t *Table[T]) First(dbc dbctx.Context, f Filter, conds ...Cond) (*T, error) {
	var out []*T
	q := applyFilter(t.conn(dbc).Model(new(T)), f, conds)
	if err := q.Order("created_at ASC").Limit(1).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("%s first: %w", t.name, err)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (t *Table[T]) Count(dbc dbctx.Context, f Filter, conds ...Cond) (int64, error) {
	var n int64
	q := applyFilter(t.conn(dbc).Model(new(T)), f, conds)
	if err := q.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("%s count: %w", t.name, err)
	}
	return n, nil
}

func (t *Table[T]) Exists(dbc dbctx.Context, f Filter, conds ...Cond) (bool, error) {
	var ids []string
	q := applyFilter(t.conn(dbc).Model(new(T)), f, conds)
	if err := q.Limit(1).Pluck("id", &ids).Error; err != nil {
		return false, fmt.Errorf("%s exists: %w", t.name, err)
	}
	return len(ids) > 0, nil
}

// Distinct returns the distinct values of column, rendered as strings.
func (t *Table[T]) Distinct(dbc dbctx.Context, column string, f Filter, conds ...Cond) ([]string, error) {
	var out []string
	q := applyFilter(t.conn(dbc).Model(new(T)), f, conds)
	if err := q.Distinct(column).Pluck(column, &out).Error; err != nil {
		return nil, fmt.Errorf("%s distinct %s: %w", t.name, column, err)
	}
	return out, nil
}

func (t *Table[T]) DeleteWhere(dbc dbctx.Context, f Filter) (int64, error) {
	if len(f) == 0 {
		return 0, ErrUnscopedDelete
	}
	res := applyFilter(t.conn(dbc), f, nil).Delete(new(T))
	if res.Error != nil {
		return 0, fmt.Errorf("%s delete: %w", t.name, res.Error)
	}
	return res.RowsAffected, nil
}

// InsertMany writes rows in batches. When a batch fails it retries row by row,
// each inside its own savepoint, and reports the failures as a
// *domain.PartialWriteError alongside the rows that were written.
func (t *Table[T]) InsertMany(dbc dbctx.Context, rows []*T) ([]*T, error) {
	if len(rows) == 0 {
		return []*T{}, nil
	}
	conn := t.conn(dbc)
	batchErr := conn.Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(rows, t.batchSize).Error
	})
	if batchErr == nil {
		return rows, nil
	}
	if err := dbc.Context().Err(); err != nil {
		return nil, err
	}
	t.log.Warn("Batch insert failed, retrying row by row", "rows", len(rows), "error", batchErr)

	inserted := make([]*T, 0, len(rows))
	pw := &domain.PartialWriteError{Collection: t.name, Attempted: len(rows)}
	for i, row := range rows {
		err := conn.Transaction(func(tx *gorm.DB) error {
			return tx.Create(row).Error
		})
		if err != nil {
			t.log.Warn("Row insert failed", "index", i, "error", err)
			pw.Failed = append(pw.Failed, domain.RowFailure{Index: i, Err: err})
			continue
		}
		inserted = append(inserted, row)
	}
	if len(pw.Failed) == 0 {
		return inserted, nil
	}
	return inserted, pw
}

// Upsert inserts rows, updating every column when conflictColumns collide.
func (t *Table[T]) Upsert(dbc dbctx.Context, rows []*T, conflictColumns ...string) error {
	if len(rows) == 0 {
		return nil
	}
	if len(conflictColumns) == 0 {
		conflictColumns = []string{"id"}
	}
	cols := make([]clause.Column, 0, len(conflictColumns))
	for _, c := range conflictColumns {
		cols = append(cols, clause.Column{Name: c})
	}
	err := t.conn(dbc).
		Clauses(clause.OnConflict{Columns: cols, UpdateAll: true}).
		CreateInBatches(rows, t.batchSize).Error
	if err != nil {
		return fmt.Errorf("%s upsert: %w", t.name, err)
	}
	return nil
}

// Replace deletes the rows matching f and inserts rows in a single transaction.
// If none of the new rows can be written the transaction rolls back and the
// previous rows survive. Partial success commits and returns the
// *domain.PartialWriteError next to the result.
func (t *Table[T]) Replace(dbc dbctx.Context, f Filter, rows []*T) (ReplaceResult[T], error) {
	var res ReplaceResult[T]
	if len(f) == 0 {
		return res, ErrUnscopedDelete
	}
	var partial *domain.PartialWriteError
	err := t.conn(dbc).Transaction(func(tx *gorm.DB) error {
		inner := dbc.WithTx(tx)
		deleted, err := t.DeleteWhere(inner, f)
		if err != nil {
			return err
		}
		res.Deleted = deleted
		inserted, err := t.InsertMany(inner, rows)
		if err != nil {
			var pw *domain.PartialWriteError
			if errors.As(err, &pw) && len(inserted) > 0 {
				partial = pw
				res.Inserted = inserted
				res.Failed = len(pw.Failed)
				return nil
			}
			return err
		}
		res.Inserted = inserted
		return nil
	})
	if err != nil {
		return ReplaceResult[T]{}, err
	}
	if partial != nil {
		return res, partial
	}
	return res, nil
}
