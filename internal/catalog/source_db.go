package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

const (
	pingTimeout  = 1 * time.Second
	queryTimeout = 3 * time.Second
	pgUniqueCode = "23505"
)

// DBPool is the subset of *pgxpool.Pool the source needs.
type DBPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
}

type PostgresSource struct {
	pool DBPool
}

func NewPostgresSource(pool DBPool) *PostgresSource {
	return &PostgresSource{pool: pool}
}

var columns = map[Field]string{
	FieldID:        "id",
	FieldName:      "name",
	FieldCategory:  "category",
	FieldBrand:     "brand",
	FieldPrice:     "price",
	FieldCreatedAt: "created_at",
}

const selectColumns = `id, name, price::text, coalesce(description, ''), category, brand, image_url, created_at`

func (s *PostgresSource) Ping(ctx context.Context) error {
	return withTimeout(ctx, pingTimeout, func(ctx context.Context) error {
		return s.pool.Ping(ctx)
	})
}

// CountAndSelect reads the page and the match count in one statement so both
// come from the same snapshot. Only a page past the end, which carries no
// window count, falls back to a separate count.
func (s *PostgresSource) CountAndSelect(ctx context.Context, q SelectQuery) ([]Product, int, error) {
	if q.Offset < 0 || q.Limit < 0 {
		return nil, 0, rejected("negative range offset=%d limit=%d", q.Offset, q.Limit)
	}
	where, args, err := buildWhere(q.Filters)
	if err != nil {
		return nil, 0, err
	}
	orderBy, err := buildOrder(q.Order)
	if err != nil {
		return nil, 0, err
	}

	var (
		total int64
		out   []Product
	)
	err = withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		sql := `SELECT ` + selectColumns + `, count(*) OVER () FROM products` + where + orderBy
		pageArgs := append([]any(nil), args...)
		if q.Limit > 0 {
			pageArgs = append(pageArgs, q.Limit)
			sql += " LIMIT $" + strconv.Itoa(len(pageArgs))
		}
		if q.Offset > 0 {
			pageArgs = append(pageArgs, q.Offset)
			sql += " OFFSET $" + strconv.Itoa(len(pageArgs))
		}

		rows, err := s.pool.Query(ctx, sql, pageArgs...)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = make([]Product, 0, min(max(q.Limit, 8), 256))
		for rows.Next() {
			p, err := scanProduct(rows, &total)
			if err != nil {
				return err
			}
			out = append(out, p)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		if len(out) == 0 && q.Offset > 0 {
			return s.pool.QueryRow(ctx, `SELECT count(*) FROM products`+where, args...).Scan(&total)
		}
		return nil
	})
	if err != nil {
		return nil, 0, sourceErr(err)
	}
	return out, int(total), nil
}

func (s *PostgresSource) Distinct(ctx context.Context, field Field) ([]*string, error) {
	if field != FieldCategory && field != FieldBrand {
		return nil, rejected("distinct on %q", field)
	}

	var out []*string
	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		rows, err := s.pool.Query(ctx, `SELECT DISTINCT `+columns[field]+` FROM products`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var v *string
			if err := rows.Scan(&v); err != nil {
				return err
			}
			out = append(out, v)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, sourceErr(err)
	}
	return out, nil
}

func (s *PostgresSource) Create(ctx context.Context, p Product) error {
	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO products (id, name, price, description, category, brand, image_url, created_at)
			VALUES ($1, $2, $3::numeric, $4, $5, $6, $7, $8)
		`, p.ID, p.Name, p.Price.String(), p.Description, p.Category, p.Brand, p.ImageURL, p.CreatedAt)
		return err
	})
	if isUniqueViolation(err) {
		return rejected("product %q exists", p.ID)
	}
	return sourceErr(err)
}

func (s *PostgresSource) Update(ctx context.Context, p Product) (Product, error) {
	var out Product
	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		var err error
		out, err = scanProduct(s.pool.QueryRow(ctx, `
			UPDATE products
			SET name = $2, price = $3::numeric, description = $4, category = $5, brand = $6, image_url = $7
			WHERE id = $1
			RETURNING `+selectColumns,
			p.ID, p.Name, p.Price.String(), p.Description, p.Category, p.Brand, p.ImageURL))
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	if err != nil {
		return Product{}, sourceErr(err)
	}
	return out, nil
}

func (s *PostgresSource) Delete(ctx context.Context, id string) error {
	var tag pgconn.CommandTag
	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		var err error
		tag, err = s.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
		return err
	})
	if err != nil {
		return sourceErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func buildWhere(preds []Predicate) (string, []any, error) {
	if len(preds) == 0 {
		return "", nil, nil
	}

	conds := make([]string, 0, len(preds))
	args := make([]any, 0, len(preds))
	for _, pr := range preds {
		col, ok := columns[pr.Field]
		if !ok {
			return "", nil, rejected("unknown field %q", pr.Field)
		}

		switch pr.Op {
		case OpILike, OpEq:
			v, ok := pr.Value.(string)
			if !ok || col == "price" || col == "created_at" {
				return "", nil, rejected("%s on %q", pr.Op, pr.Field)
			}
			args = append(args, v)
			op := "="
			if pr.Op == OpILike {
				op = "ILIKE"
			}
			conds = append(conds, fmt.Sprintf("%s %s $%d", col, op, len(args)))
		case OpGTE, OpLTE:
			v, ok := pr.Value.(decimal.Decimal)
			if !ok || col != "price" {
				return "", nil, rejected("%s on %q", pr.Op, pr.Field)
			}
			args = append(args, v.String())
			op := ">="
			if pr.Op == OpLTE {
				op = "<="
			}
			conds = append(conds, fmt.Sprintf("%s %s $%d::numeric", col, op, len(args)))
		default:
			return "", nil, rejected("unknown operator %q", pr.Op)
		}
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

func buildOrder(o Order) (string, error) {
	if o.Field == "" {
		return " ORDER BY id ASC", nil
	}
	col, ok := columns[o.Field]
	if !ok {
		return "", rejected("cannot order by %q", o.Field)
	}
	if o.Desc {
		return " ORDER BY " + col + " DESC", nil
	}
	return " ORDER BY " + col + " ASC", nil
}

// scanProduct reads the selectColumns prefix of row; extra receives any
// trailing columns.
func scanProduct(row pgx.Row, extra ...any) (Product, error) {
	var (
		p     Product
		price string
	)
	dest := append([]any{&p.ID, &p.Name, &price, &p.Description, &p.Category, &p.Brand, &p.ImageURL, &p.CreatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return Product{}, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return Product{}, fmt.Errorf("product %s: price %q: %w", p.ID, price, err)
	}
	p.Price = d
	return p, nil
}

// sourceErr tags database errors: anything the server answered with a
// PostgreSQL error is a rejected query, everything else is unavailability.
func sourceErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("%w: %s (%s)", ErrQueryRejected, pgErr.Message, pgErr.Code)
	}
	return fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueCode
}

func withTimeout(parent context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, d)
	defer cancel()
	return fn(ctx)
}
