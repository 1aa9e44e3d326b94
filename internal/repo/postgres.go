package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/mitraexpress/dispatch-service/internal/entities"
	"github.com/mitraexpress/dispatch-service/pkg/trm"
)

type postgresRepo struct {
	db *sqlx.DB
	qb sq.StatementBuilderType
}

func NewPostgresRepo(db *sqlx.DB) *postgresRepo {
	return &postgresRepo{
		db: db,
		qb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *postgresRepo) GetOrderByID(ctx context.Context, orderID string) (entities.Order, error) {
	query, args := r.qb.Select(
		"id", "kode_order", "service", "tarif",
		"titik_jemput", "alamat_jemput", "titik_antar", "alamat_antar",
		"status", "created_at", "id_kurir", "kurir_name", "accepted_at", "updated_at").
		From("orders").
		Where(sq.Eq{"id": orderID}).
		MustSql()

	var order Order
	err := r.getContext(ctx, &order, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.Order{}, entities.ErrOrderNotFound
	}
	if err != nil {
		return entities.Order{}, fmt.Errorf("failed to get order: %w", err)
	}

	query, args = r.qb.Select("order_id", "nama", "harga", "jumlah", "note").
		From("order_products").
		Where(sq.Eq{"order_id": orderID}).
		MustSql()

	var products []Product
	if err := r.selectContext(ctx, &products, query, args...); err != nil {
		return entities.Order{}, fmt.Errorf("failed to get order products: %w", err)
	}

	return OrderToEntity(order, products), nil
}

func (r *postgresRepo) SaveOrder(ctx context.Context, o entities.Order) error {
	query, args := r.qb.Insert("orders").
		Columns(
			"id", "kode_order", "service", "tarif",
			"titik_jemput", "alamat_jemput", "titik_antar", "alamat_antar",
			"status", "created_at", "id_kurir", "kurir_name",
		).
		Values(
			o.ID, o.KodeOrder, string(o.Service), o.Tarif,
			nullString(o.TitikJemput), nullString(o.AlamatJemput),
			nullString(o.TitikAntar), nullString(o.AlamatAntar),
			string(o.Status), o.CreatedAt, nullString(o.IDKurir), nullString(o.KurirName),
		).
		Suffix("ON CONFLICT (id) DO NOTHING").
		MustSql()

	if _, err := r.execContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}
	return nil
}

func (r *postgresRepo) SaveProducts(ctx context.Context, orderID string, products []entities.Product) error {
	if len(products) == 0 {
		return nil
	}

	q := r.qb.Insert("order_products").
		Columns("order_id", "nama", "harga", "jumlah", "note").
		Suffix("ON CONFLICT DO NOTHING")

	for _, p := range products {
		q = q.Values(orderID, p.Nama, p.Harga, p.Jumlah, nullString(p.Note))
	}

	query, args := q.MustSql()
	if _, err := r.execContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save order products: %w", err)
	}
	return nil
}

// AssignOrder — durable зеркало принятия: условный UPDATE срабатывает только
// пока заказ всё ещё SEARCHING.
func (r *postgresRepo) AssignOrder(ctx context.Context, orderID string, courier entities.Courier, acceptedAt time.Time) error {
	query, args := r.qb.Update("orders").
		Set("status", string(entities.StatusAssigned)).
		Set("id_kurir", courier.ID).
		Set("kurir_name", courier.Name).
		Set("accepted_at", acceptedAt).
		Set("updated_at", acceptedAt).
		Where(sq.Eq{"id": orderID, "status": string(entities.StatusSearching)}).
		MustSql()

	res, err := r.execContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to assign order: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check assigned rows: %w", err)
	}
	if affected == 0 {
		if _, err := r.GetOrderByID(ctx, orderID); errors.Is(err, entities.ErrOrderNotFound) {
			return entities.ErrOrderNotFound
		}
		return entities.ErrOrderAlreadyTaken
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func (r *postgresRepo) execContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	tx := trm.ExtractTx(ctx)
	if tx != nil {
		return tx.ExecContext(ctx, query, args...)
	}
	return r.db.ExecContext(ctx, query, args...)
}

func (r *postgresRepo) getContext(ctx context.Context, dest any, query string, args ...any) error {
	tx := trm.ExtractTx(ctx)
	if tx != nil {
		return tx.GetContext(ctx, dest, query, args...)
	}
	return r.db.GetContext(ctx, dest, query, args...)
}

func (r *postgresRepo) selectContext(ctx context.Context, dest any, query string, args ...any) error {
	tx := trm.ExtractTx(ctx)
	if tx != nil {
		return tx.SelectContext(ctx, dest, query, args...)
	}
	return r.db.SelectContext(ctx, dest, query, args...)
}
