package postgres

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "github.com/Unit659z/Clover-studio/internal/domain"
	ppostgres "github.com/Unit659z/Clover-studio/internal/platform/postgres"
	"github.com/Unit659z/Clover-studio/internal/repositories"
)

const incrementItemSQL = `
WITH upserted AS (
	INSERT INTO cart_items (id, cart_id, service_id, quantity, added_at)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (cart_id, service_id) DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
	RETURNING id, cart_id, service_id, quantity, added_at, (xmax = 0) AS inserted
)
SELECT u.id, u.cart_id, u.service_id, s.name, s.base_price, u.quantity, u.added_at, u.inserted
FROM upserted u
JOIN services s ON s.id = u.service_id`

const setItemQuantitySQL = `
WITH updated AS (
	UPDATE cart_items SET quantity = $1
	WHERE id = $2 AND cart_id = $3
	RETURNING id, cart_id, service_id, quantity, added_at
)
SELECT u.id, u.cart_id, u.service_id, s.name, s.base_price, u.quantity, u.added_at
FROM updated u
JOIN services s ON s.id = u.service_id`

// CartRepository stores carts and their lines. Item prices are always read from the services table.
type CartRepository struct {
	pool *pgxpool.Pool
}

var _ repositories.CartRepository = (*CartRepository)(nil)

func scanCartItem(row pgx.CollectableRow) (domain.CartItem, error) {
	var it domain.CartItem
	err := row.Scan(&it.ID, &it.CartID, &it.ServiceID, &it.ServiceName, &it.ServicePrice, &it.Quantity, &it.AddedAt)
	return it, err
}

func (r *CartRepository) GetOrCreate(ctx context.Context, cartID, userID string, now time.Time) (domain.Cart, error) {
	db := ppostgres.Querier(ctx, r.pool)
	builder := psql.Insert("carts").
		Columns("id", "user_id", "created_at", "updated_at").
		Values(cartID, userID, now, now).
		Suffix("ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id RETURNING id, user_id, created_at, updated_at")
	cart, err := queryOne(ctx, db, "carts.get_or_create", builder, func(row pgx.CollectableRow) (domain.Cart, error) {
		var c domain.Cart
		err := row.Scan(&c.ID, &c.UserID, &c.CreatedAt, &c.UpdatedAt)
		return c, err
	})
	if err != nil {
		return domain.Cart{}, err
	}

	query, args, err := psql.Select("ci.id", "ci.cart_id", "ci.service_id", "s.name", "s.base_price", "ci.quantity", "ci.added_at").
		From("cart_items ci").
		Join("services s ON s.id = ci.service_id").
		Where(sq.Eq{"ci.cart_id": cart.ID}).
		OrderBy("ci.added_at ASC", "ci.id ASC").
		ToSql()
	if err != nil {
		return domain.Cart{}, ppostgres.WrapError("carts.items", err)
	}
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return domain.Cart{}, ppostgres.WrapError("carts.items", err)
	}
	cart.Items, err = pgx.CollectRows(rows, scanCartItem)
	if err != nil {
		return domain.Cart{}, ppostgres.WrapError("carts.items", err)
	}
	return cart, nil
}

func (r *CartRepository) IncrementItem(ctx context.Context, item domain.CartItem) (domain.CartItem, bool, error) {
	rows, err := ppostgres.Querier(ctx, r.pool).Query(ctx, incrementItemSQL, item.ID, item.CartID, item.ServiceID, item.Quantity, item.AddedAt)
	if err != nil {
		return domain.CartItem{}, false, wrapIncrementError(err)
	}
	var inserted bool
	saved, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (domain.CartItem, error) {
		var it domain.CartItem
		err := row.Scan(&it.ID, &it.CartID, &it.ServiceID, &it.ServiceName, &it.ServicePrice, &it.Quantity, &it.AddedAt, &inserted)
		return it, err
	})
	if err != nil {
		return domain.CartItem{}, false, wrapIncrementError(err)
	}
	return saved, inserted, nil
}

func wrapIncrementError(err error) error {
	err = ppostgres.WrapError("carts.increment_item", err)
	if ppostgres.IsConstraint(err, "cart_items_service_id_fkey") || ppostgres.IsConstraint(err, "cart_items_cart_id_fkey") {
		return ppostgres.NotFound("carts.increment_item")
	}
	return err
}

func (r *CartRepository) SetItemQuantity(ctx context.Context, cartID, itemID string, quantity int) (domain.CartItem, error) {
	rows, err := ppostgres.Querier(ctx, r.pool).Query(ctx, setItemQuantitySQL, quantity, itemID, cartID)
	if err != nil {
		return domain.CartItem{}, ppostgres.WrapError("carts.set_item_quantity", err)
	}
	item, err := pgx.CollectExactlyOneRow(rows, scanCartItem)
	if err != nil {
		return domain.CartItem{}, ppostgres.WrapError("carts.set_item_quantity", err)
	}
	return item, nil
}

func (r *CartRepository) DeleteItem(ctx context.Context, cartID, itemID string) error {
	builder := psql.Delete("cart_items").Where(sq.Eq{"id": itemID, "cart_id": cartID})
	return exec(ctx, ppostgres.Querier(ctx, r.pool), "carts.delete_item", builder, true)
}

func (r *CartRepository) DeleteItems(ctx context.Context, cartID string) error {
	builder := psql.Delete("cart_items").Where(sq.Eq{"cart_id": cartID})
	return exec(ctx, ppostgres.Querier(ctx, r.pool), "carts.delete_items", builder, false)
}

func (r *CartRepository) Touch(ctx context.Context, cartID string, updatedAt time.Time) error {
	builder := psql.Update("carts").Set("updated_at", updatedAt).Where(sq.Eq{"id": cartID})
	return exec(ctx, ppostgres.Querier(ctx, r.pool), "carts.touch", builder, true)
}
