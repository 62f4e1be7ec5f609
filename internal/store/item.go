package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/ewastehub/apiserver/types"
)

const itemColumns = `id, user_id, category, product_name, is_working, image_path, tag, gemini_analysis, price, created_at`

// ItemRepository handles persistence for e-waste items.
type ItemRepository struct {
	db *sql.DB
}

func NewItemRepository(db *sql.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

func (r *ItemRepository) Create(ctx context.Context, item types.Item) (types.Item, error) {
	item.CreatedAt = time.Now()

	var analysisJSON []byte
	if item.Analysis != nil {
		data, err := json.Marshal(item.Analysis)
		if err != nil {
			return types.Item{}, err
		}
		analysisJSON = data
	}

	const query = `
		INSERT INTO ewaste_items (user_id, category, product_name, is_working, image_path, tag, gemini_analysis, price, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		item.UserID,
		string(item.Category),
		item.ProductName,
		item.IsWorking,
		item.ImagePath,
		string(item.Tag),
		analysisJSON,
		item.Price,
		item.CreatedAt,
	).Scan(&item.ID); err != nil {
		return types.Item{}, err
	}
	return item, nil
}

func (r *ItemRepository) GetByID(ctx context.Context, id int) (types.Item, error) {
	const query = `
		SELECT ` + itemColumns + `
		FROM ewaste_items
		WHERE id = $1`
	item, err := scanItem(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Item{}, ErrNotFound
		}
		return types.Item{}, err
	}
	return item, nil
}

func (r *ItemRepository) ListByUser(ctx context.Context, userID int) ([]types.Item, error) {
	const query = `
		SELECT ` + itemColumns + `
		FROM ewaste_items
		WHERE user_id = $1
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	return collectItems(rows)
}

func (r *ItemRepository) ListAll(ctx context.Context) ([]types.Item, error) {
	const query = `
		SELECT ` + itemColumns + `
		FROM ewaste_items
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return collectItems(rows)
}

// Filter returns items matching the provided tag and category. Empty
// arguments impose no constraint; values that match no rows return an
// empty slice.
func (r *ItemRepository) Filter(ctx context.Context, tag, category string) ([]types.Item, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM ewaste_items
		WHERE 1=1`
	args := make([]any, 0, 2)
	if tag != "" {
		args = append(args, tag)
		query += ` AND tag = $1`
	}
	if category != "" {
		args = append(args, category)
		if len(args) == 1 {
			query += ` AND category = $1`
		} else {
			query += ` AND category = $2`
		}
	}
	query += ` ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectItems(rows)
}

func (r *ItemRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM ewaste_items WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (types.Item, error) {
	var item types.Item
	var productName, imagePath, tag sql.NullString
	var price sql.NullInt64
	var analysisJSON []byte
	if err := row.Scan(
		&item.ID,
		&item.UserID,
		&item.Category,
		&productName,
		&item.IsWorking,
		&imagePath,
		&tag,
		&analysisJSON,
		&price,
		&item.CreatedAt,
	); err != nil {
		return types.Item{}, err
	}

	if productName.Valid {
		item.ProductName = &productName.String
	}
	if imagePath.Valid {
		item.ImagePath = &imagePath.String
	}
	if tag.Valid {
		item.Tag = types.Tag(tag.String)
	}
	if price.Valid {
		value := int(price.Int64)
		item.Price = &value
	}
	if len(analysisJSON) > 0 {
		var analysis types.Analysis
		if err := json.Unmarshal(analysisJSON, &analysis); err == nil {
			item.Analysis = &analysis
		}
	}
	return item, nil
}

func collectItems(rows *sql.Rows) ([]types.Item, error) {
	defer rows.Close()

	items := make([]types.Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
