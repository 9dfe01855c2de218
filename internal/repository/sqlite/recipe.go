package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/recipe-box/internal/apperror"
	"github.com/sakif/recipe-box/internal/model"
	"github.com/sakif/recipe-box/internal/repository"
)

var _ repository.RecipeStore = (*DB)(nil)

// Load reads every recipe in insertion order. Like the file store it is
// fail-soft: a query or decode failure is logged and yields an empty
// collection.
func (db *DB) Load(ctx context.Context) []model.Recipe {
	recipes, err := db.load(ctx)
	if err != nil {
		db.logger.Warn("recipe table unreadable, using empty collection",
			slog.String("error", err.Error()))
		return []model.Recipe{}
	}
	return recipes
}

func (db *DB) load(ctx context.Context) ([]model.Recipe, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, title, ingredients, steps, image_url, created_at
		 FROM recipes
		 ORDER BY position`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing recipes: %w", err)
	}
	defer rows.Close()

	recipes := []model.Recipe{}
	for rows.Next() {
		var (
			r                  model.Recipe
			ingredients, steps string
			createdAt          string
		)
		if err := rows.Scan(&r.ID, &r.Title, &ingredients, &steps, &r.ImageURL, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning recipe row: %w", err)
		}
		if err := json.Unmarshal([]byte(ingredients), &r.Ingredients); err != nil {
			return nil, fmt.Errorf("sqlite: decoding ingredients of %s: %w", r.ID, err)
		}
		if err := json.Unmarshal([]byte(steps), &r.Steps); err != nil {
			return nil, fmt.Errorf("sqlite: decoding steps of %s: %w", r.ID, err)
		}
		if r.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("sqlite: parsing created_at of %s: %w", r.ID, err)
		}
		r.EnsureSlices()
		recipes = append(recipes, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating recipes: %w", err)
	}
	return recipes, nil
}

// Save replaces the stored collection. All rows are deleted and the new
// collection inserted in one transaction; on any error the transaction is
// rolled back and the previous collection stays intact.
func (db *DB) Save(ctx context.Context, recipes []model.Recipe) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return apperror.StorageWrite("beginning transaction", err)
	}
	// Rollback after Commit is a no-op.
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM recipes`); err != nil {
		return apperror.StorageWrite("clearing recipes", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO recipes (id, position, title, ingredients, steps, image_url, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return apperror.StorageWrite("preparing insert", err)
	}
	defer stmt.Close()

	for i, r := range recipes {
		r.EnsureSlices()
		ingredients, err := json.Marshal(r.Ingredients)
		if err != nil {
			return apperror.StorageWrite("encoding ingredients of "+r.ID, err)
		}
		steps, err := json.Marshal(r.Steps)
		if err != nil {
			return apperror.StorageWrite("encoding steps of "+r.ID, err)
		}

		if _, err := stmt.ExecContext(ctx,
			r.ID,
			i,
			r.Title,
			string(ingredients),
			string(steps),
			r.ImageURL,
			r.CreatedAt.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return apperror.StorageWrite("inserting recipe "+r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperror.StorageWrite("committing recipes", err)
	}
	return nil
}
