// Package repository declares the persistence boundary of the app.
//
// The store deals in whole collections: Load reads every recipe, Save
// overwrites every recipe. Identity and field rules belong to the service.
package repository

import (
	"context"

	"github.com/sakif/recipe-box/internal/model"
)

// RecipeStore loads and saves the complete recipe collection.
//
// Load is fail-soft: a missing, unreadable or corrupt store yields an
// empty collection, never an error. Save reports every failure.
type RecipeStore interface {
	Load(ctx context.Context) []model.Recipe
	Save(ctx context.Context, recipes []model.Recipe) error
}
