// Package service contains the business rules of the recipe box.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (business layer) → validates, assigns ids, merges steps
//	Repository (data layer)  → loads and saves the whole collection
//
// RecipeService owns every field rule: id generation, timestamps, defaults
// and the positional step merge. The store is only a serialization
// boundary, so swapping the JSON file for SQLite changes nothing here.
//
// LOAD-MODIFY-SAVE:
// Each mutation loads the full collection, changes it in memory and saves
// it back. The cycle runs inside a guard.Guard; without one, two concurrent
// writers could each save their own copy and the first change would be lost.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/recipe-box/internal/apperror"
	"github.com/sakif/recipe-box/internal/guard"
	"github.com/sakif/recipe-box/internal/model"
	"github.com/sakif/recipe-box/internal/repository"
)

// Client-facing validation messages.
const (
	MsgMissingTitle = "Missing title"
)

// RecipeService handles business logic for recipes.
type RecipeService struct {
	store  repository.RecipeStore
	guard  guard.Guard
	logger *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewRecipeService creates a RecipeService. A nil guard means no mutual
// exclusion (legacy last-write-wins behavior).
func NewRecipeService(store repository.RecipeStore, g guard.Guard, logger *slog.Logger) *RecipeService {
	if g == nil {
		g = guard.Nop()
	}
	return &RecipeService{
		store:  store,
		guard:  g,
		logger: logger,
		now:    time.Now,
		newID:  func() string { return xid.New().String() },
	}
}

// List returns the whole collection in stored order.
func (s *RecipeService) List(ctx context.Context) []model.Recipe {
	return s.store.Load(ctx)
}

// Create validates the input, builds a full record and appends it.
//
// The title is the only required field. Steps given as bare strings
// become {text, done:false}.
func (s *RecipeService) Create(ctx context.Context, in model.NewRecipe) (*model.Recipe, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, apperror.ValidationFailed("title", MsgMissingTitle)
	}

	recipe := model.Recipe{
		ID:          s.newID(),
		Title:       in.Title,
		Ingredients: in.Ingredients,
		Steps:       MergeSteps(nil, in.Steps),
		ImageURL:    in.ImageURL,
		CreatedAt:   s.now().UTC(),
	}
	recipe.EnsureSlices()

	err := s.mutate(ctx, func(recipes []model.Recipe) ([]model.Recipe, error) {
		return append(recipes, recipe), nil
	})
	if err != nil {
		s.logger.Error("failed to create recipe",
			slog.String("title", recipe.Title),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating recipe: %w", err)
	}

	s.logger.Info("recipe created",
		slog.String("id", recipe.ID),
		slog.String("title", recipe.Title),
	)
	return &recipe, nil
}

// Get returns the recipe with the given id.
func (s *RecipeService) Get(ctx context.Context, id string) (*model.Recipe, error) {
	recipes := s.store.Load(ctx)
	i := indexOf(recipes, id)
	if i < 0 {
		return nil, apperror.NotFound("recipe", id)
	}
	return &recipes[i], nil
}

// Update applies the fields present in patch, in this order: title, steps
// (positional merge), image_url, ingredients.
func (s *RecipeService) Update(ctx context.Context, id string, patch model.RecipePatch) (*model.Recipe, error) {
	var updated model.Recipe

	err := s.mutate(ctx, func(recipes []model.Recipe) ([]model.Recipe, error) {
		i := indexOf(recipes, id)
		if i < 0 {
			return nil, apperror.NotFound("recipe", id)
		}

		r := &recipes[i]
		if patch.Title != nil {
			r.Title = *patch.Title
		}
		if patch.Steps != nil {
			r.Steps = MergeSteps(r.Steps, *patch.Steps)
		}
		if patch.ImageURL != nil {
			r.ImageURL = *patch.ImageURL
		}
		if patch.Ingredients != nil {
			r.Ingredients = *patch.Ingredients
		}
		r.EnsureSlices()

		updated = *r
		return recipes, nil
	})
	if err != nil {
		return nil, s.mutationFailed("updating", id, err)
	}

	s.logger.Info("recipe updated",
		slog.String("id", updated.ID),
		slog.String("title", updated.Title),
	)
	return &updated, nil
}

// Delete removes the recipe with the given id.
func (s *RecipeService) Delete(ctx context.Context, id string) error {
	err := s.mutate(ctx, func(recipes []model.Recipe) ([]model.Recipe, error) {
		kept := make([]model.Recipe, 0, len(recipes))
		for _, r := range recipes {
			if r.ID != id {
				kept = append(kept, r)
			}
		}
		if len(kept) == len(recipes) {
			return nil, apperror.NotFound("recipe", id)
		}
		return kept, nil
	})
	if err != nil {
		return s.mutationFailed("deleting", id, err)
	}

	s.logger.Info("recipe deleted", slog.String("id", id))
	return nil
}

// MergeSteps builds the new steps list from incoming, keeping completion
// state by position. For index i the done flag is the incoming step's own
// flag when it is structured and carries one, else the flag of existing[i]
// when that position existed, else false.
func MergeSteps(existing []model.Step, incoming []model.StepInput) []model.Step {
	merged := make([]model.Step, len(incoming))
	for i, in := range incoming {
		done := false
		if i < len(existing) {
			done = existing[i].Done
		}
		if in.Structured && in.Done != nil {
			done = *in.Done
		}
		merged[i] = model.Step{Text: in.Text, Done: done}
	}
	return merged
}

// mutate runs one guarded load-modify-save cycle. fn gets the loaded
// collection and returns the one to save; if fn fails nothing is saved.
func (s *RecipeService) mutate(ctx context.Context, fn func([]model.Recipe) ([]model.Recipe, error)) error {
	release, err := s.guard.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquiring write guard: %w", err)
	}
	defer release()

	recipes, err := fn(s.store.Load(ctx))
	if err != nil {
		return err
	}
	return s.store.Save(ctx, recipes)
}

// mutationFailed logs storage failures and passes not-found through
// unchanged; a missing id is a normal client outcome, not an error.
func (s *RecipeService) mutationFailed(action, id string, err error) error {
	if errors.Is(err, apperror.ErrNotFound) {
		return err
	}
	s.logger.Error("recipe mutation failed",
		slog.String("action", action),
		slog.String("id", id),
		slog.String("error", err.Error()),
	)
	return fmt.Errorf("%s recipe: %w", action, err)
}

func indexOf(recipes []model.Recipe, id string) int {
	for i := range recipes {
		if recipes[i].ID == id {
			return i
		}
	}
	return -1
}
