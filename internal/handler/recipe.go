package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/recipe-box/internal/model"
)

// RecipeService is what the recipe endpoints need from the service layer.
type RecipeService interface {
	List(ctx context.Context) []model.Recipe
	Create(ctx context.Context, in model.NewRecipe) (*model.Recipe, error)
	Get(ctx context.Context, id string) (*model.Recipe, error)
	Update(ctx context.Context, id string, patch model.RecipePatch) (*model.Recipe, error)
	Delete(ctx context.Context, id string) error
}

// RecipeResponse wraps a recipe returned by a mutation.
type RecipeResponse struct {
	OK     bool          `json:"ok"`
	Recipe *model.Recipe `json:"recipe,omitempty"`
}

// RecipeHandler serves the /api/recipes endpoints.
type RecipeHandler struct {
	svc    RecipeService
	logger *slog.Logger
}

func NewRecipeHandler(svc RecipeService, logger *slog.Logger) *RecipeHandler {
	return &RecipeHandler{svc: svc, logger: logger}
}

// HandleList returns the whole collection.
//
// HTTP: GET /api/recipes
func (h *RecipeHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.List(r.Context()))
}

// HandleCreate adds a recipe.
//
// HTTP: POST /api/recipes
// REQUEST BODY: {"title": "...", "ingredients": [...], "steps": [...], "image_url": "..."}
func (h *RecipeHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in model.NewRecipe
	if err := decodeJSON(w, r, &in); err != nil {
		h.logger.Warn("invalid recipe JSON", slog.String("error", err.Error()))
		writeError(w, h.logger, err)
		return
	}

	recipe, err := h.svc.Create(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, RecipeResponse{OK: true, Recipe: recipe})
}

// HandleGet returns one recipe.
//
// HTTP: GET /api/recipes/{id}
func (h *RecipeHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	recipe, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, recipe)
}

// HandleUpdate applies a partial update. Only the keys present in the body
// change; see model.RecipePatch.
//
// HTTP: PATCH /api/recipes/{id}
func (h *RecipeHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var patch model.RecipePatch
	if err := decodeJSON(w, r, &patch); err != nil {
		h.logger.Warn("invalid recipe patch JSON", slog.String("error", err.Error()))
		writeError(w, h.logger, err)
		return
	}

	recipe, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, RecipeResponse{OK: true, Recipe: recipe})
}

// HandleDelete removes a recipe.
//
// HTTP: DELETE /api/recipes/{id}
func (h *RecipeHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, RecipeResponse{OK: true})
}

// HandleHealth reports that the process is serving.
//
// HTTP: GET /api/health
func HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
