// Package handler contains the HTTP handlers of the recipe box.
//
// HANDLER RESPONSIBILITIES:
//  1. Parse the incoming HTTP request (path params, body, form)
//  2. Call the service layer
//  3. Write the HTTP response (status code, headers, body)
//
// Handlers hold no business rules; they translate between HTTP and the
// service.
package handler

import (
	"context"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/sakif/recipe-box/internal/model"
)

// RecipeLister is what the landing page needs.
type RecipeLister interface {
	List(ctx context.Context) []model.Recipe
}

// HomeHandler renders the landing page. Templates are parsed once at
// construction and reused for every request.
type HomeHandler struct {
	templates *template.Template
	recipes   RecipeLister
	logger    *slog.Logger
}

// NewHomeHandler parses base.html and index.html from templates.
// base.html defines the page frame with a {{template "content" .}}
// placeholder that index.html fills.
func NewHomeHandler(templates fs.FS, recipes RecipeLister, logger *slog.Logger) (*HomeHandler, error) {
	tmpl, err := template.ParseFS(templates, "base.html", "index.html")
	if err != nil {
		return nil, err
	}
	return &HomeHandler{
		templates: tmpl,
		recipes:   recipes,
		logger:    logger,
	}, nil
}

// HandleHome renders the recipe list.
//
// HTTP: GET /
func (h *HomeHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{
		"Title":   "Recipe Box",
		"Recipes": h.recipes.List(r.Context()),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, "base", data); err != nil {
		h.logger.Error("failed to render template", slog.String("error", err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
