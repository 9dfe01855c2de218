package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/sakif/recipe-box/internal/apperror"
	"github.com/sakif/recipe-box/internal/guard"
	"github.com/sakif/recipe-box/internal/model"
)

// =========================================================================
// MOCK STORE
// =========================================================================
//
// mockStore keeps the collection in memory and hands out deep copies, the
// same way a real store returns freshly decoded records on every Load.

type mockStore struct {
	mu      sync.Mutex
	recipes []model.Recipe
	saves   int
	saveErr error
}

func (m *mockStore) Load(_ context.Context) []model.Recipe {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneRecipes(m.recipes)
}

func (m *mockStore) Save(_ context.Context, recipes []model.Recipe) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return apperror.StorageWrite("saving recipes", m.saveErr)
	}
	m.saves++
	m.recipes = cloneRecipes(recipes)
	return nil
}

func cloneRecipes(in []model.Recipe) []model.Recipe {
	out := make([]model.Recipe, len(in))
	for i, r := range in {
		r.Ingredients = append([]string{}, r.Ingredients...)
		r.Steps = append([]model.Step{}, r.Steps...)
		out[i] = r
	}
	return out
}

// slowStore widens the window between Load and Save so unguarded
// load-modify-save cycles would overlap.
type slowStore struct {
	mockStore
}

func (s *slowStore) Load(ctx context.Context) []model.Recipe {
	recipes := s.mockStore.Load(ctx)
	time.Sleep(2 * time.Millisecond)
	return recipes
}

// =========================================================================
// TEST HELPERS
// =========================================================================

var fixedNow = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

func newTestService(t *testing.T) (*RecipeService, *mockStore) {
	t.Helper()
	store := &mockStore{}
	svc := NewRecipeService(store, guard.NewMutex(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.now = func() time.Time { return fixedNow }
	return svc, store
}

func boolPtr(b bool) *bool { return &b }
func strPtr(s string) *string { return &s }

func mustCreate(t *testing.T, svc *RecipeService, in model.NewRecipe) *model.Recipe {
	t.Helper()
	r, err := svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return r
}

// seedChopBoil stores a recipe whose steps are [chop ✓, boil ✗].
func seedChopBoil(t *testing.T, svc *RecipeService) *model.Recipe {
	t.Helper()
	return mustCreate(t, svc, model.NewRecipe{
		Title: "Pasta",
		Steps: []model.StepInput{
			model.StructuredStep("chop", boolPtr(true)),
			model.StructuredStep("boil", boolPtr(false)),
		},
	})
}

// =========================================================================
// CREATE TESTS
// =========================================================================

func TestCreate_Success(t *testing.T) {
	svc, store := newTestService(t)

	r := mustCreate(t, svc, model.NewRecipe{
		Title:       "Omelette",
		Ingredients: []string{"eggs", "butter"},
		Steps:       []model.StepInput{model.PlainStep("whisk"), model.PlainStep("fry")},
		ImageURL:    "/uploads/x.png",
	})

	if r.ID == "" {
		t.Error("expected recipe to have an ID")
	}
	if r.Title != "Omelette" {
		t.Errorf("Title = %q, want %q", r.Title, "Omelette")
	}
	if !r.CreatedAt.Equal(fixedNow) {
		t.Errorf("CreatedAt = %v, want %v", r.CreatedAt, fixedNow)
	}
	if r.CreatedAt.Location() != time.UTC {
		t.Errorf("CreatedAt location = %v, want UTC", r.CreatedAt.Location())
	}
	wantSteps := []model.Step{{Text: "whisk"}, {Text: "fry"}}
	if fmt.Sprint(r.Steps) != fmt.Sprint(wantSteps) {
		t.Errorf("Steps = %+v, want %+v", r.Steps, wantSteps)
	}
	if r.ImageURL != "/uploads/x.png" {
		t.Errorf("ImageURL = %q", r.ImageURL)
	}

	if got := store.Load(context.Background()); len(got) != 1 || got[0].ID != r.ID {
		t.Errorf("store holds %+v, want the created recipe", got)
	}
}

func TestCreate_Defaults(t *testing.T) {
	svc, _ := newTestService(t)

	r := mustCreate(t, svc, model.NewRecipe{Title: "Water"})

	if r.Ingredients == nil || len(r.Ingredients) != 0 {
		t.Errorf("Ingredients = %#v, want empty slice", r.Ingredients)
	}
	if r.Steps == nil || len(r.Steps) != 0 {
		t.Errorf("Steps = %#v, want empty slice", r.Steps)
	}
	if r.ImageURL != "" {
		t.Errorf("ImageURL = %q, want empty", r.ImageURL)
	}
}

func TestCreate_MissingTitle(t *testing.T) {
	for _, title := range []string{"", "   "} {
		t.Run(fmt.Sprintf("title=%q", title), func(t *testing.T) {
			svc, store := newTestService(t)

			_, err := svc.Create(context.Background(), model.NewRecipe{Title: title, Ingredients: []string{"salt"}})
			if !errors.Is(err, apperror.ErrValidation) {
				t.Fatalf("error = %v, want ErrValidation", err)
			}

			var appErr *apperror.AppError
			if !errors.As(err, &appErr) || appErr.Message != MsgMissingTitle {
				t.Errorf("error message = %v, want %q", err, MsgMissingTitle)
			}
			if store.saves != 0 {
				t.Errorf("store saved %d times, want 0", store.saves)
			}
		})
	}
}

func TestCreate_UniqueIDs(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	seen := make(map[string]bool)

	var last string
	for i := 0; i < 50; i++ {
		r := mustCreate(t, svc, model.NewRecipe{Title: fmt.Sprintf("r%d", i)})
		if seen[r.ID] {
			t.Fatalf("duplicate id %s", r.ID)
		}
		seen[r.ID] = true
		last = r.ID
	}

	// Deleting and creating again must not hand out a used id.
	if err := svc.Delete(ctx, last); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	r := mustCreate(t, svc, model.NewRecipe{Title: "after delete"})
	if seen[r.ID] {
		t.Errorf("id %s reused after delete", r.ID)
	}
}

func TestCreate_SaveFailure(t *testing.T) {
	svc, store := newTestService(t)
	store.saveErr = errors.New("disk full")

	_, err := svc.Create(context.Background(), model.NewRecipe{Title: "Doomed"})
	if !errors.Is(err, apperror.ErrStorageWrite) {
		t.Errorf("error = %v, want ErrStorageWrite", err)
	}
}

// =========================================================================
// GET / LIST TESTS
// =========================================================================

func TestGet(t *testing.T) {
	svc, _ := newTestService(t)
	created := mustCreate(t, svc, model.NewRecipe{Title: "Bread"})

	got, err := svc.Get(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ID != created.ID || got.Title != "Bread" {
		t.Errorf("Get() = %+v, want %+v", got, created)
	}
}

func TestList_KeepsInsertionOrder(t *testing.T) {
	svc, _ := newTestService(t)
	titles := []string{"c", "a", "b"}
	for _, title := range titles {
		mustCreate(t, svc, model.NewRecipe{Title: title})
	}

	got := svc.List(context.Background())
	if len(got) != len(titles) {
		t.Fatalf("List() returned %d recipes, want %d", len(got), len(titles))
	}
	for i, title := range titles {
		if got[i].Title != title {
			t.Errorf("List()[%d].Title = %q, want %q", i, got[i].Title, title)
		}
	}
}

// =========================================================================
// NOT FOUND
// =========================================================================

func TestNotFound_SameOutcomeEverywhere(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	mustCreate(t, svc, model.NewRecipe{Title: "Only"})
	savesBefore := store.saves

	_, getErr := svc.Get(ctx, "missing")
	_, updErr := svc.Update(ctx, "missing", model.RecipePatch{Title: strPtr("x")})
	delErr := svc.Delete(ctx, "missing")

	for name, err := range map[string]error{"Get": getErr, "Update": updErr, "Delete": delErr} {
		var appErr *apperror.AppError
		if !errors.As(err, &appErr) || !errors.Is(err, apperror.ErrNotFound) {
			t.Errorf("%s error = %v, want NotFound", name, err)
			continue
		}
		if appErr.Message != "Not found" {
			t.Errorf("%s message = %q, want %q", name, appErr.Message, "Not found")
		}
	}

	if n := len(svc.List(ctx)); n != 1 {
		t.Errorf("collection size = %d after failed delete, want 1", n)
	}
	if store.saves != savesBefore {
		t.Errorf("failed mutations saved %d times, want 0", store.saves-savesBefore)
	}
}

// =========================================================================
// UPDATE TESTS
// =========================================================================

func TestUpdate_StepMergeKeepsDoneFlags(t *testing.T) {
	svc, _ := newTestService(t)
	r := seedChopBoil(t, svc)

	steps := []model.StepInput{model.PlainStep("chop"), model.PlainStep("simmer")}
	got, err := svc.Update(context.Background(), r.ID, model.RecipePatch{Steps: &steps})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	want := []model.Step{{Text: "chop", Done: true}, {Text: "simmer", Done: false}}
	if fmt.Sprint(got.Steps) != fmt.Sprint(want) {
		t.Errorf("Steps = %+v, want %+v", got.Steps, want)
	}
}

func TestUpdate_StepMergeExplicitDoneWins(t *testing.T) {
	svc, _ := newTestService(t)
	r := seedChopBoil(t, svc)

	steps := []model.StepInput{model.StructuredStep("chop", boolPtr(false))}
	got, err := svc.Update(context.Background(), r.ID, model.RecipePatch{Steps: &steps})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	want := []model.Step{{Text: "chop", Done: false}}
	if fmt.Sprint(got.Steps) != fmt.Sprint(want) {
		t.Errorf("Steps = %+v, want %+v", got.Steps, want)
	}
}

func TestMergeSteps(t *testing.T) {
	existing := []model.Step{{Text: "a", Done: true}, {Text: "b", Done: false}}

	tests := []struct {
		name     string
		incoming []model.StepInput
		want     []model.Step
	}{
		{
			name:     "structured without done falls back to existing",
			incoming: []model.StepInput{model.StructuredStep("A", nil)},
			want:     []model.Step{{Text: "A", Done: true}},
		},
		{
			name:     "positions past the old list default to false",
			incoming: []model.StepInput{model.PlainStep("a"), model.PlainStep("b"), model.PlainStep("c")},
			want:     []model.Step{{Text: "a", Done: true}, {Text: "b"}, {Text: "c"}},
		},
		{
			name:     "explicit true on a new position",
			incoming: []model.StepInput{model.PlainStep("a"), model.PlainStep("b"), model.StructuredStep("c", boolPtr(true))},
			want:     []model.Step{{Text: "a", Done: true}, {Text: "b"}, {Text: "c", Done: true}},
		},
		{
			name:     "merge is positional, not by text",
			incoming: []model.StepInput{model.PlainStep("b"), model.PlainStep("a")},
			want:     []model.Step{{Text: "b", Done: true}, {Text: "a"}},
		},
		{
			name:     "empty list clears steps",
			incoming: []model.StepInput{},
			want:     []model.Step{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MergeSteps(existing, tt.incoming)
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("MergeSteps() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestUpdate_OnlyPresentFields(t *testing.T) {
	svc, _ := newTestService(t)
	r := mustCreate(t, svc, model.NewRecipe{
		Title:       "Tea",
		Ingredients: []string{"leaves", "water"},
		ImageURL:    "/uploads/tea.png",
	})

	got, err := svc.Update(context.Background(), r.ID, model.RecipePatch{Title: strPtr("Green tea")})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if got.Title != "Green tea" {
		t.Errorf("Title = %q, want %q", got.Title, "Green tea")
	}
	if fmt.Sprint(got.Ingredients) != fmt.Sprint(r.Ingredients) {
		t.Errorf("Ingredients changed to %v", got.Ingredients)
	}
	if got.ImageURL != r.ImageURL {
		t.Errorf("ImageURL changed to %q", got.ImageURL)
	}
	if got.ID != r.ID || !got.CreatedAt.Equal(r.CreatedAt) {
		t.Errorf("id/created_at changed: %+v", got)
	}
}

func TestUpdate_ReplacesImageAndIngredients(t *testing.T) {
	svc, _ := newTestService(t)
	r := mustCreate(t, svc, model.NewRecipe{
		Title:       "Tea",
		Ingredients: []string{"leaves", "water"},
		ImageURL:    "/uploads/tea.png",
	})

	ingredients := []string{"water"}
	got, err := svc.Update(context.Background(), r.ID, model.RecipePatch{
		ImageURL:    strPtr(""),
		Ingredients: &ingredients,
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if got.ImageURL != "" {
		t.Errorf("ImageURL = %q, want cleared", got.ImageURL)
	}
	if fmt.Sprint(got.Ingredients) != "[water]" {
		t.Errorf("Ingredients = %v, want [water]", got.Ingredients)
	}

	stored, _ := svc.Get(context.Background(), r.ID)
	if stored.ImageURL != "" || len(stored.Ingredients) != 1 {
		t.Errorf("update not persisted: %+v", stored)
	}
}

func TestUpdate_SaveFailure(t *testing.T) {
	svc, store := newTestService(t)
	r := mustCreate(t, svc, model.NewRecipe{Title: "Tea"})
	store.saveErr = errors.New("read-only file system")

	_, err := svc.Update(context.Background(), r.ID, model.RecipePatch{Title: strPtr("Coffee")})
	if !errors.Is(err, apperror.ErrStorageWrite) {
		t.Errorf("error = %v, want ErrStorageWrite", err)
	}
}

// =========================================================================
// DELETE TESTS
// =========================================================================

func TestDelete_RemovesExactlyOne(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	a := mustCreate(t, svc, model.NewRecipe{Title: "a", Ingredients: []string{"x"}})
	b := mustCreate(t, svc, model.NewRecipe{Title: "b"})
	c := mustCreate(t, svc, model.NewRecipe{Title: "c"})

	if err := svc.Delete(ctx, b.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	got := svc.List(ctx)
	if len(got) != 2 {
		t.Fatalf("List() returned %d recipes, want 2", len(got))
	}
	if got[0].ID != a.ID || got[1].ID != c.ID {
		t.Errorf("remaining ids = [%s %s], want [%s %s]", got[0].ID, got[1].ID, a.ID, c.ID)
	}
	if fmt.Sprint(got[0].Ingredients) != "[x]" {
		t.Errorf("untouched recipe altered: %+v", got[0])
	}

	if _, err := svc.Get(ctx, b.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// CONCURRENCY
// =========================================================================

func TestConcurrentCreates_NoLostUpdates(t *testing.T) {
	store := &slowStore{}
	svc := NewRecipeService(store, guard.NewMutex(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := svc.Create(context.Background(), model.NewRecipe{Title: fmt.Sprintf("r%d", i)}); err != nil {
				t.Errorf("Create() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	if got := len(svc.List(context.Background())); got != n {
		t.Errorf("collection has %d recipes, want %d", got, n)
	}
}

func TestMutation_GuardCancelled(t *testing.T) {
	svc, store := newTestService(t)
	release, err := svc.guard.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := svc.Create(ctx, model.NewRecipe{Title: "blocked"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Create() error = %v, want deadline exceeded", err)
	}
	if store.saves != 0 {
		t.Errorf("store saved %d times, want 0", store.saves)
	}
}
