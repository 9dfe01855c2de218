// Package model defines the data structures used throughout the application.
//
// Recipe is the only persisted entity. The remaining types describe API
// input: the step tagged union and the partial update document.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Recipe is a single record of the collection.
// The JSON tags are the wire format of both the API and the recipes file.
type Recipe struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Ingredients []string  `json:"ingredients"`
	Steps       []Step    `json:"steps"`
	ImageURL    string    `json:"image_url"`
	CreatedAt   time.Time `json:"created_at"`
}

// Step is one instruction of a recipe. Done is a completion flag that is
// independent of the text.
type Step struct {
	Text string `json:"text"`
	Done bool   `json:"done"`
}

// UnmarshalJSON also accepts a bare scalar as {text, done:false}. Files
// written by earlier versions stored steps exactly as clients sent them.
func (s *Step) UnmarshalJSON(data []byte) error {
	var in StepInput
	if err := in.UnmarshalJSON(data); err != nil {
		return err
	}
	*s = Step{Text: in.Text, Done: in.Done != nil && *in.Done}
	return nil
}

// EnsureSlices replaces nil slices with empty ones so a recipe always
// encodes as [] rather than null.
func (r *Recipe) EnsureSlices() {
	if r.Ingredients == nil {
		r.Ingredients = []string{}
	}
	if r.Steps == nil {
		r.Steps = []Step{}
	}
}

// StepInput is a step as submitted by a client: either a bare JSON scalar
// (usually a string) or an object {"text": ..., "done": ...}.
type StepInput struct {
	Text       string
	Done       *bool // nil when the input did not carry a done flag
	Structured bool  // true when the input was a JSON object
}

// PlainStep builds the bare-text variant.
func PlainStep(text string) StepInput {
	return StepInput{Text: text}
}

// StructuredStep builds the object variant. A nil done means the object
// had no "done" key.
func StructuredStep(text string, done *bool) StepInput {
	return StepInput{Text: text, Done: done, Structured: true}
}

// UnmarshalJSON accepts either variant. Scalars other than strings are
// kept as their JSON literal ("42", "true"); null becomes empty text.
func (s *StepInput) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		*s = PlainStep(scalarText(data))
		return nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("decoding step: %w", err)
	}

	step := StructuredStep("", nil)
	if raw, ok := fields["text"]; ok {
		step.Text = scalarText(bytes.TrimSpace(raw))
	}
	if raw, ok := fields["done"]; ok {
		done, err := truthy(raw)
		if err != nil {
			return fmt.Errorf("decoding step done flag: %w", err)
		}
		step.Done = &done
	}
	*s = step
	return nil
}

// NewRecipe is the create input.
type NewRecipe struct {
	Title       string      `json:"title"`
	Ingredients []string    `json:"ingredients"`
	Steps       []StepInput `json:"steps"`
	ImageURL    string      `json:"image_url"`
}

// RecipePatch is a partial update. A nil field was absent from the
// request and leaves the stored value alone.
type RecipePatch struct {
	Title       *string
	Steps       *[]StepInput // nil also when "steps" was not a JSON array
	ImageURL    *string
	Ingredients *[]string
}

// UnmarshalJSON records which keys were present. JSON null for title is
// treated as absent; null for image_url or ingredients clears the field.
func (p *RecipePatch) UnmarshalJSON(data []byte) error {
	*p = RecipePatch{}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("decoding recipe patch: %w", err)
	}

	if raw, ok := fields["title"]; ok {
		var title *string
		if err := json.Unmarshal(raw, &title); err != nil {
			return fmt.Errorf("decoding title: %w", err)
		}
		p.Title = title
	}

	if raw, ok := fields["steps"]; ok {
		raw = bytes.TrimSpace(raw)
		if len(raw) > 0 && raw[0] == '[' {
			var steps []StepInput
			if err := json.Unmarshal(raw, &steps); err != nil {
				return fmt.Errorf("decoding steps: %w", err)
			}
			if steps == nil {
				steps = []StepInput{}
			}
			p.Steps = &steps
		}
	}

	if raw, ok := fields["image_url"]; ok {
		var imageURL string
		if err := json.Unmarshal(raw, &imageURL); err != nil {
			return fmt.Errorf("decoding image_url: %w", err)
		}
		p.ImageURL = &imageURL
	}

	if raw, ok := fields["ingredients"]; ok {
		var ingredients []string
		if err := json.Unmarshal(raw, &ingredients); err != nil {
			return fmt.Errorf("decoding ingredients: %w", err)
		}
		if ingredients == nil {
			ingredients = []string{}
		}
		p.Ingredients = &ingredients
	}

	return nil
}

// scalarText coerces a raw JSON value to text.
func scalarText(raw []byte) string {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return string(raw)
	}
	return compact.String()
}

// truthy reports whether a raw JSON value counts as true: false, null, 0,
// "" and empty arrays/objects are false, everything else is true.
func truthy(raw json.RawMessage) (bool, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false, err
	}
	switch t := v.(type) {
	case nil:
		return false, nil
	case bool:
		return t, nil
	case float64:
		return t != 0, nil
	case string:
		return t != "", nil
	case []any:
		return len(t) > 0, nil
	case map[string]any:
		return len(t) > 0, nil
	default:
		return false, fmt.Errorf("unsupported value %s", strconv.Quote(string(raw)))
	}
}
