package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Ingredient is one entry of the structured ingredient list. Upstream keys
// without a typed field are kept in Extra and written back flat, so the stored
// entry matches the upstream one.
type Ingredient struct {
	ID              string
	Text            string
	PercentEstimate *float64
	Vegan           string
	Vegetarian      string
	Extra           map[string]any
}

// IngredientFromMap reads one upstream ingredient object. ok is false for an empty object.
func IngredientFromMap(m map[string]any) (ing Ingredient, ok bool) {
	if len(m) == 0 {
		return Ingredient{}, false
	}
	for key, value := range m {
		switch key {
		case "id":
			if s, isString := value.(string); isString {
				ing.ID = s
				continue
			}
		case "text":
			if s, isString := value.(string); isString {
				ing.Text = s
				continue
			}
		case "vegan":
			if s, isString := value.(string); isString {
				ing.Vegan = s
				continue
			}
		case "vegetarian":
			if s, isString := value.(string); isString {
				ing.Vegetarian = s
				continue
			}
		case "percent_estimate":
			if f, isNumber := number(value); isNumber {
				ing.PercentEstimate = &f
				continue
			}
		}
		if ing.Extra == nil {
			ing.Extra = make(map[string]any)
		}
		ing.Extra[key] = value
	}
	return ing, true
}

// MarshalJSON writes the typed fields and Extra as one flat object
func (i Ingredient) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(i.Extra)+5)
	for k, v := range i.Extra {
		out[k] = v
	}
	out["text"] = i.Text
	if i.ID != "" {
		out["id"] = i.ID
	}
	if i.PercentEstimate != nil {
		out["percent_estimate"] = *i.PercentEstimate
	}
	if i.Vegan != "" {
		out["vegan"] = i.Vegan
	}
	if i.Vegetarian != "" {
		out["vegetarian"] = i.Vegetarian
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads a flat object, keeping unknown keys in Extra
func (i *Ingredient) UnmarshalJSON(body []byte) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return err
	}
	*i, _ = IngredientFromMap(m)
	return nil
}

func number(v any) (float64, bool) {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
