package recipe

import "time"

// StepType determines how progress on a step is reported.
type StepType string

const (
	// StepCheck is a boolean-like step, logged once with its full target.
	StepCheck StepType = "CHECK"
	// StepCount is tracked by incremental quantities.
	StepCount StepType = "COUNT"
)

// DefaultBaseUnit labels recipes created without an explicit base unit.
const DefaultBaseUnit = "units"

// Recipe is a reusable production template.
type Recipe struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	BaseUnit    string    `json:"base_unit"`
	CreatedAt   time.Time `json:"created_at"`
	Units       []Unit    `json:"units"`
	Steps       []Step    `json:"steps"`
	BatchCount  int       `json:"batch_count"`
}

// Unit is a named packaging level, Ratio base units per instance.
type Unit struct {
	ID       string `json:"id"`
	RecipeID string `json:"recipe_id"`
	Name     string `json:"name"`
	Ratio    int    `json:"ratio"`
	Order    int    `json:"order"`
}

// Step is one ordered stage of a recipe.
type Step struct {
	ID        string     `json:"id"`
	RecipeID  string     `json:"recipe_id"`
	Name      string     `json:"name"`
	Order     int        `json:"order"`
	Type      StepType   `json:"type"`
	UnitID    *string    `json:"unit_id,omitempty"`
	Notes     string     `json:"notes,omitempty"`
	Materials []Material `json:"materials,omitempty"`
}

// Material is a bill-of-materials line shown next to a step.
type Material struct {
	ID              string  `json:"id"`
	StepID          string  `json:"step_id"`
	Name            string  `json:"name"`
	QuantityPerUnit float64 `json:"quantity_per_unit"`
	Unit            string  `json:"unit"`
}

// UnitFor returns the unit a step is measured in, or nil for base units.
func (r *Recipe) UnitFor(step Step) *Unit {
	if step.UnitID == nil {
		return nil
	}
	for i := range r.Units {
		if r.Units[i].ID == *step.UnitID {
			return &r.Units[i]
		}
	}
	return nil
}

// Measure returns the label and base-unit ratio a step is counted in.
func (r *Recipe) Measure(step Step) (label string, ratio int) {
	if u := r.UnitFor(step); u != nil {
		return u.Name, u.Ratio
	}
	return r.BaseUnit, 1
}
