package recipe

import (
	"fmt"
	"strings"
)

// SaveRequest describes a recipe to create or fully replace.
type SaveRequest struct {
	Name        string
	Description string
	BaseUnit    string
	Units       []UnitInput
	Steps       []StepInput
}

// UnitInput declares a recipe unit.
type UnitInput struct {
	Name  string
	Ratio int
}

// StepInput declares a recipe step. Unit names one of the request's units;
// empty means the step is counted in base units.
type StepInput struct {
	Name      string
	Type      string
	Unit      string
	Notes     string
	Materials []MaterialInput
}

// MaterialInput declares a bill-of-materials line.
type MaterialInput struct {
	Name            string
	QuantityPerUnit float64
	Unit            string
}

// ParseStepType normalizes a step type; empty defaults to COUNT.
func ParseStepType(s string) (StepType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", string(StepCount):
		return StepCount, nil
	case string(StepCheck):
		return StepCheck, nil
	default:
		return "", fmt.Errorf("%w: unknown step type %q", ErrInvalidInput, s)
	}
}

// ValidateSaveRequest checks names, unit ratios and unit references.
func ValidateSaveRequest(req SaveRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if len(req.Steps) == 0 {
		return fmt.Errorf("%w: at least one step is required", ErrInvalidInput)
	}

	units := make(map[string]bool, len(req.Units))
	for _, u := range req.Units {
		name := strings.TrimSpace(u.Name)
		if name == "" {
			return fmt.Errorf("%w: unit name is required", ErrInvalidInput)
		}
		if u.Ratio < 1 {
			return fmt.Errorf("%w: unit %q ratio must be at least 1", ErrInvalidInput, name)
		}
		key := strings.ToLower(name)
		if units[key] {
			return fmt.Errorf("%w: duplicate unit %q", ErrInvalidInput, name)
		}
		units[key] = true
	}

	for i, s := range req.Steps {
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("%w: step %d name is required", ErrInvalidInput, i+1)
		}
		if _, err := ParseStepType(s.Type); err != nil {
			return err
		}
		if unit := strings.TrimSpace(s.Unit); unit != "" && !units[strings.ToLower(unit)] {
			return fmt.Errorf("%w: step %d references unknown unit %q", ErrInvalidInput, i+1, unit)
		}
		for _, m := range s.Materials {
			if strings.TrimSpace(m.Name) == "" {
				return fmt.Errorf("%w: step %d material name is required", ErrInvalidInput, i+1)
			}
			if m.QuantityPerUnit < 0 {
				return fmt.Errorf("%w: step %d material %q has negative quantity", ErrInvalidInput, i+1, m.Name)
			}
		}
	}
	return nil
}

// build assembles a recipe from a validated request. Units and steps get
// dense 1..N orders in request order.
func build(id string, req SaveRequest, newID func() string) *Recipe {
	baseUnit := strings.TrimSpace(req.BaseUnit)
	if baseUnit == "" {
		baseUnit = DefaultBaseUnit
	}

	rec := &Recipe{
		ID:          id,
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		BaseUnit:    baseUnit,
	}

	unitIDs := make(map[string]string, len(req.Units))
	for i, u := range req.Units {
		unit := Unit{
			ID:       newID(),
			RecipeID: id,
			Name:     strings.TrimSpace(u.Name),
			Ratio:    u.Ratio,
			Order:    i + 1,
		}
		unitIDs[strings.ToLower(unit.Name)] = unit.ID
		rec.Units = append(rec.Units, unit)
	}

	for i, s := range req.Steps {
		stepType, _ := ParseStepType(s.Type)
		step := Step{
			ID:       newID(),
			RecipeID: id,
			Name:     strings.TrimSpace(s.Name),
			Order:    i + 1,
			Type:     stepType,
			Notes:    strings.TrimSpace(s.Notes),
		}
		if unit := strings.TrimSpace(s.Unit); unit != "" {
			unitID := unitIDs[strings.ToLower(unit)]
			step.UnitID = &unitID
		}
		for _, m := range s.Materials {
			step.Materials = append(step.Materials, Material{
				ID:              newID(),
				StepID:          step.ID,
				Name:            strings.TrimSpace(m.Name),
				QuantityPerUnit: m.QuantityPerUnit,
				Unit:            strings.TrimSpace(m.Unit),
			})
		}
		rec.Steps = append(rec.Steps, step)
	}

	return rec
}
