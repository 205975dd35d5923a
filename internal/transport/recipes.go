package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rpggio/batchflow/internal/domain/recipe"
)

type recipeRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	BaseUnit    string `json:"base_unit"`
	Units       []struct {
		Name  string `json:"name"`
		Ratio int    `json:"ratio"`
	} `json:"units"`
	Steps []struct {
		Name      string `json:"name"`
		Type      string `json:"type"`
		Unit      string `json:"unit"`
		Notes     string `json:"notes"`
		Materials []struct {
			Name            string  `json:"name"`
			QuantityPerUnit float64 `json:"quantity_per_unit"`
			Unit            string  `json:"unit"`
		} `json:"materials"`
	} `json:"steps"`
}

func (r recipeRequest) toSave() recipe.SaveRequest {
	req := recipe.SaveRequest{
		Name:        r.Name,
		Description: r.Description,
		BaseUnit:    r.BaseUnit,
	}
	for _, u := range r.Units {
		req.Units = append(req.Units, recipe.UnitInput{Name: u.Name, Ratio: u.Ratio})
	}
	for _, st := range r.Steps {
		in := recipe.StepInput{Name: st.Name, Type: st.Type, Unit: st.Unit, Notes: st.Notes}
		for _, m := range st.Materials {
			in.Materials = append(in.Materials, recipe.MaterialInput{
				Name:            m.Name,
				QuantityPerUnit: m.QuantityPerUnit,
				Unit:            m.Unit,
			})
		}
		req.Steps = append(req.Steps, in)
	}
	return req
}

func (s *Server) handleListRecipes(w http.ResponseWriter, r *http.Request) {
	recipes, err := s.services.Recipes.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recipes)
}

func (s *Server) handleGetRecipe(w http.ResponseWriter, r *http.Request) {
	rec, err := s.services.Recipes.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleCreateRecipe(w http.ResponseWriter, r *http.Request) {
	var req recipeRequest
	if !s.decode(w, r, &req) {
		return
	}
	rec, err := s.services.Recipes.Create(r.Context(), req.toSave())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleReplaceRecipe(w http.ResponseWriter, r *http.Request) {
	var req recipeRequest
	if !s.decode(w, r, &req) {
		return
	}
	rec, err := s.services.Recipes.Update(r.Context(), chi.URLParam(r, "id"), req.toSave())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteRecipe(w http.ResponseWriter, r *http.Request) {
	if err := s.services.Recipes.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
