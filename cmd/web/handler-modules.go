package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/myrjola/lockedin/internal/errors"
	"github.com/myrjola/lockedin/internal/workout"
)

func (app *application) moduleAddPOST(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		app.serverError(w, r, errors.Wrap(err, "parse form"))
		return
	}
	m, err := app.workoutService.AddModule(r.Context(), r.PostForm.Get("title"), r.PostForm.Get("description"))
	if err != nil {
		if app.flashError(w, r, err) {
			return
		}
	} else {
		app.flash(r, fmt.Sprintf("Added %q to the minimum viability stack.", m.Title))
	}
	redirect(w, r, "/")
}

func (app *application) moduleUpdatePOST(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		app.notFound(w, r)
		return
	}
	if err = r.ParseForm(); err != nil {
		app.serverError(w, r, errors.Wrap(err, "parse form"))
		return
	}
	err = app.workoutService.UpdateModule(r.Context(), id, r.PostForm.Get("title"), r.PostForm.Get("description"))
	if err != nil {
		if app.flashError(w, r, err) {
			return
		}
	} else {
		app.flash(r, "Habit updated.")
	}
	redirect(w, r, "/")
}

func (app *application) moduleDeletePOST(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		app.notFound(w, r)
		return
	}
	if err = app.workoutService.DeleteModule(r.Context(), id); err != nil {
		if app.flashError(w, r, err) {
			return
		}
	} else {
		app.flash(r, "Habit removed.")
	}
	redirect(w, r, "/")
}

type moduleJSON struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	OrderIndex  int    `json:"orderIndex"`
	CreatedBy   string `json:"createdBy"`
}

func toModuleJSON(m workout.HabitModule) moduleJSON {
	return moduleJSON{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		OrderIndex:  m.OrderIndex,
		CreatedBy:   m.CreatedBy,
	}
}

type modulesResponse struct {
	Modules []moduleJSON `json:"modules"`
}

func (app *application) apiModules(w http.ResponseWriter, r *http.Request) {
	modules, err := app.workoutService.Modules(r.Context())
	if err != nil {
		app.writeJSONError(w, r, err)
		return
	}
	resp := modulesResponse{Modules: make([]moduleJSON, 0, len(modules))}
	for _, m := range modules {
		resp.Modules = append(resp.Modules, toModuleJSON(m))
	}
	app.writeJSON(w, r, http.StatusOK, resp)
}

type moduleRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (app *application) apiAddModule(w http.ResponseWriter, r *http.Request) {
	var req moduleRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxAPIBodyBytes)).Decode(&req); err != nil {
		app.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "Request body must be JSON."})
		return
	}
	m, err := app.workoutService.AddModule(r.Context(), req.Title, req.Description)
	if err != nil {
		app.writeJSONError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusCreated, toModuleJSON(m))
}

func (app *application) apiDeleteModule(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		app.writeJSON(w, r, http.StatusNotFound, errorResponse{Error: "Habit module not found"})
		return
	}
	if err = app.workoutService.DeleteModule(r.Context(), id); err != nil {
		app.writeJSONError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
