package api

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/star/impactsim/internal/geodesy"
	"github.com/star/impactsim/internal/httputil"
	"github.com/star/impactsim/internal/kml"
	"github.com/star/impactsim/internal/scenario"
	"github.com/star/impactsim/internal/sensitivity"
)

const maxScenarioBytes = 1 << 20

func listScenariosHandler(store *scenario.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"scenarios": store.Names(),
			"default":   scenario.DefaultName,
		})
	}
}

func getScenarioHandler(store *scenario.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sc, ok := store.Get(r.PathValue("name"))
		if !ok {
			httputil.WriteError(w, http.StatusNotFound, "scenario not found")
			return
		}
		httputil.WriteJSON(w, http.StatusOK, sc)
	}
}

// putScenarioHandler creates or replaces a scenario. Fields missing from
// the body take their values from the built-in data set.
func putScenarioHandler(logger *slog.Logger, store *scenario.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxScenarioBytes+1))
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "failed to read body")
			return
		}
		if len(body) > maxScenarioBytes {
			httputil.WriteError(w, http.StatusRequestEntityTooLarge, "scenario too large")
			return
		}
		sc, err := scenario.Decode(body)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		sc.Name = r.PathValue("name")
		if err := store.Put(sc); err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		logger.Info("scenario stored", "component", "api", "scenario", sc.Name)
		httputil.WriteJSON(w, http.StatusOK, sc)
	}
}

// tracksKMLHandler serves the nominal and one-sigma reference tracks of a
// scenario without running the Monte Carlo simulation.
// GET /api/v1/tracks.kml?scenario=name
func tracksKMLHandler(logger *slog.Logger, store *scenario.Store, conv *geodesy.Converter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("scenario")
		if name == "" {
			name = scenario.DefaultName
		}
		sc, ok := store.Get(name)
		if !ok {
			httputil.WriteError(w, http.StatusNotFound, "scenario not found")
			return
		}
		params, err := scenario.Build(sc)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		ref, err := sensitivity.Compute(r.Context(), params, 0)
		if err != nil {
			if errors.Is(err, r.Context().Err()) {
				return
			}
			logger.Error("reference tracks failed", "component", "api", "scenario", name, "error", err)
			httputil.WriteError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}

		kw := kml.NewWriter(conv, name)
		if err := ref.Emit(kw); err != nil {
			logger.Error("kml tracks failed", "component", "api", "scenario", name, "error", err)
			httputil.WriteError(w, http.StatusInternalServerError, "failed to build kml")
			return
		}
		writeKML(w, logger, kw, name+"-tracks.kml")
	}
}

func writeKML(w http.ResponseWriter, logger *slog.Logger, kw *kml.Writer, filename string) {
	w.Header().Set("Content-Type", "application/vnd.google-earth.kml+xml")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	if err := kw.Encode(w); err != nil {
		logger.Warn("kml write failed", "component", "api", "error", err)
	}
}
