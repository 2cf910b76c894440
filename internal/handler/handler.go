package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ytqdgo/internal/controller"
	"ytqdgo/internal/models"
	"ytqdgo/internal/presets"
	"ytqdgo/internal/utils"
)

type Queue interface {
	Enqueue(locator, format string) (models.QueueEntry, error)
	Start() error
	Cancel() bool
	MoveUp(index int) bool
	MoveDown(index int) bool
	Remove(index int) bool
	Clear() int
	Snapshot() controller.Snapshot
}

type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]models.HistoryRecord, error)
}

type FormatLookup interface {
	Fetch(ctx context.Context, locator string) (models.MediaInfo, error)
}

type Routes struct {
	Queue     Queue
	History   HistoryReader
	Formats   FormatLookup
	Websocket http.HandlerFunc
	Metrics   http.Handler
	Static    string
}

func NewRouter(routes Routes) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	if routes.Static != "" {
		r.Handle("/", http.FileServer(http.Dir(routes.Static)))
	}
	r.Get("/queue", GetQueueHandler(routes.Queue))
	r.Post("/queue", AddToQueueHandler(routes.Queue))
	r.Post("/queue/start", StartHandler(routes.Queue))
	r.Post("/queue/cancel", CancelDownloadHandler(routes.Queue))
	r.Put("/queue/{index}/move", MoveQueueItemHandler(routes.Queue))
	r.Delete("/queue/{index}", DeleteQueueItemHandler(routes.Queue))
	r.Delete("/queue", ClearQueueHandler(routes.Queue))
	r.Get("/history", HistoryHandler(routes.History))
	r.Get("/formats", FormatsHandler(routes.Formats))
	if routes.Websocket != nil {
		r.Get("/ws", routes.Websocket)
	}
	if routes.Metrics != nil {
		r.Handle("/metrics", routes.Metrics)
	}
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func GetQueueHandler(queue Queue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, queue.Snapshot())
	}
}

func AddToQueueHandler(queue Queue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			URL    string `json:"url"`
			Format string `json:"format"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if req.URL == "" {
			writeError(w, http.StatusBadRequest, "url is required")
			return
		}

		entry, err := queue.Enqueue(req.URL, req.Format)
		switch {
		case errors.Is(err, controller.ErrInvalidLocator):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, controller.ErrDuplicateLocator):
			writeError(w, http.StatusConflict, err.Error())
		case err != nil:
			writeError(w, http.StatusServiceUnavailable, err.Error())
		default:
			writeJSON(w, http.StatusCreated, entry)
		}
	}
}

func StartHandler(queue Queue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := queue.Start()
		switch {
		case errors.Is(err, controller.ErrQueueEmpty):
			writeError(w, http.StatusConflict, err.Error())
		case err != nil:
			writeError(w, http.StatusServiceUnavailable, err.Error())
		default:
			writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
		}
	}
}

func CancelDownloadHandler(queue Queue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !queue.Cancel() {
			writeError(w, http.StatusNotFound, "no active download")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
	}
}

func indexParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "index must be a number")
		return 0, false
	}
	return index, true
}

func MoveQueueItemHandler(queue Queue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, ok := indexParam(w, r)
		if !ok {
			return
		}

		var req struct {
			Direction string `json:"direction"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}

		var moved bool
		switch req.Direction {
		case "up":
			moved = queue.MoveUp(index)
		case "down":
			moved = queue.MoveDown(index)
		default:
			writeError(w, http.StatusBadRequest, "direction must be 'up' or 'down'")
			return
		}

		if !moved {
			// Moving the first entry up or the last one down is a no-op.
			if index >= 0 && index < len(queue.Snapshot().Queue) {
				writeJSON(w, http.StatusOK, map[string]string{"status": "unchanged"})
				return
			}
			writeError(w, http.StatusNotFound, "item not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "moved"})
	}
}

func DeleteQueueItemHandler(queue Queue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, ok := indexParam(w, r)
		if !ok {
			return
		}
		if !queue.Remove(index) {
			writeError(w, http.StatusNotFound, "item not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func ClearQueueHandler(queue Queue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n := queue.Clear()
		writeJSON(w, http.StatusOK, map[string]any{"status": "cleared", "removed": n})
	}
}

func HistoryHandler(history HistoryReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "limit must be a positive number")
				return
			}
			limit = n
		}

		records, err := history.Recent(r.Context(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to read history")
			return
		}
		if records == nil {
			records = []models.HistoryRecord{}
		}
		writeJSON(w, http.StatusOK, records)
	}
}

func FormatsHandler(formats FormatLookup) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		url := r.URL.Query().Get("url")
		if !utils.ValidateLocator(url) {
			writeError(w, http.StatusBadRequest, "invalid YouTube URL")
			return
		}

		info, err := formats.Fetch(r.Context(), url)
		if err != nil {
			writeError(w, http.StatusBadGateway, "Error fetching formats: "+err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"title":   info.Title,
			"presets": presets.Estimates(info.Formats),
		})
	}
}
