package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemo/pkg/domain/model"
	"github.com/secmon-lab/mnemo/pkg/domain/types"
	"github.com/secmon-lab/mnemo/pkg/usecase"
	"github.com/secmon-lab/mnemo/pkg/utils/errutil"
)

func respondJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "failed to marshal response"), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data) //nolint:errcheck // header already committed
}

// handleUseCaseError maps use case sentinel errors to HTTP status codes.
func handleUseCaseError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, usecase.ErrUserIDRequired),
		errors.Is(err, usecase.ErrEmptyMessage),
		errors.Is(err, usecase.ErrEmptyContent),
		errors.Is(err, usecase.ErrEmptyQuery):
		errutil.HandleHTTP(r.Context(), w, err, http.StatusBadRequest)
	case errors.Is(err, usecase.ErrMemoryNotFound):
		errutil.HandleHTTP(r.Context(), w, err, http.StatusNotFound)
	default:
		errutil.HandleHTTP(r.Context(), w, err, http.StatusInternalServerError)
	}
}

// chatHandler runs a single blocking chat turn
func chatHandler(uc *usecase.UseCases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req model.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "failed to decode chat request"), http.StatusBadRequest)
			return
		}

		resp, err := uc.Chat(r.Context(), &req)
		if err != nil {
			handleUseCaseError(w, r, err)
			return
		}

		respondJSON(w, r, http.StatusOK, resp)
	}
}

// listMemoriesHandler returns all memories of a user, newest first
func listMemoriesHandler(uc *usecase.UseCases) http.HandlerFunc {
	type response struct {
		Memories []*model.Memory `json:"memories"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		memories, err := uc.ListMemories(r.Context(), r.URL.Query().Get("user_id"))
		if err != nil {
			handleUseCaseError(w, r, err)
			return
		}
		if memories == nil {
			memories = []*model.Memory{}
		}

		respondJSON(w, r, http.StatusOK, response{Memories: memories})
	}
}

// createMemoryHandler registers a memory directly, bypassing extraction
func createMemoryHandler(uc *usecase.UseCases) http.HandlerFunc {
	type request struct {
		UserID     string  `json:"user_id"`
		Content    string  `json:"content"`
		Kind       string  `json:"kind"`
		Importance float64 `json:"importance"`
	}
	type response struct {
		Memory  *model.Memory `json:"memory"`
		Created bool          `json:"created"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "failed to decode memory request"), http.StatusBadRequest)
			return
		}

		memory, created, err := uc.Remember(r.Context(), req.UserID, req.Content, types.ParseMemoryKind(req.Kind), req.Importance)
		if err != nil {
			handleUseCaseError(w, r, err)
			return
		}

		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		respondJSON(w, r, status, response{Memory: memory, Created: created})
	}
}

// deleteMemoryHandler forgets a single memory
func deleteMemoryHandler(uc *usecase.UseCases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		memoryID := model.MemoryID(chi.URLParam(r, "memoryID"))

		if err := uc.Forget(r.Context(), r.URL.Query().Get("user_id"), memoryID); err != nil {
			handleUseCaseError(w, r, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// searchMemoriesHandler performs semantic search over a user's memories
func searchMemoriesHandler(uc *usecase.UseCases) http.HandlerFunc {
	type response struct {
		Memories []*model.Memory `json:"memories"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			parsed, err := strconv.Atoi(v)
			if err != nil {
				errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "invalid limit", goerr.V("limit", v)), http.StatusBadRequest)
				return
			}
			limit = parsed
		}

		memories, err := uc.SearchMemories(r.Context(),
			r.URL.Query().Get("user_id"),
			r.URL.Query().Get("q"),
			limit)
		if err != nil {
			handleUseCaseError(w, r, err)
			return
		}
		if memories == nil {
			memories = []*model.Memory{}
		}

		respondJSON(w, r, http.StatusOK, response{Memories: memories})
	}
}

// dedupMemoriesHandler removes duplicated memories of a user
func dedupMemoriesHandler(uc *usecase.UseCases) http.HandlerFunc {
	type request struct {
		UserID string `json:"user_id"`
	}
	type response struct {
		Removed int `json:"removed"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "failed to decode dedup request"), http.StatusBadRequest)
			return
		}

		removed, err := uc.DedupSweep(r.Context(), req.UserID)
		if err != nil {
			handleUseCaseError(w, r, err)
			return
		}

		respondJSON(w, r, http.StatusOK, response{Removed: removed})
	}
}
