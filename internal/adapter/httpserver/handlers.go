package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/VictoriaMetrics/metrics"
	"github.com/go-chi/chi/v5"

	"github.com/zequel-labs/zequel/internal/adapter/store"
	"github.com/zequel-labs/zequel/internal/core/domain"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// handleHealth always responds 200 while the process is up.
func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// handleMetrics exposes every registered counter in Prometheus text format,
// process metrics included.
func (s *Server) handleMetrics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w, true)
	}
}

func (s *Server) handleListConnections() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		configs, err := s.store.ListConnections(r.Context())
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		for i := range configs {
			redact(&configs[i])
		}
		s.writeJSON(w, http.StatusOK, configs)
	}
}

func (s *Server) handleSaveConnection() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cfg domain.ConnectionConfig
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := cfg.Validate(); err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := s.store.SaveConnection(r.Context(), cfg); err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeJSON(w, http.StatusCreated, map[string]string{"id": cfg.ID})
	}
}

func (s *Server) handleDeleteConnection() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		// Tear down any live session before dropping the saved record.
		s.manager.Disconnect(r.Context(), id)
		if err := s.store.DeleteConnection(r.Context(), id); err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleTestConnection() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cfg domain.ConnectionConfig
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		s.writeJSON(w, http.StatusOK, s.manager.TestConnection(r.Context(), cfg))
	}
}

// handleConnect connects using the request body config when given, falling
// back to the saved connection for the id.
func (s *Server) handleConnect() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var cfg *domain.ConnectionConfig
		if r.ContentLength > 0 {
			var body domain.ConnectionConfig
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				s.writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			body.ID = id
			cfg = &body
		} else {
			saved, err := s.store.GetConnectionConfig(r.Context(), id)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					s.writeError(w, http.StatusNotFound, "no saved connection for id "+id)
					return
				}
				s.writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			cfg = saved
		}

		if _, err := s.manager.Connect(r.Context(), *cfg); err != nil {
			s.writeError(w, http.StatusBadGateway, domain.ErrorMessage(err))
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"id": id, "connected": true})
	}
}

func (s *Server) handleDisconnect() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		disconnected := s.manager.Disconnect(r.Context(), id)
		s.writeJSON(w, http.StatusOK, map[string]bool{"disconnected": disconnected})
	}
}

func (s *Server) handleReconnect() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		ok := s.manager.Reconnect(r.Context(), id)
		s.writeJSON(w, http.StatusOK, map[string]bool{"reconnected": ok})
	}
}

func (s *Server) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		s.writeJSON(w, http.StatusOK, map[string]bool{"connected": s.manager.IsConnected(id)})
	}
}

func (s *Server) handleQuery() http.HandlerFunc {
	type request struct {
		Query string `json:"query"`
		Args  []any  `json:"args,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		drv := s.manager.GetConnection(id)
		if drv == nil {
			s.writeError(w, http.StatusConflict, domain.ErrNotConnected.Error())
			return
		}

		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		result, err := drv.Execute(r.Context(), req.Query, req.Args...)
		if err != nil {
			s.writeError(w, http.StatusUnprocessableEntity, domain.ErrorMessage(err))
			return
		}
		s.writeJSON(w, http.StatusOK, result)
	}
}

func (s *Server) handleCancelQuery() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		drv := s.manager.GetConnection(id)
		if drv == nil {
			s.writeError(w, http.StatusConflict, domain.ErrNotConnected.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]bool{"cancelled": drv.CancelQuery(r.Context())})
	}
}

func (s *Server) handleListDatabases() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		drv := s.manager.GetConnection(id)
		if drv == nil {
			s.writeError(w, http.StatusConflict, domain.ErrNotConnected.Error())
			return
		}
		names, err := drv.ListDatabases(r.Context())
		if err != nil {
			s.writeError(w, http.StatusUnprocessableEntity, domain.ErrorMessage(err))
			return
		}
		s.writeJSON(w, http.StatusOK, names)
	}
}

func (s *Server) handleListTables() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		drv := s.manager.GetConnection(id)
		if drv == nil {
			s.writeError(w, http.StatusConflict, domain.ErrNotConnected.Error())
			return
		}
		tables, err := drv.ListTables(r.Context())
		if err != nil {
			s.writeError(w, http.StatusUnprocessableEntity, domain.ErrorMessage(err))
			return
		}
		s.writeJSON(w, http.StatusOK, tables)
	}
}

func (s *Server) handleFetchRows() http.HandlerFunc {
	type request struct {
		Table   string              `json:"table"`
		Options domain.QueryOptions `json:"options"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		drv := s.manager.GetConnection(id)
		if drv == nil {
			s.writeError(w, http.StatusConflict, domain.ErrNotConnected.Error())
			return
		}

		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		result, err := drv.FetchRows(r.Context(), req.Table, req.Options)
		if err != nil {
			s.writeError(w, http.StatusUnprocessableEntity, domain.ErrorMessage(err))
			return
		}
		s.writeJSON(w, http.StatusOK, result)
	}
}

func (s *Server) handleQueryHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}
		entries, err := s.store.ListQueryHistory(r.Context(), id, limit)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, entries)
	}
}

// redact strips secrets before a config leaves the process boundary.
func redact(cfg *domain.ConnectionConfig) {
	cfg.Password = ""
	if cfg.SSH != nil {
		ssh := *cfg.SSH
		ssh.Password = ""
		ssh.PrivateKey = ""
		ssh.Passphrase = ""
		cfg.SSH = &ssh
	}
}
