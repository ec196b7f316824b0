package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/soyeahso/ochre/internal/domain"
	"github.com/soyeahso/ochre/internal/store"
	"github.com/soyeahso/ochre/internal/todos"
	"github.com/soyeahso/ochre/internal/version"
	"github.com/soyeahso/ochre/internal/vfs"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func queryLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

// handleNotFound returns a 404 for unknown routes.
func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "not found",
		"path":  r.URL.Path,
	})
}

// Sessions

type createSessionBody struct {
	Title string `json:"title"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var body createSessionBody
	if !decodeBody(w, r, &body) {
		return
	}
	sess, err := s.sessions.CreateSession(strings.TrimSpace(body.Title))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": sess})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.sessions.ListSessions(queryLimit(r, 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sessions == nil {
		sessions = []domain.Session{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess, err := s.sessions.GetSession(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sess == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	msgs, err := s.sessions.ListMessages(id, queryLimit(r, 200))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": sess, "messages": msgs})
}

// Settings

type settingsBody struct {
	DefaultModel string `json:"defaultModel"`
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	model, err := s.settings.DefaultModel()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, settingsBody{DefaultModel: model})
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var body settingsBody
	if !decodeBody(w, r, &body) {
		return
	}
	model := strings.TrimSpace(body.DefaultModel)
	if model == "" {
		writeError(w, http.StatusBadRequest, "defaultModel is required")
		return
	}
	if err := s.settings.Set(store.SettingDefaultModel, model); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, settingsBody{DefaultModel: model})
}

// Todos

func todosResponse(w http.ResponseWriter, day string, tasks []todos.Task, err error) {
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if tasks == nil {
		tasks = []todos.Task{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"day": day, "tasks": tasks})
}

func (s *Server) handleTodosToday(w http.ResponseWriter, r *http.Request) {
	day := todos.Today()
	tasks, err := s.todos.EnsureDay(day)
	todosResponse(w, day, tasks, err)
}

type todosAddBody struct {
	Text string `json:"text"`
}

func (s *Server) handleTodosAdd(w http.ResponseWriter, r *http.Request) {
	var body todosAddBody
	if !decodeBody(w, r, &body) {
		return
	}
	day := todos.Today()
	tasks, err := s.todos.AddTask(day, body.Text)
	todosResponse(w, day, tasks, err)
}

type todosSetDoneBody struct {
	ID   string `json:"id"`
	Done bool   `json:"done"`
}

func (s *Server) handleTodosSetDone(w http.ResponseWriter, r *http.Request) {
	var body todosSetDoneBody
	if !decodeBody(w, r, &body) {
		return
	}
	day := todos.Today()
	tasks, err := s.todos.SetDone(day, body.ID, body.Done)
	todosResponse(w, day, tasks, err)
}

type todosDeleteBody struct {
	ID string `json:"id"`
}

func (s *Server) handleTodosDelete(w http.ResponseWriter, r *http.Request) {
	var body todosDeleteBody
	if !decodeBody(w, r, &body) {
		return
	}
	day := todos.Today()
	tasks, err := s.todos.DeleteTask(day, body.ID)
	todosResponse(w, day, tasks, err)
}

// Virtual filesystem

func (s *Server) handleFsList(w http.ResponseWriter, r *http.Request) {
	listing, err := s.router.List(r.Context(), r.URL.Query().Get("path"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func (s *Server) handleFsRead(w http.ResponseWriter, r *http.Request) {
	maxBytes := vfs.DefaultMaxReadBytes
	if raw := r.URL.Query().Get("max_bytes"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			maxBytes = n
		}
	}
	file, err := s.router.Read(r.Context(), r.URL.Query().Get("path"), maxBytes)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, file)
}

func (s *Server) handleFsTree(w http.ResponseWriter, r *http.Request) {
	tree, err := s.router.Tree(r.Context(), r.URL.Query().Get("path"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"tree": tree})
}

type fsWriteBody struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

func (s *Server) handleFsWrite(w http.ResponseWriter, r *http.Request) {
	var body fsWriteBody
	if !decodeBody(w, r, &body) {
		return
	}
	res, err := s.router.Write(r.Context(), body.Path, body.Content)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type fsMoveBody struct {
	FromPath string `json:"fromPath"`
	ToPath   string `json:"toPath"`
}

func (s *Server) handleFsMove(w http.ResponseWriter, r *http.Request) {
	var body fsMoveBody
	if !decodeBody(w, r, &body) {
		return
	}
	res, err := s.router.Move(r.Context(), body.FromPath, body.ToPath)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}
