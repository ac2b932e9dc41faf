package devserver

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type objectView struct {
	Id         string   `json:"id"`
	ObjectID   string   `json:"object_id"`
	RemoteAddr string   `json:"remote_addr"`
	Subs       []string `json:"subscriptions"`
}

// HandleGetDoc answers the document fetch the same way the hosted API does:
// 201 with the document as JSON.
func (s *Server) HandleGetDoc(w http.ResponseWriter, r *http.Request) {
	if !s.knownObject(w, r) {
		return
	}
	writeJSON(w, http.StatusCreated, s.coordinator.Document.Snapshot())
}

func (s *Server) HandleGetField(w http.ResponseWriter, r *http.Request) {
	if !s.knownObject(w, r) {
		return
	}
	v, ok := s.coordinator.Document.Get(r.PostFormValue("field"))
	if !ok {
		// Missing fields read as an empty body
		w.WriteHeader(http.StatusCreated)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (s *Server) knownObject(w http.ResponseWriter, r *http.Request) bool {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	if id := r.PostFormValue("id"); id == "" || !s.coordinator.allowed(id) {
		writeJSON(w, http.StatusForbidden, map[string]string{"message": "Forbidden"})
		return false
	}
	return true
}

func (s *Server) HandleDocument(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.coordinator.Document.Snapshot())
}

func (s *Server) HandleUpdateDocument(w http.ResponseWriter, r *http.Request) {
	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		http.Error(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return
	}
	s.coordinator.Document.Update(fields)
	reached := s.coordinator.Broker.Publish(fields)
	writeJSON(w, http.StatusOK, map[string]int{"subscribers": reached})
}

func (s *Server) HandleObjects(w http.ResponseWriter, r *http.Request) {
	conns := s.coordinator.Registry.List()
	res := make([]objectView, 0, len(conns))
	for _, conn := range conns {
		meta := conn.Meta()
		meta.Mu.RLock()
		view := objectView{Id: meta.Id, ObjectID: meta.ObjectID, RemoteAddr: meta.RemoteAddr, Subs: make([]string, 0, len(meta.Subs))}
		for field := range meta.Subs {
			view.Subs = append(view.Subs, field)
		}
		meta.Mu.RUnlock()
		res = append(res, view)
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) HandleRoutes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.coordinator.Routes())
}

func (s *Server) HandleActionResults(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.coordinator.ActionResults())
}

// HandleSendAction relays {"value": ...} to the action of a connected object.
func (s *Server) HandleSendAction(w http.ResponseWriter, r *http.Request) {
	objectID := chi.URLParam(r, "id")
	actionID := chi.URLParam(r, "action")
	var body struct {
		Value any `json:"value"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
			return
		}
	}
	if err := s.coordinator.SendAction(objectID, actionID, body.Value); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to write response", "error", err)
	}
}
