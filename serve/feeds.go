package serve

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"hastycam/config"
	"hastycam/feed"
	"hastycam/validate"

	log "github.com/sirupsen/logrus"
)

const maxBodySize = 1 << 20

// FeedServer exposes the stored feeds over HTTP.
type FeedServer struct {
	Store *config.Store
}

func (s *FeedServer) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/feed/", s.handleFeed)
	mux.HandleFunc("/feed/delete", s.handleDelete)
	mux.HandleFunc("/feeds", s.handleList)
	mux.HandleFunc("/config", s.handleExport)
}

func (s *FeedServer) handleFeed(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleGet(w, r)
	case http.MethodPost:
		s.handleSave(w, r)
	case http.MethodPatch:
		s.handlePatch(w, r)
	default:
		http.Error(w, "Invalid request method", http.StatusMethodNotAllowed)
	}
}

func (s *FeedServer) handleGet(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	f, ok, err := s.Store.Feed(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, fmt.Sprintf("No feed found for id %v", id), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// handleSave creates a feed, or replaces the one with the same id.
func (s *FeedServer) handleSave(w http.ResponseWriter, r *http.Request) {
	body, m, ok := readObject(w, r)
	if !ok {
		return
	}
	if errs := feed.Validate(m); len(errs) > 0 {
		rejectInvalid(w, r, errs)
		return
	}
	var f feed.Feed
	if err := json.Unmarshal(body, &f); err != nil {
		rejectDecode(w, r, err)
		return
	}
	s.save(w, r, f)
}

// handlePatch lays the request fields over the stored feed.
func (s *FeedServer) handlePatch(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	base, ok, err := s.Store.Feed(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, fmt.Sprintf("No feed found for id %v", id), http.StatusNotFound)
		return
	}
	body, patch, ok := readObject(w, r)
	if !ok {
		return
	}

	m, err := toMap(base)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	for k, v := range patch {
		m[k] = v
	}
	m[feed.FieldID] = id
	if errs := feed.Validate(m); len(errs) > 0 {
		rejectInvalid(w, r, errs)
		return
	}

	f, err := base.Merge(body)
	if err != nil {
		rejectDecode(w, r, err)
		return
	}
	f.ID = id
	s.save(w, r, f)
}

func (s *FeedServer) save(w http.ResponseWriter, r *http.Request, f feed.Feed) {
	err := s.Store.SaveFeed(f)
	var errs validate.Errors
	switch {
	case errors.As(err, &errs):
		rejectInvalid(w, r, errs)
		return
	case err != nil:
		log.WithField("feed", f.ID).Errorf("Failed to save feed: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	log.WithField("feed", f.ID).Infof("Saved feed %q", f.Name)
	writeJSON(w, http.StatusOK, f)
}

func (s *FeedServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Invalid request method", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id := r.Form.Get("id")
	ok, err := s.Store.DeleteFeed(id)
	if err != nil {
		log.WithField("feed", id).Errorf("Failed to delete feed: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, fmt.Sprintf("No feed found for id %v", id), http.StatusNotFound)
		return
	}
	log.WithField("feed", id).Info("Deleted feed")
	w.WriteHeader(http.StatusNoContent)
}

func (s *FeedServer) handleList(w http.ResponseWriter, r *http.Request) {
	feeds, err := s.Store.Feeds()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, feeds)
}

func (s *FeedServer) handleExport(w http.ResponseWriter, r *http.Request) {
	c, err := s.Store.All()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// readObject reads a JSON object body, keeping both the raw bytes and the
// loosely typed form used for validation.
func readObject(w http.ResponseWriter, r *http.Request) ([]byte, validate.Map, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, nil, false
	}
	m := validate.Map{}
	if err := json.Unmarshal(body, &m); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, nil, false
	}
	return body, m, true
}

func toMap(f feed.Feed) (validate.Map, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	m := validate.Map{}
	return m, json.Unmarshal(b, &m)
}

func rejectInvalid(w http.ResponseWriter, r *http.Request, errs validate.Errors) {
	for _, e := range errs {
		validationFailures.WithLabelValues(e.Field).Inc()
	}
	log.WithField("addr", r.RemoteAddr).Infof("Rejected feed with %d validation errors", len(errs))
	writeJSON(w, http.StatusBadRequest, errs)
}

// rejectDecode reports a field that passed validation but still does not fit
// the Feed type, such as 5.0 for videoQuality, as a validation error.
func rejectDecode(w http.ResponseWriter, r *http.Request, err error) {
	var te *json.UnmarshalTypeError
	if errors.As(err, &te) && te.Field != "" {
		rejectInvalid(w, r, validate.Errors{{
			Field:   te.Field,
			Message: fmt.Sprintf("%s must be of type %s.", te.Field, te.Type),
		}})
		return
	}
	http.Error(w, err.Error(), http.StatusBadRequest)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Errorf("Failed to write response: %v", err)
	}
}
