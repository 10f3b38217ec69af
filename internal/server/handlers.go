package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/conneroisu/markup/internal/errors"
	"github.com/conneroisu/markup/internal/middleware"
	"github.com/conneroisu/markup/internal/version"
)

// routeFor maps a request path to a page route: the trailing slash is
// dropped everywhere except the root.
func routeFor(urlPath string) string {
	if urlPath == "" || urlPath == "/" {
		return "/"
	}
	return strings.TrimSuffix(urlPath, "/")
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	page, err := s.library.RenderPage(ctx, routeFor(r.URL.Path), nil)
	if err != nil {
		var merr *errors.MarkupError
		if errors.As(err, &merr) && merr.Code == errors.ErrCodePageNotFound {
			http.NotFound(w, r)
			return
		}
		s.errors.Handle(ctx, err)
		middleware.InternalServerError(w)
		return
	}

	if s.live != nil {
		page, err = injectLiveReload(ctx, s.scripts, page)
		if err != nil {
			s.errors.Handle(ctx, err)
			middleware.InternalServerError(w)
			return
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write([]byte(page))
}

type healthResponse struct {
	Status     string    `json:"status"`
	Version    string    `json:"version"`
	Pages      int       `json:"pages"`
	Components int       `json:"components"`
	Clients    int       `json:"live_reload_clients"`
	Time       time.Time `json:"time"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{
		Status:  "ok",
		Version: version.Get().Short(),
		Pages:   len(s.library.Routes()),
		Time:    time.Now().UTC(),
	}
	if s.registry != nil {
		resp.Components = s.registry.Count()
	}
	if s.live != nil {
		resp.Clients = s.live.Clients()
	}
	writeJSON(w, resp)
}

type componentResponse struct {
	Name       string           `json:"name"`
	Source     string           `json:"source"`
	Parameters []parameterEntry `json:"parameters,omitempty"`
	Hash       string           `json:"hash,omitempty"`
}

type parameterEntry struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Optional bool   `json:"optional,omitempty"`
}

func (s *Server) handleComponents(w http.ResponseWriter, _ *http.Request) {
	list := []componentResponse{}
	if s.registry != nil {
		for _, info := range s.registry.GetAll() {
			entry := componentResponse{Name: info.Name, Source: info.Source, Hash: info.Hash}
			for _, p := range info.Parameters {
				entry.Parameters = append(entry.Parameters, parameterEntry{Name: p.Name, Type: p.Type, Optional: p.Optional})
			}
			list = append(list, entry)
		}
	}
	writeJSON(w, list)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_ = json.NewEncoder(w).Encode(v)
}
