package web

import (
	"errors"
	"net/http"
	"strconv"

	"superlists/internal/lists"

	"go.uber.org/zap"
)

// Form field names. new_item is what the first iterations of the form posted.
const (
	fieldItemText   = "item_text"
	fieldLegacyText = "new_item"
)

// pageData is the model shared by all templates.
type pageData struct {
	FormAction string
	Error      string
	List       *lists.List
	Items      []lists.Item
}

func formText(r *http.Request) string {
	if v := r.PostFormValue(fieldItemText); v != "" {
		return v
	}
	return r.PostFormValue(fieldLegacyText)
}

// homePage renders the landing page with the new-list form.
func (s *Server) homePage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, pageHome, pageData{FormAction: "/lists/new"})
}

// newList creates a list with its first item and redirects to it.
func (s *Server) newList(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.NewList(r.Context(), formText(r))
	switch {
	case errors.Is(err, lists.ErrEmptyItem):
		s.render(w, r, http.StatusBadRequest, pageHome, pageData{
			FormAction: "/lists/new",
			Error:      lists.EmptyItemMessage,
		})
		return
	case err != nil:
		s.serverError(w, r, err)
		return
	}
	http.Redirect(w, r, list.URL(), http.StatusFound)
}

// viewList renders a list's items numbered by position.
func (s *Server) viewList(w http.ResponseWriter, r *http.Request) {
	id, ok := s.listID(w, r)
	if !ok {
		return
	}
	page, err := s.svc.View(r.Context(), id)
	if err != nil {
		s.lookupError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, pageList, listPage(page, ""))
}

// addItem appends an item to an existing list and redirects back to it.
func (s *Server) addItem(w http.ResponseWriter, r *http.Request) {
	id, ok := s.listID(w, r)
	if !ok {
		return
	}
	_, err := s.svc.AddItem(r.Context(), id, formText(r))
	switch {
	case errors.Is(err, lists.ErrEmptyItem):
		page, viewErr := s.svc.View(r.Context(), id)
		if viewErr != nil {
			s.lookupError(w, r, viewErr)
			return
		}
		s.render(w, r, http.StatusBadRequest, pageList, listPage(page, lists.EmptyItemMessage))
		return
	case err != nil:
		s.lookupError(w, r, err)
		return
	}
	http.Redirect(w, r, (lists.List{ID: id}).URL(), http.StatusFound)
}

// appendSlash redirects /lists/<id> to the canonical /lists/<id>/.
func (s *Server) appendSlash(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, r.URL.Path+"/", http.StatusMovedPermanently)
}

// healthz reports whether the database answers.
func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			s.log.Warn("health check failed", zap.Error(err))
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func listPage(page lists.Page, errMsg string) pageData {
	list := page.List
	return pageData{
		FormAction: list.URL() + "add_item",
		Error:      errMsg,
		List:       &list,
		Items:      page.Items,
	}
}

// listID parses the {id} path segment; malformed ids are answered with 404.
func (s *Server) listID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		s.notFound(w, r)
		return 0, false
	}
	return id, true
}

func (s *Server) lookupError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, lists.ErrNotFound) {
		s.notFound(w, r)
		return
	}
	s.serverError(w, r, err)
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusNotFound, pageNotFound, pageData{FormAction: "/lists/new"})
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, err error) {
	s.log.Error("request failed",
		zap.Error(err),
		zap.String("path", r.URL.Path),
		zap.String("request_id", RequestID(r.Context())))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, page string, data pageData) {
	if err := s.renderer.Render(w, status, page, data); err != nil {
		s.serverError(w, r, err)
	}
}
