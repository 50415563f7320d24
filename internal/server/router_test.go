package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type routesHandler struct{ body string }

func (h routesHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) { w.Write([]byte(h.body)) }
func (h routesHandler) Routes() []string { return []string{"GET /a", "GET /b"} }

func TestBasicRouter(t *testing.T) {
	t.Run("Middleware Order", func(t *testing.T) {
		var order []string
		mark := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		r := NewBasicRouter()
		r.Use(mark("first"), mark("second"))
		r.Handle(http.MethodGet, "/x", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			order = append(order, "handler")
		}))

		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
		if got := strings.Join(order, ","); got != "first,second,handler" {
			t.Errorf("unexpected order %s", got)
		}
	})

	t.Run("Method Mismatch", func(t *testing.T) {
		r := NewBasicRouter()
		r.Handle(http.MethodGet, "/x", http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/x", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})

	t.Run("Path Values", func(t *testing.T) {
		r := NewBasicRouter()
		r.Handle(http.MethodGet, "/items/{id}", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			w.Write([]byte(req.PathValue("id")))
		}))

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/42", nil))
		if rec.Body.String() != "42" {
			t.Errorf("expected path value 42, got %q", rec.Body.String())
		}
	})

	t.Run("Handler Routes", func(t *testing.T) {
		r := NewBasicRouter()
		r.Handler(routesHandler{body: "ok"})

		for _, path := range []string{"/a", "/b"} {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
			if rec.Body.String() != "ok" {
				t.Errorf("%s: expected ok, got %q", path, rec.Body.String())
			}
		}
	})
}
