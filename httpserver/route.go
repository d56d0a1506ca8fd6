package httpserver

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// unmatchedRoute labels requests no chi route matched.
const unmatchedRoute = "unmatched"

// withRouteContext makes sure r carries a chi routing context. A chi router
// further down reuses it instead of allocating its own, so the matched
// pattern is visible here once the handler returns.
func withRouteContext(r *http.Request) (*http.Request, *chi.Context) {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return r, rctx
	}
	rctx := chi.NewRouteContext()
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx)), rctx
}

// routeOf returns the matched route pattern, such as
// "/v1/sims/stops/{code}/timetable". Raw paths would give every stop code
// its own metric series.
func routeOf(rctx *chi.Context) string {
	if p := rctx.RoutePattern(); p != "" {
		return p
	}
	return unmatchedRoute
}
