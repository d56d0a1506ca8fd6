package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kroma-labs/transit-go/fanout"
	"github.com/kroma-labs/transit-go/httpserver"
)

const (
	msgPartial   = "partial data"
	msgAllFailed = "all mirrors failed"
)

func (rt *Router) simsVehicles(w http.ResponseWriter, r *http.Request) {
	writeOutcome(rt, w, r, "sims_vehicles", rt.sims.Vehicles(r.Context()))
}

func (rt *Router) simsBusStops(w http.ResponseWriter, r *http.Request) {
	writeOutcome(rt, w, r, "sims_bus_stops", rt.sims.BusStops(r.Context()))
}

func (rt *Router) simsTimetable(w http.ResponseWriter, r *http.Request) {
	writeOutcome(rt, w, r, "sims_timetable", rt.sims.Timetable(r.Context(), chi.URLParam(r, "code")))
}

// writeOutcome answers 200 while at least one mirror delivered, listing the
// failed mirrors in errors, and 502 once every mirror failed.
func writeOutcome[T any](rt *Router, w http.ResponseWriter, r *http.Request, resource string, o fanout.Outcome[T]) {
	errs := make([]httpserver.Error, 0, len(o.Errors))
	for _, he := range o.Errors {
		errs = append(errs, httpserver.Error{Field: he.Host, Message: he.Stage.String() + ": " + he.Err.Error()})
	}

	if o.Failed() {
		rt.metrics.failed.WithLabelValues(resource, "all_mirrors").Inc()
		rt.logger.Error().
			Err(o.Err()).
			Str("resource", resource).
			Str("request_id", httpserver.RequestIDFromContext(r.Context())).
			Msg("every mirror failed")

		httpserver.WriteJSON(w, http.StatusBadGateway, httpserver.Response[*Items[T]]{
			Errors:  errs,
			Message: msgAllFailed,
		})
		return
	}

	items := o.Items
	if items == nil {
		items = []T{}
	}
	resp := httpserver.Response[*Items[T]]{Data: &Items[T]{Items: items}}
	if o.Degraded() {
		rt.metrics.degraded.WithLabelValues(resource).Inc()
		resp.Errors = errs
		resp.Message = msgPartial
	}
	httpserver.WriteJSON(w, http.StatusOK, resp)
}
