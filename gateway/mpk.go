package gateway

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kroma-labs/transit-go/httpserver"
	"github.com/kroma-labs/transit-go/mpk"
)

// Items is the data of every list route.
type Items[T any] struct {
	// Metadata is the leading string of a positional batch, such as the
	// timestamp MPK stamps on vehicle positions.
	Metadata string `json:"metadata,omitempty"`
	Items    []T    `json:"items"`
}

func (rt *Router) mpkPositions(w http.ResponseWriter, r *http.Request) {
	p, err := rt.mpk.Positions(r.Context())
	if err != nil {
		rt.writeMPKError(w, r, "mpk_positions", err)
		return
	}
	writeItems(w, p.Records, p.Metadata)
}

func (rt *Router) mpkPostInfo(w http.ResponseWriter, r *http.Request) {
	stops, err := rt.mpk.PostInfo(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		rt.writeMPKError(w, r, "mpk_post_info", err)
		return
	}
	writeItems(w, stops, "")
}

func (rt *Router) mpkCoursePosts(w http.ResponseWriter, r *http.Request) {
	var ids []string
	for _, id := range strings.Split(r.URL.Query().Get("ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		httpserver.WriteError(w, http.StatusBadRequest, "invalid request",
			httpserver.Error{Field: "ids", Message: "is required"})
		return
	}

	courses, err := rt.mpk.CoursePosts(r.Context(), ids)
	if err != nil {
		rt.writeMPKError(w, r, "mpk_course_posts", err)
		return
	}
	writeItems(w, courses, "")
}

func (rt *Router) mpkPostPlate(w http.ResponseWriter, r *http.Request) {
	plate, err := rt.mpk.PostPlate(r.Context(), chi.URLParam(r, "post"), chi.URLParam(r, "line"))
	if err != nil {
		rt.writeMPKError(w, r, "mpk_post_plate", err)
		return
	}
	httpserver.WriteSuccess[mpk.PostPlate](w, http.StatusOK, plate, "")
}

func writeItems[T any](w http.ResponseWriter, items []T, metadata string) {
	if items == nil {
		items = []T{}
	}
	httpserver.WriteSuccess(w, http.StatusOK, &Items[T]{Metadata: metadata, Items: items}, "")
}
