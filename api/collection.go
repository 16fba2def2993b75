package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/xraph/catcher"
	"github.com/xraph/catcher/event"
)

// Query parameters of the list endpoints.
const (
	paramPageSize  = "pageSize"
	paramNextToken = "nextToken"
)

func (h *Handler) listCollection(w http.ResponseWriter, r *http.Request) {
	size, err := h.pageSize(r)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}

	pg, err := h.catcher.List(r.Context(), r.PathValue("collectionKey"), size, r.URL.Query().Get(paramNextToken))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, pg)
}

// listStream serves the same pages as listCollection, addressed by path
// segments instead of a collection key.
func (h *Handler) listStream(w http.ResponseWriter, r *http.Request) {
	size, err := h.pageSize(r)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}

	str := event.Stream{TenantID: r.PathValue("tenantId"), Target: r.PathValue("target")}
	pg, err := h.catcher.ListStream(r.Context(), str, size, r.URL.Query().Get(paramNextToken))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, pg)
}

// pageSize parses the pageSize query parameter. An absent parameter selects
// the default size; anything that is not a positive integer is rejected.
func (h *Handler) pageSize(r *http.Request) (int, error) {
	v := r.URL.Query().Get(paramPageSize)
	if v == "" {
		return h.catcher.DefaultPageSize(), nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", catcher.ErrInvalidPageSize, v)
	}
	return n, nil
}
