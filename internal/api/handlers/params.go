package handlers

import (
	"net/http"
	"strconv"
)

// pathID parses the {id} path value as a positive feedback id.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}

	return id, true
}

// queryFlag reports whether a boolean query parameter is "true" or "1".
func queryFlag(r *http.Request, name string) bool {
	v := r.URL.Query().Get(name)

	return v == "true" || v == "1"
}
