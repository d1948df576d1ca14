package visual

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// MosaicRequest is the body the coordinator's REST connector posts.
type MosaicRequest struct {
	Type string `json:"type"`
	SQL  string `json:"sql"`
}

// Handler serves the coordinator's REST connector protocol. JSON queries
// return the row array, exec statements return an empty 200, and Arrow
// responses are not supported.
func (c *Connector) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req MosaicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
			return
		}

		switch req.Type {
		case "json", "":
			tbl, err := c.Query(r.Context(), req.SQL)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			if err := json.NewEncoder(w).Encode(tbl); err != nil {
				c.logger.Error("failed to write mosaic response", "error", err)
			}
		case "exec":
			if _, err := c.Query(r.Context(), req.SQL); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusOK)
		case "arrow":
			http.Error(w, "arrow responses are not supported, use type json", http.StatusBadRequest)
		default:
			http.Error(w, fmt.Sprintf("unknown query type %q", req.Type), http.StatusBadRequest)
		}
	})
}
