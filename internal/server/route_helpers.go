package server

import (
	"net/http"
	"sort"
	"strings"

	"github.com/ternarybob/tasker/internal/handlers"
)

// methods dispatches a single path by HTTP method. Unlisted methods get a JSON 405
// with an Allow header naming the supported ones.
type methods map[string]http.HandlerFunc

func (m methods) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if handler, ok := m[r.Method]; ok && handler != nil {
		handler(w, r)
		return
	}
	w.Header().Set("Allow", m.allow())
	handlers.WriteError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
}

func (m methods) allow() string {
	names := make([]string, 0, len(m))
	for method, handler := range m {
		if handler != nil {
			names = append(names, method)
		}
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// taskID extracts {id} from /api/tasks/{id}; nested paths yield ok=false
func taskID(path string) (string, bool) {
	id := strings.TrimSuffix(strings.TrimPrefix(path, "/api/tasks/"), "/")
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
