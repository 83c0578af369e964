package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"
)

type routePatternKey struct{}

// routePattern carries the matched mux pattern back upstream. Middleware
// between HTTPMetricsMiddleware and the mux may swap the request via
// WithContext, so the pattern cannot be read from the outer request; the
// shared holder survives those copies because it travels by pointer in the
// context.
type routePattern struct {
	value string
}

// HTTPMetricsMiddleware instruments requests with Prometheus metrics. The
// matched route pattern is preferred over the raw path so that IDs in the
// URL do not blow up label cardinality; pair it with CaptureRoutePattern
// mounted around the mux.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		holder := &routePattern{}
		r = r.WithContext(context.WithValue(r.Context(), routePatternKey{}, holder))

		ww := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(ww, r)
		dur := time.Since(start)

		path := holder.value
		if path == "" {
			path = r.URL.Path
		}
		ObserveHTTPRequest(r.Method, path, strconv.Itoa(ww.status), dur)
	})
}

// CaptureRoutePattern records the pattern the mux matched into the holder
// placed in the context by HTTPMetricsMiddleware. ServeMux sets r.Pattern
// in place on the request it dispatches, so wrapping the mux directly is
// enough.
func CaptureRoutePattern(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		if holder, ok := r.Context().Value(routePatternKey{}).(*routePattern); ok && r.Pattern != "" {
			holder.value = r.Pattern
		}
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
