// Package middleware carries the HTTP cross-cutting concerns of the
// gateway: request logging and CORS.
package middleware

import (
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"
)

type statusResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusResponseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// WithLogging logs every request with its resulting status code, at a
// level matching the outcome class.
func WithLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		// WriteHeader is not called on implicit 200 OK responses, so
		// that is the default.
		srw := &statusResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(srw, req)

		entry := log.WithFields(log.Fields{
			"remoteAddr": req.RemoteAddr,
			"statusCode": srw.statusCode,
			"method":     req.Method,
			"path":       req.URL.Path,
		})
		msg := fmt.Sprintf("%s %s %d", req.Method, req.URL.Path, srw.statusCode)

		switch {
		case srw.statusCode < 400:
			entry.Info(msg)
		case srw.statusCode < 500:
			entry.Warn(msg)
		default:
			entry.Error(msg)
		}
	})
}

// CORSHandler allows the browser frontend to call the gateway from a
// different origin.
func CORSHandler() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, PATCH, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization")

			// Preflight requests end here.
			if r.Method == http.MethodOptions {
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
