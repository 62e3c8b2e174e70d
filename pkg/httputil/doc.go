// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Overview
//
// This package offers the JSON encoding/decoding helpers, error responses,
// and middleware the API handlers are built on. The surface is intentionally
// small: only the helpers the handlers reach for live here.
//
// # Response Helpers
//
// JSON responses:
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteSuccess(w, status)
//	httputil.WriteNoContent(w)
//
// Error responses:
//
//	httputil.WriteValidationError(w, "user_id is required")
//	httputil.WriteNotFoundError(w, "no welcome grant")
//	httputil.WriteInternalError(w, err)
//
// # Request Parsing
//
//	var req IssueGrantRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//
// Path parameters come straight from mux.Vars in the handlers.
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RecoveryMiddleware,
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware,
//		httputil.MaxBytesMiddleware(1024*1024), // 1MB
//	)
//
// # Related Packages
//
//   - pkg/api: HTTP handlers built on these helpers
//   - pkg/observability: Prometheus-instrumented middleware
package httputil
