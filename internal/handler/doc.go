// Package handler implements the HTTP API of the virtual network server.
//
// NetworkHandler serves the mirror: the full element list, the initial
// population, expand and collapse, the outstanding expansions, exports and
// the treemap builder. NewRouter registers those routes together with the
// event stream, /healthz and /metrics and wraps them in the middleware
// chain (panic recovery, request IDs, access logging, CORS, metrics).
//
// # Response Format
//
// Success responses are JSON. Mutations answer {message, result}. Errors are
// returned as {error, details}; malformed input and unknown node kinds are
// 400, neighbor source failures 500, and source timeouts 504.
package handler
