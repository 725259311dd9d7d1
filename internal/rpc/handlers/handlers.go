package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Method string
type Path string

var (
	HTTP_GET    Method = "GET"
	HTTP_POST   Method = "POST"
	HTTP_PUT    Method = "PUT"
	HTTP_DELETE Method = "DELETE"
)

func CreateApiV1Path(path string) Path {
	if len(path) > 0 && path[0] == '/' {
		path = path[1:]
	}
	return Path("/api/v1/" + path)
}

type HandlerFunc func(r *http.Request) (any, error)

type MethodHandlers map[Path]map[Method]HandlerFunc

// Created marks a response body that should be sent with 201.
type Created struct {
	Body any
}

// HTTPError carries the status a failed request is answered with.
type HTTPError struct {
	Status  int
	Message string
	Err     error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

func badRequest(err error) error {
	return &HTTPError{Status: http.StatusBadRequest, Message: "bad request", Err: err}
}

type errorResponse struct {
	Error string `json:"error"`
}

// SetupHandlers registers every path and method on the router. Unknown
// methods on a known path answer 405.
func SetupHandlers(r chi.Router, handlers MethodHandlers) {
	for path, methodHandlers := range handlers {
		for method, handler := range methodHandlers {
			r.Method(string(method), string(path), serve(handler))
		}
	}
}

func serve(handler HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := handler(r)
		if err != nil {
			status := statusFor(err)
			if status >= http.StatusInternalServerError {
				zap.L().Error("failed to handle request", zap.String("path", r.URL.Path), zap.Error(err))
			}
			writeJSON(w, status, errorResponse{Error: err.Error()})
			return
		}
		status := http.StatusOK
		if created, ok := resp.(Created); ok {
			status = http.StatusCreated
			resp = created.Body
		}
		writeJSON(w, status, resp)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	if body == nil {
		w.WriteHeader(status)
		return
	}
	b, err := json.Marshal(body)
	if err != nil {
		zap.L().Error("failed to encode response", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(status)
	_, _ = w.Write(append(b, '\n'))
}

func statusFor(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status
	}
	for _, m := range errorStatuses {
		for _, target := range m.errs {
			if errors.Is(err, target) {
				return m.status
			}
		}
	}
	return http.StatusInternalServerError
}
