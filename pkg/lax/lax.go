// Package lax implements tools for building easy RESTful APIs.
//
//	    ^ ^
//	("\(-_-)/")
//	)(       )(
//	((...) (...))
//
// Take it easy!
package lax

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// A flag for debugging the server.
var debug bool

// logger receives errors returned by handlers.
var logger = zap.NewNop()

// EnableDebugMode enables debugging for the API, so debug output is printed.
func EnableDebugMode() {
	debug = true
}

// DisableDebugMode disables debugging for the API, so debug output is hidden.
func DisableDebugMode() {
	debug = false
}

// DebugModeEnabled returns `true` if debug mode is enabled.
func DebugModeEnabled() bool {
	return debug
}

// SetLogger sets the logger used for errors returned by handlers.
func SetLogger(newLogger *zap.Logger) {
	if newLogger == nil {
		newLogger = zap.NewNop()
	}

	logger = newLogger
}

// Request wraps http.Request to provide convenience methods.
type Request struct {
	*http.Request
}

// JSON loads JSON data from a request into the given address.
//
// Unknown fields are rejected so typos in requests are not silently ignored.
func (request *Request) JSON(ptr any) error {
	decoder := json.NewDecoder(request.Body)
	decoder.DisallowUnknownFields()

	return decoder.Decode(ptr)
}

// Var returns a path variable from the route.
func (request *Request) Var(name string) string {
	return mux.Vars(request.Request)[name]
}

// QueryInt reads an integer query parameter, or returns fallback when it is
// missing or not a number.
func (request *Request) QueryInt(name string, fallback int) int {
	value, err := strconv.Atoi(request.URL.Query().Get(name))

	if err != nil {
		return fallback
	}

	return value
}

// MethodHandler is a handle for an HTTP method.
type MethodHandler = func(request *Request) any

// View represents a view for a RESTful API.
type View struct {
	// The handler for HEAD requests.
	Head MethodHandler
	// The handler for GET requests.
	Get MethodHandler
	// The handler for POST requests.
	Post MethodHandler
	// The handler for PUT requests.
	Put MethodHandler
	// The handler for DELETE requests.
	Delete MethodHandler
}

// Response represents a response to return.
type Response struct {
	Status int
	Data   any
}

// IssueDescription is an issue created with Issue.
type IssueDescription struct {
	Path    string `json:"path"`
	Problem string `json:"problem"`
}

// Issue creates an issue for use with MakeErrorListResponse.
func Issue(path, problem string) IssueDescription {
	return IssueDescription{path, problem}
}

// MakeResponse creates a response with a status code and data.
func MakeResponse(status int, data any) *Response {
	return &Response{status, data}
}

// MakeBadRequestResponse creates a 400 error response from one object.
func MakeBadRequestResponse(data any) *Response {
	switch v := data.(type) {
	case error:
		// Get the string from errors for 400 responses.
		return &Response{http.StatusBadRequest, v.Error()}
	default:
		return &Response{http.StatusBadRequest, v}
	}
}

// MakeErrorListResponse creates a 400 error response from parts.
func MakeErrorListResponse(parts ...IssueDescription) *Response {
	return &Response{http.StatusBadRequest, parts}
}

// MakeNotFoundResponse creates a 404 response.
func MakeNotFoundResponse() *Response {
	return &Response{http.StatusNotFound, "Not Found"}
}

// A default handler for handling methods that are not allowed.
func methodNotAllowedHandler(request *Request) any {
	return &Response{http.StatusMethodNotAllowed, "Method Not Allowed"}
}

// Get the pointer to the handler for the HTTP request method.
func dispatch(view *View, requestMethod string) (MethodHandler, int) {
	var handler MethodHandler
	defaultStatus := http.StatusOK

	switch strings.ToUpper(requestMethod) {
	case http.MethodGet:
		handler = view.Get
	case http.MethodPost:
		handler = view.Post
		defaultStatus = http.StatusCreated
	case http.MethodPut:
		handler = view.Put
	case http.MethodDelete:
		handler = view.Delete
		defaultStatus = http.StatusNoContent
	case http.MethodHead:
		handler = view.Head
	}

	if handler == nil {
		handler = methodNotAllowedHandler
		defaultStatus = http.StatusMethodNotAllowed
	}

	return handler, defaultStatus
}

// Normalise response data so we can consume it.
func normalise(response any, defaultStatus int) (*Response, error) {
	switch v := response.(type) {
	case *Response:
		return v, nil
	case error:
		return &Response{http.StatusInternalServerError, nil}, v
	default:
		return &Response{defaultStatus, v}, nil
	}
}

// Wrap creates an HandlerFunc from a View.
func Wrap(view View) http.HandlerFunc {
	return func(writer http.ResponseWriter, httpRequest *http.Request) {
		request := Request{httpRequest}
		method, defaultStatus := dispatch(&view, request.Method)
		response, responseErr := normalise(method(&request), defaultStatus)

		if responseErr != nil {
			logger.Error("api handler failed",
				zap.String("method", request.Method),
				zap.String("path", request.URL.Path),
				zap.Error(responseErr),
			)

			if response.Status < 500 || debug {
				http.Error(writer, responseErr.Error(), response.Status)
			} else {
				http.Error(writer, "Internal Server Error", response.Status)
			}

			return
		}

		if response.Status == http.StatusNoContent {
			writer.WriteHeader(response.Status)

			return
		}

		var buffer bytes.Buffer
		outputEncoder := json.NewEncoder(&buffer)
		outputEncoder.SetEscapeHTML(false)

		if err := outputEncoder.Encode(response.Data); err != nil {
			logger.Error("api response encoding failed", zap.Error(err))

			if debug {
				http.Error(writer, err.Error(), http.StatusInternalServerError)
			} else {
				http.Error(
					writer,
					"Internal Server Error",
					http.StatusInternalServerError,
				)
			}

			return
		}

		writer.Header().Set("Content-Type", "application/json")
		writer.WriteHeader(response.Status)
		writer.Write(buffer.Bytes())
	}
}
