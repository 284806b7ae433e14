package placeholder

import (
	"net/http"
)

// Context carries the request (and, for callbacks, the response) that tokens
// such as {{request.path.id}} read from. A nil Context renders those tokens
// verbatim.
type Context struct {
	Method     string
	Path       string
	PathParams map[string]string
	Query      map[string][]string
	Headers    http.Header
	// Body is the decoded JSON request body, or nil.
	Body any

	Response *ResponseContext
}

// ResponseContext is the mock response a callback is fired for.
type ResponseContext struct {
	Status int
	Body   any
}
