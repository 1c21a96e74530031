package api

import (
	"io"
	"net/http"
)

// IndexPath is the path of the root greeting.
const IndexPath = "/"

// helloWorldBody is the fixed body of the root endpoint.
const helloWorldBody = "<p>Hello, World!</p>"

// HelloWorld answers the root route with a static HTML fragment.
//
//	@Summary	Greeting
//	@Produce	html
//	@Success	200	{string}	string	"<p>Hello, World!</p>"
//	@Router		/ [get]
func HelloWorld(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, helloWorldBody)
}
