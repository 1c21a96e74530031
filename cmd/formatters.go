package cmd

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"ctb/api"

	"github.com/fatih/color"
)

// renderRoutesTable displays routes in a formatted table
func renderRoutesTable(w io.Writer, routes []api.RouteInfo) {
	if len(routes) == 0 {
		warningColor.Fprintln(w, "No routes mounted")
		return
	}

	headerColor.Fprintln(w, "ROUTES")
	headerColor.Fprintln(w, strings.Repeat("=", 90))
	fmt.Fprintf(w, "%-40s %-20s %s\n", "Path", "Methods", "Name")
	fmt.Fprintln(w, strings.Repeat("-", 90))

	for _, route := range routes {
		methods := "ANY"
		if len(route.Methods) > 0 {
			methods = strings.Join(route.Methods, ",")
		}
		fmt.Fprintf(w, "%-40s %s %s\n", route.Path, formatMethods(methods), route.Name)
	}

	fmt.Fprintln(w, strings.Repeat("=", 90))
}

// formatMethods colors read-only methods green and mutating ones yellow.
// Padding is applied before coloring so the columns stay aligned.
func formatMethods(methods string) string {
	padded := fmt.Sprintf("%-20s", methods)
	for _, m := range strings.Split(methods, ",") {
		if m != http.MethodGet && m != http.MethodHead && m != "ANY" {
			return color.New(color.FgYellow).Sprint(padded)
		}
	}
	return color.New(color.FgGreen).Sprint(padded)
}

func printSuccess(w io.Writer, format string, args ...interface{}) {
	successColor.Fprintf(w, "✓ "+format+"\n", args...)
}

func printFailure(w io.Writer, format string, args ...interface{}) {
	errorColor.Fprintf(w, "✗ "+format+"\n", args...)
}
