package api

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/gorilla/mux"
)

var (
	// ErrGroupMounted is returned when a group is modified after Mount.
	ErrGroupMounted = errors.New("route group is already mounted")
	// ErrDuplicateGroup is returned when two sibling groups share a name.
	ErrDuplicateGroup = errors.New("duplicate route group name")
	// ErrGroupCycle is returned when registering a group would create a cycle.
	ErrGroupCycle = errors.New("route group cycle")
)

// Route is a single endpoint registered on a Group.
type Route struct {
	Name    string
	Path    string
	Methods []string
	Handler http.Handler
}

// RouteInfo describes a mounted route with its effective path.
type RouteInfo struct {
	Name    string   `json:"name" yaml:"name"`
	Path    string   `json:"path" yaml:"path"`
	Methods []string `json:"methods,omitempty" yaml:"methods,omitempty"`
}

// Group is a named, prefixable collection of routes that can be nested into a
// larger routing tree before being attached to a router.
//
// Groups are built single-threaded during bootstrap. Mount freezes the whole
// tree; later modifications return ErrGroupMounted.
type Group struct {
	name       string
	prefix     string
	routes     []Route
	children   []*Group
	middleware []mux.MiddlewareFunc
	parent     *Group
	mounted    bool
}

// NewGroup creates an empty group. The prefix is normalized to start with a
// slash and carry no trailing slash; an empty prefix attaches routes directly.
func NewGroup(name, prefix string) *Group {
	return &Group{name: name, prefix: normalizePrefix(prefix)}
}

func normalizePrefix(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	prefix = strings.TrimRight(prefix, "/")
	if prefix != "" && !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return prefix
}

// Name returns the group name.
func (g *Group) Name() string { return g.name }

// Prefix returns the group's own path prefix.
func (g *Group) Prefix() string { return g.prefix }

// Children returns the directly nested groups in registration order.
func (g *Group) Children() []*Group {
	out := make([]*Group, len(g.children))
	copy(out, g.children)
	return out
}

// Handle registers handler for path relative to the group prefix.
// An empty methods list matches every method.
func (g *Group) Handle(name, path string, handler http.Handler, methods ...string) error {
	if g.isMounted() {
		return fmt.Errorf("%w: cannot add route %q to %q", ErrGroupMounted, name, g.name)
	}
	if handler == nil {
		return fmt.Errorf("route %q in group %q has no handler", name, g.name)
	}
	if path == "" {
		path = "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	g.routes = append(g.routes, Route{Name: name, Path: path, Methods: methods, Handler: handler})
	return nil
}

// HandleFunc is Handle for plain handler functions.
func (g *Group) HandleFunc(name, path string, fn http.HandlerFunc, methods ...string) error {
	return g.Handle(name, path, fn, methods...)
}

// MustHandle is Handle for groups under construction; it panics on error.
// Controllers use it while building a fresh group, where Handle cannot fail
// short of a programming mistake.
func (g *Group) MustHandle(name, path string, handler http.Handler, methods ...string) *Group {
	if err := g.Handle(name, path, handler, methods...); err != nil {
		panic(err)
	}
	return g
}

// Use appends middleware applied to every route of this group and its children.
func (g *Group) Use(mw ...mux.MiddlewareFunc) error {
	if g.isMounted() {
		return fmt.Errorf("%w: cannot add middleware to %q", ErrGroupMounted, g.name)
	}
	g.middleware = append(g.middleware, mw...)
	return nil
}

// Register nests child under g. Registration order is preserved.
func (g *Group) Register(child *Group) error {
	if child == nil {
		return errors.New("cannot register nil route group")
	}
	if g.isMounted() || child.isMounted() {
		return fmt.Errorf("%w: cannot register %q under %q", ErrGroupMounted, child.name, g.name)
	}
	if child.parent != nil {
		return fmt.Errorf("route group %q is already registered under %q", child.name, child.parent.name)
	}
	for p := g; p != nil; p = p.parent {
		if p == child {
			return fmt.Errorf("%w: %q cannot contain itself", ErrGroupCycle, child.name)
		}
	}
	for _, sibling := range g.children {
		if sibling.name == child.name {
			return fmt.Errorf("%w: %q already registered under %q", ErrDuplicateGroup, child.name, g.name)
		}
	}
	child.parent = g
	g.children = append(g.children, child)
	return nil
}

func (g *Group) isMounted() bool {
	for p := g; p != nil; p = p.parent {
		if p.mounted {
			return true
		}
	}
	return false
}

// Walk visits g and every nested group depth first in registration order.
// fn receives the effective prefix and the dotted name path of each group.
func (g *Group) Walk(fn func(prefix, qualifiedName string, group *Group) error) error {
	return g.walk("", "", fn)
}

func (g *Group) walk(parentPrefix, parentName string, fn func(string, string, *Group) error) error {
	prefix := parentPrefix + g.prefix
	qualified := g.name
	if parentName != "" {
		qualified = parentName + "." + g.name
	}
	if err := fn(prefix, qualified, g); err != nil {
		return err
	}
	for _, child := range g.children {
		if err := child.walk(prefix, qualified, fn); err != nil {
			return err
		}
	}
	return nil
}

// Routes flattens the tree into effective paths in registration order.
func (g *Group) Routes() []RouteInfo {
	var out []RouteInfo
	_ = g.Walk(func(prefix, qualified string, group *Group) error {
		for _, route := range group.routes {
			methods := append([]string(nil), route.Methods...)
			sort.Strings(methods)
			out = append(out, RouteInfo{
				Name:    qualified + "." + route.Name,
				Path:    joinPath(prefix, route.Path),
				Methods: methods,
			})
		}
		return nil
	})
	return out
}

func joinPath(prefix, path string) string {
	if path == "/" && prefix != "" {
		return prefix
	}
	return prefix + path
}

// Mount attaches the tree to router and freezes it. A group can be mounted once.
func (g *Group) Mount(router *mux.Router) error {
	if router == nil {
		return errors.New("cannot mount route group on nil router")
	}
	if g.isMounted() {
		return fmt.Errorf("%w: %q", ErrGroupMounted, g.name)
	}
	parentName := ""
	if g.parent != nil {
		parentName = g.parent.qualifiedName()
	}
	if err := g.mount(router, parentName); err != nil {
		return err
	}
	g.mounted = true
	return nil
}

func (g *Group) qualifiedName() string {
	if g.parent == nil {
		return g.name
	}
	return g.parent.qualifiedName() + "." + g.name
}

func (g *Group) mount(router *mux.Router, parentName string) error {
	qualified := g.name
	if parentName != "" {
		qualified = parentName + "." + g.name
	}

	target := router
	if g.prefix != "" || len(g.middleware) > 0 {
		if g.prefix != "" {
			target = router.PathPrefix(g.prefix).Subrouter()
		} else {
			target = router.NewRoute().Subrouter()
		}
		target.Use(g.middleware...)
	}

	for _, route := range g.routes {
		path := route.Path
		if path == "/" && g.prefix != "" {
			path = ""
		}
		var r *mux.Route
		if path == "" {
			// bare group prefix, e.g. GET /api/v1/auth
			r = router.NewRoute().Path(g.prefix).Handler(applyMiddleware(route.Handler, g.middleware))
		} else {
			r = target.Handle(path, route.Handler)
		}
		if len(route.Methods) > 0 {
			r = r.Methods(route.Methods...)
		}
		r.Name(qualified + "." + route.Name)
		if err := r.GetError(); err != nil {
			return fmt.Errorf("failed to mount route %s.%s: %w", qualified, route.Name, err)
		}
	}

	for _, child := range g.children {
		if err := child.mount(target, qualified); err != nil {
			return err
		}
	}
	return nil
}

func applyMiddleware(h http.Handler, mw []mux.MiddlewareFunc) http.Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}
