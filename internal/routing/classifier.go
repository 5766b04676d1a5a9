package routing

import (
	"errors"
	"strings"
)

type RouteClass string

const (
	RouteClassAPI RouteClass = "api"
	RouteClassOps RouteClass = "ops"
	RouteClassUI  RouteClass = "ui"
)

type Classifier struct {
	allowExact        map[string]RouteClass
	allowPathPatterns []pathPatternRoute
}

func NewClassifier(a Allowlist) (*Classifier, error) {
	exact := make(map[string]RouteClass, len(a.Routes))
	var patterns []pathPatternRoute
	for _, r := range a.Routes {
		if r.Path == "" || r.RouteClass == "" {
			return nil, errors.New("allowlist: invalid route")
		}
		switch RouteClass(r.RouteClass) {
		case RouteClassAPI, RouteClassOps, RouteClassUI:
		default:
			return nil, errors.New("allowlist: unknown route_class " + r.RouteClass)
		}
		if p, ok := parsePathPattern(r.Path); ok {
			patterns = append(patterns, pathPatternRoute{pattern: p, rc: RouteClass(r.RouteClass)})
			continue
		}
		exact[r.Path] = RouteClass(r.RouteClass)
	}
	return &Classifier{allowExact: exact, allowPathPatterns: patterns}, nil
}

func (c *Classifier) Classify(path string) RouteClass {
	if rc, ok := c.allowExact[path]; ok {
		return rc
	}
	for _, p := range c.allowPathPatterns {
		if p.pattern.Match(path) {
			return p.rc
		}
	}

	switch {
	case hasPrefixSegment(path, "/api"):
		return RouteClassAPI
	case path == "/healthz" || hasPrefixSegment(path, "/ops"):
		return RouteClassOps
	default:
		return RouteClassUI
	}
}

func hasPrefixSegment(path, prefix string) bool {
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+"/")
}

type pathPatternRoute struct {
	pattern PathPattern
	rc      RouteClass
}
