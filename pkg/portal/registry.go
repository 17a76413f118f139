package portal

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	ErrUnknownPortal   = errors.New("unknown portal")
	ErrDuplicatePortal = errors.New("duplicate portal name")
)

// Registry holds the adapters a deployment serves, keyed by name.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]*Adapter
}

// NewRegistry validates adapters and indexes them by name.
func NewRegistry(adapters ...Adapter) (*Registry, error) {
	r := &Registry{adapters: make(map[string]*Adapter, len(adapters))}
	for _, a := range adapters {
		if err := r.Add(a); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add validates a and registers it.
func (r *Registry) Add(a Adapter) error {
	if err := a.Validate(); err != nil {
		return err
	}
	name := strings.ToLower(a.Name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.adapters[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicatePortal, a.Name)
	}
	a.Name = name
	r.adapters[name] = &a
	return nil
}

// Get returns the adapter registered as name.
func (r *Registry) Get(name string) (*Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPortal, name)
	}
	return a, nil
}

// List returns copies of every adapter sorted by name.
func (r *Registry) List() []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Adapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Defaults returns the stock adapters for a campus whose services live
// under domain, e.g. "example.edu".
func Defaults(domain string) []Adapter {
	d := strings.TrimPrefix(strings.ToLower(domain), ".")
	return []Adapter{
		{
			Name:    "library",
			Title:   "Library",
			Service: "https://lib." + d + "/sso",
			Marker:  "https://lib." + d + "/home",
		},
		{
			Name:    "grad",
			Title:   "Graduate system",
			Service: "https://yjsxt." + d + "/sso/login",
			Marker:  "https://yjsxt." + d + "/main",
			WebVPN:  true,
		},
		{
			Name:    "oa",
			Title:   "Office automation",
			Service: "https://oa." + d + "/sso/cas",
			Marker:  "https://oa." + d + "/portal",
		},
		{
			Name:    "xk",
			Title:   "Course selection",
			Service: "https://xk." + d + "/xsxk/sso",
			Marker:  "https://xk." + d + "/xsxk/index",
			WebVPN:  true,
		},
		{
			Name:       "ehall",
			Title:      "E-hall",
			Service:    "https://ehall." + d + "/login",
			Marker:     "<title>网上办事服务大厅</title>",
			MarkerKind: MarkerBody,
		},
		{
			Name:    "mail",
			Title:   "Mail",
			Service: "https://mail." + d + "/coremail/sso",
			Marker:  "https://mail." + d + "/coremail/XT",
		},
	}
}
