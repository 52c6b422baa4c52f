package templates

import (
	"fmt"
	"sort"
)

// Dispatcher maps connector type names to template keys
type Dispatcher struct {
	apiMap     map[string]string
	defaultKey string
}

// NewDispatcher creates a dispatcher backed by a copy of apiMap
func NewDispatcher(apiMap map[string]string, defaultKey string) *Dispatcher {
	if defaultKey == "" {
		defaultKey = DefaultKey
	}

	m := make(map[string]string, len(apiMap))
	for k, v := range apiMap {
		m[k] = v
	}

	return &Dispatcher{apiMap: m, defaultKey: defaultKey}
}

// Resolve returns the template key for a connector.
// Unknown connectors fall back to the default key.
func (d *Dispatcher) Resolve(connectorName string) string {
	if key, ok := d.apiMap[connectorName]; ok {
		return key
	}
	return d.defaultKey
}

// IsMapped reports whether connectorName has an explicit api_map entry
func (d *Dispatcher) IsMapped(connectorName string) bool {
	_, ok := d.apiMap[connectorName]
	return ok
}

// DefaultKey returns the fallback template key
func (d *Dispatcher) DefaultKey() string {
	return d.defaultKey
}

// Registry holds the connections template and the per-connector database templates.
// It is read-only after construction and shared by every connection of a run.
type Registry struct {
	connections QueryTemplate
	byKey       map[string]QueryTemplate
	dispatcher  *Dispatcher
}

// NewRegistry validates the template set and builds a registry
func NewRegistry(connections QueryTemplate, apiMap map[string]string, byKey map[string]QueryTemplate, defaultKey string) (*Registry, error) {
	dispatcher := NewDispatcher(apiMap, defaultKey)

	if connections.URL == "" || len(connections.Payload) == 0 {
		return nil, fmt.Errorf("%w: %s is missing", ErrInvalidTemplate, ConnectionsKey)
	}

	if _, ok := byKey[dispatcher.DefaultKey()]; !ok {
		return nil, fmt.Errorf("%w: default template %s is missing", ErrInvalidTemplate, dispatcher.DefaultKey())
	}

	for connector, key := range apiMap {
		if _, ok := byKey[key]; !ok {
			return nil, fmt.Errorf("%w: api_map entry %s points to undefined template %s", ErrInvalidTemplate, connector, key)
		}
	}

	templates := make(map[string]QueryTemplate, len(byKey))
	for key, tmpl := range byKey {
		if n := tmpl.PlaceholderCount(); n != 1 {
			return nil, fmt.Errorf("%w: %s contains %s %d times, want exactly once", ErrInvalidTemplate, key, Placeholder, n)
		}
		templates[key] = tmpl
	}

	return &Registry{
		connections: connections,
		byKey:       templates,
		dispatcher:  dispatcher,
	}, nil
}

// ConnectionsTemplate returns the instance-wide connections query
func (r *Registry) ConnectionsTemplate() QueryTemplate {
	return r.connections
}

// TemplateFor returns the database query template for a connector type
func (r *Registry) TemplateFor(connectorName string) QueryTemplate {
	return r.byKey[r.dispatcher.Resolve(connectorName)]
}

// Dispatcher returns the connector dispatcher backing this registry
func (r *Registry) Dispatcher() *Dispatcher {
	return r.dispatcher
}

// Keys returns the database template keys in sorted order
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.byKey))
	for k := range r.byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Template returns the database template stored under key
func (r *Registry) Template(key string) (QueryTemplate, bool) {
	t, ok := r.byKey[key]
	return t, ok
}
