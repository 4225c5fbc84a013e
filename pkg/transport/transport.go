// Package transport builds the HTTP clients used by remote stores.
//
// Configurers registered here are process-wide: every client created after a
// configurer is added gets it. Clients created before are not touched, so
// configurers must be added before the first client is built.
package transport

import (
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"
)

// Configurer adjusts a freshly built HTTP client.
type Configurer interface {
	Configure(client *http.Client) error
}

// ConfigurerFunc adapts a function to Configurer.
type ConfigurerFunc func(client *http.Client) error

// Configure implements Configurer.
func (f ConfigurerFunc) Configure(client *http.Client) error { return f(client) }

var registry = struct {
	mu         sync.Mutex
	order      []string
	configurer map[string]Configurer
}{configurer: make(map[string]Configurer)}

// AddConfigurer registers c under name. It reports false, leaving the
// registry unchanged, when name is already registered.
func AddConfigurer(name string, c Configurer) bool {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	if _, ok := registry.configurer[name]; ok {
		return false
	}
	registry.configurer[name] = c
	registry.order = append(registry.order, name)
	return true
}

// Registered returns the configurer names in registration order.
func Registered() []string {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	return slices.Clone(registry.order)
}

// NewClient builds an HTTP client with the given timeout and applies every
// registered configurer in registration order.
func NewClient(timeout time.Duration) (*http.Client, error) {
	client := &http.Client{
		Timeout:   timeout,
		Transport: http.DefaultTransport.(*http.Transport).Clone(),
	}

	registry.mu.Lock()
	names := slices.Clone(registry.order)
	configurers := make([]Configurer, 0, len(names))
	for _, name := range names {
		configurers = append(configurers, registry.configurer[name])
	}
	registry.mu.Unlock()

	for i, c := range configurers {
		if err := c.Configure(client); err != nil {
			return nil, fmt.Errorf("transport configurer %s: %w", names[i], err)
		}
	}
	return client, nil
}

func reset() {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.order = nil
	registry.configurer = make(map[string]Configurer)
}
