// Package publishers renders ranked proxy groupings and ships them to
// configured destinations.
package publishers

import (
	"context"
	"fmt"
)

type Publisher interface {
	Publish(ctx context.Context, groupings []Grouping, config map[string]interface{}) error
}

type Factory func() Publisher

var registry = make(map[string]Factory)

func Register(name string, factory Factory) {
	registry[name] = factory
}

func Get(name string) (Publisher, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("publisher plugin '%s' not found", name)
	}
	return factory(), nil
}
