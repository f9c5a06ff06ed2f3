package provider

import (
	"errors"
	"sort"
	"strings"
)

var ErrGatewayNotSupported = errors.New("gateway is not supported")

type Registry struct {
	gateways map[string]Gateway
	active   string
}

// NewRegistry indexes gateways by name. active must name one of them.
func NewRegistry(active string, gateways ...Gateway) (*Registry, error) {
	items := make(map[string]Gateway, len(gateways))
	for _, g := range gateways {
		items[strings.ToLower(g.Name())] = g
	}
	active = strings.ToLower(strings.TrimSpace(active))
	if _, ok := items[active]; !ok {
		return nil, ErrGatewayNotSupported
	}
	return &Registry{gateways: items, active: active}, nil
}

func (r *Registry) Get(name string) (Gateway, error) {
	gateway, ok := r.gateways[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, ErrGatewayNotSupported
	}
	return gateway, nil
}

func (r *Registry) Active() Gateway {
	return r.gateways[r.active]
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.gateways))
	for name := range r.gateways {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
