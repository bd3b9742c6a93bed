package loadbalancer

import (
	"errors"
	"net/url"
	"strings"
	"sync"
)

var ErrNoBackends = errors.New("loadbalancer: no backends")

// LoadBalancer hands out backend URLs round robin.
type LoadBalancer struct {
	servers []*url.URL
	mu      sync.Mutex
	current int
}

// NewLoadBalancer parses the backend list. Blank entries are skipped.
func NewLoadBalancer(servers []string) (*LoadBalancer, error) {
	lb := &LoadBalancer{}
	for _, s := range servers {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		u, err := url.Parse(s)
		if err != nil {
			return nil, err
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, errors.New("loadbalancer: backend needs scheme and host: " + s)
		}
		lb.servers = append(lb.servers, u)
	}
	if len(lb.servers) == 0 {
		return nil, ErrNoBackends
	}
	return lb, nil
}

// Split accepts a comma-separated backend list.
func Split(servers string) []string {
	return strings.Split(servers, ",")
}

func (lb *LoadBalancer) GetNextServer() *url.URL {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	server := lb.servers[lb.current]
	lb.current = (lb.current + 1) % len(lb.servers)
	return server
}

func (lb *LoadBalancer) Len() int { return len(lb.servers) }
