package guard

import (
	"context"
	"net"
	"sync"
)

// GeoResolver maps a client IP to an ISO-3166-1 alpha-2 country code. An
// empty code means the origin is unknown; unknown origins pass, since geo
// restriction is advisory next to the authenticated checks.
type GeoResolver interface {
	Country(ctx context.Context, ip string) (string, error)
}

// StaticGeoResolver resolves from configured CIDR ranges. It covers private
// deployments and tests; a production deployment plugs in a real GeoIP
// provider behind the same interface.
type StaticGeoResolver struct {
	mu     sync.RWMutex
	ranges []geoRange
}

type geoRange struct {
	net     *net.IPNet
	country string
}

func NewStaticGeoResolver() *StaticGeoResolver {
	return &StaticGeoResolver{}
}

// AddRange registers a CIDR as belonging to a country. Invalid CIDRs are
// rejected.
func (r *StaticGeoResolver) AddRange(cidr, country string) error {
	_, ipNet, err := net.ParseCIDR(cidr)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ranges = append(r.ranges, geoRange{net: ipNet, country: country})
	return nil
}

func (r *StaticGeoResolver) Country(_ context.Context, ip string) (string, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "", nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, g := range r.ranges {
		if g.net.Contains(parsed) {
			return g.country, nil
		}
	}
	return "", nil
}
