// Package clients implements the client registry (spec §4.A) and the
// quirks engine (spec §4.B) built on top of it.
package clients

import (
	"context"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/mileusna/useragent"

	"github.com/navidrome/mediaserver/log"
	"github.com/navidrome/mediaserver/model"
)

// Registry resolves a (addr, userAgent) pair to a ClientProfile and caches
// the observation. Grounded on the teacher's ttlcache usage pattern for
// session eviction (server/dlna has no direct equivalent; this generalizes
// it to per-address observations with the 1h idle eviction spec §9 settled
// on).
type Registry struct {
	mu       sync.Mutex
	profiles []*model.ClientProfile // config-declaration order; Unknown is NOT in this slice
	cache    *ttlcache.Cache[string, *model.ClientObservation]
}

const observationIdleTTL = time.Hour

func NewRegistry(profiles []*model.ClientProfile) *Registry {
	cache := ttlcache.New[string, *model.ClientObservation](
		ttlcache.WithTTL[string, *model.ClientObservation](observationIdleTTL),
	)
	go cache.Start()
	return &Registry{profiles: profiles, cache: cache}
}

func (r *Registry) Close() { r.cache.Stop() }

func observationKey(addr, userAgent string) string { return addr + "|" + userAgent }

// Resolve implements the resolution order from spec §4.A: IP match
// (longest-prefix first) -> UserAgent substring (config order) -> discovery
// cache by address -> Unknown. It never fails.
func (r *Registry) Resolve(addr, userAgent string) (*model.ClientProfile, *model.ClientObservation) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.evictExpiredLocked()

	profile := r.matchIP(addr)
	if profile == nil {
		profile = r.matchUserAgent(userAgent)
	}
	if profile == nil {
		host := stripPort(addr)
		for _, item := range r.cache.Items() {
			if obs := item.Value(); stripPort(obs.Addr) == host && obs.Profile != model.Unknown {
				profile = obs.Profile
				break
			}
		}
	}
	if profile == nil {
		profile = model.Unknown
	}

	obs := r.observe(addr, userAgent, profile)
	return profile, obs
}

// matchIP checks IP-match profiles, preferring the longest matching prefix
// (meaningful for IPv6 CIDR-style rules) then first-declared on ties.
func (r *Registry) matchIP(addr string) *model.ClientProfile {
	ip := net.ParseIP(stripPort(addr))
	if ip == nil {
		return nil
	}
	var best *model.ClientProfile
	bestLen := -1
	for _, p := range r.profiles {
		if p.MatchType != model.MatchIP {
			continue
		}
		_, cidr, err := net.ParseCIDR(p.Match)
		if err != nil {
			if p.Match == ip.String() {
				return p
			}
			continue
		}
		if cidr.Contains(ip) {
			ones, _ := cidr.Mask.Size()
			if ones > bestLen {
				best = p
				bestLen = ones
			}
		}
	}
	return best
}

func (r *Registry) matchUserAgent(ua string) *model.ClientProfile {
	if ua == "" {
		return nil
	}
	for _, p := range r.profiles {
		if p.MatchType == model.MatchUserAgent && strings.Contains(ua, p.Match) {
			return p
		}
	}
	return nil
}

func (r *Registry) observe(addr, userAgent string, profile *model.ClientProfile) *model.ClientObservation {
	key := observationKey(addr, userAgent)
	now := time.Now()
	if item := r.cache.Get(key); item != nil {
		obs := item.Value()
		obs.Last = now
		if profile != model.Unknown {
			obs.Profile = profile
		}
		r.cache.Set(key, obs, observationIdleTTL)
		return obs
	}
	obs := &model.ClientObservation{
		Addr:      addr,
		UserAgent: userAgent,
		Last:      now,
		Age:       now,
		Headers:   map[string]string{},
		Profile:   profile,
	}
	r.cache.Set(key, obs, observationIdleTTL)
	return obs
}

func (r *Registry) evictExpiredLocked() {
	// ttlcache evicts lazily + via its own goroutine; nothing extra is
	// needed here beyond letting Get() trigger lazy expiry checks.
}

// NoteDiscovery pre-seeds the cache from an SSDP event, before any HTTP
// request has been observed from addr.
func (r *Registry) NoteDiscovery(addr, userAgent, descURL string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	profile := r.matchUserAgent(userAgent)
	if profile == nil {
		profile = model.Unknown
	}
	r.observe(addr, userAgent, profile)
	log.Debug(context.Background(), "client discovery noted", "addr", addr, "descURL", descURL)
}

// ListActive returns a snapshot of all cached observations, for the admin UI.
func (r *Registry) ListActive() []*model.ClientObservation {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := r.cache.Items()
	out := make([]*model.ClientObservation, 0, len(items))
	for _, item := range items {
		out = append(out, item.Value())
	}
	return out
}

func stripPort(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// ParseUserAgent is a thin wrapper so callers can fold UA-derived hints
// (browser/os family) into match rules without importing mileusna directly.
func ParseUserAgent(ua string) useragent.UserAgent {
	return useragent.Parse(ua)
}
