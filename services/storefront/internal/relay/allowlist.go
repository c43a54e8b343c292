package relay

import (
	"sort"
	"strings"
)

// AllowList is the set of upstream hostnames the relay may fetch from.
// Matching is case-insensitive and ignores the port.
type AllowList struct {
	hosts map[string]struct{}
}

// NewAllowList builds an allow-list from hostnames. Blank entries are skipped.
func NewAllowList(hosts []string) AllowList {
	a := AllowList{hosts: make(map[string]struct{}, len(hosts))}
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			a.hosts[h] = struct{}{}
		}
	}
	return a
}

// Allows reports whether hostname is on the list.
func (a AllowList) Allows(hostname string) bool {
	_, ok := a.hosts[strings.ToLower(hostname)]
	return ok
}

// Hosts returns the allowed hostnames in sorted order.
func (a AllowList) Hosts() []string {
	out := make([]string, 0, len(a.hosts))
	for h := range a.hosts {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}
