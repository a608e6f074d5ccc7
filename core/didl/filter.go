// Package didl renders CdsObjects into DIDL-Lite XML for ContentDirectory
// Browse/Search responses, filtered, string-limited, and escaped per client
// quirks (spec §4.D).
package didl

import "strings"

// Filter is the parsed CSV "Filter" argument of a Browse/Search request.
// "*" allows every tag; otherwise only the listed tags (plus the
// always-emitted core set) are rendered.
type Filter struct {
	all  bool
	tags map[string]bool
}

// alwaysEmit tags are rendered regardless of the requested filter.
var alwaysEmit = map[string]bool{
	"id": true, "parentID": true, "restricted": true,
	"dc:title": true, "upnp:class": true, "protocolInfo": true,
}

func ParseFilter(csv string) Filter {
	csv = strings.TrimSpace(csv)
	if csv == "" || csv == "*" {
		return Filter{all: true}
	}
	tags := make(map[string]bool)
	for _, t := range strings.Split(csv, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			tags[t] = true
		}
	}
	return Filter{tags: tags}
}

// Allows reports whether tag should be rendered under this filter.
func (f Filter) Allows(tag string) bool {
	if f.all || alwaysEmit[tag] {
		return true
	}
	return f.tags[tag]
}

// Full reports whether this is the "*" / empty filter (used by FullFilter
// client quirk to force full rendering regardless of the requested filter).
func (f Filter) Full() bool { return f.all }
