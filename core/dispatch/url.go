// Package dispatch maps opaque media URLs back to {object, resource,
// transcode profile} and implements the two-phase getInfo/open contract
// (spec §4.C).
package dispatch

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ResourceKey is the decoded form of a media URL's path component:
// /key/val/key/val/.../filename, all URL-encoded (spec §4.C, §6).
type ResourceKey struct {
	ObjectID    string
	ResID       int
	HasResID    bool
	ProfileName string // "pr_name"; non-empty selects the transcoding path
	Group       string
	Params      map[string]string // any other client-defined resource parameter
	Filename    string            // trailing hint, ignored except for language detection
}

// ParseURL decodes a request path into a ResourceKey. It splits on "/",
// URL-decodes each token, and pairs them left-to-right as key/value; an odd
// final token is the trailing filename hint.
func ParseURL(path string) (ResourceKey, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return ResourceKey{}, fmt.Errorf("dispatch: empty resource path")
	}
	rawTokens := strings.Split(path, "/")
	tokens := make([]string, 0, len(rawTokens))
	for _, t := range rawTokens {
		decoded, err := url.QueryUnescape(t)
		if err != nil {
			return ResourceKey{}, fmt.Errorf("dispatch: invalid URL token %q: %w", t, err)
		}
		tokens = append(tokens, decoded)
	}

	key := ResourceKey{Params: map[string]string{}}
	n := len(tokens)
	if n%2 == 1 {
		key.Filename = tokens[n-1]
		n--
	}
	for i := 0; i+1 < n; i += 2 {
		k, v := tokens[i], tokens[i+1]
		switch k {
		case "object_id":
			key.ObjectID = v
		case "res_id":
			if v == "none" {
				// transcode requests with no concrete resource leave HasResID unset
				continue
			}
			id, err := strconv.Atoi(v)
			if err != nil {
				return ResourceKey{}, fmt.Errorf("dispatch: invalid res_id %q", v)
			}
			key.ResID = id
			key.HasResID = true
		case "pr_name":
			key.ProfileName = v
		case "group":
			key.Group = v
		default:
			key.Params[k] = v
		}
	}
	if key.ObjectID == "" {
		return ResourceKey{}, fmt.Errorf("dispatch: missing object_id")
	}
	return key, nil
}

// BuildURL encodes key back into the slash-separated key/value form,
// rooted at base (e.g. "/content/media"). Used by the DIDL builder's
// ResourceURLFunc.
func BuildURL(base string, key ResourceKey) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(base, "/"))
	writePair(&b, "object_id", key.ObjectID)
	if key.HasResID {
		writePair(&b, "res_id", strconv.Itoa(key.ResID))
	}
	if key.ProfileName != "" {
		writePair(&b, "pr_name", key.ProfileName)
	}
	if key.Group != "" {
		writePair(&b, "group", key.Group)
	}
	for k, v := range key.Params {
		writePair(&b, k, v)
	}
	if key.Filename != "" {
		b.WriteByte('/')
		b.WriteString(url.QueryEscape(key.Filename))
	}
	return b.String()
}

func writePair(b *strings.Builder, key, value string) {
	b.WriteByte('/')
	b.WriteString(url.QueryEscape(key))
	b.WriteByte('/')
	b.WriteString(url.QueryEscape(value))
}
