package autoscan

import (
	"sort"
	"strings"
)

// DirectoryTweak layers a per-subtree override on top of an
// AutoscanDirectory's own defaults, matched by the longest location prefix
// that contains the scanned path. Supplemented feature (not present in
// spec.md) grounded on Gerbera's directory_tweak.cc: configuring hidden
// files, recursion or upnp:class per subdirectory without a full separate
// AutoscanDirectory entry.
type DirectoryTweak struct {
	Location        string
	Recursive       *bool
	Hidden          *bool
	FollowSymlinks  *bool
	DefaultUpnpClass string
}

// TweakResolver finds the most specific DirectoryTweak covering a path.
type TweakResolver struct {
	tweaks []DirectoryTweak
}

func NewTweakResolver(tweaks []DirectoryTweak) *TweakResolver {
	sorted := append([]DirectoryTweak(nil), tweaks...)
	sort.Slice(sorted, func(i, j int) bool {
		return len(sorted[i].Location) > len(sorted[j].Location)
	})
	return &TweakResolver{tweaks: sorted}
}

// Resolve returns the tweak whose Location is the longest prefix of path, if
// any. Tweaks are pre-sorted longest-first so the first match wins.
func (r *TweakResolver) Resolve(path string) (DirectoryTweak, bool) {
	for _, t := range r.tweaks {
		if strings.HasPrefix(path, t.Location) {
			return t, true
		}
	}
	return DirectoryTweak{}, false
}

// effective folds a tweak (if any) over the directory's own defaults.
func effective(dir *directoryState, tweak DirectoryTweak, matched bool) (recursive, hidden, followSymlinks bool, upnpClass string) {
	recursive, hidden, followSymlinks = dir.dir.Recursive, dir.dir.Hidden, dir.dir.FollowSymlinks
	upnpClass = ""
	if !matched {
		return
	}
	if tweak.Recursive != nil {
		recursive = *tweak.Recursive
	}
	if tweak.Hidden != nil {
		hidden = *tweak.Hidden
	}
	if tweak.FollowSymlinks != nil {
		followSymlinks = *tweak.FollowSymlinks
	}
	if tweak.DefaultUpnpClass != "" {
		upnpClass = tweak.DefaultUpnpClass
	}
	return
}
