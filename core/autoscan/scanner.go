package autoscan

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/navidrome/mediaserver/model"
	"github.com/navidrome/mediaserver/model/id"
)

// diffResult is the outcome of comparing one directory walk against the
// AutoscanDirectory's lastModified cursor.
type diffResult struct {
	added    []*model.CdsObject
	updated []*model.CdsObject
	removed []string // object ids
	maxMTime time.Time
}

// walkAndDiff walks st.dir's subtree (respecting recursive/hidden/
// followSymlinks, as tweaked per-path by st.tweaks) and compares each
// entry's mtime against the cursor recorded in st.dir.LastModified.
// Anything newer is classified added/updated; anything present in the
// cursor map but no longer on disk is classified removed (spec §4.G).
func walkAndDiff(st *directoryState) (*diffResult, error) {
	dir := st.dir
	result := &diffResult{maxMTime: dir.LastModPreviousScan}
	seen := map[string]bool{}

	root := dir.Location
	walkFn := func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsPermission(err) || os.IsNotExist(err) {
				return nil // logged once per cursor by the caller via RecordFailure
			}
			return err
		}
		if path == root {
			return nil
		}

		tweak, matched := st.tweaks.Resolve(path)
		recursive, hidden, followSymlinks, upnpClass := effective(st, tweak, matched)

		base := filepath.Base(path)
		if !hidden && strings.HasPrefix(base, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if !recursive && path != root {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 && !followSymlinks {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}

		seen[path] = true
		if info.ModTime().After(result.maxMTime) {
			result.maxMTime = info.ModTime()
		}

		prevMTime, known := dir.LastModified[path]
		dir.LastModified[path] = info.ModTime()

		if !known {
			result.added = append(result.added, newFileObject(dir, path, info, upnpClass))
			return nil
		}
		if info.ModTime().After(prevMTime) {
			result.updated = append(result.updated, newFileObject(dir, path, info, upnpClass))
		}
		return nil
	}

	if err := filepath.WalkDir(root, walkFn); err != nil {
		return nil, err
	}

	for path := range dir.LastModified {
		if !seen[path] {
			result.removed = append(result.removed, id.NewObjectID(dir.ObjectID, path))
			delete(dir.LastModified, path)
		}
	}
	return result, nil
}

func newFileObject(dir *model.AutoscanDirectory, path string, info fs.FileInfo, upnpClass string) *model.CdsObject {
	if upnpClass == "" {
		upnpClass = containerClassFor(dir, path)
	}
	return &model.CdsObject{
		ID:        id.NewObjectID(dir.ObjectID, path),
		ParentID:  dir.ObjectID,
		UpnpClass: upnpClass,
		Title:     filepath.Base(path),
		Location:  path,
		MTime:     info.ModTime(),
		Flags:     model.FlagRestricted,
		Metadata:  model.MultiMap{},
		AuxData:   map[string]string{},
	}
}

// containerClassFor picks the upnp:class to synthesize from the directory's
// configured media mode, falling back to a generic item class (actual
// classification from file content is layered on by the metadata handlers,
// out of this package's scope).
func containerClassFor(dir *model.AutoscanDirectory, path string) string {
	if class, ok := dir.ContainerMap[dir.MediaType]; ok && class != "" {
		return class
	}
	return "object.item"
}
