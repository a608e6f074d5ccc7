package dispatch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/navidrome/mediaserver/core/clients"
	"github.com/navidrome/mediaserver/model"
)

// ChunkedLength is the "unknown length / chunked" sentinel getInfo MUST
// report for transcoded resources (spec §4.C).
const ChunkedLength int64 = -1

// IOHandler is the byte-stream contract open() returns: read, seek, close.
type IOHandler interface {
	io.Reader
	io.Seeker
	io.Closer
}

// Transcoder is the collaborator that owns fork/exec + FIFO streaming
// (core/transcode.Dispatcher implements this); kept as a narrow interface
// here to avoid an import cycle between dispatch and transcode.
type Transcoder interface {
	Open(ctx context.Context, profileName string, inputPath string, params map[string]string, rangeStart int64) (IOHandler, error)
	InitialFillSize(profileName string) int
}

// MetadataOpener serves non-primary resources (embedded thumbnail, fanart)
// that don't come straight off a file on disk. Subtitle resources are opened
// directly, from their resourceFile attribute when set.
type MetadataOpener interface {
	Open(ctx context.Context, obj *model.CdsObject, res *model.CdsResource) (IOHandler, int64, error)
}

// Dispatcher implements the File handler described in spec §4.C.
type Dispatcher struct {
	Storage    model.Storage
	Transcoder Transcoder
	Metadata   MetadataOpener
}

// FileInfo is the getInfo() out-parameter set (spec §4.C item 1).
type FileInfo struct {
	Length       int64
	ContentType  string
	LastModified time.Time
	IsDirectory  bool
	IsReadable   bool
	Headers      http.Header
}

func (d *Dispatcher) resolve(ctx context.Context, key ResourceKey) (*model.CdsObject, *model.CdsResource, error) {
	obj, err := d.Storage.GetObject(ctx, key.ObjectID)
	if err != nil {
		return nil, nil, err
	}
	if !key.HasResID {
		if len(obj.Resources) == 0 {
			return obj, nil, model.ErrNoSuchResource
		}
		return obj, obj.Resources[0], nil
	}
	for _, r := range obj.Resources {
		if r.ResID == key.ResID {
			return obj, r, nil
		}
	}
	return obj, nil, model.ErrNoSuchResource
}

// GetInfo implements the two-phase contract's first phase: stat without
// opening a stream, populating DLNA transport headers for the response.
func (d *Dispatcher) GetInfo(ctx context.Context, key ResourceKey, q clients.Quirks, subtitleURL string) (*FileInfo, error) {
	obj, res, err := d.resolve(ctx, key)
	if err != nil {
		return nil, err
	}

	info := &FileInfo{
		IsReadable: true,
		Headers:    http.Header{},
	}

	mime := "application/octet-stream"
	if item, ok := asItem(obj); ok {
		mime = item.MimeType
	}
	info.ContentType = mime

	if key.ProfileName != "" {
		info.Length = ChunkedLength
		info.Headers.Set("TRANSFERMODE.DLNA.ORG", "Streaming")
		info.Headers.Set("contentFeatures.dlna.org", "DLNA.ORG_OP=00;DLNA.ORG_CI=1;DLNA.ORG_FLAGS=01700000000000000000000000000000")
	} else {
		if size, ok := res.Attributes[model.AttrSize]; ok {
			fmt.Sscanf(size, "%d", &info.Length)
		} else if obj.Location != "" {
			if st, err := os.Stat(obj.Location); err == nil {
				info.Length = st.Size()
				info.LastModified = st.ModTime()
			}
		}
		transferMode := "Streaming"
		if res.Purpose == model.PurposeThumbnail || res.Purpose == model.PurposeSubtitle {
			transferMode = "Interactive"
		}
		info.Headers.Set("TRANSFERMODE.DLNA.ORG", transferMode)
		info.Headers.Set("contentFeatures.dlna.org", "DLNA.ORG_OP=01;DLNA.ORG_FLAGS=01700000000000000000000000000000")
	}

	if item, ok := asItem(obj); ok && subtitleURL != "" {
		q.AddCaptionInfo(item, subtitleURL, info.Headers)
	}
	q.UpdateHeaders(info.Headers)

	if !obj.MTime.IsZero() {
		info.LastModified = obj.MTime
	}
	return info, nil
}

// Open implements the second phase: returns the byte stream.
func (d *Dispatcher) Open(ctx context.Context, key ResourceKey) (IOHandler, error) {
	obj, res, err := d.resolve(ctx, key)
	if err != nil {
		return nil, err
	}

	if key.ProfileName != "" {
		if d.Transcoder == nil {
			return nil, fmt.Errorf("dispatch: no transcoder configured for profile %q", key.ProfileName)
		}
		var rangeStart int64
		if rs, ok := key.Params["range"]; ok {
			fmt.Sscanf(rs, "%d", &rangeStart)
		}
		return d.Transcoder.Open(ctx, key.ProfileName, obj.Location, key.Params, rangeStart)
	}

	switch res.Handler {
	case model.HandlerDefault, model.HandlerExtURL, model.HandlerSubtitle:
		path := obj.Location
		if rf := res.Attributes[model.AttrResourceFile]; rf != "" {
			path = rf
		}
		if path == "" {
			return nil, model.ErrNoSuchResource
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		return f, nil
	default:
		if d.Metadata == nil {
			return nil, fmt.Errorf("dispatch: no metadata handler for resource type %s", res.Handler)
		}
		h, _, err := d.Metadata.Open(ctx, obj, res)
		return h, err
	}
}

func asItem(obj *model.CdsObject) (*model.CdsItem, bool) {
	// CdsItem embeds CdsObject; callers hold a *model.CdsObject pulled from
	// storage, which in practice is always backed by the item/container it
	// was loaded from. Storage implementations are expected to populate
	// obj.AuxData["mimeType"] when they can't hand back the full CdsItem.
	if mime, ok := obj.AuxData["mimeType"]; ok {
		return &model.CdsItem{CdsObject: *obj, MimeType: mime}, true
	}
	return nil, false
}
