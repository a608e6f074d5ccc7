// Package model defines the domain entities shared across the content
// directory, dispatcher, DIDL builder and autoscan packages.
package model

import "time"

// ObjectFlag is a bit in CdsObject.Flags.
type ObjectFlag uint32

const (
	FlagRestricted ObjectFlag = 1 << iota
	FlagSearchable
	FlagPersistentContainer
	FlagPlaylistRef
	FlagProxyURL
	FlagOnlineService
	FlagOggTheora
	FlagUseResourceRef
)

// CdsObject is the common header shared by every content directory object.
type CdsObject struct {
	ID        string
	ParentID  string
	RefID     string // optional back-reference for virtual copies
	UpnpClass string
	Title     string
	Location  string // filesystem path or URL; empty for pure virtual containers
	MTime     time.Time
	Flags     ObjectFlag
	Metadata  MultiMap // well-known keys -> values, multi-value preserved
	AuxData   map[string]string
	Resources []*CdsResource
}

func (o *CdsObject) HasFlag(f ObjectFlag) bool { return o.Flags&f != 0 }

// IsContainer reports whether UpnpClass names a container.
func (o *CdsObject) IsContainer() bool {
	return hasClassPrefix(o.UpnpClass, "object.container")
}

func hasClassPrefix(class, prefix string) bool {
	if len(class) < len(prefix) {
		return false
	}
	return class[:len(prefix)] == prefix
}

// CdsContainer adds the per-container revision counter.
type CdsContainer struct {
	CdsObject
	UpdateID   uint32
	ChildCount int
}

// Bump increments UpdateID; callers must also bump SystemUpdateID and every
// ancestor up to the root so that "ancestor UpdateID observable >= descendant
// UpdateID" holds after the mutation propagates.
func (c *CdsContainer) Bump() {
	c.UpdateID++
}

// CdsItem adds item-specific metadata.
type CdsItem struct {
	CdsObject
	MimeType    string
	TrackNumber int
	PartNumber  int
	ServiceID   string
	PlayStatus  *ClientStatusDetail // optional, per (group, item)
}

// CdsItemExternalURL is an item whose Location is an absolute URL.
type CdsItemExternalURL struct {
	CdsItem
}

// ResourceHandler names which metadata handler produced a <res>.
type ResourceHandler string

const (
	HandlerDefault      ResourceHandler = "DEFAULT"
	HandlerLibExif      ResourceHandler = "LIBEXIF"
	HandlerID3          ResourceHandler = "ID3"
	HandlerTranscode    ResourceHandler = "TRANSCODE"
	HandlerExtURL       ResourceHandler = "EXTURL"
	HandlerMP4          ResourceHandler = "MP4"
	HandlerFFTh         ResourceHandler = "FFTH"
	HandlerFLAC         ResourceHandler = "FLAC"
	HandlerFanArt       ResourceHandler = "FANART"
	HandlerContainerArt ResourceHandler = "CONTAINERART"
	HandlerMatroska     ResourceHandler = "MATROSKA"
	HandlerSubtitle     ResourceHandler = "SUBTITLE"
	HandlerWavpack      ResourceHandler = "WAVPACK"
	HandlerMetafile     ResourceHandler = "METAFILE"
	HandlerResource     ResourceHandler = "RESOURCE"
)

// ResourcePurpose groups resources for client visibility rules.
type ResourcePurpose string

const (
	PurposeContent   ResourcePurpose = "Content"
	PurposeThumbnail ResourcePurpose = "Thumbnail"
	PurposeSubtitle  ResourcePurpose = "Subtitle"
	PurposeTranscode ResourcePurpose = "Transcode"
)

// ResourceAttr is a closed set of keys for CdsResource.Attributes.
type ResourceAttr string

const (
	AttrSize            ResourceAttr = "size"
	AttrDuration         ResourceAttr = "duration"
	AttrBitrate          ResourceAttr = "bitrate"
	AttrSampleFrequency  ResourceAttr = "sampleFrequency"
	AttrNrAudioChannels  ResourceAttr = "nrAudioChannels"
	AttrResolution       ResourceAttr = "resolution"
	AttrColorDepth       ResourceAttr = "colorDepth"
	AttrProtocolInfo     ResourceAttr = "protocolInfo"
	AttrResourceFile     ResourceAttr = "resourceFile"
	AttrType             ResourceAttr = "type"
	AttrFanArtObjID      ResourceAttr = "fanArtObjID"
	AttrFanArtResID      ResourceAttr = "fanArtResID"
	AttrBitsPerSample    ResourceAttr = "bitsPerSample"
	AttrLanguage         ResourceAttr = "language"
	AttrAudioCodec       ResourceAttr = "audioCodec"
	AttrVideoCodec       ResourceAttr = "videoCodec"
	AttrFormat           ResourceAttr = "format"
	AttrOrientation      ResourceAttr = "orientation"
	AttrPixelFormat      ResourceAttr = "pixelFormat"
)

// CdsResource is one <res> element in DIDL-Lite.
type CdsResource struct {
	Handler    ResourceHandler
	Purpose    ResourcePurpose
	ResID      int
	Attributes map[ResourceAttr]string
	Parameters map[string]string // appear URL-encoded in generated URLs
	Options    map[string]string // internal only, never rendered
}

func NewResource(handler ResourceHandler, purpose ResourcePurpose, resID int) *CdsResource {
	return &CdsResource{
		Handler:    handler,
		Purpose:    purpose,
		ResID:      resID,
		Attributes: map[ResourceAttr]string{},
		Parameters: map[string]string{},
		Options:    map[string]string{},
	}
}

// RenumberResources reassigns ResID 0..n-1 in place, preserving order. This
// keeps invariant 1 from spec §8: ResID values are dense from 0 after any
// mutation.
func RenumberResources(resources []*CdsResource) {
	for i, r := range resources {
		r.ResID = i
	}
}

// MultiMap preserves multiple values per metadata key (e.g. multiple
// upnp:actor entries).
type MultiMap map[string][]string

func (m MultiMap) Add(key, value string) {
	m[key] = append(m[key], value)
}

func (m MultiMap) First(key string) string {
	v := m[key]
	if len(v) == 0 {
		return ""
	}
	return v[0]
}
