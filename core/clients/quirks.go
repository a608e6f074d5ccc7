package clients

import (
	"fmt"
	"net/http"

	"github.com/navidrome/mediaserver/model"
)

// Quirks is a thin per-request capability view over a ClientProfile. Every
// method is a pure query except the explicit save... operations (spec
// §4.B) — the rest of the request path never switches on client type
// directly, it asks Quirks instead.
type Quirks struct {
	profile *model.ClientProfile
}

func New(profile *model.ClientProfile) Quirks {
	if profile == nil {
		profile = model.Unknown
	}
	return Quirks{profile: profile}
}

func (q Quirks) HasFlag(f model.QuirkFlag) bool { return q.profile.HasFlag(f) }

func (q Quirks) SupportsResource(purpose model.ResourcePurpose) bool {
	if purpose == model.PurposeThumbnail && q.HasFlag(model.QuirkHideResThumbnail) {
		return false
	}
	if purpose == model.PurposeSubtitle && q.HasFlag(model.QuirkHideResSubtitle) {
		return false
	}
	if purpose == model.PurposeTranscode && q.HasFlag(model.QuirkHideResTranscode) {
		return false
	}
	return q.profile.SupportsPurpose(purpose)
}

func (q Quirks) BlockXMLDeclaration() bool  { return q.HasFlag(model.QuirkASCIIXML) }
func (q Quirks) NeedsFileNameURI() bool     { return q.HasFlag(model.QuirkPanasonic) }
func (q Quirks) GetCaptionInfoCount() int   { return q.profile.CaptionInfoCount }
func (q Quirks) GetStringLimit() int        { return q.profile.StringLimit }
func (q Quirks) NeedsStrictXML() bool       { return q.HasFlag(model.QuirkStrictXML) }
func (q Quirks) NeedsASCIIXML() bool        { return q.HasFlag(model.QuirkASCIIXML) }
func (q Quirks) NeedsSimpleDate() bool      { return q.HasFlag(model.QuirkSimpleDate) }
func (q Quirks) NeedsNoConversion() bool    { return q.HasFlag(model.QuirkForceNoConversion) }
func (q Quirks) GetMultiValue() bool        { return q.profile.MultiValue }
func (q Quirks) GetFullFilter() bool        { return q.profile.FullFilter }
func (q Quirks) ShowInternalSubtitles() bool { return q.HasFlag(model.QuirkShowInternalSubtitles) }
func (q Quirks) GetGroup() string           { return q.profile.Group }
func (q Quirks) GetMimeMappings() map[string]string { return q.profile.MimeMappings }
func (q Quirks) GetDlnaMappings() map[string]string { return q.profile.DlnaMappings }
func (q Quirks) IsAllowed() bool            { return q.profile.IsAllowedFlag }

// UpdateHeaders copies the client's configured extra response headers.
func (q Quirks) UpdateHeaders(out http.Header) {
	for k, v := range q.profile.Headers {
		out.Set(k, v)
	}
}

// AddCaptionInfo appends CaptionInfo.sec / getCaptionInfo.sec headers when
// the client wants Samsung caption support and a subtitle resource is
// discoverable for this video item (spec §4.B, scenario S5).
func (q Quirks) AddCaptionInfo(item *model.CdsItem, subtitleURL string, out http.Header) {
	if !q.HasFlag(model.QuirkSamsung) {
		return
	}
	if subtitleURL == "" {
		return
	}
	out.Set("CaptionInfo.sec", subtitleURL)
	out.Set("getCaptionInfo.sec", subtitleURL)
}

// RestoreSamsungBookMarkedPosition serializes <sec:dcmInfo>BM=...</sec:dcmInfo>
// using ms or s units depending on which bookmark flag the client advertises.
func (q Quirks) RestoreSamsungBookMarkedPosition(status *model.ClientStatusDetail) string {
	if status == nil {
		return ""
	}
	value := status.BookMarkPos
	if q.HasFlag(model.QuirkSamsungBookmarkSec) {
		value /= 1000
	}
	return fmt.Sprintf("<sec:dcmInfo>BM=%d</sec:dcmInfo>", value)
}

// SamsungBookmarkRequest is the parsed X_SetBookmark SOAP body (spec §4.B,
// §6 Samsung extensions).
type SamsungBookmarkRequest struct {
	ObjectID   string
	PosSecond  string // may be seconds or a "H:MM:SS" timecode
	CategoryType string
	RID        string
}

// SaveSamsungBookMarkedPosition builds the ClientStatusDetail mutation from
// the request args and the caller-parsed position posMs, to persist via
// storage; callers do the write.
func (q Quirks) SaveSamsungBookMarkedPosition(req SamsungBookmarkRequest, posMs int64) *model.ClientStatusDetail {
	return &model.ClientStatusDetail{
		Group:       q.GetGroup(),
		ItemID:      req.ObjectID,
		BookMarkPos: posMs,
	}
}

// samsungFeatureList is the static <Features> stanza Samsung TVs expect
// from X_GetFeatureList (spec §6).
const samsungFeatureList = `<Features xmlns="urn:schemas-upnp-org:av:avs" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xsi:schemaLocation="urn:schemas-upnp-org:av:avs http://www.upnp.org/schemas/av/avs.xsd">` +
	`<Feature name="samsung.com_BASICVIEW" version="1">` +
	`<container id="A" type="object.item.audioItem"/>` +
	`<container id="V" type="object.item.videoItem"/>` +
	`<container id="I" type="object.item.imageItem"/>` +
	`<container id="P" type="object.container.playlistContainer"/>` +
	`</Feature></Features>`

func (q Quirks) GetSamsungFeatureList() string {
	if !q.HasFlag(model.QuirkSamsungFeatures) {
		return ""
	}
	return samsungFeatureList
}

// GetSamsungFeatureRoot returns the container id a Samsung X_GetFeatureList
// "root" reference resolves to, or "" when the client wasn't granted
// samsung.com_BASICVIEW. The category letter (A/V/I/P) is not consulted:
// every category resolves to rootID.
func (q Quirks) GetSamsungFeatureRoot(category, rootID string) string {
	if !q.HasFlag(model.QuirkSamsungFeatures) {
		return ""
	}
	return rootID
}

// GetForbiddenDirectories lists web-root subpaths this client's profile
// should never be offered, e.g. an admin UI segment irrelevant to a
// renderer-only client. Empty by default.
func (q Quirks) GetForbiddenDirectories() []string { return nil }
