package didl

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/navidrome/mediaserver/core/clients"
	"github.com/navidrome/mediaserver/model"
)

const (
	nsDIDL = "urn:schemas-upnp-org:metadata-1-0/DIDL-Lite/"
	nsDC   = "http://purl.org/dc/elements/1.1/"
	nsUPnP = "urn:schemas-upnp-org:metadata-1-0/upnp/"
	nsSec  = "http://www.sec.co.kr/dlna/"
	nsDLNA = "urn:schemas-dlna-org:metadata-1-0/"
)

// ResourceURLFunc resolves the playback URL for one resource of obj.
type ResourceURLFunc func(obj *model.CdsObject, res *model.CdsResource) string

// ContainerArtURLFunc resolves an optional upnp:albumArtURI for a container,
// typically delegating to core/fanart.
type ContainerArtURLFunc func(container *model.CdsObject) string

// SyntheticTranscodeFunc optionally builds an extra transcode resource for
// item that isn't already present in obj.Resources (spec §4.D addResources:
// "optionally inject a synthetic transcode resource"), typically matching
// the item's mime type against core/transcode's configured profiles. A nil
// return means no profile applies.
type SyntheticTranscodeFunc func(obj *model.CdsObject, item *model.CdsItem) *model.CdsResource

// defaultResourceOrder is the handler order AddResources renders in when
// Builder.HandlerOrder is unset (spec §4.D "Ordered rendering").
var defaultResourceOrder = []model.ResourceHandler{
	model.HandlerDefault, model.HandlerID3, model.HandlerLibExif, model.HandlerMP4,
	model.HandlerFLAC, model.HandlerWavpack, model.HandlerMatroska, model.HandlerFFTh,
	model.HandlerSubtitle, model.HandlerFanArt, model.HandlerContainerArt,
	model.HandlerExtURL, model.HandlerMetafile, model.HandlerResource, model.HandlerTranscode,
}

// Builder renders CdsObjects to DIDL-Lite fragments.
type Builder struct {
	ResourceURL  ResourceURLFunc
	ContainerArt ContainerArtURLFunc
	MimeMappings map[string]string // global fallback, overridden per-quirks

	// HandlerOrder overrides defaultResourceOrder when set.
	HandlerOrder []model.ResourceHandler
	// FirstResourceProfiles names transcode profiles (by res.Parameters
	// "pr_name") configured with FirstResource=true; the first matching
	// transcode resource is hoisted to position 0 (spec §4.D).
	FirstResourceProfiles map[string]bool
	// SyntheticTranscode optionally contributes an extra transcode <res>.
	SyntheticTranscode SyntheticTranscodeFunc
}

func (b *Builder) resourceOrder() []model.ResourceHandler {
	if len(b.HandlerOrder) > 0 {
		return b.HandlerOrder
	}
	return defaultResourceOrder
}

// CreateResponse produces the `<u:actionNameResponse/>` skeleton every SOAP
// action reply wraps its out-arguments in.
func CreateResponse(actionName, serviceType string) string {
	return fmt.Sprintf(`<u:%sResponse xmlns:u="%s"></u:%sResponse>`, actionName, serviceType, actionName)
}

// CreateEventPropertySet wraps a set of name/value pairs in the GENA
// <e:propertyset> envelope used for SystemUpdateID / ContainerUpdateIDs
// notifications.
func CreateEventPropertySet(props map[string]string) string {
	var b bytes.Buffer
	b.WriteString(`<e:propertyset xmlns:e="urn:schemas-upnp-org:event-1-0">`)
	for name, value := range props {
		b.WriteString(`<e:property><`)
		b.WriteString(name)
		b.WriteByte('>')
		xml.EscapeText(&b, []byte(value))
		b.WriteString(`</`)
		b.WriteString(name)
		b.WriteString(`></e:property>`)
	}
	b.WriteString(`</e:propertyset>`)
	return b.String()
}

// Envelope wraps one or more rendered object fragments in the DIDL-Lite root
// element, declaring namespaces per the client's quirks (spec §4.D: sec and
// additional DLNA namespaces are added only when relevant).
func Envelope(fragments []string, q clients.Quirks) string {
	var b bytes.Buffer
	b.WriteString(`<DIDL-Lite xmlns="`)
	b.WriteString(nsDIDL)
	b.WriteString(`" xmlns:dc="`)
	b.WriteString(nsDC)
	b.WriteString(`" xmlns:upnp="`)
	b.WriteString(nsUPnP)
	b.WriteString(`"`)
	if q.HasFlag(model.QuirkSamsung) {
		b.WriteString(` xmlns:sec="`)
		b.WriteString(nsSec)
		b.WriteString(`"`)
	}
	if q.HasFlag(model.QuirkPVSubtitles) || q.HasFlag(model.QuirkSamsungFeatures) {
		b.WriteString(` xmlns:dlna="`)
		b.WriteString(nsDLNA)
		b.WriteString(`"`)
	}
	b.WriteString(`>`)
	for _, f := range fragments {
		b.WriteString(f)
	}
	b.WriteString(`</DIDL-Lite>`)
	return b.String()
}

// RenderObject emits one <container> or <item> element for obj, applying
// filter, string-limit and quirks rules (spec §4.D).
func (b *Builder) RenderObject(obj *model.CdsObject, container *model.CdsContainer, item *model.CdsItem, filter Filter, q clients.Quirks) string {
	var out bytes.Buffer
	tag := "item"
	if obj.IsContainer() {
		tag = "container"
	}
	out.WriteByte('<')
	out.WriteString(tag)
	writeAttr(&out, "id", obj.ID)
	writeAttr(&out, "parentID", obj.ParentID)
	restricted := "0"
	if obj.HasFlag(model.FlagRestricted) {
		restricted = "1"
	}
	writeAttr(&out, "restricted", restricted)
	if obj.RefID != "" && filter.Allows("@refID") {
		writeAttr(&out, "refID", obj.RefID)
	}
	if container != nil {
		if filter.Allows("childCount") {
			writeAttr(&out, "childCount", strconv.Itoa(container.ChildCount))
		}
		if filter.Allows("searchable") && obj.HasFlag(model.FlagSearchable) {
			writeAttr(&out, "searchable", "1")
		}
	}
	out.WriteByte('>')

	if filter.Allows("dc:title") {
		writeElement(&out, "dc:title", limitString(obj.Title, q.GetStringLimit()), q)
	}
	for key, values := range obj.Metadata {
		if !filter.Allows(key) {
			continue
		}
		if q.GetMultiValue() {
			for _, v := range values {
				writeElement(&out, key, limitString(v, q.GetStringLimit()), q)
			}
		} else if len(values) > 0 {
			writeElement(&out, key, limitString(strings.Join(values, " / "), q.GetStringLimit()), q)
		}
	}
	if filter.Allows("upnp:class") {
		writeElement(&out, "upnp:class", obj.UpnpClass, q)
	}
	if item != nil && item.TrackNumber > 0 && filter.Allows("upnp:originalTrackNumber") {
		writeElement(&out, "upnp:originalTrackNumber", strconv.Itoa(item.TrackNumber), q)
	}
	if container != nil && b.ContainerArt != nil && filter.Allows("upnp:albumArtURI") {
		if art := b.ContainerArt(obj); art != "" {
			writeElement(&out, "upnp:albumArtURI", art, q)
		}
	}
	if item != nil {
		out.WriteString(b.AddResources(obj, item, filter, q))
	}

	out.WriteString("</")
	out.WriteString(tag)
	out.WriteByte('>')
	return out.String()
}

// AddResources walks every resource of item in configured handler order,
// optionally injects a synthetic transcode resource, hoists the first
// firstResource-flagged transcode profile to position 0, and renders each
// as a <res> element, skipping purposes the client's profile forbids
// (HIDE_RES_* quirks / ResourcePurposes) (spec §4.D "Ordered rendering").
func (b *Builder) AddResources(obj *model.CdsObject, item *model.CdsItem, filter Filter, q clients.Quirks) string {
	resources := append([]*model.CdsResource(nil), obj.Resources...)
	if b.SyntheticTranscode != nil {
		if synth := b.SyntheticTranscode(obj, item); synth != nil {
			resources = append(resources, synth)
		}
	}

	order := b.resourceOrder()
	rank := func(h model.ResourceHandler) int {
		for i, candidate := range order {
			if candidate == h {
				return i
			}
		}
		return len(order)
	}
	sort.SliceStable(resources, func(i, j int) bool {
		return rank(resources[i].Handler) < rank(resources[j].Handler)
	})
	b.hoistFirstResource(resources)

	var out bytes.Buffer
	for _, res := range resources {
		if !q.SupportsResource(res.Purpose) {
			continue
		}
		out.WriteString(b.RenderResource(obj, item, res, filter, q))
	}
	return out.String()
}

// hoistFirstResource moves the first transcode resource whose profile is
// flagged FirstResource to index 0, in place.
func (b *Builder) hoistFirstResource(resources []*model.CdsResource) {
	if len(b.FirstResourceProfiles) == 0 {
		return
	}
	for i, res := range resources {
		if i == 0 || res.Handler != model.HandlerTranscode {
			continue
		}
		if !b.FirstResourceProfiles[res.Parameters["pr_name"]] {
			continue
		}
		copy(resources[1:i+1], resources[0:i])
		resources[0] = res
		return
	}
}

// RenderResource emits one <res> element with a synthesized protocolInfo and
// whichever resource attributes the filter allows. protocolInfo is in the
// always-emitted set, so the <res> element itself is never filtered out.
func (b *Builder) RenderResource(obj *model.CdsObject, item *model.CdsItem, res *model.CdsResource, filter Filter, q clients.Quirks) string {
	if !filter.Allows("res") && !filter.Allows("protocolInfo") {
		return ""
	}
	var out bytes.Buffer
	out.WriteString("<res")
	writeAttr(&out, "protocolInfo", b.protocolInfo(item, res, q))
	for attr, value := range res.Attributes {
		if value == "" {
			continue
		}
		if !filter.Allows("res@" + string(attr)) {
			continue
		}
		writeAttr(&out, string(attr), value)
	}
	out.WriteByte('>')
	if b.ResourceURL != nil {
		xml.EscapeText(&out, []byte(b.ResourceURL(obj, res)))
	}
	out.WriteString("</res>")
	return out.String()
}

// protocolInfo synthesizes `http-get:*:<mime>:<dlna4thfield>` (spec §4.D).
// The 4th field concatenates PN (DLNA profile), OP (operation parameters),
// CI (conversion indicator), and FLAGS, suppressing CI=1 under the
// FORCE_NO_CONVERSION quirk.
func (b *Builder) protocolInfo(item *model.CdsItem, res *model.CdsResource, q clients.Quirks) string {
	mime := "application/octet-stream"
	if item != nil {
		mime = item.MimeType
	}
	if mapped, ok := res.Attributes[model.AttrFormat]; ok && mapped != "" {
		if m, ok := q.GetMimeMappings()[mapped]; ok {
			mime = m
		} else if m, ok := b.MimeMappings[mapped]; ok {
			mime = m
		}
	}
	var fourth strings.Builder
	if dlna, ok := q.GetDlnaMappings()[mime]; ok && dlna != "" {
		fourth.WriteString("DLNA.ORG_PN=")
		fourth.WriteString(dlna)
	}
	if fourth.Len() > 0 {
		fourth.WriteByte(';')
	}
	fourth.WriteString("DLNA.ORG_OP=01")
	if res.Handler == model.HandlerTranscode && !q.NeedsNoConversion() {
		fourth.WriteString(";DLNA.ORG_CI=1")
	} else {
		fourth.WriteString(";DLNA.ORG_CI=0")
	}
	fourth.WriteString(";DLNA.ORG_FLAGS=01700000000000000000000000000000")
	return fmt.Sprintf("http-get:*:%s:%s", mime, fourth.String())
}

func writeAttr(b *bytes.Buffer, name, value string) {
	if value == "" {
		return
	}
	b.WriteByte(' ')
	b.WriteString(name)
	b.WriteString(`="`)
	xml.EscapeText(b, []byte(value))
	b.WriteByte('"')
}

func writeElement(b *bytes.Buffer, tag, value string, q clients.Quirks) {
	if value == "" {
		return
	}
	b.WriteByte('<')
	b.WriteString(tag)
	b.WriteByte('>')
	escapePCDATA(b, value, q.NeedsStrictXML(), q.NeedsASCIIXML())
	b.WriteString("</")
	b.WriteString(tag)
	b.WriteByte('>')
}

// escapePCDATA XML-escapes value for use as element text in a single pass.
// Plain XML content only requires escaping &, < and >; under STRICTXML
// (spec §4.D "Escaping") an apostrophe is also entity-escaped, and under
// ASCIIXML every code point above 0x7E is numeric-escaped instead.
func escapePCDATA(b *bytes.Buffer, value string, strict, ascii bool) {
	for _, r := range value {
		switch {
		case r == '&':
			b.WriteString("&amp;")
		case r == '<':
			b.WriteString("&lt;")
		case r == '>':
			b.WriteString("&gt;")
		case r == '\'' && strict:
			b.WriteString("&apos;")
		case r > 0x7E && ascii:
			fmt.Fprintf(b, "&#%d;", r)
		default:
			b.WriteRune(r)
		}
	}
}

// limitString truncates s to limit runes (0 = unlimited), the getStringLimit
// quirk (spec §4.B) some constrained clients declare for title/metadata
// fields.
func limitString(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
