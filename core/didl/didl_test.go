package didl

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navidrome/mediaserver/core/clients"
	"github.com/navidrome/mediaserver/model"
)

func sampleItem() (*model.CdsObject, *model.CdsItem) {
	item := &model.CdsItem{
		CdsObject: model.CdsObject{
			ID:        "item1",
			ParentID:  "container1",
			UpnpClass: "object.item.audioItem.musicTrack",
			Title:     "T",
			Flags:     model.FlagRestricted,
			Metadata:  model.MultiMap{"upnp:artist": {"A"}, "upnp:album": {"Al"}},
		},
		MimeType: "audio/mpeg",
	}
	res := model.NewResource(model.HandlerDefault, model.PurposeContent, 0)
	item.Resources = append(item.Resources, res)
	return &item.CdsObject, item
}

func TestFilterAlwaysAllowsCoreTags(t *testing.T) {
	f := ParseFilter("dc:title,upnp:artist")
	assert.True(t, f.Allows("id"))
	assert.True(t, f.Allows("upnp:class"))
	assert.True(t, f.Allows("upnp:artist"))
	assert.False(t, f.Allows("upnp:album"))
}

func TestFilterStar(t *testing.T) {
	f := ParseFilter("*")
	assert.True(t, f.Full())
	assert.True(t, f.Allows("upnp:album"))
}

func TestRenderObjectRespectsFilter(t *testing.T) {
	obj, item := sampleItem()
	b := &Builder{ResourceURL: func(o *model.CdsObject, r *model.CdsResource) string { return "http://host/item1/0" }}
	q := clients.New(nil)

	out := b.RenderObject(obj, nil, item, ParseFilter("dc:title,upnp:artist"), q)
	assert.Contains(t, out, `id="item1"`)
	assert.Contains(t, out, `parentID="container1"`)
	assert.Contains(t, out, `restricted="1"`)
	assert.Contains(t, out, "<dc:title>T</dc:title>")
	assert.Contains(t, out, "upnp:artist")
	assert.NotContains(t, out, "upnp:album")
	assert.Contains(t, out, "<upnp:class>object.item.audioItem.musicTrack</upnp:class>")
	assert.Contains(t, out, "<res ")
}

func TestRenderObjectHidesTranscodeResourceWhenUnsupported(t *testing.T) {
	obj, item := sampleItem()
	item.Resources = append(item.Resources, model.NewResource(model.HandlerTranscode, model.PurposeTranscode, 1))
	b := &Builder{ResourceURL: func(o *model.CdsObject, r *model.CdsResource) string { return "http://x" }}

	profile := &model.ClientProfile{ResourcePurposes: []model.ResourcePurpose{model.PurposeContent}, IsAllowedFlag: true}
	q := clients.New(profile)

	out := b.RenderObject(obj, nil, item, ParseFilter("*"), q)
	assert.Equal(t, 1, countOccurrences(out, "<res "))
}

func TestEnvelopeAddsSecNamespaceForSamsung(t *testing.T) {
	profile := &model.ClientProfile{Flags: model.QuirkSamsung, IsAllowedFlag: true}
	q := clients.New(profile)
	out := Envelope([]string{"<item/>"}, q)
	assert.Contains(t, out, `xmlns:sec="http://www.sec.co.kr/dlna/"`)
}

func TestEnvelopeOmitsSecNamespaceByDefault(t *testing.T) {
	out := Envelope([]string{}, clients.New(nil))
	assert.NotContains(t, out, "xmlns:sec")
	assert.Contains(t, out, `xmlns="urn:schemas-upnp-org:metadata-1-0/DIDL-Lite/"`)
}

func TestCreateResponseSkeleton(t *testing.T) {
	out := CreateResponse("Browse", "urn:schemas-upnp-org:service:ContentDirectory:1")
	assert.Equal(t, `<u:BrowseResponse xmlns:u="urn:schemas-upnp-org:service:ContentDirectory:1"></u:BrowseResponse>`, out)
}

func TestLimitStringTruncatesRunes(t *testing.T) {
	assert.Equal(t, "hello", limitString("hello world", 5))
	assert.Equal(t, "hello world", limitString("hello world", 0))
}

func TestEscapePCDATANumericEscapesNonASCIIUnderASCIIXML(t *testing.T) {
	profile := &model.ClientProfile{Flags: model.QuirkASCIIXML, IsAllowedFlag: true}
	obj, item := sampleItem()
	item.Title = "Café"
	b := &Builder{ResourceURL: func(o *model.CdsObject, r *model.CdsResource) string { return "" }}
	q := clients.New(profile)

	out := b.RenderObject(obj, nil, item, ParseFilter("*"), q)
	assert.Contains(t, out, "Caf&#233;")
	assert.NotContains(t, out, "Caf?")
}

func TestEscapePCDATALeavesApostropheAloneByDefault(t *testing.T) {
	obj, item := sampleItem()
	item.Title = "Guns N' Roses"
	b := &Builder{ResourceURL: func(o *model.CdsObject, r *model.CdsResource) string { return "" }}
	q := clients.New(nil)

	out := b.RenderObject(obj, nil, item, ParseFilter("*"), q)
	assert.Contains(t, out, "Guns N' Roses")
}

func TestEscapePCDATAEscapesApostropheUnderStrictXML(t *testing.T) {
	profile := &model.ClientProfile{Flags: model.QuirkStrictXML, IsAllowedFlag: true}
	obj, item := sampleItem()
	item.Title = "Guns N' Roses"
	b := &Builder{ResourceURL: func(o *model.CdsObject, r *model.CdsResource) string { return "" }}
	q := clients.New(profile)

	out := b.RenderObject(obj, nil, item, ParseFilter("*"), q)
	assert.Contains(t, out, "Guns N&apos; Roses")
}

func TestAddResourcesHoistsFirstResourceProfile(t *testing.T) {
	obj, item := sampleItem()
	transcodeRes := model.NewResource(model.HandlerTranscode, model.PurposeTranscode, 1)
	transcodeRes.Parameters["pr_name"] = "to-mp3"
	item.Resources = append(item.Resources, transcodeRes)

	b := &Builder{
		ResourceURL:           func(o *model.CdsObject, r *model.CdsResource) string { return r.Parameters["pr_name"] },
		FirstResourceProfiles: map[string]bool{"to-mp3": true},
	}
	q := clients.New(nil)

	out := b.AddResources(obj, item, ParseFilter("*"), q)
	firstIdx := strings.Index(out, "to-mp3")
	require.NotEqual(t, -1, firstIdx)
	assert.Less(t, firstIdx, strings.Index(out, "</res><res"))
}

func TestAddResourcesInjectsSyntheticTranscode(t *testing.T) {
	obj, item := sampleItem()
	b := &Builder{
		ResourceURL: func(o *model.CdsObject, r *model.CdsResource) string { return "" },
		SyntheticTranscode: func(o *model.CdsObject, i *model.CdsItem) *model.CdsResource {
			res := model.NewResource(model.HandlerTranscode, model.PurposeTranscode, len(o.Resources))
			res.Parameters["pr_name"] = "to-wav"
			return res
		},
	}
	q := clients.New(nil)

	out := b.AddResources(obj, item, ParseFilter("*"), q)
	assert.Equal(t, 2, countOccurrences(out, "<res "))
}

func countOccurrences(s, sub string) int {
	count := 0
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			count++
		}
	}
	return count
}
