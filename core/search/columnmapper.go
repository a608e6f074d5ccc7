package search

import "strings"

// ColumnMapping describes how one property resolves against a single
// backing table.
type ColumnMapping struct {
	Column       string // "<alias>.<column>" or first-class column name
	IsMetadata   bool   // true when Column lives in the generic key/value table
	NameColumn   string // metadata key column, set when IsMetadata (e.g. "m.meta_key")
	PropertyName string // literal key value tested against NameColumn, e.g. "upnp:artist"
	Join         string // extra JOIN fragment required to reach Column, if any
	Multi        bool   // true when the property expands to more than one column (sort only)
	Also         string // second column for Multi properties
}

// ColumnMapper resolves a DIDL-Lite/UPnP property name against one table.
// Spec §4.F: the emitter is parameterised by four of these (metadata,
// resource, playtrack, object); they're tried in declaration order.
type ColumnMapper interface {
	Map(property string) (ColumnMapping, bool)
}

// CompositeMapper tries each mapper in order and returns the first hit.
type CompositeMapper []ColumnMapper

func (c CompositeMapper) Map(property string) (ColumnMapping, bool) {
	for _, m := range c {
		if mapping, ok := m.Map(property); ok {
			return mapping, true
		}
	}
	return ColumnMapping{}, false
}

// ObjectColumnMapper maps the first-class CdsObject columns that live
// directly on the object row rather than in a metadata table.
type ObjectColumnMapper struct{}

var objectColumns = map[string]string{
	"@id":          "o.id",
	"@refID":       "o.ref_id",
	"@parentID":    "o.parent_id",
	"upnp:class":   "o.upnp_class",
	"dc:title":     "o.title",
	"last_updated": "o.mtime",
}

func (ObjectColumnMapper) Map(property string) (ColumnMapping, bool) {
	col, ok := objectColumns[property]
	if !ok {
		return ColumnMapping{}, false
	}
	return ColumnMapping{Column: col}, true
}

// ResourceColumnMapper maps res@-prefixed properties to the resource table.
type ResourceColumnMapper struct{}

var resourceColumns = map[string]string{
	"res@size":     "r.size",
	"res@duration": "r.duration",
	"res@bitrate":  "r.bitrate",
	"res@protocolInfo": "r.protocol_info",
}

func (ResourceColumnMapper) Map(property string) (ColumnMapping, bool) {
	col, ok := resourceColumns[property]
	if !ok {
		return ColumnMapping{}, false
	}
	return ColumnMapping{Column: col, Join: "LEFT JOIN resource r ON r.object_id = o.id"}, true
}

// MetadataColumnMapper maps everything else to the generic key/value
// metadata table, except upnp:originalTrackNumber which dual-maps to both
// a part-number and a track-number column (spec §4.F sort compiler note).
type MetadataColumnMapper struct{}

func (MetadataColumnMapper) Map(property string) (ColumnMapping, bool) {
	if property == "upnp:originalTrackNumber" {
		return ColumnMapping{
			Column: "m.meta_value", IsMetadata: true,
			NameColumn: "m.meta_key", PropertyName: property,
			Join:  "LEFT JOIN metadata m ON m.object_id = o.id AND m.meta_key = 'upnp:originalTrackNumber'",
			Multi: true, Also: "m2.meta_value",
		}, true
	}
	if !strings.Contains(property, ":") && !strings.HasPrefix(property, "@") {
		return ColumnMapping{}, false
	}
	return ColumnMapping{
		Column: "m.meta_value", IsMetadata: true,
		NameColumn: "m.meta_key", PropertyName: property,
		Join: "LEFT JOIN metadata m ON m.object_id = o.id AND m.meta_key = '" + property + "'",
	}, true
}

// PlaytrackColumnMapper maps per-(group,item) play state columns.
type PlaytrackColumnMapper struct{}

var playtrackColumns = map[string]string{
	"play_count":           "pt.play_count",
	"last_played":          "pt.last_played",
	"last_played_position": "pt.last_played_position",
}

func (PlaytrackColumnMapper) Map(property string) (ColumnMapping, bool) {
	col, ok := playtrackColumns[property]
	if !ok {
		return ColumnMapping{}, false
	}
	return ColumnMapping{Column: col, Join: "LEFT JOIN playtrack pt ON pt.object_id = o.id"}, true
}

// DefaultMapper is the standard search order: object -> resource ->
// playtrack -> metadata (most specific first, generic fallback last).
var DefaultMapper = CompositeMapper{
	ObjectColumnMapper{}, ResourceColumnMapper{}, PlaytrackColumnMapper{}, MetadataColumnMapper{},
}
