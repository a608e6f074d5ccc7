package dlna

import (
	"context"
	"encoding/xml"
	"fmt"

	"github.com/navidrome/mediaserver/core/clients"
	"github.com/navidrome/mediaserver/core/didl"
	"github.com/navidrome/mediaserver/core/search"
	"github.com/navidrome/mediaserver/log"
	"github.com/navidrome/mediaserver/model"
)

type quirksCtxKey struct{}

func contextWithQuirks(ctx context.Context, q clients.Quirks) context.Context {
	return context.WithValue(ctx, quirksCtxKey{}, q)
}

func (r *Router) quirksFromContext(ctx context.Context) clients.Quirks {
	if q, ok := ctx.Value(quirksCtxKey{}).(clients.Quirks); ok {
		return q
	}
	return clients.New(nil)
}

// BrowseRequest represents a ContentDirectory Browse request
type BrowseRequest struct {
	XMLName        xml.Name `xml:"Browse"`
	ObjectID       string   `xml:"ObjectID"`
	BrowseFlag     string   `xml:"BrowseFlag"`
	Filter         string   `xml:"Filter"`
	StartingIndex  int      `xml:"StartingIndex"`
	RequestedCount int      `xml:"RequestedCount"`
	SortCriteria   string   `xml:"SortCriteria"`
}

// SearchRequest represents a ContentDirectory Search request
type SearchRequest struct {
	XMLName        xml.Name `xml:"Search"`
	ContainerID    string   `xml:"ContainerID"`
	SearchCriteria string   `xml:"SearchCriteria"`
	Filter         string   `xml:"Filter"`
	StartingIndex  int      `xml:"StartingIndex"`
	RequestedCount int      `xml:"RequestedCount"`
	SortCriteria   string   `xml:"SortCriteria"`
}

// BrowseResponse represents a ContentDirectory Browse/Search response
type BrowseResponse struct {
	XMLName        xml.Name `xml:"urn:schemas-upnp-org:service:ContentDirectory:1 BrowseResponse"`
	Result         string   `xml:"Result"`
	NumberReturned int      `xml:"NumberReturned"`
	TotalMatches   int      `xml:"TotalMatches"`
	UpdateID       uint32   `xml:"UpdateID"`
}

// SearchResponse mirrors BrowseResponse but with the SearchResponse element name
type SearchResponse struct {
	XMLName        xml.Name `xml:"urn:schemas-upnp-org:service:ContentDirectory:1 SearchResponse"`
	Result         string   `xml:"Result"`
	NumberReturned int      `xml:"NumberReturned"`
	TotalMatches   int      `xml:"TotalMatches"`
	UpdateID       uint32   `xml:"UpdateID"`
}

// GetSearchCapabilitiesResponse for GetSearchCapabilities action
type GetSearchCapabilitiesResponse struct {
	XMLName    xml.Name `xml:"urn:schemas-upnp-org:service:ContentDirectory:1 GetSearchCapabilitiesResponse"`
	SearchCaps string   `xml:"SearchCaps"`
}

// GetSortCapabilitiesResponse for GetSortCapabilities action
type GetSortCapabilitiesResponse struct {
	XMLName  xml.Name `xml:"urn:schemas-upnp-org:service:ContentDirectory:1 GetSortCapabilitiesResponse"`
	SortCaps string   `xml:"SortCaps"`
}

// GetSystemUpdateIDResponse for GetSystemUpdateID action
type GetSystemUpdateIDResponse struct {
	XMLName xml.Name `xml:"urn:schemas-upnp-org:service:ContentDirectory:1 GetSystemUpdateIDResponse"`
	Id      uint32   `xml:"Id"`
}

// parseBrowseRequest unmarshals the Browse action arguments out of the raw
// SOAP body content, tolerating either a bare Browse element or one nested
// under an extra wrapper some control points add.
func parseBrowseRequest(body []byte) (BrowseRequest, error) {
	var req BrowseRequest
	if err := xml.Unmarshal(body, &req); err == nil && req.ObjectID != "" {
		return req, nil
	}
	var wrapper struct {
		Browse BrowseRequest `xml:"Browse"`
	}
	if err := xml.Unmarshal(body, &wrapper); err != nil {
		return BrowseRequest{}, fmt.Errorf("failed to parse Browse request: %w", err)
	}
	return wrapper.Browse, nil
}

func parseSearchRequest(body []byte) (SearchRequest, error) {
	var req SearchRequest
	if err := xml.Unmarshal(body, &req); err == nil && req.ContainerID != "" {
		return req, nil
	}
	var wrapper struct {
		Search SearchRequest `xml:"Search"`
	}
	if err := xml.Unmarshal(body, &wrapper); err != nil {
		return SearchRequest{}, fmt.Errorf("failed to parse Search request: %w", err)
	}
	return wrapper.Search, nil
}

// handleBrowse handles the ContentDirectory Browse action (spec §4.A).
func (r *Router) handleBrowse(ctx context.Context, body []byte) (*BrowseResponse, error) {
	req, err := parseBrowseRequest(body)
	if err != nil {
		return nil, err
	}
	if req.ObjectID == "" {
		req.ObjectID = "0"
	}

	log.Debug(ctx, "Browse request",
		"objectID", req.ObjectID,
		"browseFlag", req.BrowseFlag,
		"startIndex", req.StartingIndex,
		"count", req.RequestedCount)

	filter := didl.ParseFilter(req.Filter)
	if r.quirksFromContext(ctx).GetFullFilter() {
		filter = didl.ParseFilter("*")
	}
	var fragments []string
	var total int

	if req.BrowseFlag == "BrowseMetadata" {
		obj, err := r.storage.GetObject(ctx, req.ObjectID)
		if err != nil {
			return nil, err
		}
		fragments = append(fragments, r.renderOne(ctx, obj, filter))
		total = 1
	} else {
		children, count, err := r.storage.Children(ctx, req.ObjectID, req.StartingIndex, req.RequestedCount)
		if err != nil {
			return nil, err
		}
		total = count
		for _, obj := range children {
			fragments = append(fragments, r.renderOne(ctx, obj, filter))
		}
	}

	didlXML := didl.Envelope(fragments, r.quirksFromContext(ctx))
	return &BrowseResponse{
		Result:         didlXML,
		NumberReturned: len(fragments),
		TotalMatches:   total,
		UpdateID:       r.storage.SystemUpdateID(ctx),
	}, nil
}

// handleSearch handles the ContentDirectory Search action, compiling
// SearchCriteria through core/search and delegating to Storage.SearchObjects.
func (r *Router) handleSearch(ctx context.Context, body []byte) (*SearchResponse, error) {
	req, err := parseSearchRequest(body)
	if err != nil {
		return nil, err
	}
	if req.ContainerID == "" {
		req.ContainerID = "0"
	}

	mapper := r.mapper
	if mapper == nil {
		mapper = search.DefaultMapper
	}

	where, err := search.Compile(req.SearchCriteria, mapper, r.liveEmitter)
	if err != nil {
		return nil, err
	}
	compiledSort := search.CompileSort(req.SortCriteria, mapper)

	objects, total, err := r.storage.SearchObjects(ctx, req.ContainerID, where.SQL, where.Args, compiledSort.OrderBy, req.StartingIndex, req.RequestedCount)
	if err != nil {
		return nil, err
	}

	filter := didl.ParseFilter(req.Filter)
	if r.quirksFromContext(ctx).GetFullFilter() {
		filter = didl.ParseFilter("*")
	}
	var fragments []string
	for _, obj := range objects {
		fragments = append(fragments, r.renderOne(ctx, obj, filter))
	}

	didlXML := didl.Envelope(fragments, r.quirksFromContext(ctx))
	return &SearchResponse{
		Result:         didlXML,
		NumberReturned: len(fragments),
		TotalMatches:   total,
		UpdateID:       r.storage.SystemUpdateID(ctx),
	}, nil
}

// renderOne resolves container/item views of obj and renders its DIDL-Lite
// fragment with the filter/quirks applicable to this request.
func (r *Router) renderOne(ctx context.Context, obj *model.CdsObject, filter didl.Filter) string {
	q := r.quirksFromContext(ctx)
	var container *model.CdsContainer
	var item *model.CdsItem
	if obj.IsContainer() {
		if c, err := r.storage.GetContainer(ctx, obj.ID); err == nil {
			container = c
		}
	} else {
		item = &model.CdsItem{CdsObject: *obj}
	}
	return r.didl.RenderObject(obj, container, item, filter, q)
}

// handleGetSearchCapabilities returns search capabilities
func (r *Router) handleGetSearchCapabilities(ctx context.Context) (*GetSearchCapabilitiesResponse, error) {
	return &GetSearchCapabilitiesResponse{SearchCaps: "dc:title,upnp:class,upnp:artist,upnp:album,upnp:genre,upnp:originalTrackNumber,@id,@parentID,@refID"}, nil
}

// handleGetSortCapabilities returns sort capabilities
func (r *Router) handleGetSortCapabilities(ctx context.Context) (*GetSortCapabilitiesResponse, error) {
	return &GetSortCapabilitiesResponse{SortCaps: "dc:title,upnp:album,upnp:artist,upnp:genre,upnp:originalTrackNumber,last_updated"}, nil
}

// handleGetSystemUpdateID returns the current SystemUpdateID
func (r *Router) handleGetSystemUpdateID(ctx context.Context) (*GetSystemUpdateIDResponse, error) {
	return &GetSystemUpdateIDResponse{Id: r.storage.SystemUpdateID(ctx)}, nil
}
