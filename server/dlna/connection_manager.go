package dlna

import (
	"context"
	"encoding/xml"
	"sort"
	"strings"

	"github.com/navidrome/mediaserver/core/dispatch"
)

// GetProtocolInfoResponse for GetProtocolInfo action
type GetProtocolInfoResponse struct {
	XMLName xml.Name `xml:"urn:schemas-upnp-org:service:ConnectionManager:1 GetProtocolInfoResponse"`
	Source  string   `xml:"Source"`
	Sink    string   `xml:"Sink"`
}

// GetCurrentConnectionIDsResponse for GetCurrentConnectionIDs action
type GetCurrentConnectionIDsResponse struct {
	XMLName       xml.Name `xml:"urn:schemas-upnp-org:service:ConnectionManager:1 GetCurrentConnectionIDsResponse"`
	ConnectionIDs string   `xml:"ConnectionIDs"`
}

// GetCurrentConnectionInfoRequest for GetCurrentConnectionInfo action
type GetCurrentConnectionInfoRequest struct {
	XMLName      xml.Name `xml:"GetCurrentConnectionInfo"`
	ConnectionID int      `xml:"ConnectionID"`
}

// GetCurrentConnectionInfoResponse for GetCurrentConnectionInfo action
type GetCurrentConnectionInfoResponse struct {
	XMLName               xml.Name `xml:"urn:schemas-upnp-org:service:ConnectionManager:1 GetCurrentConnectionInfoResponse"`
	RcsID                 int      `xml:"RcsID"`
	AVTransportID         int      `xml:"AVTransportID"`
	ProtocolInfo          string   `xml:"ProtocolInfo"`
	PeerConnectionManager string   `xml:"PeerConnectionManager"`
	PeerConnectionID      int      `xml:"PeerConnectionID"`
	Direction             string   `xml:"Direction"`
	Status                string   `xml:"Status"`
}

// handleGetProtocolInfo advertises one generic http-get source entry per
// MIME type this server's dispatcher recognizes (spec §4.E), rather than a
// hardcoded audio-only catalog; clients use this to decide whether to even
// attempt playback before issuing Browse/Search.
func (r *Router) handleGetProtocolInfo(ctx context.Context) (*GetProtocolInfoResponse, error) {
	mimes := dispatch.KnownMimeTypes()
	sort.Strings(mimes)
	protocols := make([]string, 0, len(mimes))
	for _, mime := range mimes {
		protocols = append(protocols, "http-get:*:"+mime+":*")
	}

	return &GetProtocolInfoResponse{
		Source: strings.Join(protocols, ","),
		Sink:   "",
	}, nil
}

// handleGetCurrentConnectionIDs returns active connection IDs
func (r *Router) handleGetCurrentConnectionIDs(ctx context.Context) (*GetCurrentConnectionIDsResponse, error) {
	return &GetCurrentConnectionIDsResponse{ConnectionIDs: "0"}, nil
}

// handleGetCurrentConnectionInfo returns info about a specific connection.
// This server doesn't track per-connection AVTransport/RCS state, so it
// always describes the single implicit output connection.
func (r *Router) handleGetCurrentConnectionInfo(ctx context.Context, body []byte) (*GetCurrentConnectionInfoResponse, error) {
	return &GetCurrentConnectionInfoResponse{
		RcsID:                 -1,
		AVTransportID:         -1,
		ProtocolInfo:          "",
		PeerConnectionManager: "",
		PeerConnectionID:      -1,
		Direction:             "Output",
		Status:                "OK",
	}, nil
}
