package dlna

import (
	"context"
	"encoding/xml"
	"net/http"
	"strconv"
	"strings"

	"github.com/navidrome/mediaserver/core/clients"
)

// IsAuthorizedRequest is the X_MS_MediaReceiverRegistrar IsAuthorized request.
type IsAuthorizedRequest struct {
	XMLName  xml.Name `xml:"IsAuthorized"`
	DeviceID string   `xml:"DeviceID"`
}

// IsAuthorizedResponse answers IsAuthorized/IsValidated — every device is
// pre-authorized, matching how Windows Media Player style clients expect an
// unconditional allow from a home media server.
type IsAuthorizedResponse struct {
	XMLName xml.Name `xml:"urn:microsoft.com:service:X_MS_MediaReceiverRegistrar:1 IsAuthorizedResponse"`
	Result  int      `xml:"Result"`
}

// IsValidatedResponse mirrors IsAuthorizedResponse for IsValidated.
type IsValidatedResponse struct {
	XMLName xml.Name `xml:"urn:microsoft.com:service:X_MS_MediaReceiverRegistrar:1 IsValidatedResponse"`
	Result  int      `xml:"Result"`
}

// RegisterDeviceResponse answers RegisterDevice with an empty registration
// blob; this server doesn't gate playback behind device registration.
type RegisterDeviceResponse struct {
	XMLName             xml.Name `xml:"urn:microsoft.com:service:X_MS_MediaReceiverRegistrar:1 RegisterDeviceResponse"`
	RegistrationRespMsg string   `xml:"RegistrationRespMsg"`
}

// XGetFeatureListResponse carries the Samsung basic-view <Features/> stanza.
type XGetFeatureListResponse struct {
	XMLName     xml.Name `xml:"urn:microsoft.com:service:X_MS_MediaReceiverRegistrar:1 X_GetFeatureListResponse"`
	FeatureList string   `xml:"FeatureList"`
}

// XSetBookmarkRequest is the parsed X_SetBookmark SOAP body.
type XSetBookmarkRequest struct {
	XMLName      xml.Name `xml:"X_SetBookmark"`
	CategoryType string   `xml:"CategoryType"`
	RID          string   `xml:"RID"`
	ObjectID     string   `xml:"ObjectID"`
	PosSecond    string   `xml:"PosSecond"`
}

// XSetBookmarkResponse is the empty success reply to X_SetBookmark.
type XSetBookmarkResponse struct {
	XMLName xml.Name `xml:"urn:microsoft.com:service:X_MS_MediaReceiverRegistrar:1 X_SetBookmarkResponse"`
}

func (r *Router) handleIsAuthorized(ctx context.Context, body []byte) (*IsAuthorizedResponse, error) {
	return &IsAuthorizedResponse{Result: 1}, nil
}

func (r *Router) handleIsValidated(ctx context.Context, body []byte) (*IsValidatedResponse, error) {
	return &IsValidatedResponse{Result: 1}, nil
}

func (r *Router) handleRegisterDevice(ctx context.Context) (*RegisterDeviceResponse, error) {
	return &RegisterDeviceResponse{RegistrationRespMsg: ""}, nil
}

// handleXGetFeatureList returns the client's Samsung basic-view feature list
// if its profile carries the SamsungFeatures quirk, or an empty stanza
// otherwise (spec §4.B, §6 Samsung extensions).
func (r *Router) handleXGetFeatureList(ctx context.Context, req *http.Request) (*XGetFeatureListResponse, error) {
	q := r.quirksForRequestOrContext(ctx, req)
	return &XGetFeatureListResponse{FeatureList: q.GetSamsungFeatureList()}, nil
}

// handleXSetBookmark persists the playback position a Samsung TV reports via
// X_SetBookmark. The position is always stored in milliseconds; the
// profile's bookmark quirk flag only affects how
// Quirks.RestoreSamsungBookMarkedPosition reports it back.
func (r *Router) handleXSetBookmark(ctx context.Context, req *http.Request, body []byte) (*XSetBookmarkResponse, error) {
	var bookmark XSetBookmarkRequest
	if err := xml.Unmarshal(body, &bookmark); err != nil {
		var wrapper struct {
			Bookmark XSetBookmarkRequest `xml:"X_SetBookmark"`
		}
		if err := xml.Unmarshal(body, &wrapper); err != nil {
			return nil, err
		}
		bookmark = wrapper.Bookmark
	}

	q := r.quirksForRequestOrContext(ctx, req)
	posMs := parsePosSecond(bookmark.PosSecond)
	status := q.SaveSamsungBookMarkedPosition(clients.SamsungBookmarkRequest{
		ObjectID:     bookmark.ObjectID,
		PosSecond:    bookmark.PosSecond,
		CategoryType: bookmark.CategoryType,
		RID:          bookmark.RID,
	}, posMs)

	if r.storage != nil {
		if err := r.storage.SavePlayStatus(ctx, status); err != nil {
			return nil, err
		}
	}
	return &XSetBookmarkResponse{}, nil
}

// quirksForRequestOrContext prefers quirks already resolved into ctx (set by
// handleContentDirectoryControl-style wrappers); falls back to resolving
// fresh from req when called directly, as the MRR handlers are.
func (r *Router) quirksForRequestOrContext(ctx context.Context, req *http.Request) clients.Quirks {
	if q, ok := ctx.Value(quirksCtxKey{}).(clients.Quirks); ok {
		return q
	}
	return r.quirksForRequest(req)
}

// parsePosSecond accepts either a plain integer seconds value or an
// "H:MM:SS" timecode, matching what different Samsung models report.
func parsePosSecond(pos string) int64 {
	if pos == "" {
		return 0
	}
	if secs, err := strconv.ParseInt(pos, 10, 64); err == nil {
		return secs * 1000
	}
	parts := strings.Split(pos, ":")
	var total int64
	for _, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return 0
		}
		total = total*60 + n
	}
	return total * 1000
}
