package model

import "time"

// ClientMatchType names the rule class used to recognize a client.
type ClientMatchType string

const (
	MatchNone         ClientMatchType = "None"
	MatchUserAgent    ClientMatchType = "UserAgent"
	MatchManufacturer ClientMatchType = "Manufacturer"
	MatchModelName    ClientMatchType = "ModelName"
	MatchFriendlyName ClientMatchType = "FriendlyName"
	MatchIP           ClientMatchType = "IP"
)

// ClientType roughly buckets a profile's device family.
type ClientType string

const (
	ClientTypeUnknown ClientType = "Unknown"
	ClientTypeStandardUPnP ClientType = "StandardUPnP"
	ClientTypeBubbleUPnP ClientType = "BubbleUPnP"
	ClientTypeSamsung ClientType = "Samsung"
	ClientTypePanasonic ClientType = "Panasonic"
)

// QuirkFlag is a bit in ClientProfile.Flags (32-bit mask, spec §4.B).
type QuirkFlag uint32

const (
	QuirkSamsung QuirkFlag = 1 << iota
	QuirkSamsungBookmarkSec
	QuirkSamsungBookmarkMsec
	QuirkIRadio
	QuirkSamsungFeatures
	QuirkSamsungHideDynamic
	QuirkPVSubtitles
	QuirkPanasonic
	QuirkStrictXML
	QuirkHideResThumbnail
	QuirkHideResSubtitle
	QuirkHideResTranscode
	QuirkSimpleDate
	QuirkASCIIXML
	QuirkForceNoConversion
	QuirkShowInternalSubtitles
	QuirkTranscoding1
	QuirkTranscoding2
	QuirkTranscoding3
)

// ClientProfile statically describes a recognized client (spec §3).
type ClientProfile struct {
	Name              string
	Group             string
	Type              ClientType
	Flags             QuirkFlag
	MatchType         ClientMatchType
	Match             string
	MimeMappings      map[string]string
	DlnaMappings      map[string]string
	Headers           map[string]string
	CaptionInfoCount  int
	StringLimit       int
	MultiValue        bool
	FullFilter        bool
	IsAllowedFlag     bool
	ResourcePurposes  []ResourcePurpose
}

// Unknown is the resolution fallback. It is not stored in the client
// registry's configured profile list, at index 0 or elsewhere.
var Unknown = &ClientProfile{
	Name:             "Unknown",
	Group:            "default",
	Type:             ClientTypeUnknown,
	MatchType:        MatchNone,
	IsAllowedFlag:    true,
	ResourcePurposes: []ResourcePurpose{PurposeContent, PurposeThumbnail, PurposeSubtitle, PurposeTranscode},
}

func (p *ClientProfile) HasFlag(f QuirkFlag) bool { return p != nil && p.Flags&f != 0 }

func (p *ClientProfile) SupportsPurpose(purpose ResourcePurpose) bool {
	if p == nil {
		return true
	}
	for _, rp := range p.ResourcePurposes {
		if rp == purpose {
			return true
		}
	}
	return false
}

// ClientObservation is a dynamic per-address cache entry (spec §3).
type ClientObservation struct {
	Addr      string
	UserAgent string
	Last      time.Time
	Age       time.Time
	Headers   map[string]string
	Profile   *ClientProfile
}

// ClientStatusDetail tracks per (group, itemId) play state (spec §3).
type ClientStatusDetail struct {
	Group              string
	ItemID             string
	PlayCount           int
	LastPlayed          int64 // unix seconds, 0 until first save
	LastPlayedPosition  int64 // ms
	BookMarkPos         int64 // ms
}
