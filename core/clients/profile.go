package clients

import (
	"fmt"
	"strings"

	"github.com/navidrome/mediaserver/conf"
	"github.com/navidrome/mediaserver/model"
)

// flagNames maps the config file's string tokens to QuirkFlag bits, mirroring
// the named-flag list Gerbera's client_config.cc parses out of <flags>.
var flagNames = map[string]model.QuirkFlag{
	"SAMSUNG":                model.QuirkSamsung,
	"SAMSUNG_BOOKMARK_SEC":   model.QuirkSamsungBookmarkSec,
	"SAMSUNG_BOOKMARK_MSEC":  model.QuirkSamsungBookmarkMsec,
	"IRADIO":                 model.QuirkIRadio,
	"SAMSUNG_FEATURES":       model.QuirkSamsungFeatures,
	"SAMSUNG_HIDE_DYNAMIC":   model.QuirkSamsungHideDynamic,
	"PV_SUBTITLES":           model.QuirkPVSubtitles,
	"PANASONIC":              model.QuirkPanasonic,
	"STRICT_XML":             model.QuirkStrictXML,
	"HIDE_RES_THUMBNAIL":     model.QuirkHideResThumbnail,
	"HIDE_RES_SUBTITLE":      model.QuirkHideResSubtitle,
	"HIDE_RES_TRANSCODE":     model.QuirkHideResTranscode,
	"SIMPLE_DATE":            model.QuirkSimpleDate,
	"ASCII_XML":              model.QuirkASCIIXML,
	"FORCE_NO_CONVERSION":    model.QuirkForceNoConversion,
	"SHOW_INTERNAL_SUBS":     model.QuirkShowInternalSubtitles,
	"TRANSCODING_1":          model.QuirkTranscoding1,
	"TRANSCODING_2":          model.QuirkTranscoding2,
	"TRANSCODING_3":          model.QuirkTranscoding3,
}

func parseFlags(names []string) (model.QuirkFlag, error) {
	var flags model.QuirkFlag
	for _, n := range names {
		bit, ok := flagNames[strings.ToUpper(strings.TrimSpace(n))]
		if !ok {
			return 0, fmt.Errorf("clients: unknown flag %q", n)
		}
		flags |= bit
	}
	return flags, nil
}

func parseMatchType(s string) (model.ClientMatchType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return model.MatchNone, nil
	case "useragent":
		return model.MatchUserAgent, nil
	case "manufacturer":
		return model.MatchManufacturer, nil
	case "modelname":
		return model.MatchModelName, nil
	case "friendlyname":
		return model.MatchFriendlyName, nil
	case "ip":
		return model.MatchIP, nil
	default:
		return "", fmt.Errorf("clients: unknown match type %q", s)
	}
}

// defaultResourcePurposes is granted to every profile unless the config
// narrows it; individual HIDE_RES_* flags further restrict at query time
// (Quirks.SupportsResource).
var defaultResourcePurposes = []model.ResourcePurpose{
	model.PurposeContent, model.PurposeThumbnail, model.PurposeSubtitle, model.PurposeTranscode,
}

// BuildProfiles turns the config file's declared client stanzas into
// ClientProfile values in declaration order, the order Resolve()'s
// first-match tie-break depends on.
func BuildProfiles(entries []conf.ClientProfileConfig) ([]*model.ClientProfile, error) {
	profiles := make([]*model.ClientProfile, 0, len(entries))
	for _, e := range entries {
		flags, err := parseFlags(e.Flags)
		if err != nil {
			return nil, fmt.Errorf("clients: profile %q: %w", e.Name, err)
		}
		matchType, err := parseMatchType(e.MatchType)
		if err != nil {
			return nil, fmt.Errorf("clients: profile %q: %w", e.Name, err)
		}
		group := e.Group
		if group == "" {
			group = "default"
		}
		p := &model.ClientProfile{
			Name:             e.Name,
			Group:            group,
			Type:             classify(flags),
			Flags:            flags,
			MatchType:        matchType,
			Match:            e.Match,
			MimeMappings:     e.MimeMappings,
			DlnaMappings:     e.DlnaMappings,
			Headers:          e.Headers,
			CaptionInfoCount: e.CaptionInfoCount,
			StringLimit:      e.StringLimit,
			MultiValue:       e.MultiValue,
			FullFilter:       e.FullFilter,
			IsAllowedFlag:    true,
			ResourcePurposes: defaultResourcePurposes,
		}
		if p.MimeMappings == nil {
			p.MimeMappings = map[string]string{}
		}
		if p.DlnaMappings == nil {
			p.DlnaMappings = map[string]string{}
		}
		if p.Headers == nil {
			p.Headers = map[string]string{}
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

func classify(flags model.QuirkFlag) model.ClientType {
	switch {
	case flags&(model.QuirkSamsung|model.QuirkSamsungFeatures|model.QuirkSamsungBookmarkSec|model.QuirkSamsungBookmarkMsec) != 0:
		return model.ClientTypeSamsung
	case flags&model.QuirkPanasonic != 0:
		return model.ClientTypePanasonic
	default:
		return model.ClientTypeStandardUPnP
	}
}
