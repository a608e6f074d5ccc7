package clients

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navidrome/mediaserver/conf"
	"github.com/navidrome/mediaserver/model"
)

func samsungProfile(t *testing.T) *model.ClientProfile {
	t.Helper()
	profiles, err := BuildProfiles([]conf.ClientProfileConfig{
		{
			Name:             "samsung-tv",
			Group:            "samsung",
			MatchType:        "UserAgent",
			Match:            "SEC_HHP",
			Flags:            []string{"SAMSUNG", "SAMSUNG_BOOKMARK_SEC", "SAMSUNG_FEATURES", "HIDE_RES_SUBTITLE"},
			CaptionInfoCount: 1,
		},
	})
	require.NoError(t, err)
	return profiles[0]
}

func TestQuirksHasFlag(t *testing.T) {
	q := New(samsungProfile(t))
	assert.True(t, q.HasFlag(model.QuirkSamsung))
	assert.False(t, q.HasFlag(model.QuirkPanasonic))
}

func TestQuirksSupportsResourceHidesSubtitle(t *testing.T) {
	q := New(samsungProfile(t))
	assert.False(t, q.SupportsResource(model.PurposeSubtitle))
	assert.True(t, q.SupportsResource(model.PurposeContent))
}

func TestQuirksRestoreSamsungBookMarkedPositionConvertsToSeconds(t *testing.T) {
	q := New(samsungProfile(t))
	out := q.RestoreSamsungBookMarkedPosition(&model.ClientStatusDetail{BookMarkPos: 125000})
	assert.Equal(t, "<sec:dcmInfo>BM=125</sec:dcmInfo>", out)
}

func TestQuirksRestoreSamsungBookMarkedPositionNilStatus(t *testing.T) {
	q := New(samsungProfile(t))
	assert.Equal(t, "", q.RestoreSamsungBookMarkedPosition(nil))
}

func TestQuirksGetSamsungFeatureListOnlyWhenFlagged(t *testing.T) {
	q := New(samsungProfile(t))
	assert.Contains(t, q.GetSamsungFeatureList(), "samsung.com_BASICVIEW")

	plain := New(model.Unknown)
	assert.Equal(t, "", plain.GetSamsungFeatureList())
}

func TestQuirksUnknownProfileDefaultsPermissive(t *testing.T) {
	q := New(nil)
	assert.True(t, q.IsAllowed())
	assert.True(t, q.SupportsResource(model.PurposeTranscode))
}
