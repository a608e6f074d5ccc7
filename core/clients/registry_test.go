package clients

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navidrome/mediaserver/conf"
	"github.com/navidrome/mediaserver/model"
)

func testProfiles(t *testing.T) []*model.ClientProfile {
	t.Helper()
	profiles, err := BuildProfiles([]conf.ClientProfileConfig{
		{
			Name:      "samsung-tv",
			Group:     "samsung",
			MatchType: "UserAgent",
			Match:     "SEC_HHP",
			Flags:     []string{"SAMSUNG", "SAMSUNG_FEATURES", "SIMPLE_DATE"},
		},
		{
			Name:      "lan-subnet",
			MatchType: "IP",
			Match:     "192.168.1.0/24",
			Flags:     []string{"STRICT_XML"},
		},
	})
	require.NoError(t, err)
	return profiles
}

func TestRegistryResolveByUserAgent(t *testing.T) {
	r := NewRegistry(testProfiles(t))
	defer r.Close()

	profile, obs := r.Resolve("10.0.0.5:51000", "SEC_HHP/1.0 DLNADOC/1.50")
	assert.Equal(t, "samsung-tv", profile.Name)
	assert.Equal(t, "samsung", profile.Group)
	require.NotNil(t, obs)
	assert.Equal(t, profile, obs.Profile)
}

func TestRegistryResolveByIPPrefersLongestPrefix(t *testing.T) {
	profiles, err := BuildProfiles([]conf.ClientProfileConfig{
		{Name: "broad", MatchType: "IP", Match: "192.168.0.0/16"},
		{Name: "narrow", MatchType: "IP", Match: "192.168.1.0/24"},
	})
	require.NoError(t, err)
	r := NewRegistry(profiles)
	defer r.Close()

	profile, _ := r.Resolve("192.168.1.42:1900", "")
	assert.Equal(t, "narrow", profile.Name)
}

func TestRegistryResolveFallsBackToUnknown(t *testing.T) {
	r := NewRegistry(testProfiles(t))
	defer r.Close()

	profile, _ := r.Resolve("8.8.8.8:1234", "curl/8.0")
	assert.Equal(t, model.Unknown, profile)
}

func TestRegistryResolveRemembersDiscoveredAddress(t *testing.T) {
	r := NewRegistry(testProfiles(t))
	defer r.Close()

	r.NoteDiscovery("10.0.0.9:1900", "SEC_HHP/1.0", "http://10.0.0.9:1900/desc.xml")
	// Second request from same addr with a generic UA still resolves via the
	// cached observation rather than falling back to Unknown.
	profile, _ := r.Resolve("10.0.0.9:1900", "")
	assert.Equal(t, "samsung-tv", profile.Name)
}

func TestRegistryListActiveReturnsObservations(t *testing.T) {
	r := NewRegistry(testProfiles(t))
	defer r.Close()

	r.Resolve("10.0.0.5:1900", "SEC_HHP/1.0")
	active := r.ListActive()
	require.Len(t, active, 1)
	assert.Equal(t, "10.0.0.5:1900", active[0].Addr)
}
