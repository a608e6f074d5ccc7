package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURLBasic(t *testing.T) {
	key, err := ParseURL("/object_id/42/res_id/1/song.mp3")
	require.NoError(t, err)
	assert.Equal(t, "42", key.ObjectID)
	assert.True(t, key.HasResID)
	assert.Equal(t, 1, key.ResID)
	assert.Equal(t, "song.mp3", key.Filename)
}

func TestParseURLTranscodeProfile(t *testing.T) {
	key, err := ParseURL("/object_id/42/pr_name/to-wav/res_id/none")
	require.NoError(t, err)
	assert.Equal(t, "to-wav", key.ProfileName)
}

func TestParseURLDecodesTokens(t *testing.T) {
	key, err := ParseURL("/object_id/a%2Fb")
	require.NoError(t, err)
	assert.Equal(t, "a/b", key.ObjectID)
}

func TestParseURLRejectsMissingObjectID(t *testing.T) {
	_, err := ParseURL("/res_id/1")
	assert.Error(t, err)
}

func TestParseURLOddTrailingTokenIsFilename(t *testing.T) {
	key, err := ParseURL("/object_id/42/cover.jpg")
	require.NoError(t, err)
	assert.Equal(t, "42", key.ObjectID)
	assert.Equal(t, "cover.jpg", key.Filename)
}

func TestBuildURLRoundTrips(t *testing.T) {
	key := ResourceKey{ObjectID: "42", ResID: 1, HasResID: true, Filename: "song.mp3"}
	out := BuildURL("/content/media", key)
	decoded, err := ParseURL(out[len("/content/media"):])
	require.NoError(t, err)
	assert.Equal(t, key.ObjectID, decoded.ObjectID)
	assert.Equal(t, key.ResID, decoded.ResID)
	assert.Equal(t, key.Filename, decoded.Filename)
}

func TestDetectMimeKnownExtension(t *testing.T) {
	assert.Equal(t, "audio/flac", DetectMime("/music/track.flac"))
}

func TestDetectMimeUnknownExtension(t *testing.T) {
	assert.Equal(t, "application/octet-stream", DetectMime("/music/track.xyz"))
}
