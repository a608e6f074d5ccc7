package transcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTemplateArgsSubstitutesInAndOut(t *testing.T) {
	args := templateArgs("-i %in -f wav %out", "/media/song.flac", "/tmp/tr-1.fifo", 0)
	assert.Equal(t, []string{"-i", "/media/song.flac", "-f", "wav", "/tmp/tr-1.fifo"}, args)
}

func TestTemplateArgsSubstitutesSeek(t *testing.T) {
	args := templateArgs("-ss %seek -i %in -f wav %out", "/media/song.flac", "/tmp/tr-2.fifo", 45)
	assert.Equal(t, []string{"-ss", "45", "-i", "/media/song.flac", "-f", "wav", "/tmp/tr-2.fifo"}, args)
}

func TestTemplateArgsNoSeekLeavesPlaceholderUnset(t *testing.T) {
	args := templateArgs("-ss %seek -i %in %out", "/media/song.flac", "/tmp/tr-3.fifo", 0)
	assert.Equal(t, []string{"-ss", "%seek", "-i", "/media/song.flac", "/tmp/tr-3.fifo"}, args)
}
