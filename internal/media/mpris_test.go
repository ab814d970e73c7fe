package media

import (
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMetadataMap(t *testing.T) {
	md := parseMetadataMap(map[string]dbus.Variant{
		"xesam:title":  dbus.MakeVariant("Song"),
		"xesam:artist": dbus.MakeVariant([]string{"A", "", "B"}),
		"xesam:album":  dbus.MakeVariant("LP"),
		"mpris:length": dbus.MakeVariant(int64(90_000_000)),
		"mpris:artUrl": dbus.MakeVariant("file:///tmp/cover.png"),
		"xesam:genre":  dbus.MakeVariant([]string{"Jazz"}),
	})

	assert.Equal(t, "Song", md.Title)
	assert.Equal(t, "A, B", md.Artist)
	assert.Equal(t, "LP", md.Album)
	assert.Equal(t, 90*time.Second, md.Duration)
	assert.Equal(t, "file:///tmp/cover.png", md.ArtURL)
	assert.Nil(t, md.Art)
}

func TestParseMetadataMapLenient(t *testing.T) {
	md := parseMetadataMap(map[string]dbus.Variant{
		"xesam:title":  dbus.MakeVariant(uint32(7)),
		"xesam:artist": dbus.MakeVariant("Solo"),
		"mpris:length": dbus.MakeVariant(uint64(1_000_000)),
	})

	assert.Empty(t, md.Title)
	assert.Equal(t, "Solo", md.Artist)
	assert.Equal(t, time.Second, md.Duration)
}

func TestPackageFromBusName(t *testing.T) {
	assert.Equal(t, "vlc", packageFromBusName("org.mpris.MediaPlayer2.vlc"))
	assert.Equal(t, "vlc", packageFromBusName("org.mpris.MediaPlayer2.vlc.instance4242"))
	assert.Equal(t, "chromium", packageFromBusName("org.mpris.MediaPlayer2.chromium.instance7"))
	assert.Equal(t, "firefox.tab1", packageFromBusName("org.mpris.MediaPlayer2.firefox.tab1"))
}

func TestSessionEventsFor(t *testing.T) {
	pc, ok := parsePropertiesChanged([]interface{}{
		mprisPlayerInterface,
		map[string]dbus.Variant{"PlaybackStatus": dbus.MakeVariant("Paused")},
		[]string{"Metadata"},
	})
	require.True(t, ok)
	assert.Equal(t, []SessionEventKind{PlaybackStateChanged, MetadataChanged}, sessionEventsFor(pc))

	pc, ok = parsePropertiesChanged([]interface{}{
		mprisPlayerInterface,
		map[string]dbus.Variant{"Volume": dbus.MakeVariant(0.5)},
		[]string{},
	})
	require.True(t, ok)
	assert.Empty(t, sessionEventsFor(pc))

	pc, ok = parsePropertiesChanged([]interface{}{
		"org.mpris.MediaPlayer2",
		map[string]dbus.Variant{"PlaybackStatus": dbus.MakeVariant("Paused")},
		[]string{},
	})
	require.True(t, ok)
	assert.Empty(t, sessionEventsFor(pc), "only Player interface changes count")

	_, ok = parsePropertiesChanged([]interface{}{"x"})
	assert.False(t, ok)
}
