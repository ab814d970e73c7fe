package media

import (
	"strings"
	"time"

	"github.com/godbus/dbus/v5"
)

const (
	mprisPrefix          = "org.mpris.MediaPlayer2."
	mprisNamespace       = "org.mpris.MediaPlayer2"
	mprisPlayerInterface = "org.mpris.MediaPlayer2.Player"
	mprisObjectPath      = "/org/mpris/MediaPlayer2"

	dbusInterface           = "org.freedesktop.DBus"
	dbusPropertiesInterface = "org.freedesktop.DBus.Properties"
	dbusNameOwnerChanged    = dbusInterface + ".NameOwnerChanged"
	dbusPropertiesChanged   = dbusPropertiesInterface + ".PropertiesChanged"
)

// PlatformOptions configure the session bus platform
type PlatformOptions struct {
	// CallTimeout bounds every bus call (default: 2s)
	CallTimeout time.Duration

	// Art resolves cover-art URLs. Nil disables art.
	Art *ArtLoader
}

// parseMetadataMap converts an MPRIS Metadata dictionary.
func parseMetadataMap(m map[string]dbus.Variant) *Metadata {
	md := &Metadata{
		Title:  variantString(m, "xesam:title"),
		Artist: strings.Join(variantStrings(m, "xesam:artist"), ", "),
		Album:  variantString(m, "xesam:album"),
		ArtURL: variantString(m, "mpris:artUrl"),
	}

	if v, ok := m["mpris:length"]; ok {
		switch n := v.Value().(type) {
		case int64:
			md.Duration = time.Duration(n) * time.Microsecond
		case uint64:
			md.Duration = time.Duration(n) * time.Microsecond
		case int32:
			md.Duration = time.Duration(n) * time.Microsecond
		}
	}

	return md
}

func variantString(m map[string]dbus.Variant, key string) string {
	v, ok := m[key]
	if !ok {
		return ""
	}
	s, _ := v.Value().(string)
	return s
}

// variantStrings accepts both the MPRIS string array and a bare string,
// which some players send for xesam:artist.
func variantStrings(m map[string]dbus.Variant, key string) []string {
	v, ok := m[key]
	if !ok {
		return nil
	}
	switch val := v.Value().(type) {
	case []string:
		out := make([]string, 0, len(val))
		for _, s := range val {
			if s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if val != "" {
			return []string{val}
		}
	}
	return nil
}

// packageFromBusName derives an application name from an MPRIS bus name,
// e.g. org.mpris.MediaPlayer2.vlc.instance1234 -> vlc.
func packageFromBusName(name string) string {
	app := strings.TrimPrefix(name, mprisPrefix)
	if i := strings.Index(app, ".instance"); i > 0 {
		app = app[:i]
	}
	return app
}

// propertiesChange is the decoded body of a PropertiesChanged signal.
type propertiesChange struct {
	iface       string
	changed     map[string]dbus.Variant
	invalidated []string
}

func parsePropertiesChanged(body []interface{}) (propertiesChange, bool) {
	var pc propertiesChange
	if len(body) < 3 {
		return pc, false
	}

	var ok bool
	if pc.iface, ok = body[0].(string); !ok {
		return pc, false
	}
	if pc.changed, ok = body[1].(map[string]dbus.Variant); !ok {
		return pc, false
	}
	pc.invalidated, _ = body[2].([]string)
	return pc, true
}

// touches reports whether prop changed or was invalidated.
func (pc propertiesChange) touches(prop string) bool {
	if _, ok := pc.changed[prop]; ok {
		return true
	}
	for _, p := range pc.invalidated {
		if p == prop {
			return true
		}
	}
	return false
}

// sessionEventsFor maps a PropertiesChanged signal to per-session events.
func sessionEventsFor(pc propertiesChange) []SessionEventKind {
	if pc.iface != mprisPlayerInterface {
		return nil
	}
	var kinds []SessionEventKind
	if pc.touches("PlaybackStatus") {
		kinds = append(kinds, PlaybackStateChanged)
	}
	if pc.touches("Metadata") {
		kinds = append(kinds, MetadataChanged)
	}
	return kinds
}
