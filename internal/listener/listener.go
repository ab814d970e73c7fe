package listener

import (
	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("listener")

// Settings is the source of the enabled-listeners string.
type Settings interface {
	EnabledListeners() string
}

// Entitlement checks the settings for a component owned by appID on every
// call, so grants and revocations apply immediately.
type Entitlement struct {
	settings Settings
	appID    string
}

// NewEntitlement creates an entitlement check for appID
func NewEntitlement(settings Settings, appID string) *Entitlement {
	return &Entitlement{settings: settings, appID: appID}
}

// Enabled reports whether the listener entitlement is granted
func (e *Entitlement) Enabled() bool {
	enabled := IsEnabled(e.settings.EnabledListeners(), e.appID)
	if !enabled {
		log.Debugf("No enabled listener for %s", e.appID)
	}
	return enabled
}

// Opener navigates the user to the listener settings, which for this daemon
// is its configuration file.
type Opener struct {
	path       string
	hasDesktop func() bool
	launch     func(path string) error
}

// NewOpener creates an opener for the settings file at path
func NewOpener(path string) *Opener {
	return &Opener{
		path:       path,
		hasDesktop: desktopAvailable,
		launch:     launchSettings,
	}
}

// Open starts the desktop opener on the settings file. It reports whether a
// navigation was issued; it does not wait for the user.
func (o *Opener) Open() bool {
	if !o.hasDesktop() {
		log.Infof("No desktop session, edit %s to enable the listener", o.path)
		return false
	}
	if err := o.launch(o.path); err != nil {
		log.Warningf("Failed to open listener settings: %v", err)
		return false
	}
	log.Infof("Opened listener settings %s", o.path)
	return true
}
