// Package listener decides whether this daemon holds the listener entitlement
// that grants access to other applications' media sessions, and opens the
// place where the user grants it.
package listener

import "strings"

// ComponentName identifies a listener component as package plus class.
type ComponentName struct {
	Package string
	Class   string
}

// Unflatten parses "pkg/cls". A class starting with '.' is relative to pkg.
func Unflatten(s string) (ComponentName, bool) {
	pkg, cls, ok := strings.Cut(s, "/")
	if !ok || pkg == "" || cls == "" {
		return ComponentName{}, false
	}
	if cls[0] == '.' {
		cls = pkg + cls
	}
	return ComponentName{Package: pkg, Class: cls}, true
}

// Flatten renders the full "pkg/cls" form.
func (c ComponentName) Flatten() string {
	return c.Package + "/" + c.Class
}

// ShortString renders "pkg/.cls" when the class lives under pkg.
func (c ComponentName) ShortString() string {
	if strings.HasPrefix(c.Class, c.Package+".") {
		return c.Package + "/" + strings.TrimPrefix(c.Class, c.Package)
	}
	return c.Flatten()
}

// IsEnabled reports whether any component in the colon-separated flat list
// belongs to appID. Malformed entries are skipped.
func IsEnabled(flat, appID string) bool {
	if flat == "" || appID == "" {
		return false
	}
	for _, name := range strings.Split(flat, ":") {
		cn, ok := Unflatten(strings.TrimSpace(name))
		if ok && cn.Package == appID {
			return true
		}
	}
	return false
}
