package device

import (
	"path/filepath"
	"strings"

	"github.com/devicelab-dev/uidriver/pkg/agent"
)

// App identifies an installable application package.
type App struct {
	// Path is the app binary on the host (.apk, .app, .ipa). Empty when the
	// app is referenced by identifier only.
	Path string
	// ID is the package name or bundle identifier. Derived from Path when
	// not set explicitly.
	ID string
}

// NewApp creates an App from a binary path.
func NewApp(path string) *App {
	return &App{Path: path, ID: idFromPath(path)}
}

// idFromPath derives a provisional identifier from the binary file name.
// Backends replace it with the real package name once the binary is parsed.
func idFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ResolveApp normalizes an application reference to a canonical *App.
// Accepted inputs: a host path or identifier string, an *App, or an App
// value. Anything else fails with a bad-argument ValidationError; resolution
// happens per call and nothing is persisted.
func ResolveApp(ref interface{}) (*App, error) {
	switch v := ref.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, agent.NewArgumentError("application path or identifier must not be empty")
		}
		if looksLikePath(v) {
			return NewApp(v), nil
		}
		return &App{ID: v}, nil
	case *App:
		if v == nil {
			return nil, agent.NewArgumentError("application reference must not be nil")
		}
		return v, nil
	case App:
		app := v
		return &app, nil
	case nil:
		return nil, agent.NewArgumentError("application reference must not be nil")
	default:
		return nil, agent.NewArgumentError("cannot resolve application from %T", ref)
	}
}

// looksLikePath distinguishes file paths from bare identifiers.
func looksLikePath(s string) bool {
	if strings.ContainsAny(s, `/\`) {
		return true
	}
	switch strings.ToLower(filepath.Ext(s)) {
	case ".apk", ".app", ".ipa":
		return true
	}
	return false
}
