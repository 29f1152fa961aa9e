// Package config loads the simulated-platform profile (permissions.yaml) and
// resolves defaults from the surrounding Go module.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/mod/modfile"
	"golang.org/x/mod/module"
	"gopkg.in/yaml.v3"
)

// FileName is the profile file looked up in the project root.
const FileName = "permissions.yaml"

// Profile is the optional permissions.yaml document.
type Profile struct {
	App      AppConfig      `yaml:"app"`
	Settings SettingsConfig `yaml:"settings"`
	Location LocationConfig `yaml:"location"`
	Domains  []DomainConfig `yaml:"domains"`
}

// AppConfig contains application metadata.
type AppConfig struct {
	Name string `yaml:"name,omitempty"`
	ID   string `yaml:"id,omitempty"`
}

// SettingsConfig controls the simulated settings navigation.
type SettingsConfig struct {
	// Opens reports whether openSettings succeeds. Defaults to true.
	Opens *bool `yaml:"opens,omitempty"`
}

// LocationConfig controls the simulated location services switch.
type LocationConfig struct {
	// ServicesEnabled defaults to true.
	ServicesEnabled *bool `yaml:"servicesEnabled,omitempty"`
}

// DomainConfig scripts one native authorization domain.
type DomainConfig struct {
	Domain string `yaml:"domain"`
	Target string `yaml:"target,omitempty"`
	// Status is the native status before any request. Defaults to notDetermined.
	Status string `yaml:"status,omitempty"`
	// Response is the native status the user picks when prompted. Defaults
	// to denied.
	Response string `yaml:"response,omitempty"`
	// Delay is how long the simulated prompt stays open.
	Delay time.Duration `yaml:"delay,omitempty"`
	// Silent requests never answer.
	Silent bool `yaml:"silent,omitempty"`
}

// Resolved contains the profile with defaults applied.
type Resolved struct {
	Root            string
	ModulePath      string
	AppName         string
	AppID           string
	SettingsOpen    bool
	ServicesEnabled bool
	Domains         []DomainConfig
}

var validNativeStatuses = map[string]bool{
	"notDetermined":       true,
	"restricted":          true,
	"denied":              true,
	"authorized":          true,
	"authorizedAlways":    true,
	"authorizedWhenInUse": true,
	"limited":             true,
	"unavailable":         true,
}

// LoadOptional reads permissions.yaml from dir if present.
func LoadOptional(dir string) (*Profile, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Profile{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", FileName, err)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", FileName, err)
	}
	return &p, nil
}

// Resolve loads the profile in dir (if present) and resolves defaults. The
// app name and ID default from the module path in dir/go.mod; without a
// go.mod they default from the directory name.
func Resolve(dir string) (*Resolved, error) {
	modPath, err := modulePath(dir)
	if err != nil {
		return nil, err
	}

	p, err := LoadOptional(dir)
	if err != nil {
		return nil, err
	}

	appName := strings.TrimSpace(p.App.Name)
	if appName == "" {
		appName = defaultAppName(modPath, dir)
	}

	appID := strings.TrimSpace(p.App.ID)
	if appID == "" {
		appID = defaultAppID(modPath, appName)
	}
	if err := validateAppID(appID); err != nil {
		return nil, err
	}

	domains := make([]DomainConfig, 0, len(p.Domains))
	for i, d := range p.Domains {
		d, err := normalizeDomain(d)
		if err != nil {
			return nil, fmt.Errorf("domains[%d]: %w", i, err)
		}
		domains = append(domains, d)
	}

	return &Resolved{
		Root:            dir,
		ModulePath:      modPath,
		AppName:         appName,
		AppID:           appID,
		SettingsOpen:    boolOr(p.Settings.Opens, true),
		ServicesEnabled: boolOr(p.Location.ServicesEnabled, true),
		Domains:         domains,
	}, nil
}

// FindProjectRoot walks up from start to the nearest directory holding
// permissions.yaml or go.mod.
func FindProjectRoot(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}

	for {
		for _, marker := range []string{FileName, "go.mod"} {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no %s or go.mod found above %s", FileName, start)
		}
		dir = parent
	}
}

func normalizeDomain(d DomainConfig) (DomainConfig, error) {
	d.Domain = strings.TrimSpace(d.Domain)
	d.Target = strings.TrimSpace(d.Target)
	if d.Domain == "" {
		return d, fmt.Errorf("domain is required")
	}
	if d.Status == "" {
		d.Status = "notDetermined"
	}
	if d.Response == "" {
		d.Response = "denied"
	}
	for _, s := range []string{d.Status, d.Response} {
		if !validNativeStatuses[s] {
			return d, fmt.Errorf("unknown native status %q for %s", s, d.Domain)
		}
	}
	if d.Delay < 0 {
		return d, fmt.Errorf("delay must not be negative (got %s)", d.Delay)
	}
	return d, nil
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func modulePath(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, "go.mod"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read go.mod: %w", err)
	}
	path := modfile.ModulePath(data)
	if path == "" {
		return "", fmt.Errorf("could not determine module path from go.mod")
	}
	return path, nil
}

func defaultAppName(modulePath, dir string) string {
	base := filepath.Base(dir)
	if modulePath != "" {
		if modName, _, ok := module.SplitPathVersion(modulePath); ok {
			if parts := strings.Split(modName, "/"); len(parts) > 0 {
				base = parts[len(parts)-1]
			}
		}
	}
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "app"
	}
	return base
}

// defaultAppID reverses the module host and appends the path, so
// github.com/acme/camera becomes com.github.acme.camera.
func defaultAppID(modulePath, appName string) string {
	parts := strings.Split(modulePath, "/")
	if len(parts) < 2 || !strings.Contains(parts[0], ".") {
		return "com.example." + sanitizeSegment(appName, false)
	}

	host := strings.Split(parts[0], ".")
	for i, j := 0, len(host)-1; i < j; i, j = i+1, j-1 {
		host[i], host[j] = host[j], host[i]
	}

	segments := host
	for _, p := range parts[1:] {
		if p != "" {
			segments = append(segments, p)
		}
	}
	for i, segment := range segments {
		segments[i] = sanitizeSegment(segment, false)
	}
	return strings.Join(segments, ".")
}

func sanitizeSegment(segment string, allowLeadingDigit bool) string {
	var out []rune
	for _, r := range strings.TrimSpace(segment) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			out = append(out, r)
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		}
	}
	if len(out) == 0 {
		return "app"
	}
	if !allowLeadingDigit && out[0] >= '0' && out[0] <= '9' {
		out = append([]rune{'a'}, out...)
	}
	return string(out)
}

func validateAppID(appID string) error {
	if !strings.Contains(appID, ".") {
		return fmt.Errorf("app.id must contain at least one '.' (got %q)", appID)
	}
	for _, segment := range strings.Split(appID, ".") {
		if segment == "" {
			return fmt.Errorf("app.id contains an empty segment (%q)", appID)
		}
		if segment[0] >= '0' && segment[0] <= '9' {
			return fmt.Errorf("app.id segments cannot start with a digit (%q)", appID)
		}
		for _, r := range segment {
			if !(r == '_' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
				return fmt.Errorf("app.id contains invalid character %q in %q", r, appID)
			}
		}
	}
	return nil
}
