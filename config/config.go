// Package config resolves per-object settings from an aliot configuration
// file. Objects are looked up by name; any key an object does not set falls
// back to the file's defaults, then to the built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

const (
	KeyObjectID = "obj_id"
	KeyWSURL    = "ws_url"
	KeyAPIURL   = "api_url"
	KeyThrottle = "throttle"

	DefaultWSURL  = "wss://alivecode.ca/iotgateway/"
	DefaultAPIURL = "https://alivecode.ca/api"

	// DiscoverURL as ws_url asks the runtime to locate the server over mDNS.
	DiscoverURL = "mdns"

	// EnvPath overrides the configuration file location.
	EnvPath     = "ALIOT_CONFIG"
	DefaultPath = "aliot.yaml"
)

var ErrMissingConfig = errors.New("missing required configuration")

// File is the parsed configuration file.
type File struct {
	Defaults map[string]any            `yaml:"defaults"`
	Objects  map[string]map[string]any `yaml:"objects"`
}

// Object holds the settings of one object.
type Object struct {
	Name     string
	ObjectID string
	WSURL    string
	APIURL   string
	Throttle bool
}

// Path returns the configuration path from the environment, or DefaultPath.
func Path() string {
	if p := os.Getenv(EnvPath); p != "" {
		return p
	}
	return DefaultPath
}

// Load reads and parses the file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses YAML configuration bytes.
func Parse(data []byte) (*File, error) {
	f := &File{}
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if f.Defaults == nil {
		f.Defaults = make(map[string]any)
	}
	if f.Objects == nil {
		f.Objects = make(map[string]map[string]any)
	}
	return f, nil
}

// Get returns the value of key for the named object, falling back to the
// defaults section. Empty values count as unset.
func (f *File) Get(name, key string) (string, bool) {
	if section, ok := f.Objects[name]; ok {
		if v, ok := lookup(section, key); ok {
			return v, true
		}
	}
	return lookup(f.Defaults, key)
}

func lookup(section map[string]any, key string) (string, bool) {
	raw, ok := section[key]
	if !ok || raw == nil {
		return "", false
	}
	v := strings.TrimSpace(cast.ToString(raw))
	return v, v != ""
}

// Object resolves the settings for name. The object does not need its own
// section as long as the defaults cover the required keys; call Validate
// before connecting.
func (f *File) Object(name string) Object {
	obj := Object{Name: name, WSURL: DefaultWSURL, APIURL: DefaultAPIURL}
	if v, ok := f.Get(name, KeyObjectID); ok {
		obj.ObjectID = v
	}
	if v, ok := f.Get(name, KeyWSURL); ok {
		obj.WSURL = v
	}
	if v, ok := f.Get(name, KeyAPIURL); ok {
		obj.APIURL = strings.TrimSuffix(v, "/")
	}
	if v, ok := f.Get(name, KeyThrottle); ok {
		obj.Throttle = cast.ToBool(v)
	}
	return obj
}

// Names lists the objects declared in the file.
func (f *File) Names() []string {
	names := make([]string, 0, len(f.Objects))
	for name := range f.Objects {
		names = append(names, name)
	}
	return names
}

// Validate reports the first required key that is not set.
func (o Object) Validate() error {
	if o.ObjectID == "" {
		return fmt.Errorf("%w: %s for object %q", ErrMissingConfig, KeyObjectID, o.Name)
	}
	if o.WSURL == "" {
		return fmt.Errorf("%w: %s for object %q", ErrMissingConfig, KeyWSURL, o.Name)
	}
	return nil
}

// Discover reports whether the websocket endpoint must be found over mDNS.
func (o Object) Discover() bool {
	return strings.EqualFold(o.WSURL, DiscoverURL)
}
