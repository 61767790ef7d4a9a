package conf

import (
	"bytes"
	"errors"
	"os"
	"regexp"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

/* ========================================================================
 * Config loader
 * ========================================================================
 * One YAML or JSON file plus environment overrides, on viper. The file may
 * use ${VAR} and ${VAR:-default}; placeholders are expanded before the
 * file is parsed. A missing file is not an error: defaults and the
 * environment still apply.
 * ======================================================================== */

const DefaultEnvPrefix = "COMPIA"

// Loader fills a struct tagged with mapstructure.
type Loader interface {
	Load(out any) error
}

type Option func(*viperLoader)

// WithEnvPrefix sets the variable prefix; session.ttl is read from
// <PREFIX>_SESSION_TTL.
func WithEnvPrefix(prefix string) Option {
	return func(l *viperLoader) { l.envPrefix = prefix }
}

// WithDefaults registers defaults applied before decoding. A default also
// makes its key visible to the environment when no file sets it.
func WithDefaults(defaults map[string]any) Option {
	return func(l *viperLoader) { l.defaults = defaults }
}

type viperLoader struct {
	dir, name, format string
	envPrefix         string
	defaults          map[string]any
}

func NewLoader(dir, name, format string, opts ...Option) Loader {
	l := &viperLoader{dir: dir, name: name, format: format, envPrefix: DefaultEnvPrefix}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *viperLoader) Load(out any) error {
	path, err := l.locate()
	if err != nil {
		return err
	}

	v := l.newViper()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		v.SetConfigType(l.format)
		if err := v.ReadConfig(strings.NewReader(expandEnvPlaceholders(string(raw)))); err != nil {
			return err
		}
	}
	for key, value := range l.defaults {
		v.SetDefault(key, value)
	}

	return v.Unmarshal(out, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
}

// locate returns the config file path, or "" when there is none.
func (l *viperLoader) locate() (string, error) {
	finder := viper.New()
	finder.AddConfigPath(l.dir)
	finder.SetConfigName(l.name)
	finder.SetConfigType(l.format)
	if err := finder.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return "", nil
		}
		return "", err
	}
	return finder.ConfigFileUsed(), nil
}

func (l *viperLoader) newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(l.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

var placeholder = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// expandEnvPlaceholders follows the shell: an unset or empty variable
// takes the default.
func expandEnvPlaceholders(raw string) string {
	var buf bytes.Buffer
	last := 0
	for _, m := range placeholder.FindAllStringSubmatchIndex(raw, -1) {
		buf.WriteString(raw[last:m[0]])
		name := raw[m[2]:m[3]]
		if val := os.Getenv(name); val != "" {
			buf.WriteString(val)
		} else if m[4] >= 0 {
			buf.WriteString(raw[m[4]:m[5]])
		}
		last = m[1]
	}
	buf.WriteString(raw[last:])
	return buf.String()
}
