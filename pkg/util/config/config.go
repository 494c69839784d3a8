package config

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v6"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a config file
type Format string

const (
	// FormatJSON json config
	FormatJSON Format = "json"
	// FormatYAML yaml config
	FormatYAML Format = "yaml"
)

var (
	config     = make(map[string]interface{})
	configFile string
)

// SetConfigFile sets the config file path to be read
func SetConfigFile(path string) {
	configFile = path
}

// ReadInConfig reads the config file previously set
// If no config file was set, does nothing
func ReadInConfig() error {
	if configFile == "" {
		//No config file set, just return
		return nil
	}

	f, err := os.Open(configFile)
	if err != nil {
		return errors.Wrapf(err, "cannot open file %s", configFile)
	}
	defer f.Close()

	return ReadConfigAs(f, formatOf(configFile))
}

func formatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// ReadConfig read json config from the given reader
func ReadConfig(in io.Reader) error {
	return ReadConfigAs(in, FormatJSON)
}

// ReadConfigAs read config encoded with the given format from the given reader
func ReadConfigAs(in io.Reader, format Format) error {
	c := make(map[string]interface{})
	switch format {
	case FormatYAML:
		if err := yaml.NewDecoder(in).Decode(&c); err != nil && err != io.EOF {
			return errors.Wrap(err, "cannot decode yaml config")
		}
	default:
		if err := json.NewDecoder(in).Decode(&c); err != nil {
			return errors.Wrap(err, "cannot decode config")
		}
	}
	config = c
	return nil
}

// Reset drops any config previously read
func Reset() {
	config = make(map[string]interface{})
	configFile = ""
}

// Get returns the value for the given key
func Get(key string) interface{} {
	var obj interface{} = config
	var val interface{} = nil

	parts := strings.Split(key, ".")
	for _, p := range parts {
		if v, ok := obj.(map[string]interface{}); ok {
			obj = v[p]
			val = obj
		} else {
			return nil
		}
	}
	return val
}

// Unmarshal parses the config data for the given key and stores the result in the value pointed to by v.
// Env variables declared with `env` tags take precedence over config data.
// Fields neither in config data nor in env keep their current value.
func Unmarshal(key string, v interface{}) error {
	in := Get(key)
	//Decode from config data
	if in != nil {
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
			TagName:    "json",
			Result:     v,
		})
		if err != nil {
			return errors.Wrap(err, "cannot create config decoder")
		}
		if err := dec.Decode(in); err != nil {
			return errors.Wrapf(err, "cannot decode config for key %s", key)
		}
	}
	// Parse env variables
	if err := env.Parse(v); err != nil {
		return errors.Wrap(err, "cannot parse env")
	}
	return nil
}

// EnvConfigFile is the env variable naming the config file when none is given
const EnvConfigFile = "NEREUS_CONFIG"

// Load reads the config file at path, or the one named by EnvConfigFile if path is empty,
// then unmarshals the config data for key into v.
func Load(path, key string, v interface{}) error {
	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	SetConfigFile(path)
	if err := ReadInConfig(); err != nil {
		return err
	}
	return Unmarshal(key, v)
}
