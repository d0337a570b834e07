package settings

import (
	"log" // cannot use zerolog as log options not initialised
	"strings"

	"dario.cat/mergo"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// envKey maps DS__HASHING__WORKERS and DS.HASHING.WORKERS onto hashing.workers
func envKey(prefix string) func(string) string {
	return func(s string) string {
		s = strings.TrimPrefix(s, prefix)
		s = strings.ReplaceAll(s, "__", ".")
		s = strings.TrimLeft(s, "._")
		return strings.ToLower(s)
	}
}

// parseSettings layers defaults, an optional yaml file and the environment.
func parseSettings(def DSSettings, prefix string, configFile string, hooks []mapstructure.DecodeHookFunc) *DSSettings {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(def, "koanf"), nil); err != nil {
		log.Fatalf("could not load default settings: %v", err)
	}
	if len(configFile) > 0 {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			log.Fatalf("could not load settings file '%s': %v", configFile, err)
		}
	}
	if err := k.Load(env.Provider(prefix, ".", envKey(prefix)), nil); err != nil {
		log.Fatalf("could not load settings from environment: %v", err)
	}

	out := DSSettings{}
	err := k.UnmarshalWithConf("", &out, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook:       mapstructure.ComposeDecodeHookFunc(hooks...),
			Result:           &out,
			WeaklyTypedInput: true,
		},
	})
	if err != nil {
		log.Fatalf("could not decode settings: %v", err)
	}
	return &out
}

// ApplyOverrides merges any non-zero fields of overrides on top of the active settings.
func ApplyOverrides(overrides *DSSettings) error {
	if err := mergo.Merge(Settings, *overrides, mergo.WithOverride); err != nil {
		return err
	}
	Logger = Logger.Level(parseLevel(Settings.LogLevel))
	return nil
}
