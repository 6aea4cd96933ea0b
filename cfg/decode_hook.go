package cfg

import "github.com/mitchellh/mapstructure"

// DecodeHook is passed to every viper.Unmarshal call so LogSeverity and
// LogFormat's UnmarshalText methods run during decoding, the way the
// teacher's cfg.DecodeHook drives its own typed string fields.
func DecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}
