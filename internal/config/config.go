// Package config layers flags, WEBMCUT_* environment variables, the config
// file and built-in defaults through viper.
package config

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"webmcut/internal/dirs"
)

// Keys read through viper.
const (
	KeyOutDir     = "out_dir"
	KeyTempDir    = "temp_dir"
	KeyVerbose    = "verbose"
	KeyFFmpeg     = "ffmpeg"
	KeyFFprobe    = "ffprobe"
	KeyVideoCodec = "video_codec"
	KeyAudioCodec = "audio_codec"
	KeySpeed      = "speed"
	KeyNoUI       = "no_ui"
)

// Settings is the resolved configuration.
type Settings struct {
	OutDir     string
	TempDir    string
	Verbose    bool
	FFmpeg     string
	FFprobe    string
	VideoCodec string
	AudioCodec string
	Speed      int
	NoUI       bool

	// File is the config file that was read, if any.
	File string
}

// persistentFlags maps viper keys to the root's persistent flag names.
var persistentFlags = map[string]string{
	KeyOutDir:  "out-dir",
	KeyTempDir: "temp-dir",
	KeyVerbose: "verbose",
	KeyFFmpeg:  "ffmpeg",
	KeyFFprobe: "ffprobe",
}

// Init wires v with the config path, env, defaults, and flag bindings.
// A missing config file is not an error; a malformed one is.
func Init(v *viper.Viper, root *cobra.Command) error {
	if cfgDir, err := dirs.ConfigDir(); err == nil {
		v.AddConfigPath(cfgDir)
	}
	v.SetConfigName("config") // supports config.{yaml|yml|json|toml}

	v.SetEnvPrefix("WEBMCUT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyVideoCodec, "vp9")
	v.SetDefault(KeyAudioCodec, "opus")
	v.SetDefault(KeySpeed, 1)

	for key, name := range persistentFlags {
		if f := root.PersistentFlags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return err
		}
	}
	return nil
}

// Load returns the current settings held by v.
func Load(v *viper.Viper) Settings {
	return Settings{
		OutDir:     v.GetString(KeyOutDir),
		TempDir:    v.GetString(KeyTempDir),
		Verbose:    v.GetBool(KeyVerbose),
		FFmpeg:     v.GetString(KeyFFmpeg),
		FFprobe:    v.GetString(KeyFFprobe),
		VideoCodec: v.GetString(KeyVideoCodec),
		AudioCodec: v.GetString(KeyAudioCodec),
		Speed:      v.GetInt(KeySpeed),
		NoUI:       v.GetBool(KeyNoUI),
		File:       v.ConfigFileUsed(),
	}
}
