package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/meigma/avindex"
)

// flagKeys maps flags to configuration keys.
var flagKeys = map[string]string{
	"track":            avindex.KeyTrack,
	"exact":            avindex.KeyExactDuration,
	"samples-per-unit": avindex.KeySamplesPerUnit,
	"threads":          avindex.KeyThreads,
	"cache-dir":        avindex.KeyCacheDir,
	"disk-cache":       avindex.KeyEnableDiskCache,
	"format":           avindex.KeyOutputFormat,
	"digest":           avindex.KeyContentDigest,
	"log-level":        "log_level",
	"log-format":       "log_format",
}

// loadConfig reads the config file and environment and binds cmd's flags.
func loadConfig(cmd *cobra.Command) error {
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		v.AddConfigPath(home)
		v.AddConfigPath(".")
		v.SetConfigName("avindex")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("AVINDEX")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	flags := cmd.Flags()
	for name, key := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return err
		}
	}
	return nil
}

// viperReader adapts a viper instance to avindex.ConfigReader. Keys that
// are not set anywhere fall back to the library defaults.
type viperReader struct {
	v *viper.Viper
}

func (r viperReader) Int(key string, def int) int {
	if !r.v.IsSet(key) {
		return def
	}
	return r.v.GetInt(key)
}

func (r viperReader) Bool(key string, def bool) bool {
	if !r.v.IsSet(key) {
		return def
	}
	return r.v.GetBool(key)
}

func (r viperReader) String(key, def string) string {
	if !r.v.IsSet(key) {
		return def
	}
	return r.v.GetString(key)
}

func (r viperReader) Duration(key string, def time.Duration) time.Duration {
	if !r.v.IsSet(key) {
		return def
	}
	return r.v.GetDuration(key)
}
