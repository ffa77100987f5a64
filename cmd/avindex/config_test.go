package main

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/avindex"
)

func TestViperReaderDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := avindex.ConfigFrom(viperReader{v: viper.New()})
	require.NoError(t, err)
	assert.Equal(t, avindex.DefaultConfig(), cfg)
}

func TestViperReader(t *testing.T) {
	t.Parallel()

	vp := viper.New()
	vp.Set(avindex.KeyTrack, "1")
	vp.Set(avindex.KeyExactDuration, "false")
	vp.Set(avindex.KeyCacheDir, "/tmp/avi")
	vp.Set(avindex.KeyMaxDiskCacheAge, "2h")
	vp.Set(avindex.KeyOutputFormat, "s16")

	cfg, err := avindex.ConfigFrom(viperReader{v: vp})
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.TrackSelector)
	assert.False(t, cfg.ExactDuration)
	assert.Equal(t, "/tmp/avi", cfg.CacheDir)
	assert.Equal(t, 2*time.Hour, cfg.MaxDiskCacheAge)
	assert.Equal(t, avindex.SampleFormatS16, cfg.OutputFormat)
	assert.True(t, cfg.EnableDiskCache)
}

func TestBarSinkDescription(t *testing.T) {
	t.Parallel()

	s := &barSink{title: "Indexing"}
	assert.Equal(t, "Indexing", s.description())
	s.SetMessage("Creating cache... This can take a while!")
	got := s.description()
	assert.Len(t, got, descLength)
	assert.Equal(t, "..", got[len(got)-2:])
}
