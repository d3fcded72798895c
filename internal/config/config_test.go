package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 44000, cfg.Audio.SampleRate)
	assert.Equal(t, 100*time.Millisecond, cfg.Audio.ChunkDuration)
	assert.Equal(t, float64(500), cfg.Audio.VolumeThreshold)
	assert.Equal(t, time.Second, cfg.Audio.SilenceDuration)
	assert.Equal(t, 5, cfg.Whisper.BeamSize)
	assert.Equal(t, "5023", cfg.Port)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Audio, cfg.Audio)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "9000"
audio:
  sample_rate: 16000
  silence_duration: 2s
whisper:
  model: medium
  beam_size: 3
`), 0o644))

	t.Setenv("WHISPER_BEAM_SIZE", "8")
	t.Setenv("AUDIO_VOLUME_THRESHOLD", "250.5")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 16000, cfg.Audio.SampleRate)
	assert.Equal(t, 2*time.Second, cfg.Audio.SilenceDuration)
	assert.Equal(t, "medium", cfg.Whisper.Model)
	assert.Equal(t, 8, cfg.Whisper.BeamSize)
	assert.Equal(t, 250.5, cfg.Audio.VolumeThreshold)
	assert.Equal(t, 100*time.Millisecond, cfg.Audio.ChunkDuration)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(".env", []byte("WHISPER_MODEL=tiny\nREDIS_URL=redis://localhost:6379/0\n"), 0o644))
	t.Cleanup(func() {
		os.Unsetenv("WHISPER_MODEL")
		os.Unsetenv("REDIS_URL")
	})

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "tiny", cfg.Whisper.Model)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Storage.RedisURL)
}

func TestLoad_BadEnvValue(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("AUDIO_CHUNK_DURATION", "fast")
	_, err := Load("")
	assert.ErrorContains(t, err, "AUDIO_CHUNK_DURATION")
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"zero rate":        func(c *Config) { c.Audio.SampleRate = 0 },
		"zero chunk":       func(c *Config) { c.Audio.ChunkDuration = 0 },
		"zero silence":     func(c *Config) { c.Audio.SilenceDuration = 0 },
		"zero threshold":   func(c *Config) { c.Audio.VolumeThreshold = 0 },
		"zero beam":        func(c *Config) { c.Whisper.BeamSize = 0 },
		"unknown backend":  func(c *Config) { c.Whisper.Backend = "vosk" },
		"negative max rec": func(c *Config) { c.Audio.MaxRecording = -time.Second },
		"sub-sample chunk": func(c *Config) { c.Audio.ChunkDuration = 10 * time.Microsecond },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_ChunkShorterThanOneSample(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("AUDIO_CHUNK_DURATION", "10us")

	_, err := Load("")
	assert.ErrorContains(t, err, "holds no samples")
}

func TestSamplesPerChunk(t *testing.T) {
	a := Default().Audio
	assert.Equal(t, 4400, a.SamplesPerChunk())

	a.SampleRate, a.ChunkDuration = 16000, 30*time.Millisecond
	assert.Equal(t, 480, a.SamplesPerChunk())
}

func TestLoad_ModelDefaultsPerBackend(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Run("local", func(t *testing.T) {
		t.Setenv("WHISPER_BACKEND", BackendLocal)
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, DefaultLocalModel, cfg.Whisper.Model)
	})

	t.Run("openai", func(t *testing.T) {
		t.Setenv("WHISPER_BACKEND", BackendOpenAI)
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, "whisper-1", cfg.Whisper.Model)
	})

	t.Run("explicit model wins", func(t *testing.T) {
		t.Setenv("WHISPER_BACKEND", BackendOpenAI)
		t.Setenv("WHISPER_MODEL", "gpt-4o-transcribe")
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, "gpt-4o-transcribe", cfg.Whisper.Model)
	})
}
