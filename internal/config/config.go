package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port string `yaml:"port"`

	Audio   AudioConfig   `yaml:"audio"`
	Whisper WhisperConfig `yaml:"whisper"`
	OpenAI  OpenAIConfig  `yaml:"openai"`
	Storage StorageConfig `yaml:"storage"`
}

type AudioConfig struct {
	SampleRate      int           `yaml:"sample_rate"`
	ChunkDuration   time.Duration `yaml:"chunk_duration"`
	VolumeThreshold float64       `yaml:"volume_threshold"`
	SilenceDuration time.Duration `yaml:"silence_duration"`
	MaxRecording    time.Duration `yaml:"max_recording"`
	FFmpegPath      string        `yaml:"ffmpeg_path"`
	InputFormat     string        `yaml:"input_format"`
	InputDevice     string        `yaml:"input_device"`
}

type WhisperConfig struct {
	Backend       string `yaml:"backend"` // local | openai
	Model         string `yaml:"model"`
	Device        string `yaml:"device"`
	BeamSize      int    `yaml:"beam_size"`
	Language      string `yaml:"language"`
	Python        string `yaml:"python"`
	MaxConcurrent int    `yaml:"max_concurrent"`
}

type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

type StorageConfig struct {
	DatabaseURL string        `yaml:"database_url"`
	RedisURL    string        `yaml:"redis_url"`
	CacheTTL    time.Duration `yaml:"cache_ttl"`
}

const (
	BackendLocal  = "local"
	BackendOpenAI = "openai"

	DefaultLocalModel  = "small"
	DefaultOpenAIModel = "whisper-1"
)

func Default() Config {
	return Config{
		Port: "5023",
		Audio: AudioConfig{
			SampleRate:      44000,
			ChunkDuration:   100 * time.Millisecond,
			VolumeThreshold: 500,
			SilenceDuration: time.Second,
			FFmpegPath:      "ffmpeg",
			InputFormat:     "alsa",
			InputDevice:     "default",
		},
		Whisper: WhisperConfig{
			Backend:       BackendLocal,
			Device:        "auto",
			BeamSize:      5,
			Python:        "python3",
			MaxConcurrent: 2,
		},
		Storage: StorageConfig{CacheTTL: 24 * time.Hour},
	}
}

// Load applies defaults, then the yaml file at path (if it exists), then .env,
// then process environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return cfg, fmt.Errorf("read %s: %w", path, err)
		}
	}

	// .env is optional; real env vars win over it
	_ = godotenv.Load()

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	cfg.applyBackendDefaults()
	return cfg, cfg.Validate()
}

// applyBackendDefaults fills the model name for the selected backend when
// none was configured. Local model sizes are not valid OpenAI model ids.
func (c *Config) applyBackendDefaults() {
	if c.Whisper.Model != "" {
		return
	}
	switch c.Whisper.Backend {
	case BackendOpenAI:
		c.Whisper.Model = DefaultOpenAIModel
	default:
		c.Whisper.Model = DefaultLocalModel
	}
}

// SamplesPerChunk is the number of samples captured per tick.
func (a AudioConfig) SamplesPerChunk() int {
	return int(int64(a.SampleRate) * int64(a.ChunkDuration) / int64(time.Second))
}

func applyEnv(cfg *Config) error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("PORT", &cfg.Port)

	num("AUDIO_SAMPLE_RATE", &cfg.Audio.SampleRate)
	dur("AUDIO_CHUNK_DURATION", &cfg.Audio.ChunkDuration)
	if v, ok := os.LookupEnv("AUDIO_VOLUME_THRESHOLD"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("AUDIO_VOLUME_THRESHOLD: %w", err))
		} else {
			cfg.Audio.VolumeThreshold = f
		}
	}
	dur("AUDIO_SILENCE_DURATION", &cfg.Audio.SilenceDuration)
	dur("AUDIO_MAX_RECORDING", &cfg.Audio.MaxRecording)
	str("FFMPEG_PATH", &cfg.Audio.FFmpegPath)
	str("AUDIO_INPUT_FORMAT", &cfg.Audio.InputFormat)
	str("AUDIO_INPUT_DEVICE", &cfg.Audio.InputDevice)

	str("WHISPER_BACKEND", &cfg.Whisper.Backend)
	str("WHISPER_MODEL", &cfg.Whisper.Model)
	str("WHISPER_DEVICE", &cfg.Whisper.Device)
	num("WHISPER_BEAM_SIZE", &cfg.Whisper.BeamSize)
	str("WHISPER_LANGUAGE", &cfg.Whisper.Language)
	str("WHISPER_PYTHON", &cfg.Whisper.Python)
	num("WHISPER_MAX_CONCURRENT", &cfg.Whisper.MaxConcurrent)

	str("OPENAI_API_KEY", &cfg.OpenAI.APIKey)
	str("OPENAI_BASE_URL", &cfg.OpenAI.BaseURL)

	str("DATABASE_URL", &cfg.Storage.DatabaseURL)
	str("REDIS_URL", &cfg.Storage.RedisURL)
	dur("CACHE_TTL", &cfg.Storage.CacheTTL)

	return errors.Join(errs...)
}

func (c Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("port is required"))
	}
	if c.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio sample rate must be positive, got %d", c.Audio.SampleRate))
	}
	if c.Audio.ChunkDuration <= 0 {
		errs = append(errs, fmt.Errorf("audio chunk duration must be positive, got %s", c.Audio.ChunkDuration))
	}
	if c.Audio.SampleRate > 0 && c.Audio.ChunkDuration > 0 && c.Audio.SamplesPerChunk() < 1 {
		errs = append(errs, fmt.Errorf("chunk duration %s holds no samples at %d Hz", c.Audio.ChunkDuration, c.Audio.SampleRate))
	}
	if c.Audio.SilenceDuration <= 0 {
		errs = append(errs, fmt.Errorf("silence duration must be positive, got %s", c.Audio.SilenceDuration))
	}
	if c.Audio.VolumeThreshold <= 0 {
		errs = append(errs, fmt.Errorf("volume threshold must be positive, got %g", c.Audio.VolumeThreshold))
	}
	if c.Audio.MaxRecording < 0 {
		errs = append(errs, errors.New("max recording duration must not be negative"))
	}
	if c.Whisper.BeamSize <= 0 {
		errs = append(errs, fmt.Errorf("beam size must be positive, got %d", c.Whisper.BeamSize))
	}
	if c.Whisper.MaxConcurrent < 0 {
		errs = append(errs, errors.New("max concurrent transcriptions must not be negative"))
	}
	switch c.Whisper.Backend {
	case BackendLocal, BackendOpenAI:
	default:
		errs = append(errs, fmt.Errorf("unknown whisper backend %q", c.Whisper.Backend))
	}
	return errors.Join(errs...)
}
