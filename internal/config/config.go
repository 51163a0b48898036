package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jo-hoe/gomashup/internal/common"
)

// Config is the root configuration loaded from YAML.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Limits      LimitsConfig      `yaml:"limits"`
	Tools       ToolsConfig       `yaml:"tools"`
	Acquisition AcquisitionConfig `yaml:"acquisition"`
	Audio       AudioConfig       `yaml:"audio"`
	Transform   TransformConfig   `yaml:"transform"`
	Workspace   WorkspaceConfig   `yaml:"workspace"`
	Output      OutputConfig      `yaml:"output"`
	Mail        MailConfig        `yaml:"mail"`
}

// ServerConfig holds HTTP server and runtime settings.
type ServerConfig struct {
	Addr          string        `yaml:"address"`
	ReadTimeout   time.Duration `yaml:"readTimeout"`
	WriteTimeout  time.Duration `yaml:"writeTimeout"`
	IdleTimeout   time.Duration `yaml:"idleTimeout"`
	MaxFormSize   ByteSize      `yaml:"maxFormSize"`
	WorkerCount   int           `yaml:"workerCount"`
	QueueCapacity int           `yaml:"queueCapacity"`
	APIKey        string        `yaml:"apiKey"`        // optional static API key header (X-API-Key)
	ShutdownGrace time.Duration `yaml:"shutdownGrace"` // time to wait for workers before forced stop
	SubmitRate    float64       `yaml:"submitRate"`    // accepted submissions per second, 0 disables the limiter
	SubmitBurst   int           `yaml:"submitBurst"`
	LogLevel      string        `yaml:"logLevel"` // debug|info|warn|error
}

// LimitsConfig holds the validation thresholds. Min values are exclusive lower
// bounds; Max values are inclusive caps applied to web submissions only.
type LimitsConfig struct {
	MinSources  int `yaml:"minSources"`
	MinDuration int `yaml:"minDuration"`
	MaxSources  int `yaml:"maxSources"`
	MaxDuration int `yaml:"maxDuration"`
}

// ToolsConfig names the external executables.
type ToolsConfig struct {
	YTDLP   string `yaml:"ytdlp"`
	FFmpeg  string `yaml:"ffmpeg"`
	FFprobe string `yaml:"ffprobe"`
	// WaitDelay bounds how long a cancelled tool may keep its output pipes
	// open before the process is abandoned.
	WaitDelay time.Duration `yaml:"waitDelay"`
}

// AcquisitionConfig configures the search-and-fetch collaborator.
type AcquisitionConfig struct {
	SearchPrefix    string        `yaml:"searchPrefix"`   // e.g. ytsearch
	Format          string        `yaml:"format"`         // yt-dlp format selector
	OutputTemplate  string        `yaml:"outputTemplate"` // yt-dlp output template, prefixed with the item index
	AudioFormat     string        `yaml:"audioFormat"`
	AudioQuality    string        `yaml:"audioQuality"`
	Retries         int           `yaml:"retries"`         // yt-dlp --retries
	FragmentRetries int           `yaml:"fragmentRetries"` // yt-dlp --fragment-retries
	ItemAttempts    int           `yaml:"itemAttempts"`    // whole-item attempts per search result
	RetryBackoff    time.Duration `yaml:"retryBackoff"`
}

// AudioConfig describes the decoded segment format and the final encoding.
type AudioConfig struct {
	Codec      string `yaml:"codec"`
	Bitrate    string `yaml:"bitrate"`
	SampleRate int    `yaml:"sampleRate"`
	Channels   int    `yaml:"channels"`
	Extension  string `yaml:"extension"`
}

// TransformConfig controls decode failure handling.
type TransformConfig struct {
	TolerateDecodeFailures bool `yaml:"tolerateDecodeFailures"`
}

// WorkspaceConfig controls where scratch directories are created.
type WorkspaceConfig struct {
	Dir    string `yaml:"dir"` // empty means the OS temp dir
	Prefix string `yaml:"prefix"`
}

// OutputConfig controls artifact naming.
type OutputConfig struct {
	DefaultName string `yaml:"defaultName"`
	WebSuffix   string `yaml:"webSuffix"`
	ArchiveExt  string `yaml:"archiveExt"`
}

// MailConfig holds SMTP transport settings and message templates.
type MailConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
	From            string        `yaml:"from"`
	Timeout         time.Duration `yaml:"timeout"`
	SubjectTemplate string        `yaml:"subjectTemplate"`
	BodyTemplate    string        `yaml:"bodyTemplate"`
}

const (
	defaultSubjectTemplate = "Mashup Result"
	defaultBodyTemplate    = `Hi,

Your mashup is ready.

Singer: {{ .Query }}
Videos: {{ .Sources }}
Duration: {{ .SegmentSeconds }}s

Regards,
gomashup
`
)

// ByteSize represents a size in bytes that unmarshals from strings like "10Mi", "20MB", "512KiB", "1024".
type ByteSize uint64

// UnmarshalYAML implements yaml unmarshalling for ByteSize.
func (b *ByteSize) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("invalid bytesize node kind: %v", value.Kind)
	}
	parsed, err := ParseByteSize(strings.TrimSpace(value.Value))
	if err != nil {
		return err
	}
	*b = ByteSize(parsed)
	return nil
}

var reNumeric = regexp.MustCompile(`^\d+$`)

// ParseByteSize parses a string like "10Mi", "20MB", "512KiB", "1024" into bytes.
// Binary units accept Ki/Mi/Gi and KiB/MiB/GiB (case-insensitive), decimal units KB/MB/GB.
func ParseByteSize(s string) (uint64, error) {
	orig := s
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty size")
	}
	if reNumeric.MatchString(s) {
		val, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid size number: %w", err)
		}
		return val, nil
	}

	up := strings.ToUpper(s)
	units := []struct {
		suffix string
		value  uint64
	}{
		{"KIB", 1 << 10},
		{"MIB", 1 << 20},
		{"GIB", 1 << 30},
		{"KI", 1 << 10},
		{"MI", 1 << 20},
		{"GI", 1 << 30},
		{"KB", 1000},
		{"MB", 1000 * 1000},
		{"GB", 1000 * 1000 * 1000},
		{"B", 1},
	}
	for _, u := range units {
		if strings.HasSuffix(up, u.suffix) {
			num := strings.TrimSpace(s[:len(s)-len(u.suffix)])
			val, err := strconv.ParseFloat(num, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid size number in %q: %w", orig, err)
			}
			return uint64(val * float64(u.value)), nil
		}
	}
	return 0, fmt.Errorf("unknown size suffix in %q", orig)
}

// Default returns a configuration with every default applied. The CLI uses it
// when no config file is given.
func Default() *Config {
	var cfg Config
	applyEnvFallbacks(&cfg)
	applyDefaults(&cfg)
	return &cfg
}

// Load reads YAML config from path, expands environment variables, and validates it.
// If path is empty, it will attempt to read from env var GOMASHUP_CONFIG, then default to "config.yaml".
// Environment files (.env, or the file named by ENV_FILE) are loaded first so that
// they can feed both the expansion and the SMTP fallbacks.
func Load(path string) (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, err
	}
	implicit := false
	if path == "" {
		if env := os.Getenv("GOMASHUP_CONFIG"); env != "" {
			path = env
		} else {
			path = "config.yaml"
			implicit = true
		}
	}
	cleanPath := filepath.Clean(path)
	data, err := os.ReadFile(cleanPath) // #nosec G304 - reading sanitized config file path is expected
	if err != nil {
		// Without a config.yaml in the working directory the defaults and
		// environment variables are enough to run.
		if !implicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		data = nil
	}
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvFallbacks(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadEnvFiles() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// applyEnvFallbacks fills the listen port from PORT and mail settings from the
// SMTP_* deployment variables when the YAML leaves them empty.
func applyEnvFallbacks(cfg *Config) {
	if cfg.Server.Addr == "" {
		if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
			cfg.Server.Addr = ":" + port
		}
	}
	m := &cfg.Mail
	if strings.TrimSpace(m.Host) == "" {
		m.Host = strings.TrimSpace(os.Getenv("SMTP_HOST"))
	}
	if m.Port == 0 {
		if p, err := strconv.Atoi(strings.TrimSpace(os.Getenv("SMTP_PORT"))); err == nil {
			m.Port = p
		}
	}
	if strings.TrimSpace(m.Username) == "" {
		m.Username = strings.TrimSpace(os.Getenv("SMTP_USER"))
	}
	if strings.TrimSpace(m.Password) == "" {
		m.Password = strings.TrimSpace(os.Getenv("SMTP_PASS"))
	}
	if strings.TrimSpace(m.From) == "" {
		m.From = strings.TrimSpace(os.Getenv("FROM_EMAIL"))
	}
	if m.From == "" {
		m.From = m.Username
	}
}

func applyDefaults(cfg *Config) {
	// Server defaults
	s := &cfg.Server
	if s.Addr == "" {
		s.Addr = ":8080"
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = 15 * time.Second
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = 2 * time.Minute
	}
	if s.IdleTimeout == 0 {
		s.IdleTimeout = 60 * time.Second
	}
	if s.MaxFormSize == 0 {
		s.MaxFormSize = ByteSize(64 * 1024)
	}
	if s.WorkerCount <= 0 {
		s.WorkerCount = common.DefaultWorkerCount
	}
	if s.QueueCapacity <= 0 {
		s.QueueCapacity = common.DefaultQueueCapacity
	}
	if s.ShutdownGrace == 0 {
		s.ShutdownGrace = 15 * time.Second
	}
	if s.SubmitBurst <= 0 {
		s.SubmitBurst = 1
	}
	if strings.TrimSpace(s.LogLevel) == "" {
		s.LogLevel = "info"
	}

	// Validation thresholds
	l := &cfg.Limits
	if l.MinSources == 0 {
		l.MinSources = common.DefaultMinSources
	}
	if l.MinDuration == 0 {
		l.MinDuration = common.DefaultMinDuration
	}
	if l.MaxSources == 0 {
		l.MaxSources = common.DefaultMaxSources
	}
	if l.MaxDuration == 0 {
		l.MaxDuration = common.DefaultMaxDuration
	}

	// Tools
	if cfg.Tools.YTDLP == "" {
		cfg.Tools.YTDLP = common.YTDLPExecutable
	}
	if cfg.Tools.FFmpeg == "" {
		cfg.Tools.FFmpeg = common.FFmpegExecutable
	}
	if cfg.Tools.FFprobe == "" {
		cfg.Tools.FFprobe = common.FFprobeExecutable
	}
	if cfg.Tools.WaitDelay == 0 {
		cfg.Tools.WaitDelay = 5 * time.Second
	}

	// Acquisition
	a := &cfg.Acquisition
	if a.SearchPrefix == "" {
		a.SearchPrefix = "ytsearch"
	}
	if a.Format == "" {
		a.Format = "bestaudio/best"
	}
	if a.OutputTemplate == "" {
		a.OutputTemplate = "%(title).120s.%(ext)s"
	}
	if a.AudioFormat == "" {
		a.AudioFormat = "mp3"
	}
	if a.AudioQuality == "" {
		a.AudioQuality = "192K"
	}
	if a.Retries == 0 {
		a.Retries = 3
	}
	if a.FragmentRetries == 0 {
		a.FragmentRetries = 3
	}
	if a.ItemAttempts <= 0 {
		a.ItemAttempts = 3
	}
	if a.RetryBackoff == 0 {
		a.RetryBackoff = 2 * time.Second
	}

	// Audio
	au := &cfg.Audio
	if au.Codec == "" {
		au.Codec = "libmp3lame"
	}
	if au.Bitrate == "" {
		au.Bitrate = "192k"
	}
	if au.SampleRate == 0 {
		au.SampleRate = 44100
	}
	if au.Channels == 0 {
		au.Channels = 2
	}
	if au.Extension == "" {
		au.Extension = common.AudioExtension
	}
	if !strings.HasPrefix(au.Extension, ".") {
		au.Extension = "." + au.Extension
	}

	// Workspace and output naming
	if cfg.Workspace.Prefix == "" {
		cfg.Workspace.Prefix = common.WorkspacePrefix
	}
	if cfg.Output.DefaultName == "" {
		cfg.Output.DefaultName = common.DefaultOutputName
	}
	if cfg.Output.WebSuffix == "" {
		cfg.Output.WebSuffix = common.WebOutputSuffix
	}
	if cfg.Output.ArchiveExt == "" {
		cfg.Output.ArchiveExt = common.ArchiveExtension
	}

	// Mail
	m := &cfg.Mail
	if m.Port == 0 {
		m.Port = 587
	}
	if m.Timeout == 0 {
		m.Timeout = 30 * time.Second
	}
	if strings.TrimSpace(m.SubjectTemplate) == "" {
		m.SubjectTemplate = defaultSubjectTemplate
	}
	if strings.TrimSpace(m.BodyTemplate) == "" {
		m.BodyTemplate = defaultBodyTemplate
	}
}

// Validate checks structural sanity of a defaulted configuration.
func (cfg *Config) Validate() error {
	l := cfg.Limits
	if l.MinSources < 0 || l.MinDuration < 0 {
		return errors.New("limits.minSources and limits.minDuration must not be negative")
	}
	if l.MaxSources <= l.MinSources {
		return fmt.Errorf("limits.maxSources (%d) must exceed limits.minSources (%d)", l.MaxSources, l.MinSources)
	}
	if l.MaxDuration <= l.MinDuration {
		return fmt.Errorf("limits.maxDuration (%d) must exceed limits.minDuration (%d)", l.MaxDuration, l.MinDuration)
	}
	if cfg.Server.WorkerCount <= 0 {
		return errors.New("server.workerCount must be positive")
	}
	if cfg.Server.QueueCapacity <= 0 {
		return errors.New("server.queueCapacity must be positive")
	}
	if cfg.Server.SubmitRate < 0 {
		return errors.New("server.submitRate must not be negative")
	}
	if cfg.Acquisition.Retries < 0 || cfg.Acquisition.FragmentRetries < 0 {
		return errors.New("acquisition retries must not be negative")
	}
	if _, err := ParseLogLevel(cfg.Server.LogLevel); err != nil {
		return err
	}
	return nil
}

// Validate reports whether the mail transport is fully configured. Only the
// web driver needs it.
func (m MailConfig) Validate() error {
	var missing []string
	if strings.TrimSpace(m.Host) == "" {
		missing = append(missing, "host (SMTP_HOST)")
	}
	if strings.TrimSpace(m.Username) == "" {
		missing = append(missing, "username (SMTP_USER)")
	}
	if strings.TrimSpace(m.Password) == "" {
		missing = append(missing, "password (SMTP_PASS)")
	}
	if strings.TrimSpace(m.From) == "" {
		missing = append(missing, "from (FROM_EMAIL)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("mail config incomplete: missing %s", strings.Join(missing, ", "))
	}
	if m.Port <= 0 || m.Port > 65535 {
		return fmt.Errorf("mail.port %d out of range", m.Port)
	}
	return nil
}

// ParseLogLevel maps debug|info|warn|error to a slog level.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}
