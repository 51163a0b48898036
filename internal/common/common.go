package common

// Shared constants to enforce DRY and avoid magic strings/numbers.

// HTTP headers and content types
const (
	HeaderAPIKey    = "X-API-Key" // #nosec G101 - header name constant, not a credential
	ContentTypeJSON = "application/json"
	ContentTypeHTML = "text/html; charset=utf-8"
	ContentTypeZip  = "application/zip"
)

// API paths
const (
	PathIndex    = "/"
	PathHealthz  = "/healthz"
	PathGenerate = "/generate"
	PathMetrics  = "/metrics"
)

// Form fields accepted by the generate endpoint
const (
	FieldSinger   = "singer"
	FieldVideos   = "videos"
	FieldDuration = "duration"
	FieldEmail    = "email"
)

// Defaults and limits
const (
	DefaultQueueCapacity = 16
	DefaultWorkerCount   = 2
	DefaultMinSources    = 10
	DefaultMinDuration   = 20
	DefaultMaxSources    = 50
	DefaultMaxDuration   = 60
)

// External tool executables
const (
	YTDLPExecutable   = "yt-dlp"
	FFmpegExecutable  = "ffmpeg"
	FFprobeExecutable = "ffprobe"
)

// File and directory names
const (
	DefaultOutputName  = "output"
	AudioExtension     = ".mp3"
	ArchiveExtension   = ".zip"
	WebOutputSuffix    = "-mashup"
	WorkspacePrefix    = "gomashup-"
	DownloadsDirName   = "downloads"
	SegmentsDirName    = "segments"
	ConcatListFileName = "concat.txt"
)

// Job outcome strings
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)
