package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jo-hoe/gomashup/internal/common"
	"github.com/jo-hoe/gomashup/internal/config"
)

// FFmpeg wraps ffprobe and ffmpeg invocations.
type FFmpeg struct {
	FFmpegPath  string
	FFprobePath string
	Audio       config.AudioConfig
	Runner      Runner
}

// NewFFmpeg builds an FFmpeg from configuration using the exec runner.
func NewFFmpeg(tools config.ToolsConfig, audio config.AudioConfig) *FFmpeg {
	return &FFmpeg{
		FFmpegPath:  tools.FFmpeg,
		FFprobePath: tools.FFprobe,
		Audio:       audio,
		Runner:      ExecRunner{WaitDelay: tools.WaitDelay},
	}
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe returns the container duration of path.
func (f *FFmpeg) Probe(ctx context.Context, path string) (time.Duration, error) {
	res, err := f.Runner.Run(ctx, f.FFprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("probe %s: %w", filepath.Base(path), err)
	}
	return parseProbeDuration(res.Stdout)
}

func parseProbeDuration(stdout string) (time.Duration, error) {
	var out probeOutput
	if err := json.Unmarshal([]byte(stdout), &out); err != nil {
		return 0, fmt.Errorf("decode ffprobe output: %w", err)
	}
	raw := strings.TrimSpace(out.Format.Duration)
	if raw == "" || raw == "N/A" {
		return 0, errors.New("ffprobe reported no duration")
	}
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", raw, err)
	}
	if secs <= 0 {
		return 0, fmt.Errorf("non-positive duration %q", raw)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// Cut decodes at most max of src into an uncompressed PCM WAV at dst.
func (f *FFmpeg) Cut(ctx context.Context, src, dst string, max time.Duration) error {
	args := []string{
		"-hide_banner", "-nostdin", "-y",
		"-i", src,
		"-vn",
		"-t", formatSeconds(max),
		"-ac", strconv.Itoa(f.Audio.Channels),
		"-ar", strconv.Itoa(f.Audio.SampleRate),
		"-c:a", "pcm_s16le",
		dst,
	}
	if _, err := f.Runner.Run(ctx, f.FFmpegPath, args...); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(src), err)
	}
	return nil
}

// Concat joins parts in order and encodes the result to dst with the
// configured codec and bitrate. The concat list is written next to the
// first part; parent directories of dst are created.
func (f *FFmpeg) Concat(ctx context.Context, parts []string, dst string) error {
	if len(parts) == 0 {
		return errors.New("nothing to concatenate")
	}
	listPath := filepath.Join(filepath.Dir(parts[0]), common.ConcatListFileName)
	if err := writeConcatList(listPath, parts); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("ensure output dir: %w", err)
	}

	args := []string{
		"-hide_banner", "-nostdin", "-y",
		"-f", "concat", "-safe", "0",
		"-i", listPath,
		"-vn",
		"-c:a", f.Audio.Codec,
		"-b:a", f.Audio.Bitrate,
		"-ar", strconv.Itoa(f.Audio.SampleRate),
		"-ac", strconv.Itoa(f.Audio.Channels),
		dst,
	}
	if _, err := f.Runner.Run(ctx, f.FFmpegPath, args...); err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(dst), err)
	}
	if fi, err := os.Stat(dst); err != nil || fi.Size() == 0 {
		return fmt.Errorf("encoder produced no output at %s", dst)
	}
	return nil
}

func writeConcatList(path string, parts []string) error {
	var b strings.Builder
	for _, p := range parts {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", p, err)
		}
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(abs, "'", `'\''`))
		b.WriteString("'\n")
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}
	return nil
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}
