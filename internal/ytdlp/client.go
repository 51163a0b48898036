package ytdlp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/jo-hoe/gomashup/internal/config"
	"github.com/jo-hoe/gomashup/internal/media"
)

// Entry is one search result from a flat playlist listing.
type Entry struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	URL      string  `json:"url"`
	Duration float64 `json:"duration"`
}

// Target returns what yt-dlp should download for the entry.
func (e Entry) Target() string {
	if strings.TrimSpace(e.URL) != "" {
		return e.URL
	}
	return e.ID
}

type flatPlaylist struct {
	Entries []Entry `json:"entries"`
}

// Client drives the yt-dlp executable.
type Client struct {
	Path   string
	Opts   config.AcquisitionConfig
	Runner media.Runner
}

// New builds a Client from configuration using the exec runner.
func New(tools config.ToolsConfig, opts config.AcquisitionConfig) *Client {
	return &Client{Path: tools.YTDLP, Opts: opts, Runner: media.ExecRunner{WaitDelay: tools.WaitDelay}}
}

// Search lists up to limit results for query without downloading anything.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]Entry, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("search query is required")
	}
	res, err := c.Runner.Run(ctx, c.Path, SearchArgs(c.Opts.SearchPrefix, query, limit)...)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp search: %w", err)
	}
	return parseFlatPlaylist([]byte(res.Stdout))
}

// SearchArgs builds the flat listing invocation for "<prefix><limit>:<query>".
func SearchArgs(prefix, query string, limit int) []string {
	return []string{
		"--flat-playlist", "-J",
		"--no-warnings",
		fmt.Sprintf("%s%d:%s", prefix, limit, query),
	}
}

func parseFlatPlaylist(raw []byte) ([]Entry, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, fmt.Errorf("yt-dlp returned empty output")
	}
	var pl flatPlaylist
	if err := json.Unmarshal(raw, &pl); err != nil {
		return nil, fmt.Errorf("decode yt-dlp listing: %w", err)
	}
	out := make([]Entry, 0, len(pl.Entries))
	for _, e := range pl.Entries {
		if e.Target() == "" {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Fetch downloads a single entry as audio into dir and returns the path of
// the converted file. index prefixes the file name so concurrent items never
// collide.
func (c *Client) Fetch(ctx context.Context, index int, entry Entry, dir string) (string, error) {
	prefix := itemPrefix(index)
	res, err := c.Runner.Run(ctx, c.Path, c.FetchArgs(prefix, entry, dir)...)
	if err != nil {
		return "", fmt.Errorf("yt-dlp fetch %q: %w", entry.Title, err)
	}
	if p := lastLine(res.Stdout); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	p, err := findByPrefix(dir, prefix)
	if err != nil {
		return "", fmt.Errorf("yt-dlp fetch %q: %w", entry.Title, err)
	}
	return p, nil
}

// FetchArgs builds the single-item audio download invocation.
func (c *Client) FetchArgs(prefix string, entry Entry, dir string) []string {
	return []string{
		"--no-playlist",
		"-q", "--no-warnings",
		"-f", c.Opts.Format,
		"-x",
		"--audio-format", c.Opts.AudioFormat,
		"--audio-quality", c.Opts.AudioQuality,
		"--retries", strconv.Itoa(c.Opts.Retries),
		"--fragment-retries", strconv.Itoa(c.Opts.FragmentRetries),
		"-o", filepath.Join(dir, prefix+c.Opts.OutputTemplate),
		"--no-simulate",
		"--print", "after_move:filepath",
		entry.Target(),
	}
}

func itemPrefix(index int) string {
	return fmt.Sprintf("%03d-", index)
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

func findByPrefix(dir, prefix string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, prefix+"*"))
	if err != nil {
		return "", err
	}
	sort.Strings(matches)
	for _, m := range matches {
		if strings.HasSuffix(m, ".part") || strings.HasSuffix(m, ".ytdl") {
			continue
		}
		return m, nil
	}
	return "", fmt.Errorf("no file produced in %s", dir)
}
