package jobs

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jo-hoe/gomashup/internal/common"
	"github.com/jo-hoe/gomashup/internal/config"
)

// Input carries the raw, unvalidated values of a submission.
type Input struct {
	Query    string
	Sources  string
	Duration string
	Output   string
	Email    string
}

// Rules parameterizes Validate for a driver.
type Rules struct {
	MinSources   int // exclusive lower bound
	MinDuration  int // exclusive lower bound
	MaxSources   int // inclusive cap, 0 disables
	MaxDuration  int // inclusive cap, 0 disables
	RequireEmail bool
	DeriveOutput bool   // build the output name from the query instead of Input.Output
	OutputSuffix string // appended to the query when DeriveOutput is set
	DefaultName  string
	Extension    string
}

// CLIRules returns the rules for the command line driver: thresholds only.
func CLIRules(cfg *config.Config) Rules {
	return Rules{
		MinSources:  cfg.Limits.MinSources,
		MinDuration: cfg.Limits.MinDuration,
		DefaultName: cfg.Output.DefaultName,
		Extension:   cfg.Audio.Extension,
	}
}

// WebRules returns the rules for form submissions: thresholds, resource caps
// and a mandatory delivery address.
func WebRules(cfg *config.Config) Rules {
	return Rules{
		MinSources:   cfg.Limits.MinSources,
		MinDuration:  cfg.Limits.MinDuration,
		MaxSources:   cfg.Limits.MaxSources,
		MaxDuration:  cfg.Limits.MaxDuration,
		RequireEmail: true,
		DeriveOutput: true,
		OutputSuffix: cfg.Output.WebSuffix,
		DefaultName:  cfg.Output.DefaultName,
		Extension:    cfg.Audio.Extension,
	}
}

// ValidationError is a classified rejection of user input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func reject(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)

// Validate turns raw input into a Job or returns a *ValidationError for the
// first rule that fails. The returned Job has no ID; drivers assign one.
func Validate(in Input, rules Rules) (Job, error) {
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return Job{}, reject(common.FieldSinger, "Singer name is required.")
	}

	sources, ok := parsePositiveInt(in.Sources)
	if !ok {
		return Job{}, reject(common.FieldVideos, "Number of videos must be a positive integer.")
	}
	if sources <= rules.MinSources {
		return Job{}, reject(common.FieldVideos, "Number of videos must be an integer > %d.", rules.MinSources)
	}

	seconds, ok := parsePositiveInt(in.Duration)
	if !ok {
		return Job{}, reject(common.FieldDuration, "Duration must be a positive integer (seconds).")
	}
	if seconds <= rules.MinDuration {
		return Job{}, reject(common.FieldDuration, "Duration must be an integer > %d seconds.", rules.MinDuration)
	}

	email := strings.TrimSpace(in.Email)
	if rules.RequireEmail && !emailPattern.MatchString(email) {
		return Job{}, reject(common.FieldEmail, "Please enter a valid email address.")
	}

	if rules.MaxSources > 0 && sources > rules.MaxSources {
		return Job{}, reject(common.FieldVideos, "Max %d videos allowed on this host.", rules.MaxSources)
	}
	if rules.MaxDuration > 0 && seconds > rules.MaxDuration {
		return Job{}, reject(common.FieldDuration, "Max duration per clip is %d seconds on this host.", rules.MaxDuration)
	}

	name := in.Output
	if rules.DeriveOutput {
		name = query + rules.OutputSuffix
	}

	return Job{
		Query:          query,
		Sources:        sources,
		SegmentSeconds: seconds,
		OutputName:     OutputName(name, rules.Extension, rules.DefaultName),
		Email:          email,
	}, nil
}

func parsePositiveInt(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
