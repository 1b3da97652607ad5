package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// NOTE: This file provides the configuration model and full YAML-based
// load/save behavior, including first-run config creation and 0600
// permissions. All values are read once at startup; nothing in the
// pipeline mutates configuration after that.

// ICSConfig describes a single ICS subscription source.
type ICSConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for de-dup and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label used in logs.
	Name string `yaml:"name" json:"name"`
}

// SortSpec selects which output column drives the final sort of a sheet
// and in which direction. Column is 1-based, matching sheet columns.
type SortSpec struct {
	Column    int  `yaml:"column" json:"column"`
	Ascending bool `yaml:"ascending" json:"ascending"`
}

// Config is the top-level application configuration.
type Config struct {
	// OwnerEmail is the calendar owner's address. Events whose only
	// attendee is the owner count as blocked time; the owner is never a
	// cadence counterparty.
	OwnerEmail string `yaml:"owner_email" json:"owner_email"`

	// TagMarker is the line prefix inside an event description that
	// promotes the remainder of the line to an explicit category.
	TagMarker string `yaml:"tag_marker" json:"tag_marker"`

	// RangeDaysPast / RangeDaysFuture bound the fetch window around the
	// run time. Both are non-negative.
	RangeDaysPast   int `yaml:"range_days_past" json:"range_days_past"`
	RangeDaysFuture int `yaml:"range_days_future" json:"range_days_future"`

	// WorkStartHour / WorkEndHour bound countable meeting hours (0-23).
	// Events starting before WorkStartHour or ending after WorkEndHour
	// are invisible to the time ledger.
	WorkStartHour int `yaml:"work_start_hour" json:"work_start_hour"`
	WorkEndHour   int `yaml:"work_end_hour" json:"work_end_hour"`

	// WorkDaysPerWeek seeds the weekly unscheduled-time capacity.
	WorkDaysPerWeek int `yaml:"work_days_per_week" json:"work_days_per_week"`

	// Aliases maps a raw attendee identity onto its canonical identity.
	// Lookups are single-hop: targets are never themselves re-aliased.
	Aliases map[string]string `yaml:"aliases" json:"aliases"`

	// Workbook is the path of the .xlsx report sink.
	Workbook string `yaml:"workbook" json:"workbook"`

	// Sheet names inside the workbook. Colons are not legal in xlsx
	// sheet names, so the default cadence sheet is "1-1 List".
	CadenceSheet string `yaml:"cadence_sheet" json:"cadence_sheet"`
	LedgerSheet  string `yaml:"ledger_sheet" json:"ledger_sheet"`
	StatsSheet   string `yaml:"stats_sheet" json:"stats_sheet"`

	// MaxRows caps the data rows written to any sheet. Exceeding it is a
	// capacity error, never silent truncation.
	MaxRows int `yaml:"max_rows" json:"max_rows"`

	// Per-sheet final sort.
	CadenceSort SortSpec `yaml:"cadence_sort" json:"cadence_sort"`
	LedgerSort  SortSpec `yaml:"ledger_sort" json:"ledger_sort"`
	StatsSort   SortSpec `yaml:"stats_sort" json:"stats_sort"`

	// ICS is the list of subscribed ICS sources for the owner's calendar.
	ICS []ICSConfig `yaml:"ics" json:"ics"`

	// CacheDir stores per-URL fetch cache (ETag/Last-Modified bodies).
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// RefreshCron is a cron-style schedule string (e.g. "0 6 * * *")
	// used in daemon mode. Ignored with -once.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// Timezone is the IANA timezone used as the display zone for week
	// bucketing and date rendering. Empty means the process-local zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// HistoryDB is an optional sqlite path archiving one snapshot row per
	// run. Empty disables the archive.
	HistoryDB string `yaml:"history_db" json:"history_db"`

	// LogLevel is "debug", "info" or "error".
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		OwnerEmail:      "",
		TagMarker:       "TAG: ",
		RangeDaysPast:   30,
		RangeDaysFuture: 30,
		WorkStartHour:   9,
		WorkEndHour:     17,
		WorkDaysPerWeek: 5,
		Aliases:         map[string]string{},
		Workbook:        "./calstats.xlsx",
		CadenceSheet:    "1-1 List",
		LedgerSheet:     "Time Ledger",
		StatsSheet:      "Meeting Stats",
		MaxRows:         200,
		CadenceSort:     SortSpec{Column: 5, Ascending: false},
		LedgerSort:      SortSpec{Column: 1, Ascending: true},
		StatsSort:       SortSpec{Column: 2, Ascending: true},
		ICS:             []ICSConfig{},
		CacheDir:        "./var/ics-cache",
		RefreshCron:     "0 6 * * 1-5",
		Timezone:        "",
		HistoryDB:       "",
		LogLevel:        "info",
	}
}

// OwnerDomain returns the domain part of OwnerEmail, or "" if the owner
// address carries none. Used for cosmetic suffix-stripping of
// counterparty identities in the cadence sheet.
func (c *Config) OwnerDomain() string {
	if i := strings.IndexByte(c.OwnerEmail, '@'); i >= 0 {
		return c.OwnerEmail[i+1:]
	}
	return ""
}

// WorkHoursPerDay returns the countable hours in a working day.
func (c *Config) WorkHoursPerDay() int {
	return c.WorkEndHour - c.WorkStartHour
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs (e.g., older versions) still behave correctly.
func (c *Config) Normalize() {
	d := DefaultConfig()

	if c.TagMarker == "" {
		c.TagMarker = d.TagMarker
	}
	if c.RangeDaysPast < 0 {
		c.RangeDaysPast = d.RangeDaysPast
	}
	if c.RangeDaysFuture < 0 {
		c.RangeDaysFuture = d.RangeDaysFuture
	}
	if c.WorkStartHour <= 0 && c.WorkEndHour <= 0 {
		c.WorkStartHour = d.WorkStartHour
		c.WorkEndHour = d.WorkEndHour
	} else if c.WorkEndHour <= 0 {
		// A zero end hour is always unset: no working day ends at
		// midnight. A zero start hour beside a set end hour stays,
		// since midnight is a valid day start.
		c.WorkEndHour = d.WorkEndHour
	}
	if c.WorkDaysPerWeek <= 0 {
		c.WorkDaysPerWeek = d.WorkDaysPerWeek
	}
	if c.Aliases == nil {
		c.Aliases = map[string]string{}
	}
	if c.Workbook == "" {
		c.Workbook = d.Workbook
	}
	if c.CadenceSheet == "" {
		c.CadenceSheet = d.CadenceSheet
	}
	if c.LedgerSheet == "" {
		c.LedgerSheet = d.LedgerSheet
	}
	if c.StatsSheet == "" {
		c.StatsSheet = d.StatsSheet
	}
	if c.MaxRows <= 0 {
		c.MaxRows = d.MaxRows
	}
	if c.CadenceSort.Column <= 0 {
		c.CadenceSort = d.CadenceSort
	}
	if c.LedgerSort.Column <= 0 {
		c.LedgerSort = d.LedgerSort
	}
	if c.StatsSort.Column <= 0 {
		c.StatsSort = d.StatsSort
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
	if c.CacheDir == "" {
		c.CacheDir = d.CacheDir
	}
	if c.RefreshCron == "" {
		c.RefreshCron = d.RefreshCron
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
}

// Validate rejects configurations the pipeline cannot run with. Called
// after Normalize, so only genuinely contradictory values remain.
func (c *Config) Validate() error {
	if c.OwnerEmail == "" {
		return errors.New("config: owner_email is required")
	}
	if c.WorkStartHour < 0 || c.WorkStartHour > 23 {
		return fmt.Errorf("config: work_start_hour %d out of range 0-23", c.WorkStartHour)
	}
	if c.WorkEndHour < 0 || c.WorkEndHour > 23 {
		return fmt.Errorf("config: work_end_hour %d out of range 0-23", c.WorkEndHour)
	}
	if c.WorkEndHour <= c.WorkStartHour {
		return fmt.Errorf("config: work_end_hour %d must be after work_start_hour %d",
			c.WorkEndHour, c.WorkStartHour)
	}
	if c.WorkDaysPerWeek < 1 || c.WorkDaysPerWeek > 7 {
		return fmt.Errorf("config: work_days_per_week %d out of range 1-7", c.WorkDaysPerWeek)
	}
	return nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".calstats-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	return nil
}
