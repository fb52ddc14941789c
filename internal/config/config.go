package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Providers accepted by data_source.provider.
const (
	ProviderYahoo = "yahoo"
	ProviderChart = "chart"
)

// Seasonality configures one custom Fourier seasonality term.
type Seasonality struct {
	Name         string  `yaml:"name"`
	Period       float64 `yaml:"period"`
	FourierOrder int     `yaml:"fourier_order"`
}

// Forecast holds the model settings.
type Forecast struct {
	HorizonDays           int         `yaml:"horizon_days"`
	YearlySeasonality     *bool       `yaml:"yearly_seasonality"`
	WeeklySeasonality     *bool       `yaml:"weekly_seasonality"`
	DailySeasonality      *bool       `yaml:"daily_seasonality"`
	ChangepointPriorScale float64     `yaml:"changepoint_prior_scale"`
	NChangepoints         int         `yaml:"n_changepoints"`
	ChangepointRange      float64     `yaml:"changepoint_range"`
	SeasonalityPriorScale float64     `yaml:"seasonality_prior_scale"`
	HolidaysPriorScale    float64     `yaml:"holidays_prior_scale"`
	IntervalWidth         float64     `yaml:"interval_width"`
	CountryHolidays       string      `yaml:"country_holidays"`
	GrowthSeasonality     Seasonality `yaml:"growth_seasonality"`
}

// Yearly reports whether yearly seasonality is enabled.
func (f Forecast) Yearly() bool { return f.YearlySeasonality != nil && *f.YearlySeasonality }

// Weekly reports whether weekly seasonality is enabled.
func (f Forecast) Weekly() bool { return f.WeeklySeasonality != nil && *f.WeeklySeasonality }

// Daily reports whether daily seasonality is enabled.
func (f Forecast) Daily() bool { return f.DailySeasonality != nil && *f.DailySeasonality }

// Render holds chart settings.
type Render struct {
	HistoryDays  int     `yaml:"history_days"`
	LookbackDays int     `yaml:"lookback_days"`
	WidthInches  float64 `yaml:"width_inches"`
	HeightInches float64 `yaml:"height_inches"`
}

// Config holds all application configuration.
type Config struct {
	SymbolsFile  string `yaml:"symbols_file"`
	OutputDir    string `yaml:"output_dir"`
	MarketSuffix string `yaml:"market_suffix"`
	HistoryYears int    `yaml:"history_years"`
	Workers      int    `yaml:"workers"`
	DataSource   struct {
		Provider   string        `yaml:"provider"`
		BaseURL    string        `yaml:"base_url"`
		Timeout    time.Duration `yaml:"timeout"`
		RateLimit  float64       `yaml:"rate_limit"`
		MaxRetries int           `yaml:"max_retries"`
		RetryWait  time.Duration `yaml:"retry_wait"`
	} `yaml:"data_source"`
	Forecast Forecast `yaml:"forecast"`
	Render   Render   `yaml:"render"`
	Proxy    string   `yaml:"proxy"`
}

// Default returns a Config with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads config from a YAML file, then applies environment variable overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("SYMBOLS_FILE"); v != "" {
		cfg.SymbolsFile = v
	}
	if v := os.Getenv("OUTPUT_DIR"); v != "" {
		cfg.OutputDir = v
	}
	if v := os.Getenv("MARKET_SUFFIX"); v != "" {
		cfg.MarketSuffix = v
	}
	if v := os.Getenv("DATA_PROVIDER"); v != "" {
		cfg.DataSource.Provider = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("CHART_BASE_URL"); v != "" {
		cfg.DataSource.BaseURL = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Workers = n
		}
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.SymbolsFile == "" {
		c.SymbolsFile = "stocks.txt"
	}
	if c.OutputDir == "" {
		c.OutputDir = "Predictions"
	}
	// "none" disables the suffix for listings that need no exchange qualifier.
	switch strings.ToLower(c.MarketSuffix) {
	case "":
		c.MarketSuffix = ".NS"
	case "none":
		c.MarketSuffix = ""
	}
	if c.HistoryYears == 0 {
		c.HistoryYears = 5
	}
	if c.Workers == 0 {
		c.Workers = 1
	}

	ds := &c.DataSource
	if ds.Provider == "" {
		ds.Provider = ProviderYahoo
	}
	if ds.BaseURL == "" {
		ds.BaseURL = "https://query1.finance.yahoo.com"
	}
	if ds.Timeout == 0 {
		ds.Timeout = 30 * time.Second
	}
	if ds.RateLimit == 0 {
		ds.RateLimit = 2
	}
	if ds.MaxRetries == 0 {
		ds.MaxRetries = 3
	}
	if ds.RetryWait == 0 {
		ds.RetryWait = 500 * time.Millisecond
	}

	f := &c.Forecast
	if f.HorizonDays == 0 {
		f.HorizonDays = 365
	}
	if f.YearlySeasonality == nil {
		f.YearlySeasonality = boolPtr(true)
	}
	if f.WeeklySeasonality == nil {
		f.WeeklySeasonality = boolPtr(false)
	}
	if f.DailySeasonality == nil {
		f.DailySeasonality = boolPtr(true)
	}
	if f.ChangepointPriorScale == 0 {
		f.ChangepointPriorScale = 0.75
	}
	if f.NChangepoints == 0 {
		f.NChangepoints = 50
	}
	if f.ChangepointRange == 0 {
		f.ChangepointRange = 0.8
	}
	if f.SeasonalityPriorScale == 0 {
		f.SeasonalityPriorScale = 10
	}
	if f.HolidaysPriorScale == 0 {
		f.HolidaysPriorScale = 10
	}
	if f.IntervalWidth == 0 {
		f.IntervalWidth = 0.8
	}
	if f.CountryHolidays == "" {
		f.CountryHolidays = "IN"
	}
	if f.GrowthSeasonality.Name == "" {
		f.GrowthSeasonality.Name = "custom_growth"
	}
	if f.GrowthSeasonality.Period == 0 {
		f.GrowthSeasonality.Period = 90
	}
	if f.GrowthSeasonality.FourierOrder == 0 {
		f.GrowthSeasonality.FourierOrder = 20
	}

	r := &c.Render
	if r.HistoryDays == 0 {
		r.HistoryDays = 30
	}
	if r.LookbackDays == 0 {
		r.LookbackDays = 30
	}
	if r.WidthInches == 0 {
		r.WidthInches = 12
	}
	if r.HeightInches == 0 {
		r.HeightInches = 6
	}
}

// Validate checks that all settings are usable.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.SymbolsFile) == "" {
		return fmt.Errorf("symbols_file is required")
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		return fmt.Errorf("output_dir is required")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	if c.HistoryYears < 1 {
		return fmt.Errorf("history_years must be at least 1")
	}
	switch c.DataSource.Provider {
	case ProviderYahoo, ProviderChart:
	default:
		return fmt.Errorf("data_source.provider %q is not supported", c.DataSource.Provider)
	}
	if c.DataSource.RateLimit <= 0 {
		return fmt.Errorf("data_source.rate_limit must be positive")
	}
	if c.DataSource.MaxRetries < 1 {
		return fmt.Errorf("data_source.max_retries must be at least 1")
	}

	f := c.Forecast
	if f.HorizonDays < 1 {
		return fmt.Errorf("forecast.horizon_days must be at least 1")
	}
	if f.ChangepointPriorScale <= 0 || f.SeasonalityPriorScale <= 0 || f.HolidaysPriorScale <= 0 {
		return fmt.Errorf("forecast prior scales must be positive")
	}
	if f.NChangepoints < 0 {
		return fmt.Errorf("forecast.n_changepoints must not be negative")
	}
	if f.ChangepointRange <= 0 || f.ChangepointRange > 1 {
		return fmt.Errorf("forecast.changepoint_range must be in (0, 1]")
	}
	if f.IntervalWidth <= 0 || f.IntervalWidth >= 1 {
		return fmt.Errorf("forecast.interval_width must be in (0, 1)")
	}
	if f.GrowthSeasonality.Period <= 0 || f.GrowthSeasonality.FourierOrder < 1 {
		return fmt.Errorf("forecast.growth_seasonality needs a positive period and fourier_order")
	}

	r := c.Render
	if r.HistoryDays < 0 || r.LookbackDays < 0 {
		return fmt.Errorf("render windows must not be negative")
	}
	if r.WidthInches <= 0 || r.HeightInches <= 0 {
		return fmt.Errorf("render dimensions must be positive")
	}
	return nil
}

func boolPtr(b bool) *bool { return &b }
