package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	OpenAI     OpenAIConfig
	Extraction ExtractionConfig
	Browser    BrowserConfig
	Scheduler  SchedulerConfig
	S3         S3Config
	DBPath     string
	OutputDir  string
	DBURL      string
	ProxyURL   string
	WatchURLs  []string
	Site       string
	Profiles   map[string]*SiteProfile
}

type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// ExtractionConfig carries the confidence thresholds of the pipeline.
// They are heuristics tuned per data source, so they stay configurable.
type ExtractionConfig struct {
	MaxImages    int
	MinImages    int
	MinCityLen   int
	StageTimeout time.Duration
}

type BrowserConfig struct {
	Headless     bool
	NavTimeoutMS float64
	UserDataDir  string
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // for DO Spaces, R2, etc.
	AccessKeyID     string
	SecretAccessKey string
}

func (c S3Config) Enabled() bool {
	return c.Bucket != "" && c.AccessKeyID != ""
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		OpenAI: OpenAIConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			Model:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			BaseURL: os.Getenv("OPENAI_BASE_URL"),
		},
		Extraction: ExtractionConfig{
			MaxImages:    getEnvInt("MAX_IMAGES", 15),
			MinImages:    getEnvInt("MIN_IMAGES", 3),
			MinCityLen:   getEnvInt("MIN_CITY_LEN", 3),
			StageTimeout: getEnvDuration("STAGE_TIMEOUT", 30*time.Second),
		},
		Browser: BrowserConfig{
			Headless:     getEnv("BROWSER_HEADLESS", "true") == "true",
			NavTimeoutMS: float64(getEnvInt("NAV_TIMEOUT_MS", 45000)),
			UserDataDir:  getEnv("BROWSER_DATA_DIR", "browser_data"),
		},
		Scheduler: SchedulerConfig{
			Cron: os.Getenv("WATCH_CRON"),
		},
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnv("S3_REGION", "us-east-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		},
		DBPath:    getEnv("DB_PATH", "scraper.db"),
		OutputDir: getEnv("OUTPUT_DIR", "output"),
		DBURL:     os.Getenv("DATABASE_URL"),
		ProxyURL:  os.Getenv("PROXY_URL"),
		Site:      getEnv("SITE_PROFILE", "vivareal"),
		WatchURLs: splitList(os.Getenv("WATCH_URLS")),
	}

	if interval := os.Getenv("WATCH_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err == nil {
			cfg.Scheduler.Interval = d
		}
	}

	profiles, err := LoadProfiles(getEnv("SITE_PROFILE_DIR", "config/sites"))
	if err != nil {
		return nil, err
	}
	cfg.Profiles = profiles

	return cfg, nil
}

// Profile returns the active site profile, falling back to the built-in
// Viva Real profile when no yaml for it was found.
func (c *Config) Profile() *SiteProfile {
	if p, ok := c.Profiles[c.Site]; ok {
		return p
	}
	return DefaultProfile()
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func splitList(val string) []string {
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
