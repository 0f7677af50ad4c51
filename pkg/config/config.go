package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	SQLite    SQLiteConfig
	Redis     RedisConfig
	Logging   LoggingConfig
	Collector CollectorConfig
	Scoring   ScoringConfig
	Learning  LearningConfig
	Sources   []SourceConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type SQLiteConfig struct {
	Enabled bool
	Path    string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	FeedTTL  time.Duration
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

// SourceConfig describes one upstream endpoint polled by the collector.
type SourceConfig struct {
	Name            string
	Type            string // "feed" or "scrape"
	Endpoint        string
	Headers         map[string]string
	AuthToken       string
	PollingInterval time.Duration
	Timeout         time.Duration
	Enabled         bool
	Categories      []string
}

type CollectorConfig struct {
	CycleInterval   time.Duration
	BackoffInterval time.Duration
	FetchTimeout    time.Duration

	// Item scoring heuristics. Defaults match the long-observed behavior of
	// the production feed; change with care, the learning loop calibrates
	// itself against these.
	ImpactBase          float64
	ImpactKeywordBonus  float64
	UrgencyBase         float64
	UrgencyDailyDecay   float64
	UrgencyFloor        float64
	UrgencyKeywordBonus float64
	RiskBase            float64
	RiskKeywordBonus    float64

	FeedConfidence   float64
	ScrapeConfidence float64
	MaxTags          int
}

type ScoringConfig struct {
	// Weights are a configuration convention and are deliberately not
	// validated to sum to 1.0; super- or sub-unity totals scale every base
	// score proportionally.
	ImpactWeight     float64
	UrgencyWeight    float64
	RiskWeight       float64
	ConfidenceWeight float64

	TripwireSensitivity     float64
	PersonalizationStrength float64
}

type LearningConfig struct {
	Interval      time.Duration
	LookbackHours int

	// Minimum observations before a strategy proposes a delta.
	CategoryMinSamples int
	SourceMinSamples   int
	TripwireMinSamples int

	// Sample counts at which delta confidence saturates at 1.0.
	CategoryReferenceCount int
	SourceReferenceCount   int
	TimingReferenceCount   int
	TripwireReferenceCount int

	// Bounds for learned multipliers and the sensitivity random walk.
	ImportanceMin  float64
	ImportanceMax  float64
	CredibilityMin float64
	CredibilityMax float64
	SensitivityMin float64
	SensitivityMax float64

	SensitivityDownStep float64
	SensitivityUpStep   float64

	// Changes smaller than this are not worth a delta.
	ChangeEpsilon float64

	ReadingTimeSmoothing  float64
	BookmarkRateIncrement float64
	ShareRateIncrement    float64
	ClickRateIncrement    float64
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/policyedge")

	viper.SetEnvPrefix("POLICYEDGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(config.Sources) == 0 {
		config.Sources = DefaultSources()
	}

	return &config, nil
}

// DefaultSources is the feed set the service ships with when no sources are
// configured.
func DefaultSources() []SourceConfig {
	return []SourceConfig{
		{
			Name:       "reuters-business",
			Type:       "feed",
			Endpoint:   "https://feeds.reuters.com/reuters/businessNews",
			Enabled:    true,
			Categories: []string{"market_shock", "policy_shift"},
		},
		{
			Name:       "sec-press-releases",
			Type:       "feed",
			Endpoint:   "https://www.sec.gov/news/pressreleases.rss",
			Enabled:    true,
			Categories: []string{"regulatory_change"},
		},
		{
			Name:       "oreilly-radar",
			Type:       "feed",
			Endpoint:   "https://feeds.feedburner.com/oreilly/radar",
			Enabled:    true,
			Categories: []string{"ai_development"},
		},
		{
			Name:       "ft-us-home",
			Type:       "feed",
			Endpoint:   "https://www.ft.com/rss/home/us",
			Enabled:    true,
			Categories: []string{"market_shock", "political_event"},
		},
	}
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.bodyLimit", 10485760)

	viper.SetDefault("sqlite.enabled", true)
	viper.SetDefault("sqlite.path", "./data/intelligence.db")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.feedTTL", 5*time.Minute)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")

	viper.SetDefault("collector.cycleInterval", 15*time.Minute)
	viper.SetDefault("collector.backoffInterval", time.Minute)
	viper.SetDefault("collector.fetchTimeout", 30*time.Second)
	viper.SetDefault("collector.impactBase", 3.0)
	viper.SetDefault("collector.impactKeywordBonus", 1.5)
	viper.SetDefault("collector.urgencyBase", 5.0)
	viper.SetDefault("collector.urgencyDailyDecay", 0.5)
	viper.SetDefault("collector.urgencyFloor", 1.0)
	viper.SetDefault("collector.urgencyKeywordBonus", 2.0)
	viper.SetDefault("collector.riskBase", 2.0)
	viper.SetDefault("collector.riskKeywordBonus", 1.0)
	viper.SetDefault("collector.feedConfidence", 0.7)
	viper.SetDefault("collector.scrapeConfidence", 0.6)
	viper.SetDefault("collector.maxTags", 10)

	viper.SetDefault("scoring.impactWeight", 0.4)
	viper.SetDefault("scoring.urgencyWeight", 0.3)
	viper.SetDefault("scoring.riskWeight", 0.2)
	viper.SetDefault("scoring.confidenceWeight", 0.1)
	viper.SetDefault("scoring.tripwireSensitivity", 0.7)
	viper.SetDefault("scoring.personalizationStrength", 0.5)

	viper.SetDefault("learning.interval", 6*time.Hour)
	viper.SetDefault("learning.lookbackHours", 6)
	viper.SetDefault("learning.categoryMinSamples", 3)
	viper.SetDefault("learning.sourceMinSamples", 2)
	viper.SetDefault("learning.tripwireMinSamples", 2)
	viper.SetDefault("learning.categoryReferenceCount", 10)
	viper.SetDefault("learning.sourceReferenceCount", 5)
	viper.SetDefault("learning.timingReferenceCount", 20)
	viper.SetDefault("learning.tripwireReferenceCount", 5)
	viper.SetDefault("learning.importanceMin", 0.1)
	viper.SetDefault("learning.importanceMax", 2.0)
	viper.SetDefault("learning.credibilityMin", 0.1)
	viper.SetDefault("learning.credibilityMax", 2.0)
	viper.SetDefault("learning.sensitivityMin", 0.1)
	viper.SetDefault("learning.sensitivityMax", 1.0)
	viper.SetDefault("learning.sensitivityDownStep", 0.1)
	viper.SetDefault("learning.sensitivityUpStep", 0.05)
	viper.SetDefault("learning.changeEpsilon", 0.05)
	viper.SetDefault("learning.readingTimeSmoothing", 0.2)
	viper.SetDefault("learning.bookmarkRateIncrement", 0.1)
	viper.SetDefault("learning.shareRateIncrement", 0.1)
	viper.SetDefault("learning.clickRateIncrement", 0.05)
}
