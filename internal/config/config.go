// internal/config/config.go

// Package config loads bot settings from the environment and an optional
// .env file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every setting the bot reads at startup.
type Config struct {
	DiscordToken string
	DiscordAppID string
	GuildID      string

	GeminiAPIKey        string
	GeminiModel         string
	GeminiFallbackModel string
	GeminiMaxTokens     int
	MaxHistory          int

	PerplexityAPIKey  string
	PerplexityBaseURL string

	RetryAttempts int
	RetryDelay    time.Duration
	RatePerSecond float64
	RateBurst     int

	DataDir       string
	StoreBackend  string
	GuardBackend  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	BucketName    string
	AWSRegion     string
	S3Endpoint    string

	SessionTTL      time.Duration
	ConversationTTL time.Duration
	SweepCron       string
	Timezone        string

	HotdealSendCron   string
	HotdealEditCron   string
	HotdealChannelID  string
	HotdealWebhookURL string

	NewsSendCron   string
	NewsEditCron   string
	NewsCategory   string
	NewsChannelID  string
	NewsWebhookURL string

	SplatoonChannelID string
	SplatoonCron      string

	NoLimitUsers map[string]struct{}

	HTTPAddr string
	LogLevel string
	LogFile  string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DISCORD_BOT_TOKEN", "")
	v.SetDefault("DISCORD_APP_ID", "")
	v.SetDefault("DISCORD_GUILD_ID", "")

	v.SetDefault("GEMINI_API_KEY", "")
	v.SetDefault("GEMINI_MODEL", "gemini-2.5-flash")
	v.SetDefault("GEMINI_FALLBACK_MODEL", "gemini-2.0-flash-lite")
	v.SetDefault("GEMINI_MAX_TOKENS", 2048)
	v.SetDefault("GEMINI_MAX_HISTORY", 20)

	v.SetDefault("PERPLEXITY_API_KEY", "")
	v.SetDefault("PERPLEXITY_BASE_URL", "https://api.perplexity.ai")

	v.SetDefault("AI_RETRY_ATTEMPTS", 3)
	v.SetDefault("AI_RETRY_DELAY", "2s")
	v.SetDefault("AI_RATE_PER_SECOND", 1.0)
	v.SetDefault("AI_BURST", 5)

	v.SetDefault("DATA_DIR", "data")
	v.SetDefault("STORE_BACKEND", "file")
	v.SetDefault("GUARD_BACKEND", "memory")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("BUCKET_NAME", "")
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("AWS_ENDPOINT_URL_S3", "")

	v.SetDefault("SESSION_TTL", "1h")
	v.SetDefault("CONVERSATION_TTL", "24h")
	v.SetDefault("SWEEP_CRON", "0 * * * *")
	v.SetDefault("TIMEZONE", "Asia/Seoul")

	v.SetDefault("HOTDEAL_SEND_CRON", "0 9 * * *")
	v.SetDefault("HOTDEAL_EDIT_CRON", "0 10-23 * * *")
	v.SetDefault("HOTDEAL_CHANNEL_ID", "")
	v.SetDefault("HOTDEAL_WEBHOOK_URL", "")

	v.SetDefault("NEWS_SEND_CRON", "0 9 * * *")
	v.SetDefault("NEWS_EDIT_CRON", "")
	v.SetDefault("NEWS_CATEGORY", "최신기사")
	v.SetDefault("NEWS_CHANNEL_ID", "")
	v.SetDefault("DAILYNEWS_WEBHOOK_URL", "")

	v.SetDefault("SPLATOON_SCHEDULE_CHANNEL_ID", "")
	v.SetDefault("SPLATOON_CRON", "1 1-23/2 * * *")

	v.SetDefault("NO_LIMIT_USERS", "")

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FILE", "")
}

// Load reads .env (if present) and the environment. An empty environment
// variable overrides its default, which is how cron tasks are disabled.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found. Proceeding with environment variables.")
	}

	v := viper.New()
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		DiscordToken: v.GetString("DISCORD_BOT_TOKEN"),
		DiscordAppID: v.GetString("DISCORD_APP_ID"),
		GuildID:      v.GetString("DISCORD_GUILD_ID"),

		GeminiAPIKey:        v.GetString("GEMINI_API_KEY"),
		GeminiModel:         v.GetString("GEMINI_MODEL"),
		GeminiFallbackModel: v.GetString("GEMINI_FALLBACK_MODEL"),
		GeminiMaxTokens:     v.GetInt("GEMINI_MAX_TOKENS"),
		MaxHistory:          v.GetInt("GEMINI_MAX_HISTORY"),

		PerplexityAPIKey:  v.GetString("PERPLEXITY_API_KEY"),
		PerplexityBaseURL: v.GetString("PERPLEXITY_BASE_URL"),

		RetryAttempts: v.GetInt("AI_RETRY_ATTEMPTS"),
		RetryDelay:    v.GetDuration("AI_RETRY_DELAY"),
		RatePerSecond: v.GetFloat64("AI_RATE_PER_SECOND"),
		RateBurst:     v.GetInt("AI_BURST"),

		DataDir:       v.GetString("DATA_DIR"),
		StoreBackend:  strings.ToLower(v.GetString("STORE_BACKEND")),
		GuardBackend:  strings.ToLower(v.GetString("GUARD_BACKEND")),
		RedisAddr:     v.GetString("REDIS_ADDR"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),
		BucketName:    v.GetString("BUCKET_NAME"),
		AWSRegion:     v.GetString("AWS_REGION"),
		S3Endpoint:    v.GetString("AWS_ENDPOINT_URL_S3"),

		SessionTTL:      v.GetDuration("SESSION_TTL"),
		ConversationTTL: v.GetDuration("CONVERSATION_TTL"),
		SweepCron:       v.GetString("SWEEP_CRON"),
		Timezone:        v.GetString("TIMEZONE"),

		HotdealSendCron:   v.GetString("HOTDEAL_SEND_CRON"),
		HotdealEditCron:   v.GetString("HOTDEAL_EDIT_CRON"),
		HotdealChannelID:  v.GetString("HOTDEAL_CHANNEL_ID"),
		HotdealWebhookURL: v.GetString("HOTDEAL_WEBHOOK_URL"),

		NewsSendCron:   v.GetString("NEWS_SEND_CRON"),
		NewsEditCron:   v.GetString("NEWS_EDIT_CRON"),
		NewsCategory:   v.GetString("NEWS_CATEGORY"),
		NewsChannelID:  v.GetString("NEWS_CHANNEL_ID"),
		NewsWebhookURL: v.GetString("DAILYNEWS_WEBHOOK_URL"),

		SplatoonChannelID: v.GetString("SPLATOON_SCHEDULE_CHANNEL_ID"),
		SplatoonCron:      v.GetString("SPLATOON_CRON"),

		NoLimitUsers: parseNoLimitUsers(v.GetString("NO_LIMIT_USERS")),

		HTTPAddr: v.GetString("HTTP_ADDR"),
		LogLevel: v.GetString("LOG_LEVEL"),
		LogFile:  v.GetString("LOG_FILE"),
	}

	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("SESSION_TTL must be positive, got %q", v.GetString("SESSION_TTL"))
	}
	if cfg.ConversationTTL <= 0 {
		return nil, fmt.Errorf("CONVERSATION_TTL must be positive, got %q", v.GetString("CONVERSATION_TTL"))
	}
	return cfg, nil
}

// Location resolves Timezone, falling back to a fixed UTC+9 zone when the
// tz database is unavailable.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		log.Warn("Unknown timezone, using UTC+9", "timezone", c.Timezone, "err", err)
		return time.FixedZone("KST", 9*60*60)
	}
	return loc
}

// parseNoLimitUsers parses a comma separated list of Discord user ids.
func parseNoLimitUsers(raw string) map[string]struct{} {
	userMap := make(map[string]struct{})
	for _, id := range strings.Split(raw, ",") {
		id = strings.Trim(id, " \"") // Remove spaces and quotes
		if id != "" {
			userMap[id] = struct{}{}
		}
	}
	return userMap
}
