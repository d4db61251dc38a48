package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBUser     string
	DBPassword string
	DBName     string
	DBHost     string
	DBPort     string

	RedisHost     string
	RedisPort     string
	RedisPassword string

	GatewayURL      string
	GatewayToken    string
	GuildID         string
	MemberRoleName  string
	ReportChannelID string
	OwnerID         int64

	BotToken     string
	AdminChatIDs []int64

	CheckIntervalHours int
	MetricsAddr        string
	LogLevel           string
}

func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	return &Config{
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "assinatura_bot"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		GatewayURL:      getEnv("GATEWAY_API_URL", ""),
		GatewayToken:    getEnv("GATEWAY_API_TOKEN", ""),
		GuildID:         getEnv("GUILD_ID", ""),
		MemberRoleName:  getEnv("MEMBER_ROLE_NAME", "ASSINANTE"),
		ReportChannelID: getEnv("REPORT_CHANNEL_ID", ""),
		OwnerID:         getEnvInt64("OWNER_ID", 0),

		BotToken:     getEnv("TELEGRAM_BOT_TOKEN", ""),
		AdminChatIDs: getEnvInt64List("ADMIN_CHAT_IDS"),

		CheckIntervalHours: getEnvInt("CHECK_INTERVAL_HOURS", 12),
		MetricsAddr:        getEnv("METRICS_ADDR", ":9180"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		log.Printf("Invalid integer for %s: %q, using default %d", key, value, fallback)
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
		log.Printf("Invalid integer for %s: %q, using default %d", key, value, fallback)
	}
	return fallback
}

func getEnvInt64List(key string) []int64 {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return nil
	}
	var ids []int64
	for _, part := range strings.Split(value, ",") {
		if n, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64); err == nil {
			ids = append(ids, n)
		}
	}
	return ids
}
