// Package config は環境変数からのアプリケーション設定読み込みを提供する。
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// envPrefix は設定用環境変数の共通プレフィックス。
const envPrefix = "FEEDCLOUD_"

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Broker
	BrokerURL string
	// IsTesting がtrueの場合、ブローカーをインメモリスタブに差し替える。
	IsTesting bool

	// Scheduler / Worker
	SchedulerInterval   time.Duration
	FeedMaxFailureCount int
	WorkerConcurrency   int
	DownloadTimeout     time.Duration
	DownloadMaxSize     int64

	// Auth
	JWTSecret string
	TokenTTL  time.Duration

	// Rate Limit（req/min/user）
	RateLimitGeneral int

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// すべての項目はFEEDCLOUD_プレフィックス付きの環境変数で上書きできる。
// 未設定の項目にはデフォルト値を使用する。
func Load() *Config {
	cfg := &Config{}

	cfg.DatabaseURL = getEnvString("DATABASE_URL", "")
	cfg.BrokerURL = getEnvString("BROKER_URL", "redis://127.0.0.1:6379/0")
	cfg.IsTesting = getEnvBool("IS_TESTING", false)

	cfg.SchedulerInterval = time.Duration(getEnvInt("TASK_SCHEDULER_INTERVAL_SECONDS", 60)) * time.Second
	cfg.FeedMaxFailureCount = getEnvInt("FEED_MAX_FAILURE_COUNT", 3)
	cfg.WorkerConcurrency = getEnvInt("WORKER_CONCURRENCY", 5)
	cfg.DownloadTimeout = time.Duration(getEnvInt("DOWNLOAD_TIMEOUT_SECONDS", 30)) * time.Second
	cfg.DownloadMaxSize = int64(getEnvInt("DOWNLOAD_MAX_SIZE_BYTES", 10*1024*1024))

	cfg.JWTSecret = getEnvString("JWT_SECRET", "")
	cfg.TokenTTL = time.Duration(getEnvInt("TOKEN_TTL_HOURS", 24)) * time.Hour

	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)

	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(envPrefix + key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(envPrefix + key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

// getEnvBool はブール値を読み込む。大文字小文字を区別せず
// "true"/"false" のみを受理し、それ以外はデフォルト値を返す。
func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(envPrefix + key)
	if v == "" {
		return defaultVal
	}
	switch strings.ToLower(v) {
	case "true":
		return true
	case "false":
		return false
	}
	return defaultVal
}
