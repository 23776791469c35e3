package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
)

const (
	DefaultAddr          = ":8080"
	DefaultDBPath        = "studio.db"
	DefaultEditModel     = "gemini-2.5-flash-image"
	DefaultImageModel    = "imagen-4.0-generate-001"
	DefaultAnalysisModel = "gemini-2.5-flash"
	DefaultFetchTimeout  = 30 * time.Second
	DefaultCacheTTL      = time.Hour
)

// Config はプロセス全体の設定です。
type Config struct {
	APIKey        string
	Addr          string
	DBPath        string
	EditModel     string
	ImageModel    string
	AnalysisModel string
	FetchTimeout  time.Duration
	CacheTTL      time.Duration
	LogLevel      log.Level
}

// Load は .env (存在すれば) と環境変数から設定を読み込みます。
// 既に設定されている環境変数は .env で上書きしません。
// API キーが空でも起動は成功し、生成時に ErrConfigMissing になります。
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("%s の読み込みに失敗しました: %w", f, err)
		}
	}

	cfg := Config{
		APIKey:        strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		Addr:          getenv("STUDIO_ADDR", DefaultAddr),
		DBPath:        getenv("STUDIO_DB_PATH", DefaultDBPath),
		EditModel:     getenv("STUDIO_EDIT_MODEL", DefaultEditModel),
		ImageModel:    getenv("STUDIO_IMAGE_MODEL", DefaultImageModel),
		AnalysisModel: getenv("STUDIO_ANALYSIS_MODEL", DefaultAnalysisModel),
	}

	var err error
	if cfg.FetchTimeout, err = durationEnv("STUDIO_FETCH_TIMEOUT", DefaultFetchTimeout); err != nil {
		return Config{}, err
	}
	if cfg.CacheTTL, err = durationEnv("STUDIO_CACHE_TTL", DefaultCacheTTL); err != nil {
		return Config{}, err
	}
	if cfg.LogLevel, err = log.ParseLevel(getenv("LOG_LEVEL", "info")); err != nil {
		return Config{}, fmt.Errorf("LOG_LEVEL が不正です: %w", err)
	}
	return cfg, nil
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s は正の時間で指定してください (例: 30s): %q", key, v)
	}
	return d, nil
}
