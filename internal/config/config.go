package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type Mode string

const (
	ModeLocal Mode = "local"
	ModeGCP   Mode = "gcp"
)

const defaultChatEndpoint = "https://kravixstudio.com/api/v1/chat"

type Config struct {
	Mode Mode

	Port     string
	LogLevel string

	GCPProjectID string
	GCPLocation  string

	StorageBackend string // "memory", "bolt" or "firestore"
	BoltPath       string

	ObjectBackend string // "memory" or "gcs"
	Bucket        string
	PublicURLBase string // optional override for object URLs

	LLMProvider  string // "mock", "kravix", "openai" or "vertex"
	ChatEndpoint string
	ChatAPIKey   string
	AIModel      string
	OpenAIBase   string
	ModelName    string // vertex model

	AuthProvider string // "dev" or "firebase"

	UploadMaxBytes int64
	CacheDir       string

	// Open chats unused for IdleTTL are persisted and closed.
	IdleTTL       time.Duration
	SweepInterval time.Duration
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if v == "1" || v == "true" || v == "TRUE" {
		return true
	}
	return false
}

func getIntEnv(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}

// Load reads all env vars and builds the config. Local mode defaults to fakes
// everywhere; gcp mode defaults to Firestore, GCS, Vertex and Firebase auth.
func Load() (*Config, error) {
	modeStr := getEnv("ANIMA_MODE", "local")
	var mode Mode
	switch modeStr {
	case "gcp":
		mode = ModeGCP
	default:
		mode = ModeLocal
	}

	local := mode == ModeLocal
	pick := func(localDef, gcpDef string) string {
		if local {
			return localDef
		}
		return gcpDef
	}

	llm := getEnv("ANIMA_LLM_PROVIDER", pick("mock", "vertex"))
	if getBoolEnv("ANIMA_USE_MOCK_LLM", false) {
		llm = "mock"
	}

	cfg := &Config{
		Mode: mode,

		Port:     getEnv("ANIMA_PORT", getEnv("PORT", "8080")),
		LogLevel: getEnv("ANIMA_LOG_LEVEL", "info"),

		GCPProjectID: getEnv("ANIMA_GCP_PROJECT", ""),
		GCPLocation:  getEnv("ANIMA_GCP_LOCATION", "us-central1"),

		StorageBackend: getEnv("ANIMA_STORAGE_BACKEND", pick("memory", "firestore")),
		BoltPath:       getEnv("ANIMA_BOLT_PATH", "anima.db"),

		ObjectBackend: getEnv("ANIMA_OBJECT_BACKEND", pick("memory", "gcs")),
		Bucket:        getEnv("ANIMA_BUCKET", "ai-assis"),
		PublicURLBase: getEnv("ANIMA_PUBLIC_URL_BASE", ""),

		LLMProvider:  llm,
		ChatEndpoint: getEnv("ANIMA_CHAT_ENDPOINT", defaultChatEndpoint),
		ChatAPIKey:   getEnv("ANIMA_CHAT_API_KEY", ""),
		AIModel:      getEnv("ANIMA_AI_MODEL", "gpt-5"),
		OpenAIBase:   getEnv("ANIMA_OPENAI_BASE_URL", ""),
		ModelName:    getEnv("ANIMA_MODEL_NAME", "gemini-2.5-flash"),

		AuthProvider: getEnv("ANIMA_AUTH_PROVIDER", pick("dev", "firebase")),

		UploadMaxBytes: getIntEnv("ANIMA_UPLOAD_MAX_BYTES", 5*1024*1024),
		CacheDir:       getEnv("ANIMA_CACHE_DIR", filepath.Join(os.TempDir(), "anima-cache")),

		IdleTTL:       getDurationEnv("ANIMA_IDLE_TTL", 30*time.Minute),
		SweepInterval: getDurationEnv("ANIMA_SWEEP_INTERVAL", time.Minute),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the combinations that cannot work at runtime.
func (c *Config) Validate() error {
	needsProject := c.Mode == ModeGCP ||
		c.StorageBackend == "firestore" ||
		c.LLMProvider == "vertex" ||
		c.AuthProvider == "firebase"
	if needsProject && c.GCPProjectID == "" {
		return errors.New("ANIMA_GCP_PROJECT must be set for gcp mode, firestore, vertex or firebase auth")
	}
	if (c.LLMProvider == "kravix" || c.LLMProvider == "openai") && c.ChatAPIKey == "" {
		return errors.New("ANIMA_CHAT_API_KEY must be set for the " + c.LLMProvider + " provider")
	}
	return nil
}
