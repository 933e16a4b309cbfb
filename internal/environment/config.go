package environment

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type EnvConfig struct {
	Workers   int
	QueueSize int

	LanguagesPath string

	NatsURL     string
	SubmSubject string
	ResSubject  string

	FileDir string
	TmpDir  string
}

// ReadEnvConfig loads a .env file when present and falls back to defaults
// for anything unset.
func ReadEnvConfig() *EnvConfig {
	_ = godotenv.Load()

	result := &EnvConfig{
		Workers:       envInt("JUDGE_WORKERS", 2),
		QueueSize:     envInt("JUDGE_QUEUE_SIZE", 1024),
		LanguagesPath: os.Getenv("JUDGE_LANGUAGES_PATH"),
		NatsURL:       envStr("NATS_URL", "nats://localhost:4222"),
		SubmSubject:   envStr("NATS_SUBM_SUBJECT", "submissions"),
		ResSubject:    envStr("NATS_RES_SUBJECT", "judge.results"),
		FileDir:       envStr("JUDGE_FILE_DIR", "/var/cache/judge/files"),
		TmpDir:        envStr("JUDGE_TMP_DIR", "/var/cache/judge/tmp"),
	}

	return result
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
