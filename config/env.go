package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

var (
	loadOnce   sync.Once
	loadedPath string
	loadErr    error
)

// Ensure loads the first .env file found from the current working directory up
// to the filesystem root. Variables already set in the environment win.
// Subsequent calls are no-ops.
func Ensure() error {
	// keep tests hermetic
	if runningUnderGoTest() && os.Getenv("GOTEST_LOAD_DOTENV") != "1" {
		return nil
	}
	loadOnce.Do(func() {
		path, err := findDotEnv()
		if err != nil {
			loadErr = err
			log.Debug().Err(err).Msg("search .env failed")
			return
		}
		if path == "" {
			return
		}
		if err := godotenv.Load(path); err != nil {
			loadErr = err
			log.Warn().Err(err).Str("dotenv", path).Msg("load .env failed")
			return
		}
		loadedPath = path
		log.Debug().Str("dotenv", path).Msg("loaded .env")
	})
	return loadErr
}

// LoadedPath returns the resolved .env path if one was loaded, otherwise "".
func LoadedPath() string {
	return loadedPath
}

func runningUnderGoTest() bool {
	if strings.HasSuffix(os.Args[0], ".test") {
		return true
	}
	for _, arg := range os.Args[1:] {
		if strings.HasPrefix(arg, "-test.") {
			return true
		}
	}
	return false
}

func findDotEnv() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(wd, ".env")
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(wd)
		if parent == wd {
			return "", nil
		}
		wd = parent
	}
}

// String returns the trimmed environment variable or fallback when unset.
func String(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

// Duration parses a time duration from environment or returns fallback.
func Duration(key string, fallback time.Duration) time.Duration {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		log.Warn().Str("key", key).Str("value", val).Msg("ignoring invalid duration")
	}
	return fallback
}

// Int returns an integer environment variable or fallback when invalid.
func Int(key string, fallback int) int {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
		log.Warn().Str("key", key).Str("value", val).Msg("ignoring invalid integer")
	}
	return fallback
}

// Bool parses a boolean environment variable.
func Bool(key string, fallback bool) bool {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		switch strings.ToLower(val) {
		case "1", "true", "yes":
			return true
		case "0", "false", "no":
			return false
		}
	}
	return fallback
}
