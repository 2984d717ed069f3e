// Package storepath resolves the store root, optional parent store, debug
// flag, and wave-worker count from environment variables layered over an
// optional TOML config file, the way the engine is configured in practice.
package storepath

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"

	"github.com/syslua/syslua/pkg/constants"
)

// FileConfig is the shape of the optional config file at
// ~/.config/syslua/config.toml (or $SYSLUA_CONFIG). Environment variables
// take precedence over anything set here.
type FileConfig struct {
	StoreRoot      string `toml:"store_root"`
	ParentStore    string `toml:"parent_store"`
	MaxWorkers     int    `toml:"max_workers"`
	InputsCacheDir string `toml:"inputs_cache_dir"`
	InputsLockPath string `toml:"inputs_lock_path"`
}

// Config is the fully resolved configuration the engine runs with.
type Config struct {
	StoreRoot      string
	ParentStore    string
	Debug          bool
	MaxWorkers     int
	Elevated       bool
	InputsCacheDir string
	InputsLockPath string // empty disables GC's inputs-cache sweep
}

// Resolve computes the effective Config: environment variables override the
// config file, which overrides built-in defaults.
func Resolve() (Config, error) {
	file, err := loadFileConfig()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		StoreRoot:      file.StoreRoot,
		ParentStore:    file.ParentStore,
		MaxWorkers:     file.MaxWorkers,
		Elevated:       isElevated(),
		InputsCacheDir: file.InputsCacheDir,
		InputsLockPath: file.InputsLockPath,
	}

	if cfg.StoreRoot == "" {
		def, err := defaultStoreRoot(cfg.Elevated)
		if err != nil {
			return Config{}, err
		}
		cfg.StoreRoot = def
	}
	if cfg.InputsCacheDir == "" {
		cfg.InputsCacheDir = defaultInputsCacheDir()
	}
	if v := os.Getenv(constants.EnvStoreRoot); v != "" {
		cfg.StoreRoot = v
	}
	if v := os.Getenv(constants.EnvParentStore); v != "" {
		cfg.ParentStore = v
	}
	if v := os.Getenv(constants.EnvDebug); v != "" {
		cfg.Debug = v != "0" && v != "false"
	}
	if v := os.Getenv(constants.EnvMaxWorkers); v != "" {
		n, err := parseWorkerCount(v)
		if err != nil {
			return Config{}, err
		}
		cfg.MaxWorkers = n
	}
	if v := os.Getenv(constants.EnvInputsCacheDir); v != "" {
		cfg.InputsCacheDir = v
	}
	if v := os.Getenv(constants.EnvInputsLock); v != "" {
		cfg.InputsLockPath = v
	}
	cfg.MaxWorkers = clampWorkers(cfg.MaxWorkers)

	return cfg, nil
}

// defaultInputsCacheDir returns the per-user cache directory for fetch_url
// downloads, deliberately outside the content-addressed store so GC treats
// it as a separate sweep target with its own reachability graph.
func defaultInputsCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "syslua", constants.InputsCacheDirName)
}

func loadFileConfig() (FileConfig, error) {
	path := configFilePath()
	if path == "" {
		return FileConfig{}, nil
	}
	if _, err := os.Stat(path); err != nil {
		return FileConfig{}, nil
	}
	var fc FileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return FileConfig{}, fmt.Errorf("storepath: parsing %s: %w", path, err)
	}
	return fc, nil
}

func configFilePath() string {
	if v := os.Getenv("SYSLUA_CONFIG"); v != "" {
		return v
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "syslua", "config.toml")
}

func defaultStoreRoot(elevated bool) (string, error) {
	if elevated {
		switch runtime.GOOS {
		case "windows":
			return `C:\ProgramData\syslua`, nil
		default:
			return "/var/lib/syslua", nil
		}
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("storepath: resolving default store root: %w", err)
	}
	return filepath.Join(dir, "syslua", "store"), nil
}

func clampWorkers(n int) int {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	if n < constants.MinWaveWorkers {
		n = constants.MinWaveWorkers
	}
	if n > constants.MaxWaveWorkers {
		n = constants.MaxWaveWorkers
	}
	return n
}

func parseWorkerCount(v string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return 0, fmt.Errorf("storepath: invalid %s value %q: %w", constants.EnvMaxWorkers, v, err)
	}
	return n, nil
}
