package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"study-session-service/internal/app"
	"study-session-service/internal/domain"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Mode string `yaml:"mode"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Study  Study  `yaml:"study"`
	Report Report `yaml:"report"`
}

// Study holds the protocol parameters. Zero values take the defaults.
type Study struct {
	ProblemCount       int `yaml:"problem_count"`
	TaskSeconds        int `yaml:"task_seconds"`
	BreakAfter         int `yaml:"break_after"`
	BreakSeconds       int `yaml:"break_seconds"`
	DistractionSeconds int `yaml:"distraction_seconds"`
	Music              struct {
		Classical string `yaml:"classical"`
		Metal     string `yaml:"metal"`
	} `yaml:"music"`
}

// Report configures where stage reports go. An empty endpoint means every
// report falls back to a local file.
type Report struct {
	Endpoint    string `yaml:"endpoint"`
	Timeout     string `yaml:"timeout"`
	FallbackDir string `yaml:"fallback_dir"`
}

// Load reads YAML config from path. REPORT_ENDPOINT overrides report.endpoint.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if endpoint := os.Getenv("REPORT_ENDPOINT"); endpoint != "" {
		cfg.Report.Endpoint = endpoint
	}
	if cfg.Report.FallbackDir == "" {
		cfg.Report.FallbackDir = "fallback"
	}
	return cfg, nil
}

// StudyConfig converts the study section for the app layer.
func (c Config) StudyConfig() app.StudyConfig {
	return app.StudyConfig{
		ProblemCount:       c.Study.ProblemCount,
		TaskSeconds:        c.Study.TaskSeconds,
		BreakAfter:         c.Study.BreakAfter,
		BreakSeconds:       c.Study.BreakSeconds,
		DistractionSeconds: c.Study.DistractionSeconds,
		MusicURLs: map[domain.MusicCondition]string{
			domain.MusicClassical: c.Study.Music.Classical,
			domain.MusicMetal:     c.Study.Music.Metal,
		},
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
