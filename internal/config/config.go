package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all server settings. Values come from the YAML file with
// environment-variable overrides on top.
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Room struct {
		MaxMembers           int `yaml:"max_members"`
		TargetPicksPerMember int `yaml:"target_picks_per_member"`
		TurnDurationSeconds  int `yaml:"turn_duration_seconds"`
		RoomTTLSeconds       int `yaml:"room_ttl_seconds"`
	} `yaml:"room"`
	NATS struct {
		URL           string `yaml:"url"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"nats"`
}

func defaults() *Config {
	var c Config
	c.Server.Port = "8080"
	c.Room.MaxMembers = 6
	c.Room.TargetPicksPerMember = 5
	c.Room.TurnDurationSeconds = 10
	c.Room.RoomTTLSeconds = 3600
	c.NATS.SubjectPrefix = "room.events"
	return &c
}

// Load reads the config file at path (missing file means defaults) and then
// applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// No file: defaults plus env.
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.Server.Port = getEnv("PORT", cfg.Server.Port)
	cfg.Room.MaxMembers = getEnvAsInt("MAX_MEMBERS", cfg.Room.MaxMembers)
	cfg.Room.TargetPicksPerMember = getEnvAsInt("TARGET_PICKS_PER_MEMBER", cfg.Room.TargetPicksPerMember)
	cfg.Room.TurnDurationSeconds = getEnvAsInt("TURN_DURATION_SECONDS", cfg.Room.TurnDurationSeconds)
	cfg.Room.RoomTTLSeconds = getEnvAsInt("ROOM_TTL_SECONDS", cfg.Room.RoomTTLSeconds)
	cfg.NATS.URL = getEnv("NATS_URL", cfg.NATS.URL)
	cfg.NATS.SubjectPrefix = getEnv("NATS_SUBJECT_PREFIX", cfg.NATS.SubjectPrefix)

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
