package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration at path, seeds the environment from an
// optional .env file, and applies environment overrides. A missing .env is
// not an error.
func Load(path string) (*File, error) {
	_ = godotenv.Load() //nolint:errcheck // .env is optional

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals configuration bytes and applies environment overrides.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	applyEnv(&f)

	if err := validate(&f); err != nil {
		return nil, err
	}
	return &f, nil
}

// applyEnv overrides file values with environment variables. Connection
// strings and credentials normally arrive this way.
func applyEnv(f *File) {
	if v := os.Getenv("CONVEYOR_POSTGRES_DSN"); v != "" {
		f.Postgres.DSN = v
	}
	if v := os.Getenv("CONVEYOR_REDIS_ADDR"); v != "" {
		f.Redis.Addr = v
	}
	if v := os.Getenv("CONVEYOR_REDIS_PASSWORD"); v != "" {
		f.Redis.Password = v
	}
	if v := os.Getenv("CONVEYOR_WAREHOUSE_DSN"); v != "" {
		f.Warehouse.DSN = v
	}
	if v := os.Getenv("CONVEYOR_STORAGE_ENDPOINT"); v != "" {
		f.Storage.Endpoint = v
	}
	if v := os.Getenv("CONVEYOR_STORAGE_ACCESS_KEY"); v != "" {
		f.Storage.AccessKey = v
	}
	if v := os.Getenv("CONVEYOR_STORAGE_SECRET_KEY"); v != "" {
		f.Storage.SecretKey = v
	}
}

// validate rejects configurations the engine cannot start with. Source
// pipelines and schedules are validated here, at load time, so a bad
// definition surfaces before any trigger fires.
func validate(f *File) error {
	seen := make(map[string]bool, len(f.Sources))
	for i := range f.Sources {
		s := &f.Sources[i]
		if s.Name == "" {
			return fmt.Errorf("config: source %d has no name", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("config: duplicate source %q", s.Name)
		}
		seen[s.Name] = true

		if _, err := s.Path("standard"); err != nil {
			return fmt.Errorf("config: source %q: %w", s.Name, err)
		}
		if s.Schedule.Interval != "" {
			if _, err := s.Calendar(); err != nil {
				return fmt.Errorf("config: source %q: %w", s.Name, err)
			}
		}
	}
	return nil
}
