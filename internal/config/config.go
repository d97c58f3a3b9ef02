package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	ClientsPath   string
	GazetteerPath string
	OutputPath    string
	DBPath        string
	LockPath      string

	UseGeocoding         bool
	GeocoderBaseURL      string
	GeocoderUserAgent    string
	GeocoderCountry      string
	GeocoderTimeoutMs    int
	GeocoderRateLimitRPS float64

	CityPrefixes       []string
	EquipmentSentinels []string

	LogLevel  string
	LogFormat string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	outputPath := getEnv("OUTPUT_PATH", filepath.Join(cwd, "data", "processed_clients.json"))
	cfg := Config{
		ClientsPath:   getEnv("CLIENTS_PATH", filepath.Join(cwd, "data", "sample_clients.csv")),
		GazetteerPath: getEnv("GAZETTEER_PATH", filepath.Join(cwd, "data", "cidades.json")),
		OutputPath:    outputPath,
		DBPath:        getEnv("DB_PATH", filepath.Join(cwd, "data", "app.db")),
		LockPath:      getEnv("LOCK_PATH", outputPath+".lock"),

		UseGeocoding:         getEnvBool("USE_GEOCODING", false),
		GeocoderBaseURL:      getEnv("GEOCODER_BASE_URL", "https://nominatim.openstreetmap.org"),
		GeocoderUserAgent:    getEnv("GEOCODER_USER_AGENT", "client-map-app"),
		GeocoderCountry:      getEnv("GEOCODER_COUNTRY", "Brasil"),
		GeocoderTimeoutMs:    getEnvInt("GEOCODER_TIMEOUT_MS", 5000),
		GeocoderRateLimitRPS: getEnvFloat("GEOCODER_RATE_LIMIT_RPS", 1),

		CityPrefixes:       getEnvList("CITY_PREFIXES", []string{"departamento", "municipio", "município", "cidade", "municipality", "city", "department"}),
		EquipmentSentinels: getEnvList("EQUIPMENT_SENTINELS", []string{"não informado", "nao informado", "not informed"}),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}

// getEnvList splits a comma separated value; blank entries are dropped.
func getEnvList(key string, fallback []string) []string {
	value := strings.TrimSpace(getEnv(key, ""))
	if value == "" {
		return fallback
	}
	out := []string{}
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
