package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("USE_GEOCODING", "")
	t.Setenv("CITY_PREFIXES", "")
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.UseGeocoding {
		t.Fatalf("geocoding should default to disabled")
	}
	if cfg.LockPath != cfg.OutputPath+".lock" {
		t.Fatalf("lock=%s", cfg.LockPath)
	}
	if len(cfg.CityPrefixes) == 0 {
		t.Fatalf("no default prefixes")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("USE_GEOCODING", "TRUE")
	t.Setenv("GEOCODER_TIMEOUT_MS", "250")
	t.Setenv("CITY_PREFIXES", " comuna , ,villa ")
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.UseGeocoding {
		t.Fatalf("geocoding not enabled")
	}
	if cfg.GeocoderTimeoutMs != 250 {
		t.Fatalf("timeout=%d", cfg.GeocoderTimeoutMs)
	}
	if len(cfg.CityPrefixes) != 2 || cfg.CityPrefixes[0] != "comuna" || cfg.CityPrefixes[1] != "villa" {
		t.Fatalf("prefixes=%v", cfg.CityPrefixes)
	}
}
