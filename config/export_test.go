package config

// LoadWith exposes load with an injectable .env path and environment lookup.
func LoadWith(path, envFile string, lookup func(string) (string, bool)) (Config, error) {
	return load(path, envFile, lookup)
}
