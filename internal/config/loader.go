package config

// LoadFromEnv loads the process environment, preceded by a .env file in dev
// builds.
func LoadFromEnv() (Config, error) {
	if err := loadDotEnv(); err != nil {
		return Config{}, err
	}
	return Load(FromEnviron())
}
