// Package config loads application settings from the environment once at
// startup. The resulting Settings value is passed explicitly to the
// components that need it; there is no package-level state.
package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultDBURL = "./app.db"

type Settings struct {
	OpenAIAPIKey string
	OpenAIModel  string
	DBURL        string
	CORSOrigins  []string
	Port         string
}

// Load reads settings from the environment, with a .env file honoured if one
// is present in the working directory.
func Load() Settings {
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
	v.SetDefault("DB_URL", defaultDBURL)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("PORT", "8000")
	v.AutomaticEnv()

	return Settings{
		OpenAIAPIKey: v.GetString("OPENAI_API_KEY"),
		OpenAIModel:  v.GetString("OPENAI_MODEL"),
		DBURL:        v.GetString("DB_URL"),
		CORSOrigins:  splitOrigins(v.GetString("CORS_ORIGINS")),
		Port:         v.GetString("PORT"),
	}
}

// DBPath resolves the configured database URL to a filesystem path for the
// sqlite driver. URL-style values such as sqlite:///./app.db are accepted for
// compatibility with existing deployments.
func (s Settings) DBPath() string {
	path := strings.TrimSpace(s.DBURL)
	for _, prefix := range []string{"sqlite:///", "sqlite://", "sqlite:"} {
		if strings.HasPrefix(path, prefix) {
			path = strings.TrimPrefix(path, prefix)
			break
		}
	}
	if path == "" {
		return defaultDBURL
	}
	return path
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	}
	return origins
}
