package config

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads .env (if present) and binds every setting the server needs.
// Environment variables always win over the file.
func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	viper.AutomaticEnv()

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")
	viper.BindEnv("redis.url", "REDIS_URL")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")

	viper.BindEnv("datti.base_url", "DATTI_API_BASE_URL")
	viper.BindEnv("datti.client_id", "DATTI_CLIENT_ID")
	viper.BindEnv("datti.client_secret", "DATTI_CLIENT_SECRET")

	viper.BindEnv("server.port", "PORT")
	viper.BindEnv("server.allowed_origins", "ALLOWED_ORIGINS")

	viper.SetDefault("jwt.expiry_hours", 24*7)
	viper.SetDefault("datti.base_url", "http://localhost:7070")
	viper.SetDefault("datti.client_id", "datti-web")
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.allowed_origins", []string{"https://*", "http://*"})
}
