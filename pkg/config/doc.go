// Package config loads typed configuration from environment variables.
//
// It combines github.com/joho/godotenv (optional .env file) with
// github.com/caarlos0/env/v11 (struct tag parsing) and caches every config
// type after its first successful or failed load, so infrastructure packages
// can each declare their own Config struct and load it independently:
//
//	var pgCfg pg.Config
//	config.MustLoad(&pgCfg)
//
// Types implementing Validator are checked right after parsing.
package config
