package config

import (
	"os"

	"gopkg.in/yaml.v2"
)

func LoadConfigFromFile(path string) (*Config, error) {
	if path == "" {
		path = "./config/config.yaml"
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var config Config
	dec := yaml.NewDecoder(file)
	err = dec.Decode(&config)
	if err != nil {
		return nil, err
	}
	config.applyDefaults()
	AppConfig = &config
	return &config, nil
}

type Config struct {
	Port                string `yaml:"port"`
	FFmpegPath          string `yaml:"ffmpeg_path"`
	MixAutoLimit        int    `yaml:"mix_auto_limit"`
	MaxPlaylistItems    int    `yaml:"max_playlist_items"`
	SessionTTLMinutes   int    `yaml:"session_ttl_minutes"`
	SpotifyClientID     string `yaml:"spotify_client_id"`
	SpotifyClientSecret string `yaml:"spotify_client_secret"`
}

func (c *Config) applyDefaults() {
	if c.Port == "" {
		c.Port = "50999"
	}
	if c.MixAutoLimit <= 0 {
		c.MixAutoLimit = 250
	}
	if c.MaxPlaylistItems <= 0 {
		c.MaxPlaylistItems = 2000
	}
	if c.SessionTTLMinutes <= 0 {
		c.SessionTTLMinutes = 60
	}
}

var AppConfig *Config
