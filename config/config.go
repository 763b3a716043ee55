package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const keyEnv = "ENV"
const envLocal = "local"

type Config struct {
	config *viper.Viper
}

func Load(env string) (*Config, error) {

	if len(env) == 0 {
		if env = os.Getenv(keyEnv); len(env) == 0 {
			env = envLocal
		}
	}

	configPath, err := getConfigPath(env)

	viperConfig := viper.New()
	setDefaults(viperConfig)
	if err == nil {
		viperConfig.SetConfigFile(configPath)
		if err := viperConfig.ReadInConfig(); err != nil {
			slog.Warn(fmt.Sprintf("error reading config file, %s", err))
		}
	}
	viperConfig.AutomaticEnv()

	cfg := &Config{
		config: viperConfig,
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.debug", false)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("database.storage_path", "./.iiifsearch")
	v.SetDefault("database.index_path", "records.bleve")
	v.SetDefault("database.kvdb_path", "./.iiifsearch/resources.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("search.default_language", "en")
	v.SetDefault("search.page_size", 25)
	v.SetDefault("search.max_candidates", 10000)
	v.SetDefault("search.number_of_facets", 10)
	v.SetDefault("search.facet_on_manifests", false)
	v.SetDefault("search.non_latin_fulltext", false)
	v.SetDefault("search.search_multiple_fields", false)
	v.SetDefault("search.fulltext_scripts", []string{"Latin"})
	v.SetDefault("search.trigram_threshold", 0.3)
	v.SetDefault("search.trigram_word_threshold", 0.6)
}

func (c *Config) GetPort() string {
	port := c.config.GetString("PORT")
	if len(port) == 0 {
		port = c.config.GetString("server.port")
	}

	return port
}

func (c *Config) GetDebug() bool {
	return c.config.GetBool("DEBUG") || c.config.GetBool("server.debug")
}

func (c *Config) GetCORSOrigins() []string {
	if origins := c.config.GetString("CORS_ORIGINS"); len(origins) > 0 {
		return strings.Split(origins, ",")
	}
	return c.config.GetStringSlice("server.cors_origins")
}

func (c *Config) GetKVDBPath() string {
	kvdbPath := c.config.GetString("KVDB_PATH")
	if len(kvdbPath) == 0 {
		kvdbPath = c.config.GetString("database.kvdb_path")
	}

	return kvdbPath
}

func (c *Config) GetIndexPath() string {
	indexPath := c.config.GetString("INDEX_PATH")
	if len(indexPath) == 0 {
		indexPath = c.config.GetString("database.index_path")
	}

	return indexPath
}

func (c *Config) GetStoragePath() string {
	storagePath := c.config.GetString("STORAGE_PATH")
	if len(storagePath) == 0 {
		storagePath = c.config.GetString("database.storage_path")
	}

	return storagePath
}

func (c *Config) GetLogLevel() string {
	logLevel := c.config.GetString("LOG_LEVEL")
	if len(logLevel) == 0 {
		logLevel = c.config.GetString("log.level")
	}

	return logLevel
}

func (c *Config) GetDefaultLanguage() string {
	language := c.config.GetString("DEFAULT_LANGUAGE")
	if len(language) == 0 {
		language = c.config.GetString("search.default_language")
	}

	return language
}

func (c *Config) GetPageSize() int {
	if value := c.config.GetInt("PAGE_SIZE"); value > 0 {
		return value
	}
	return c.config.GetInt("search.page_size")
}

func (c *Config) GetMaxCandidates() int {
	if value := c.config.GetInt("MAX_CANDIDATES"); value > 0 {
		return value
	}
	return c.config.GetInt("search.max_candidates")
}

func (c *Config) GetNumberOfFacets() int {
	if value := c.config.GetInt("NUMBER_OF_FACETS"); value > 0 {
		return value
	}
	return c.config.GetInt("search.number_of_facets")
}

func (c *Config) GetFacetOnManifests() bool {
	return c.config.GetBool("FACET_ON_MANIFESTS") || c.config.GetBool("search.facet_on_manifests")
}

func (c *Config) GetNonLatinFulltext() bool {
	return c.config.GetBool("NON_LATIN_FULLTEXT") || c.config.GetBool("search.non_latin_fulltext")
}

func (c *Config) GetSearchMultipleFields() bool {
	return c.config.GetBool("SEARCH_MULTIPLE_FIELDS") || c.config.GetBool("search.search_multiple_fields")
}

func (c *Config) GetFulltextScripts() []string {
	if scripts := c.config.GetString("FULLTEXT_SCRIPTS"); len(scripts) > 0 {
		return strings.Split(scripts, ",")
	}
	return c.config.GetStringSlice("search.fulltext_scripts")
}

func (c *Config) GetTrigramThreshold() float64 {
	if value := c.config.GetFloat64("TRIGRAM_THRESHOLD"); value > 0 {
		return value
	}
	return c.config.GetFloat64("search.trigram_threshold")
}

func (c *Config) GetTrigramWordThreshold() float64 {
	if value := c.config.GetFloat64("TRIGRAM_WORD_THRESHOLD"); value > 0 {
		return value
	}
	return c.config.GetFloat64("search.trigram_word_threshold")
}

func getProjectRoot() (string, error) {
	currentDir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current working directory: %w", err)
	}

	for {
		configDir := filepath.Join(currentDir, "config")
		if info, err := os.Stat(configDir); err == nil && info.IsDir() {
			return currentDir, nil
		}

		parent := filepath.Dir(currentDir)

		if parent == currentDir {
			break
		}

		currentDir = parent
	}

	return "", fmt.Errorf("could not find project root (directory containing 'config' folder)")
}

func getConfigPath(env string) (string, error) {
	configFile := fmt.Sprintf("config.%s.yaml", env)

	projectRoot, err := getProjectRoot()
	if err != nil {
		slog.Warn("failed to find project root with config directory, will use environment variables instead", "err", err.Error())
		return "", fmt.Errorf("failed to find project root: %w", err)
	}
	configPath := filepath.Join(projectRoot, "config", configFile)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		slog.Warn("failed to find config file within config directory, will use environment variables instead", "err", err.Error())
		return "", fmt.Errorf("config file does not exist: %s", configPath)
	}

	return configPath, nil
}
