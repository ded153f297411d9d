// Config loading for loomctl.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	configFileName = "config"
	configFileType = "yaml"

	cfgKeyDataDir = "data_dir"
	cfgKeyDBName  = "db_name"

	defaultDBName = "loom.db"
)

// loadConfig reads the config file with Viper. A missing file is not an
// error; defaults cover everything.
func loadConfig(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault(cfgKeyDataDir, defaultDataDir())
	v.SetDefault(cfgKeyDBName, defaultDBName)
	v.SetEnvPrefix("LOOM")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType(configFileType)
		v.AddConfigPath(defaultConfigDir())
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return v, nil
		}
		if os.IsNotExist(err) {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

func defaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".loomctl"
	}
	return filepath.Join(home, ".loomctl")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".loom-data"
	}
	return filepath.Join(home, ".loom-data")
}
