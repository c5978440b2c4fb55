package utils

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/jinzhu/configor"

	"github.com/projecteru2/barge/types"
)

// LoadConfig load config from yaml, a missing file leaves defaults
func LoadConfig(configPath string) (types.Config, error) {
	config := types.Config{}
	files := []string{}
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			files = append(files, configPath)
		} else if !errors.Is(err, os.ErrNotExist) {
			return config, errors.WithStack(err)
		}
	}
	loader := configor.New(&configor.Config{ENVPrefix: "BARGE"})
	if err := loader.Load(&config, files...); err != nil {
		return config, errors.Wrapf(err, "load config %s", configPath)
	}
	return config, nil
}
