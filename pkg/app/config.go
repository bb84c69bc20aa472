package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const configFlagName = "config"

var cfgFile string

// addConfigFlag registers the --config flag on the given flag set.
func addConfigFlag(basename string, fs *pflag.FlagSet) {
	fs.StringVarP(&cfgFile, configFlagName, "c", cfgFile,
		fmt.Sprintf("Read configuration from the specified file (default search: /etc/%s, $HOME/.%s).", basename, basename))
}

// loadConfig reads the config file into viper. A missing default config file
// is not an error; an explicitly requested file must exist.
func loadConfig(basename string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, "."+basename))
		}
		viper.AddConfigPath(filepath.Join("/etc", basename))
		viper.SetConfigName(basename)
	}

	viper.SetEnvPrefix(strings.ToUpper(strings.ReplaceAll(basename, "-", "_")))
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read configuration file: %w", err)
	}
	return nil
}
