package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/paddlesteamer/cloudfiles/internal/common"
)

const configFileName string = "config.json"

type GDriveCredentials struct {
	APIKey   string
	ClientID string
}

type DropboxCredentials struct {
	AppKey string
}

type SFTPMount struct {
	Host      string
	Port      int
	User      string
	Password  string
	Directory string
}

type Cfg struct {
	RemoteFile string
	GDrive     *GDriveCredentials
	Dropbox    *DropboxCredentials
	SFTP       *SFTPMount
}

// GetConfigPath returns the path of the config file. If dir is empty,
// the user config directory is used.
func GetConfigPath(dir string) string {
	if dir == "" {
		cfgDir, err := os.UserConfigDir()
		if err != nil {
			cfgDir = "."
		}

		return filepath.Join(cfgDir, "cloudfiles", configFileName)
	}

	return filepath.Join(dir, configFileName)
}

// DoesConfigExist checks whether there is a config file in the provided directory.
func DoesConfigExist(dir string) bool {
	_, err := os.Stat(GetConfigPath(dir))

	return err == nil
}

// ParseConfig reads the config file in the provided directory and
// fills missing fields with defaults.
func ParseConfig(dir string) (*Cfg, error) {
	f, err := os.Open(GetConfigPath(dir))
	if err != nil {
		return nil, fmt.Errorf("unable to open config file: %v", err)
	}
	defer f.Close()

	cfg := &Cfg{}

	decoder := json.NewDecoder(f)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("unable to parse config json: %v", err)
	}

	if cfg.RemoteFile == "" {
		cfg.RemoteFile = common.DEFAULT_REMOTE_FILE
	}

	return cfg, nil
}

// WriteConfig creates the config directory if needed and writes
// the config file into it.
func WriteConfig(dir string, cfg *Cfg) error {
	path := GetConfigPath(dir)

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("couldn't create config directory: %v", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("couldn't create config file: %v", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("couldn't write config json: %v", err)
	}

	return nil
}
