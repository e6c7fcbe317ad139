// Package config provides viper-backed configuration accessors for the
// contentsync CLI and the sync engine wiring.
package config

import (
	"bufio"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Configuration keys.
const (
	KeySCCURL                     = "scc.url"
	KeyFromDir                    = "scc.fromdir"
	KeyMirror                     = "scc.mirror"
	KeyProductTreeTag             = "scc.product_tree_tag"
	KeyCredentialsFile            = "scc.credentials_file"
	KeyBackupIdentity             = "scc.backup_identity"
	KeyCredentials                = "credentials"
	KeyChannelFamiliesFile        = "scc.channel_families_file"
	KeyUpgradePathsFile           = "scc.upgrade_paths_file"
	KeyAdditionalProductsFile     = "scc.additional_products_file"
	KeyAdditionalRepositoriesFile = "scc.additional_repositories_file"
)

// Defaults.
const (
	DefaultSCCURL          = "https://scc.suse.com"
	DefaultCredentialsFile = "/etc/zypp/credentials.d/SCCcredentials"
)

// Init configures viper: config file lookup, environment binding and
// defaults. Missing config files are fine, everything can come from the
// environment.
func Init() error {
	viper.SetConfigName("contentsync")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.contentsync")
	viper.AddConfigPath("/etc/contentsync")

	viper.SetEnvPrefix("CONTENTSYNC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault(KeySCCURL, DefaultSCCURL)
	viper.SetDefault(KeyCredentialsFile, DefaultCredentialsFile)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}
	return nil
}

// GetString returns a string value, checking the OS environment before
// viper so plain env vars work without the prefix.
func GetString(key string) string {
	if v := os.Getenv(key); v != "" && viper.GetString(key) == "" {
		return v
	}
	return viper.GetString(key)
}

// SCCURL returns the catalog service base URL.
func SCCURL() string { return viper.GetString(KeySCCURL) }

// FromDir returns the offline mirror directory, empty for online mode.
func FromDir() string { return viper.GetString(KeyFromDir) }

// Mirror returns the optional content mirror URL.
func Mirror() string { return viper.GetString(KeyMirror) }

// ProductTreeTag returns the tree edge filter tag.
func ProductTreeTag() string { return viper.GetString(KeyProductTreeTag) }

// ChannelFamiliesFile returns the static channel families JSON path.
func ChannelFamiliesFile() string { return viper.GetString(KeyChannelFamiliesFile) }

// UpgradePathsFile returns the static upgrade paths JSON path.
func UpgradePathsFile() string { return viper.GetString(KeyUpgradePathsFile) }

// AdditionalProductsFile returns the JSON path of extra products not
// served by the catalog service.
func AdditionalProductsFile() string { return viper.GetString(KeyAdditionalProductsFile) }

// AdditionalRepositoriesFile returns the JSON path of extra
// repositories not served by the catalog service.
func AdditionalRepositoriesFile() string { return viper.GetString(KeyAdditionalRepositoriesFile) }

// CredentialConfig is one configured organization credential.
type CredentialConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// Credentials returns the configured organization credentials.
func Credentials() ([]CredentialConfig, error) {
	var creds []CredentialConfig
	if err := viper.UnmarshalKey(KeyCredentials, &creds); err != nil {
		return nil, err
	}
	return creds, nil
}

// ResolveIdentity resolves the system identity sent with catalog
// requests, once at startup: the username of the system credentials
// file when present, otherwise the configured backup identity.
func ResolveIdentity() string {
	if id, ok := identityFromFile(viper.GetString(KeyCredentialsFile)); ok {
		return id
	}
	return viper.GetString(KeyBackupIdentity)
}

func identityFromFile(path string) (string, bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if v, ok := strings.CutPrefix(line, "username="); ok && v != "" {
			return v, true
		}
	}
	return "", false
}
