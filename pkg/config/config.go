package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/go-containerregistry/pkg/name"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"

	"github.com/stefanprodan/kubebroker/pkg/params"
)

const (
	ConfigKind       = "Config"
	ConfigApiVersion = "kubebroker.dev/v1"
	DefaultOwner     = "kubebroker"
)

// Config holds the broker settings.
type Config struct {
	metav1.TypeMeta `json:",inline"`

	// Broker holds the HTTP server settings.
	Broker *Broker `json:"broker,omitempty"`

	// Service holds the defaults of the provisioned instances.
	Service *Service `json:"service,omitempty"`

	// Registry holds the instance registry settings used for delegated provisioning.
	Registry *Registry `json:"registry,omitempty"`

	// MongoDB holds the connection settings of the shared database deployment.
	MongoDB *MongoDB `json:"mongodb,omitempty"`

	// Storage holds the settings of the instance and binding records.
	Storage *Storage `json:"storage,omitempty"`
}

type Broker struct {
	// Address is the listen address of the HTTP server.
	Address string `json:"address"`

	// Username and Password enable HTTP basic auth on the broker API.
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`

	// Workers is the number of concurrent provisioning workflows.
	Workers int `json:"workers"`

	// ShutdownTimeout bounds the wait for in-flight workflows on exit.
	ShutdownTimeout metav1.Duration `json:"shutdownTimeout"`
}

type Service struct {
	// ID of the catalog service, prefix of the plan IDs.
	ID string `json:"id"`

	// Namespace, MasterURL and Token are used when the provisioning request
	// doesn't set them.
	Namespace string `json:"namespace,omitempty"`
	MasterURL string `json:"masterURL,omitempty"`
	Token     string `json:"token,omitempty"`

	// Name of the workload.
	Name string `json:"name"`

	// ExposePort is the node port of the discovery service.
	ExposePort int `json:"exposePort"`

	// Timeout is the interval between workload readiness checks.
	Timeout metav1.Duration `json:"timeout"`

	// Image of the database container.
	Image string `json:"image"`

	// Version of the database engine.
	Version string `json:"version"`

	// StorageProvisioner of the instance storage class.
	StorageProvisioner string `json:"storageProvisioner"`

	// Insecure skips the TLS verification of the cluster API.
	Insecure bool `json:"insecure,omitempty"`
}

type Registry struct {
	// URL is used when the request has no API info location header.
	URL string `json:"url,omitempty"`

	// Insecure skips the TLS verification of the registry API.
	Insecure bool `json:"insecure,omitempty"`
}

type MongoDB struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	AuthDB   string `json:"authDB,omitempty"`
}

type Storage struct {
	// Namespace of the record ConfigMaps and credential Secrets.
	Namespace string `json:"namespace"`

	// AgeRecipients is the path to a file with age public keys,
	// when set the records are encrypted.
	AgeRecipients string `json:"ageRecipients,omitempty"`

	// AgeIdentities is the path to a file with age private keys.
	AgeIdentities string `json:"ageIdentities,omitempty"`
}

// NewConfig returns a config with the default settings.
func NewConfig() *Config {
	return &Config{
		TypeMeta: metav1.TypeMeta{
			Kind:       ConfigKind,
			APIVersion: ConfigApiVersion,
		},
		Broker: &Broker{
			Address:         ":8080",
			Workers:         10,
			ShutdownTimeout: metav1.Duration{Duration: 5 * time.Minute},
		},
		Service: &Service{
			ID:                 "mongodb",
			Name:               "mongo",
			ExposePort:         params.DefaultExposePort,
			Timeout:            metav1.Duration{Duration: params.DefaultServiceTimeout},
			Image:              "mongo:4.4.6",
			Version:            "4.4.6",
			StorageProvisioner: "kubernetes.io/gce-pd",
		},
		Registry: &Registry{},
		MongoDB: &MongoDB{
			Host:   "localhost",
			Port:   27017,
			AuthDB: "admin",
		},
		Storage: &Storage{
			Namespace: "kubebroker-system",
		},
	}
}

// Validate returns an error for the first invalid setting.
func (c *Config) Validate() error {
	if c.Broker.Address == "" {
		return errors.New("broker address can't be empty")
	}
	if c.Broker.Workers < 1 {
		return fmt.Errorf("broker workers must be at least 1, got %d", c.Broker.Workers)
	}
	if (c.Broker.Username == "") != (c.Broker.Password == "") {
		return errors.New("broker username and password must be set together")
	}

	if c.Service.ID == "" {
		return errors.New("service id can't be empty")
	}
	if c.Service.ExposePort < 1 || c.Service.ExposePort > 65535 {
		return fmt.Errorf("service expose port %d is invalid", c.Service.ExposePort)
	}
	if c.Service.Timeout.Duration <= 0 {
		return errors.New("service timeout must be greater than zero")
	}
	if _, err := name.ParseReference(c.Service.Image); err != nil {
		return fmt.Errorf("service image %q is invalid, error: %w", c.Service.Image, err)
	}
	if _, err := semver.NewVersion(c.Service.Version); err != nil {
		return fmt.Errorf("service version %q is invalid, error: %w", c.Service.Version, err)
	}

	if c.MongoDB.Host == "" {
		return errors.New("mongodb host can't be empty")
	}
	if c.Storage.Namespace == "" {
		return errors.New("storage namespace can't be empty")
	}
	return nil
}

// ResolverDefaults returns the instance parameter defaults.
func (c *Config) ResolverDefaults() params.Defaults {
	return params.Defaults{
		Namespace:          c.Service.Namespace,
		URL:                c.Service.MasterURL,
		AccessToken:        c.Service.Token,
		Name:               c.Service.Name,
		ExposePort:         c.Service.ExposePort,
		ServiceTimeout:     c.Service.Timeout.Duration,
		Image:              c.Service.Image,
		Version:            c.Service.Version,
		StorageProvisioner: c.Service.StorageProvisioner,
	}
}

// DefaultConfigPath returns '$HOME/.kubebroker/config'
func DefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".kubebroker/config"), nil
}

// Read loads the config from the specified path,
// if the config file is not found, a default is returned.
// Settings missing from the file keep their default value.
func Read(configPath string) (*Config, error) {
	if configPath == "" {
		p, err := DefaultConfigPath()
		if err != nil {
			return nil, fmt.Errorf("$HOME dir can't be determined, error: %w", err)
		}
		configPath = p
	}

	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		return NewConfig(), nil
	}

	cfgData, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	cfg := NewConfig()
	if err := yaml.Unmarshal(cfgData, cfg); err != nil {
		return nil, fmt.Errorf("decoding %s failed, error: %w", configPath, err)
	}

	defaults := NewConfig()
	if cfg.Broker == nil {
		cfg.Broker = defaults.Broker
	}
	if cfg.Service == nil {
		cfg.Service = defaults.Service
	}
	if cfg.Registry == nil {
		cfg.Registry = defaults.Registry
	}
	if cfg.MongoDB == nil {
		cfg.MongoDB = defaults.MongoDB
	}
	if cfg.Storage == nil {
		cfg.Storage = defaults.Storage
	}

	if cfg.Kind != ConfigKind {
		return nil, fmt.Errorf("%s kind %q is not supported, must be %s", configPath, cfg.Kind, ConfigKind)
	}

	return cfg, nil
}

// Write saves the config at the given path, if no path is specified
// it will create or override '$HOME/.kubebroker/config'.
func (c *Config) Write(configPath string) error {
	if configPath == "" {
		p, err := DefaultConfigPath()
		if err != nil {
			return err
		}
		configPath = p
	}

	if err := os.MkdirAll(filepath.Dir(configPath), os.FileMode(0755)); err != nil {
		return err
	}

	cfgData, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	if err := os.WriteFile(configPath, cfgData, os.FileMode(0600)); err != nil {
		return err
	}

	return nil
}
