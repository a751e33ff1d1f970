package config

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"sigs.k8s.io/yaml"
)

// ServiceDescriptor describes one implementation of the lamp API under test.
type ServiceDescriptor struct {
	Name               string `json:"name"`
	MemoryURL          string `json:"memoryUrl,omitempty"`
	DBURL              string `json:"dbUrl,omitempty"`
	MemorySetupCommand string `json:"memorySetupCommand,omitempty"`
	DBSetupCommand     string `json:"dbSetupCommand,omitempty"`
	DBSeedCommand      string `json:"dbSeedCommand,omitempty"`
	AuthHeader         string `json:"authHeader,omitempty"`
	CloudRunService    string `json:"cloudRunService,omitempty"`
	CloudRunRegion     string `json:"cloudRunRegion,omitempty"`
}

// URL returns the base URL of the service for the given pass.
func (s ServiceDescriptor) URL(pass PassKind) (string, error) {
	var u string
	switch pass {
	case PassMemory:
		u = s.MemoryURL
	case PassDatabase:
		u = s.DBURL
	}
	if u == "" {
		return "", &ConfigurationError{
			Field:  s.Name,
			Reason: fmt.Sprintf("missing %s URL for service %s", pass, s.Name),
		}
	}
	return u, nil
}

// SetupCommand returns the pass specific setup command, if any.
func (s ServiceDescriptor) SetupCommand(pass PassKind) string {
	switch pass {
	case PassMemory:
		return s.MemorySetupCommand
	case PassDatabase:
		return s.DBSetupCommand
	}
	return ""
}

// SeedCommand returns the service override, else the configured default.
func (s ServiceDescriptor) SeedCommand(defaultCommand string) string {
	if s.DBSeedCommand != "" {
		return s.DBSeedCommand
	}
	return defaultCommand
}

// LoadServices reads the service list document (a JSON or YAML array).
func LoadServices(path string) ([]ServiceDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading services %s", path)
	}
	var services []ServiceDescriptor
	if err := yaml.Unmarshal(data, &services); err != nil {
		return nil, errors.Wrapf(err, "decoding services %s", path)
	}
	if err := ValidateServices(services); err != nil {
		return nil, err
	}
	return services, nil
}

// ValidateServices checks that every service is named and that names are unique.
func ValidateServices(services []ServiceDescriptor) error {
	seen := make(map[string]bool, len(services))
	for i, s := range services {
		if s.Name == "" {
			return &ConfigurationError{Field: fmt.Sprintf("services[%d]", i), Reason: "each service must have a name"}
		}
		if seen[s.Name] {
			return &ConfigurationError{Field: fmt.Sprintf("services[%d]", i), Reason: fmt.Sprintf("duplicate service name %q", s.Name)}
		}
		seen[s.Name] = true
	}
	return nil
}
