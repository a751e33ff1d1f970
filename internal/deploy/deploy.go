// Package deploy applies the shared scaling profile to every service hosted
// on Cloud Run, through the gcloud CLI.
package deploy

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"lampbench/internal/config"
	"lampbench/internal/shell"
)

const (
	DefaultRegion = "us-central1"
	ProjectEnv    = "GOOGLE_CLOUD_PROJECT"
)

// Update is the gcloud invocation for one service.
type Update struct {
	Service string
	Command shell.Command
}

// Configurator builds and optionally runs the update commands.
type Configurator struct {
	Profile  config.DeployProfile
	Services []config.ServiceDescriptor
	// Project overrides every other project source when set.
	Project string
	Getenv  func(string) string

	Shell shell.Runner
	Out   io.Writer
	Log   *logrus.Entry
}

// ValidateProfile reports every missing required key of p.
func ValidateProfile(p config.DeployProfile) error {
	var result *multierror.Error
	missing := func(key string) {
		result = multierror.Append(result, &config.ConfigurationError{
			Field:  "cloudRun." + key,
			Reason: fmt.Sprintf("'%s' is required (cloudRun.%s)", key, key),
		})
	}
	if p.MaxInstances == nil {
		missing("maxInstances")
	}
	if p.MinInstances == nil {
		missing("minInstances")
	}
	if p.Concurrency == nil {
		missing("concurrency")
	}
	if strings.TrimSpace(p.CPU) == "" {
		missing("cpu")
	}
	if strings.TrimSpace(p.Memory) == "" {
		missing("memory")
	}
	if strings.TrimSpace(p.Timeout) == "" {
		missing("timeout")
	}
	return result.ErrorOrNil()
}

// ResolveProject picks the project from the flag, the profile's projectId,
// its projectNumber, then the GOOGLE_CLOUD_PROJECT variable.
func (c *Configurator) ResolveProject() (string, error) {
	getenv := c.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	for _, candidate := range []string{c.Project, c.Profile.ProjectID, c.Profile.ProjectNumber, getenv(ProjectEnv)} {
		if v := strings.TrimSpace(candidate); v != "" {
			return v, nil
		}
	}
	return "", &config.ConfigurationError{
		Field:  "cloudRun.projectId",
		Reason: "missing project: set cloudRun.projectId (or projectNumber), pass --project, or set " + ProjectEnv,
	}
}

// Plan returns one update per service that names a Cloud Run service, in
// list order.
func (c *Configurator) Plan() ([]Update, error) {
	if err := ValidateProfile(c.Profile); err != nil {
		return nil, err
	}
	project, err := c.ResolveProject()
	if err != nil {
		return nil, err
	}

	p := c.Profile
	var updates []Update
	for _, svc := range c.Services {
		if svc.CloudRunService == "" {
			c.Log.WithField("service", svc.Name).Info("skipping service without cloudRunService")
			continue
		}
		region := svc.CloudRunRegion
		if region == "" {
			region = DefaultRegion
		}
		updates = append(updates, Update{
			Service: svc.Name,
			Command: shell.Command{Args: []string{
				"gcloud", "run", "services", "update", svc.CloudRunService,
				"--project", project,
				"--region", region,
				"--max-instances", strconv.Itoa(*p.MaxInstances),
				"--min-instances", strconv.Itoa(*p.MinInstances),
				"--concurrency", strconv.Itoa(*p.Concurrency),
				"--cpu", p.CPU,
				"--memory", p.Memory,
				"--timeout", p.Timeout,
				"--cpu-throttling",
			}},
		})
	}
	return updates, nil
}

// Apply prints the plan, or with execute runs it and stops at the first
// command that fails.
func (c *Configurator) Apply(ctx context.Context, execute bool) error {
	updates, err := c.Plan()
	if err != nil {
		return err
	}
	for _, u := range updates {
		if !execute {
			fmt.Fprintf(c.Out, "\n[dry-run] %s\n", u.Command)
			continue
		}
		if err := c.Shell.Run(ctx, u.Command); err != nil {
			return err
		}
		c.Log.WithField("service", u.Service).Info("scaling profile applied")
	}
	if !execute {
		fmt.Fprintln(c.Out, "\nDry run complete. Re-run with --execute to apply updates.")
	}
	return nil
}
