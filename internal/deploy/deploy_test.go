package deploy

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lampbench/internal/config"
	"lampbench/internal/shell"
)

type recordingShell struct {
	ran    []shell.Command
	failAt int
}

func (r *recordingShell) Run(_ context.Context, cmd shell.Command) error {
	r.ran = append(r.ran, cmd)
	if len(r.ran) == r.failAt {
		return &shell.ExternalCommandError{Command: cmd.String(), ExitCode: 1}
	}
	return nil
}

func intp(v int) *int { return &v }

func profile() config.DeployProfile {
	return config.DeployProfile{
		ProjectID:    "bench-project",
		MaxInstances: intp(1),
		MinInstances: intp(0),
		Concurrency:  intp(80),
		CPU:          "1",
		Memory:       "512Mi",
		Timeout:      "300s",
	}
}

func configurator(sh shell.Runner, out io.Writer) *Configurator {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return &Configurator{
		Profile: profile(),
		Services: []config.ServiceDescriptor{
			{Name: "go", CloudRunService: "lamp-go", CloudRunRegion: "europe-west1"},
			{Name: "local"},
			{Name: "node", CloudRunService: "lamp-node"},
		},
		Getenv: func(string) string { return "" },
		Shell:  sh,
		Out:    out,
		Log:    logrus.NewEntry(log),
	}
}

func TestPlan(t *testing.T) {
	updates, err := configurator(nil, io.Discard).Plan()
	require.NoError(t, err)
	require.Len(t, updates, 2)

	assert.Equal(t, "go", updates[0].Service)
	assert.Equal(t, []string{
		"gcloud", "run", "services", "update", "lamp-go",
		"--project", "bench-project",
		"--region", "europe-west1",
		"--max-instances", "1",
		"--min-instances", "0",
		"--concurrency", "80",
		"--cpu", "1",
		"--memory", "512Mi",
		"--timeout", "300s",
		"--cpu-throttling",
	}, updates[0].Command.Args)
	assert.Contains(t, updates[1].Command.Args, DefaultRegion)
}

func TestValidateProfile_ReportsEveryMissingKey(t *testing.T) {
	err := ValidateProfile(config.DeployProfile{CPU: "1", MinInstances: intp(0)})
	require.Error(t, err)
	for _, key := range []string{"maxInstances", "concurrency", "memory", "timeout"} {
		assert.Contains(t, err.Error(), "cloudRun."+key)
	}
	assert.NotContains(t, err.Error(), "cloudRun.cpu")

	var ce *config.ConfigurationError
	assert.True(t, errors.As(err, &ce))
}

func TestResolveProject_Order(t *testing.T) {
	c := configurator(nil, io.Discard)
	c.Getenv = func(string) string { return "from-env" }

	c.Project = " flag "
	p, _ := c.ResolveProject()
	assert.Equal(t, "flag", p)

	c.Project = ""
	p, _ = c.ResolveProject()
	assert.Equal(t, "bench-project", p)

	c.Profile.ProjectID = ""
	c.Profile.ProjectNumber = "1234"
	p, _ = c.ResolveProject()
	assert.Equal(t, "1234", p)

	c.Profile.ProjectNumber = ""
	p, _ = c.ResolveProject()
	assert.Equal(t, "from-env", p)

	c.Getenv = func(string) string { return "" }
	_, err := c.ResolveProject()
	var ce *config.ConfigurationError
	assert.True(t, errors.As(err, &ce))
}

func TestApply_DryRun(t *testing.T) {
	sh := &recordingShell{}
	var out bytes.Buffer
	require.NoError(t, configurator(sh, &out).Apply(context.Background(), false))

	assert.Empty(t, sh.ran)
	assert.Contains(t, out.String(), "[dry-run] gcloud run services update lamp-go")
	assert.Contains(t, out.String(), "Dry run complete")
}

func TestApply_StopsAtFirstFailure(t *testing.T) {
	sh := &recordingShell{failAt: 1}
	err := configurator(sh, io.Discard).Apply(context.Background(), true)

	var ce *shell.ExternalCommandError
	require.True(t, errors.As(err, &ce))
	assert.Len(t, sh.ran, 1)
}

func TestApply_Execute(t *testing.T) {
	sh := &recordingShell{}
	require.NoError(t, configurator(sh, io.Discard).Apply(context.Background(), true))
	assert.Len(t, sh.ran, 2)
}
