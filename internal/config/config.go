package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides of RunConfig keys,
// e.g. LAMPBENCH_ITERATIONSPERPASS=5.
const EnvPrefix = "LAMPBENCH"

// PhaseConfig is a single fixed-rate load segment.
type PhaseConfig struct {
	RPS      int    `mapstructure:"rps" json:"rps"`
	Duration string `mapstructure:"duration" json:"duration"`
}

type StressConfig struct {
	RPSSteps     []int  `mapstructure:"rpsSteps" json:"rpsSteps"`
	StepDuration string `mapstructure:"stepDuration" json:"stepDuration"`
}

type ExtremeConfig struct {
	Enabled         bool   `mapstructure:"enabled" json:"enabled"`
	RunPerIteration bool   `mapstructure:"runPerIteration" json:"runPerIteration"`
	RPS             int    `mapstructure:"rps" json:"rps"`
	Duration        string `mapstructure:"duration" json:"duration"`
}

// ColdStartConfig drives the readiness probe run before the precheck.
type ColdStartConfig struct {
	Enabled         bool   `mapstructure:"enabled" json:"enabled"`
	RunPerIteration bool   `mapstructure:"runPerIteration" json:"runPerIteration"`
	Endpoint        string `mapstructure:"endpoint" json:"endpoint"`
	Interval        string `mapstructure:"interval" json:"interval"`
	MaxWait         string `mapstructure:"maxWait" json:"maxWait"`
	ExpectedStatus  int    `mapstructure:"expectedStatus" json:"expectedStatus"`
}

type SLOConfig struct {
	P95Ms     float64 `mapstructure:"p95Ms" json:"p95Ms"`
	ErrorRate float64 `mapstructure:"errorRate" json:"errorRate"`
}

// WorkloadConfig is the operation mix and pagination used by every phase.
type WorkloadConfig struct {
	ListPercent    int    `mapstructure:"listPercent" json:"listPercent"`
	GetPercent     int    `mapstructure:"getPercent" json:"getPercent"`
	CreatePercent  int    `mapstructure:"createPercent" json:"createPercent"`
	UpdatePercent  int    `mapstructure:"updatePercent" json:"updatePercent"`
	DeletePercent  int    `mapstructure:"deletePercent" json:"deletePercent"`
	PageSize       int    `mapstructure:"pageSize" json:"pageSize"`
	SeedFetchPages int    `mapstructure:"seedFetchPages" json:"seedFetchPages"`
	SeedPageSize   int    `mapstructure:"seedPageSize" json:"seedPageSize"`
	PreAllocated   int    `mapstructure:"preAllocatedVUs" json:"preAllocatedVUs,omitempty"`
	MaxVUs         int    `mapstructure:"maxVUs" json:"maxVUs,omitempty"`
	RequestTimeout string `mapstructure:"requestTimeout" json:"requestTimeout"`
}

type ExecutorConfig struct {
	// Command is the load executor invocation. Empty means this binary's
	// exec subcommand.
	Command []string `mapstructure:"command" json:"command,omitempty"`
}

// DeployProfile is the managed compute scaling profile shared by all services.
type DeployProfile struct {
	ProjectID     string `mapstructure:"projectId" json:"projectId,omitempty"`
	ProjectNumber string `mapstructure:"projectNumber" json:"projectNumber,omitempty"`
	MaxInstances  *int   `mapstructure:"maxInstances" json:"maxInstances,omitempty"`
	MinInstances  *int   `mapstructure:"minInstances" json:"minInstances,omitempty"`
	Concurrency   *int   `mapstructure:"concurrency" json:"concurrency,omitempty"`
	CPU           string `mapstructure:"cpu" json:"cpu,omitempty"`
	Memory        string `mapstructure:"memory" json:"memory,omitempty"`
	Timeout       string `mapstructure:"timeout" json:"timeout,omitempty"`
}

// RunConfig holds the global benchmark parameters. It is loaded once and
// treated as immutable for the whole run.
type RunConfig struct {
	BasePath              string          `mapstructure:"basePath" json:"basePath"`
	Warmup                PhaseConfig     `mapstructure:"warmup" json:"warmup"`
	Fixed                 PhaseConfig     `mapstructure:"fixed" json:"fixed"`
	Stress                StressConfig    `mapstructure:"stress" json:"stress"`
	Extreme               ExtremeConfig   `mapstructure:"extreme" json:"extreme"`
	ColdStart             ColdStartConfig `mapstructure:"coldStart" json:"coldStart"`
	SLO                   SLOConfig       `mapstructure:"slo" json:"slo"`
	IterationsPerPass     int             `mapstructure:"iterationsPerPass" json:"iterationsPerPass"`
	RandomizeServiceOrder bool            `mapstructure:"randomizeServiceOrder" json:"randomizeServiceOrder"`
	Passes                []string        `mapstructure:"passes" json:"passes"`
	Workload              WorkloadConfig  `mapstructure:"workload" json:"workload"`
	DBSeedCommand         string          `mapstructure:"dbSeedCommand" json:"dbSeedCommand,omitempty"`
	Executor              ExecutorConfig  `mapstructure:"executor" json:"executor"`
	CloudRun              DeployProfile   `mapstructure:"cloudRun" json:"cloudRun"`
}

// SetDefaults registers the defaults for every RunConfig key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("basePath", "/v1")
	v.SetDefault("warmup.rps", 20)
	v.SetDefault("warmup.duration", "30s")
	v.SetDefault("fixed.rps", 50)
	v.SetDefault("fixed.duration", "60s")
	v.SetDefault("stress.rpsSteps", []int{50, 100, 200, 400})
	v.SetDefault("stress.stepDuration", "30s")
	v.SetDefault("extreme.enabled", false)
	v.SetDefault("extreme.runPerIteration", false)
	v.SetDefault("extreme.rps", 1000)
	v.SetDefault("extreme.duration", "30s")
	v.SetDefault("coldStart.enabled", false)
	v.SetDefault("coldStart.runPerIteration", false)
	v.SetDefault("coldStart.endpoint", "/health")
	v.SetDefault("coldStart.interval", "500ms")
	v.SetDefault("coldStart.maxWait", "60s")
	v.SetDefault("coldStart.expectedStatus", 200)
	v.SetDefault("slo.p95Ms", 500)
	v.SetDefault("slo.errorRate", 0.01)
	v.SetDefault("iterationsPerPass", 1)
	v.SetDefault("randomizeServiceOrder", false)
	v.SetDefault("passes", []string{string(PassMemory), string(PassDatabase)})
	v.SetDefault("workload.listPercent", 50)
	v.SetDefault("workload.getPercent", 20)
	v.SetDefault("workload.createPercent", 20)
	v.SetDefault("workload.updatePercent", 7)
	v.SetDefault("workload.deletePercent", 3)
	v.SetDefault("workload.pageSize", 25)
	v.SetDefault("workload.seedFetchPages", 10)
	v.SetDefault("workload.seedPageSize", 100)
	v.SetDefault("workload.requestTimeout", "30s")
}

// Load reads the RunConfig document at path (JSON or YAML), applies defaults
// and LAMPBENCH_ environment overrides, and validates the result.
func Load(path string) (*RunConfig, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "reading config %s", path)
	}

	var cfg RunConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrapf(err, "decoding config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a RunConfig populated only from defaults.
func Default() *RunConfig {
	v := viper.New()
	SetDefaults(v)
	var cfg RunConfig
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("decoding default config: %v", err))
	}
	return &cfg
}

// PassKinds returns the configured passes as validated kinds.
func (c *RunConfig) PassKinds() ([]PassKind, error) {
	return ParsePasses(c.Passes)
}

// Validate checks every field and reports all problems at once.
func (c *RunConfig) Validate() error {
	var result *multierror.Error
	add := func(field, format string, args ...any) {
		result = multierror.Append(result, &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)})
	}

	if !strings.HasPrefix(c.BasePath, "/") && c.BasePath != "" {
		add("basePath", "must start with '/'")
	}

	checkPhase := func(name string, p PhaseConfig) {
		if p.RPS <= 0 {
			add(name+".rps", "must be positive")
		}
		if d, err := time.ParseDuration(p.Duration); err != nil || d <= 0 {
			add(name+".duration", "invalid duration %q", p.Duration)
		}
	}
	checkPhase("warmup", c.Warmup)
	checkPhase("fixed", c.Fixed)
	if c.Extreme.Enabled {
		checkPhase("extreme", PhaseConfig{RPS: c.Extreme.RPS, Duration: c.Extreme.Duration})
	}

	if len(c.Stress.RPSSteps) == 0 {
		add("stress.rpsSteps", "at least one step is required")
	}
	for i, rps := range c.Stress.RPSSteps {
		if rps <= 0 {
			add("stress.rpsSteps", "step %d must be positive, got %d", i, rps)
		}
		if i > 0 && rps <= c.Stress.RPSSteps[i-1] {
			add("stress.rpsSteps", "steps must be strictly ascending, %d follows %d", rps, c.Stress.RPSSteps[i-1])
		}
	}
	if d, err := time.ParseDuration(c.Stress.StepDuration); err != nil || d <= 0 {
		add("stress.stepDuration", "invalid duration %q", c.Stress.StepDuration)
	}

	if c.ColdStart.Enabled {
		if c.ColdStart.Endpoint == "" {
			add("coldStart.endpoint", "required when cold start is enabled")
		}
		for field, value := range map[string]string{"coldStart.interval": c.ColdStart.Interval, "coldStart.maxWait": c.ColdStart.MaxWait} {
			if d, err := time.ParseDuration(value); err != nil || d <= 0 {
				add(field, "invalid duration %q", value)
			}
		}
		if c.ColdStart.ExpectedStatus < 100 || c.ColdStart.ExpectedStatus > 599 {
			add("coldStart.expectedStatus", "not an HTTP status: %d", c.ColdStart.ExpectedStatus)
		}
	}

	if c.SLO.P95Ms <= 0 {
		add("slo.p95Ms", "must be positive")
	}
	if c.SLO.ErrorRate < 0 || c.SLO.ErrorRate > 1 {
		add("slo.errorRate", "must be within [0, 1]")
	}
	if c.IterationsPerPass < 1 {
		add("iterationsPerPass", "must be at least 1")
	}
	if _, err := c.PassKinds(); err != nil {
		result = multierror.Append(result, err)
	}

	w := c.Workload
	weights := []int{w.ListPercent, w.GetPercent, w.CreatePercent, w.UpdatePercent, w.DeletePercent}
	total := 0
	for _, wt := range weights {
		if wt < 0 {
			add("workload", "operation weights must be non-negative")
			break
		}
		total += wt
	}
	if total <= 0 {
		add("workload", "operation weights must sum to a positive value")
	}
	if w.PageSize <= 0 {
		add("workload.pageSize", "must be positive")
	}
	if w.SeedPageSize <= 0 {
		add("workload.seedPageSize", "must be positive")
	}
	if w.SeedFetchPages < 0 {
		add("workload.seedFetchPages", "must be non-negative")
	}
	if w.MaxVUs > 0 && w.PreAllocated > w.MaxVUs {
		add("workload.preAllocatedVUs", "exceeds maxVUs (%d > %d)", w.PreAllocated, w.MaxVUs)
	}
	if d, err := time.ParseDuration(w.RequestTimeout); err != nil || d <= 0 {
		add("workload.requestTimeout", "invalid duration %q", w.RequestTimeout)
	}

	return result.ErrorOrNil()
}
