package runner

import (
	"math"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"

	"lampbench/internal/report"
)

// Config is the phase environment read by the load executor. Every field maps
// to one environment variable so a phase can be reproduced by hand.
type Config struct {
	Mode      string        `env:"RUN_MODE" envDefault:"fixed"`
	BaseURL   string        `env:"BASE_URL,required"`
	BasePath  string        `env:"BASE_PATH" envDefault:"/v1"`
	TargetRPS int           `env:"TARGET_RPS" envDefault:"1"`
	Duration  time.Duration `env:"DURATION" envDefault:"60s"`

	PageSize       int `env:"PAGE_SIZE" envDefault:"25"`
	SeedFetchPages int `env:"SEED_FETCH_PAGES" envDefault:"10"`
	SeedPageSize   int `env:"SEED_PAGE_SIZE" envDefault:"100"`

	ListWeight   int `env:"LIST_WEIGHT" envDefault:"50"`
	GetWeight    int `env:"GET_WEIGHT" envDefault:"20"`
	CreateWeight int `env:"CREATE_WEIGHT" envDefault:"20"`
	UpdateWeight int `env:"UPDATE_WEIGHT" envDefault:"7"`
	DeleteWeight int `env:"DELETE_WEIGHT" envDefault:"3"`

	AuthHeader string `env:"AUTH_HEADER"`

	// Zero means derived from TargetRPS, see Workers.
	PreAllocatedVUs int `env:"PRE_ALLOCATED_VUS"`
	MaxVUs          int `env:"MAX_VUS"`

	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`

	// Cold start probe mode only. The endpoint is relative to BaseURL,
	// without BasePath.
	ColdStartEndpoint       string        `env:"COLD_START_ENDPOINT" envDefault:"/health"`
	ColdStartInterval       time.Duration `env:"COLD_START_INTERVAL" envDefault:"500ms"`
	ColdStartMaxWait        time.Duration `env:"COLD_START_MAX_WAIT" envDefault:"60s"`
	ColdStartExpectedStatus int           `env:"COLD_START_EXPECTED_STATUS" envDefault:"200"`
}

// ParseConfig reads a Config from environ, or from the process environment
// when environ is nil.
func ParseConfig(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return cfg, errors.Wrap(err, "parsing phase environment")
	}
	if cfg.Mode != report.ModeColdStart && cfg.TargetRPS <= 0 {
		return cfg, errors.Errorf("TARGET_RPS must be positive, got %d", cfg.TargetRPS)
	}
	if cfg.Mode != report.ModeColdStart && cfg.Duration <= 0 {
		return cfg, errors.Errorf("DURATION must be positive, got %s", cfg.Duration)
	}
	if cfg.ListWeight+cfg.GetWeight+cfg.CreateWeight+cfg.UpdateWeight+cfg.DeleteWeight <= 0 {
		return cfg, errors.New("operation weights must sum to a positive value")
	}
	return cfg, nil
}

// Environ renders the config as KEY=VALUE pairs understood by ParseConfig.
// Every key is present so values inherited from the parent environment never
// leak into a phase. Unset cold start values render empty and parse back to
// their defaults.
func (c Config) Environ() []string {
	return []string{
		"RUN_MODE=" + c.Mode,
		"BASE_URL=" + c.BaseURL,
		"BASE_PATH=" + c.BasePath,
		"TARGET_RPS=" + strconv.Itoa(c.TargetRPS),
		"DURATION=" + c.Duration.String(),
		"PAGE_SIZE=" + strconv.Itoa(c.PageSize),
		"SEED_FETCH_PAGES=" + strconv.Itoa(c.SeedFetchPages),
		"SEED_PAGE_SIZE=" + strconv.Itoa(c.SeedPageSize),
		"LIST_WEIGHT=" + strconv.Itoa(c.ListWeight),
		"GET_WEIGHT=" + strconv.Itoa(c.GetWeight),
		"CREATE_WEIGHT=" + strconv.Itoa(c.CreateWeight),
		"UPDATE_WEIGHT=" + strconv.Itoa(c.UpdateWeight),
		"DELETE_WEIGHT=" + strconv.Itoa(c.DeleteWeight),
		"AUTH_HEADER=" + c.AuthHeader,
		"PRE_ALLOCATED_VUS=" + strconv.Itoa(c.PreAllocatedVUs),
		"MAX_VUS=" + strconv.Itoa(c.MaxVUs),
		"REQUEST_TIMEOUT=" + c.RequestTimeout.String(),
		"COLD_START_ENDPOINT=" + c.ColdStartEndpoint,
		"COLD_START_INTERVAL=" + durationOrEmpty(c.ColdStartInterval),
		"COLD_START_MAX_WAIT=" + durationOrEmpty(c.ColdStartMaxWait),
		"COLD_START_EXPECTED_STATUS=" + intOrEmpty(c.ColdStartExpectedStatus),
	}
}

func durationOrEmpty(d time.Duration) string {
	if d == 0 {
		return ""
	}
	return d.String()
}

func intOrEmpty(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

// Workers returns the number of workers started up front and the pool
// ceiling. Unset values default to max(10, ceil(2*rps)) and
// max(50, ceil(4*rps)).
func (c Config) Workers() (preAllocated, maxWorkers int) {
	preAllocated = c.PreAllocatedVUs
	if preAllocated <= 0 {
		preAllocated = max(10, int(math.Ceil(2*float64(c.TargetRPS))))
	}
	maxWorkers = c.MaxVUs
	if maxWorkers <= 0 {
		maxWorkers = max(50, int(math.Ceil(4*float64(c.TargetRPS))))
	}
	if preAllocated > maxWorkers {
		maxWorkers = preAllocated
	}
	return preAllocated, maxWorkers
}

// Operation is one lamp API action of the workload mix.
type Operation int

const (
	OpList Operation = iota
	OpGet
	OpCreate
	OpUpdate
	OpDelete
)

var operationNames = [...]string{"list", "get", "create", "update", "delete"}

func (o Operation) String() string {
	if o < 0 || int(o) >= len(operationNames) {
		return "unknown"
	}
	return operationNames[o]
}

// Weights returns the mix weights indexed by Operation.
func (c Config) Weights() [5]int {
	return [5]int{c.ListWeight, c.GetWeight, c.CreateWeight, c.UpdateWeight, c.DeleteWeight}
}
