package config

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/searchktools/pool-server/core"
	"github.com/searchktools/pool-server/core/failure"
	"github.com/searchktools/pool-server/core/router"
	"github.com/searchktools/pool-server/core/static"
)

// EnvPrefix prefixes every environment variable the server reads,
// e.g. POOLSERVER_QUEUE_CAPACITY for queue.capacity
const EnvPrefix = "POOLSERVER"

// Config holds all application configuration.
type Config struct {
	Host           string        `config:"host"`
	Port           int           `config:"port"`
	Workers        int           `config:"workers"`
	QueueCapacity  int           `config:"queue.capacity"`
	ReadBufferSize int           `config:"read.buffer"`
	ReadTimeout    time.Duration `config:"read.timeout"`
	WriteTimeout   time.Duration `config:"write.timeout"`
	OKBody         string        `config:"body.ok"`
	NotFoundBody   string        `config:"body.notfound"`
	Routes         []string      `config:"routes"`
	MatchPolicy    string        `config:"match.policy"`
	ReusePort      bool          `config:"reuse.port"`
	Linger         int           `config:"linger"`
	AdminAddr      string        `config:"admin.addr"`
	Env            string        `config:"env"`
	ConfigFile     string        `config:"-"`
}

// Default returns the stock configuration: localhost:8080, eight workers,
// and no routes.
func Default() *Config {
	return &Config{
		Host:           "localhost",
		Port:           core.DefaultPort,
		Workers:        core.DefaultWorkers,
		ReadBufferSize: core.DefaultReadBufferSize,
		OKBody:         static.DefaultOK,
		NotFoundBody:   static.DefaultNotFound,
		MatchPolicy:    router.FirstMatch.String(),
		Env:            "development",
	}
}

// New loads configuration from the command line, the optional -config file
// and the environment, exiting on invalid input.
func New() *Config {
	cfg, err := Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	return cfg
}

// Parse loads configuration with precedence explicit flags > environment >
// JSON file > defaults, then validates it.
func Parse(args []string) (*Config, error) {
	cfg := Default()

	fs := flag.NewFlagSet("pool-server", flag.ContinueOnError)
	fs.StringVar(&cfg.Host, "host", cfg.Host, "Listen host")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "Listen port")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "Worker pool size")
	fs.IntVar(&cfg.QueueCapacity, "queue-capacity", cfg.QueueCapacity, "Job queue capacity (0 = unbounded)")
	fs.IntVar(&cfg.ReadBufferSize, "read-buffer", cfg.ReadBufferSize, "Request read buffer size in bytes")
	fs.DurationVar(&cfg.ReadTimeout, "read-timeout", cfg.ReadTimeout, "Connection read deadline (0 = none)")
	fs.DurationVar(&cfg.WriteTimeout, "write-timeout", cfg.WriteTimeout, "Connection write deadline (0 = none)")
	fs.StringVar(&cfg.OKBody, "body-ok", cfg.OKBody, "Body file served on a route match")
	fs.StringVar(&cfg.NotFoundBody, "body-notfound", cfg.NotFoundBody, "Body file served when nothing matches")
	fs.Var((*routeList)(&cfg.Routes), "routes", `Route such as "GET /hello"; repeatable or comma-separated`)
	fs.StringVar(&cfg.MatchPolicy, "match-policy", cfg.MatchPolicy, "Route match policy (first/last)")
	fs.BoolVar(&cfg.ReusePort, "reuse-port", cfg.ReusePort, "Set SO_REUSEPORT so several processes share the port")
	fs.IntVar(&cfg.Linger, "linger", cfg.Linger, "SO_LINGER seconds on accepted connections (0 = OS default)")
	fs.StringVar(&cfg.AdminAddr, "admin-addr", cfg.AdminAddr, "Admin HTTP address (empty = disabled)")
	fs.StringVar(&cfg.Env, "env", cfg.Env, "Environment (development/production)")
	fs.StringVar(&cfg.ConfigFile, "config", "", "JSON configuration file")

	if err := fs.Parse(args); err != nil {
		return nil, failure.New(failure.Configuration, "parse flags", err)
	}

	m := NewManager()
	if cfg.ConfigFile != "" {
		if err := m.LoadFromJSON(cfg.ConfigFile); err != nil {
			return nil, failure.New(failure.Configuration, "load config file", err)
		}
	}
	m.LoadFromEnv(EnvPrefix)

	// Explicit flags win over everything else.
	fs.Visit(func(f *flag.Flag) {
		m.Delete(strings.ReplaceAll(f.Name, "-", "."))
	})

	if err := m.Unmarshal("", cfg); err != nil {
		return nil, failure.New(failure.Configuration, "apply config", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field and reports the first problem as a
// configuration failure
func (c *Config) Validate() error {
	const op = "validate"

	switch {
	case c.Port < 0 || c.Port > 65535:
		return failure.Errorf(failure.Configuration, op, "port %d out of range", c.Port)
	case c.Workers <= 0:
		return failure.Errorf(failure.Configuration, op, "workers must be positive, got %d", c.Workers)
	case c.QueueCapacity < 0:
		return failure.Errorf(failure.Configuration, op, "queue capacity must not be negative, got %d", c.QueueCapacity)
	case c.ReadBufferSize <= 0:
		return failure.Errorf(failure.Configuration, op, "read buffer must be positive, got %d", c.ReadBufferSize)
	case c.ReadTimeout < 0 || c.WriteTimeout < 0:
		return failure.Errorf(failure.Configuration, op, "timeouts must not be negative")
	case c.Linger < 0:
		return failure.Errorf(failure.Configuration, op, "linger must not be negative, got %d", c.Linger)
	case c.OKBody == "" || c.NotFoundBody == "":
		return failure.Errorf(failure.Configuration, op, "both body files are required")
	case c.Env != "development" && c.Env != "production":
		return failure.Errorf(failure.Configuration, op, "unknown env %q", c.Env)
	}

	if _, err := router.ParseMatchPolicy(c.MatchPolicy); err != nil {
		return failure.New(failure.Configuration, op, err)
	}
	if _, err := c.ParsedRoutes(); err != nil {
		return failure.New(failure.Configuration, op, err)
	}
	return nil
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ParsedRoutes returns the configured routes in declaration order
func (c *Config) ParsedRoutes() ([]router.Route, error) {
	routes := make([]router.Route, 0, len(c.Routes))
	for _, s := range c.Routes {
		r, err := router.ParseRoute(s)
		if err != nil {
			return nil, err
		}
		routes = append(routes, r)
	}
	return routes, nil
}

// EngineOptions translates the configuration into engine options. Logger and
// Metrics are left for the caller.
func (c *Config) EngineOptions() (core.Options, error) {
	policy, err := router.ParseMatchPolicy(c.MatchPolicy)
	if err != nil {
		return core.Options{}, failure.New(failure.Configuration, "match policy", err)
	}
	return core.Options{
		Workers:        c.Workers,
		QueueCapacity:  c.QueueCapacity,
		ReadBufferSize: c.ReadBufferSize,
		ReadTimeout:    c.ReadTimeout,
		WriteTimeout:   c.WriteTimeout,
		Bodies: static.Files{
			OK:       c.OKBody,
			NotFound: c.NotFoundBody,
		},
		MatchPolicy: policy,
		Socket: core.ListenOptions{
			ReusePort: c.ReusePort,
			Linger:    c.Linger,
		},
	}, nil
}

// routeList collects -routes values
type routeList []string

func (l *routeList) String() string {
	if l == nil {
		return ""
	}
	return strings.Join(*l, ",")
}

func (l *routeList) Set(value string) error {
	*l = append(*l, splitList(value)...)
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
