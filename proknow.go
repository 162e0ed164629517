// Package proknow is the entry point of the ProKnow SDK. New wires one
// requestor, built from a config.Config, into every service.
package proknow

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/jathurchan/proknow/admin"
	"github.com/jathurchan/proknow/audit"
	"github.com/jathurchan/proknow/client"
	"github.com/jathurchan/proknow/clock"
	"github.com/jathurchan/proknow/config"
	"github.com/jathurchan/proknow/logger"
	"github.com/jathurchan/proknow/patient"
	"github.com/jathurchan/proknow/structureset"
	"github.com/jathurchan/proknow/workspace"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
)

// apiPath is appended to the configured base URL.
const apiPath = "/api"

// ProKnow bundles the services of one organization.
type ProKnow struct {
	Requestor     client.Requestor
	Workspaces    *workspace.Workspaces
	Patients      *patient.Patients
	StructureSets *structureset.StructureSets
	Users         *admin.Users
	Roles         *admin.Roles
	CustomMetrics *admin.CustomMetrics
	Audit         *audit.Logs

	logger logger.Logger
}

type options struct {
	httpClient *http.Client
	logger     logger.Logger
	registerer prometheus.Registerer
	metrics    bool
	fs         afero.Fs
	clock      clock.Clock
}

// Option configures New.
type Option func(*options)

// WithHTTPClient sets the HTTP client used for every request.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithLogger replaces the hclog logger built from the configured level.
func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithPrometheusRegisterer registers request metrics with r instead of the
// default registerer.
func WithPrometheusRegisterer(r prometheus.Registerer) Option {
	return func(o *options) { o.registerer = r }
}

// WithoutMetrics disables request metrics.
func WithoutMetrics() Option {
	return func(o *options) { o.metrics = false }
}

// WithFs sets the filesystem structure set downloads are written to.
func WithFs(fs afero.Fs) Option {
	return func(o *options) { o.fs = fs }
}

// WithClock sets the clock used for retries, lock renewal and polling.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// New validates cfg and builds every service on a shared requestor.
func New(cfg *config.Config, opts ...Option) (*ProKnow, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	creds, err := cfg.Credentials()
	if err != nil {
		return nil, err
	}

	o := &options{metrics: true}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logger.NewHCLogger("proknow", cfg.LogLevel, os.Stderr)
	}

	builder := client.NewRequestorBuilder(strings.TrimSuffix(cfg.BaseURL, "/")+apiPath).
		WithCredentials(creds.ID, creds.Secret).
		WithTimeout(cfg.Timeout()).
		WithRetryOptions(cfg.MaxRetries, 0, 0, 0).
		WithRateLimit(cfg.RateLimit, 0).
		WithMetrics(o.metrics).
		WithLogger(o.logger)
	if o.registerer != nil {
		builder = builder.WithPrometheusRegisterer(o.registerer)
	}
	if o.httpClient != nil {
		builder = builder.WithHTTPClient(o.httpClient)
	}
	if o.clock != nil {
		builder = builder.WithClock(o.clock)
	}

	requestor, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build requestor: %w", err)
	}

	ssOpts := []structureset.Option{
		structureset.WithLogger(o.logger),
		structureset.WithRenewalBuffer(cfg.RenewalBuffer()),
		structureset.WithDownloadPolling(cfg.DownloadRetryDelay(), cfg.DownloadMaxRetries()),
		structureset.WithFs(o.fs),
		structureset.WithClock(o.clock),
	}

	adm := admin.New(requestor)
	pk := &ProKnow{
		Requestor:     requestor,
		Workspaces:    workspace.New(requestor, workspace.WithLogger(o.logger)),
		Patients:      patient.New(requestor, o.logger),
		StructureSets: structureset.New(requestor, ssOpts...),
		Users:         adm.Users,
		Roles:         adm.Roles,
		CustomMetrics: adm.CustomMetrics,
		Audit:         audit.New(requestor),
		logger:        o.logger,
	}

	o.logger.Debugw("ProKnow client ready", "base_url", cfg.BaseURL)
	return pk, nil
}

// Close releases the connections of the shared requestor.
func (p *ProKnow) Close() error {
	return p.Requestor.Close()
}
