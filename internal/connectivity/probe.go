package connectivity

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// Prober polls an HTTP endpoint and feeds the result into a Monitor.
// It is the default reachability source for environments without a native
// network-status API.
type Prober struct {
	monitor  *Monitor
	client   *resty.Client
	url      string
	interval time.Duration
	log      zerolog.Logger
}

// NewProber validates the probe target and constructs a Prober. Callers
// should treat an error here as non-fatal: the monitor stays online and the
// failure is logged (the app must not be wrongly stuck offline).
func NewProber(m *Monitor, probeURL string, interval, timeout time.Duration, log zerolog.Logger) (*Prober, error) {
	u, err := url.Parse(probeURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid probe URL %q: %v", probeURL, err)
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	rc := resty.New().SetTimeout(timeout)
	return &Prober{monitor: m, client: rc, url: probeURL, interval: interval, log: log}, nil
}

// Run polls until ctx is canceled. An immediate probe runs before the first
// tick so startup state settles quickly.
func (p *Prober) Run(ctx context.Context) error {
	p.probe(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.probe(ctx)
		}
	}
}

func (p *Prober) probe(ctx context.Context) {
	resp, err := p.client.R().SetContext(ctx).Head(p.url)
	online := err == nil && resp.StatusCode() < 500
	if err != nil {
		p.log.Debug().Err(err).Msg("reachability probe failed")
	}
	p.monitor.Report(online)
}
