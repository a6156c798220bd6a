package client

import (
	"context"
	"time"

	"staffdesk/internal/logs"
)

// DefaultPollInterval is how often the signing queue is refreshed.
const DefaultPollInterval = 15 * time.Second

// Poller keeps the form lists of a set of employees fresh.
type Poller struct {
	forms     *Forms
	interval  time.Duration
	employees []uint
	// OnUpdate, when set, receives each refreshed list.
	OnUpdate func(employeeID uint, list []Submission)
}

func (c *Client) Poller(interval time.Duration, employeeIDs ...uint) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{forms: c.Forms, interval: interval, employees: employeeIDs}
}

// Run polls immediately and then every interval until ctx is cancelled.
// Fetch errors are logged and retried on the next tick.
func (p *Poller) Run(ctx context.Context) error {
	t := time.NewTicker(p.interval)
	defer t.Stop()
	for {
		p.poll(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	for _, id := range p.employees {
		list, err := p.forms.fetch(ctx, id)
		if err != nil {
			if ctx.Err() == nil {
				logs.Component("client").WithField("employee_id", id).Warnf("poll forms: %v", err)
			}
			continue
		}
		if p.OnUpdate != nil {
			p.OnUpdate(id, list)
		}
	}
}
