// Package cloudsync mirrors the full local state to a remote REST table after
// changes settle. Pushes are best effort: a failure only flips the status.
package cloudsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"roxtor/backend/internal/domain"
)

type Status string

const (
	StatusSynced  Status = "synced"
	StatusSyncing Status = "syncing"
	StatusOffline Status = "offline"
)

const (
	DefaultDebounce = 5 * time.Second
	tablePath       = "/rest/v1/roxtor_sync"
	pushTimeout     = 15 * time.Second
)

// SnapshotFunc returns the state to mirror.
type SnapshotFunc func(ctx context.Context) (domain.Snapshot, error)

type Options struct {
	StoreID  string
	Debounce time.Duration
	Client   *http.Client
	Logger   logrus.FieldLogger
	Now      func() time.Time
}

type Pusher struct {
	source   SnapshotFunc
	storeID  string
	debounce time.Duration
	client   *http.Client
	logger   logrus.FieldLogger
	now      func() time.Time

	mu       sync.Mutex
	timer    *time.Timer
	pending  bool
	status   Status
	lastSync *time.Time
	pushMu   sync.Mutex
}

func New(source SnapshotFunc, opts Options) *Pusher {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: pushTimeout}
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Pusher{
		source:   source,
		storeID:  opts.StoreID,
		debounce: opts.Debounce,
		client:   opts.Client,
		logger:   opts.Logger.WithField("module", "cloudsync"),
		now:      opts.Now,
		status:   StatusOffline,
	}
}

// Notify schedules a push once no further change arrives for the debounce
// interval.
func (p *Pusher) Notify() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = true
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(p.debounce, func() {
		ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
		defer cancel()
		if err := p.Push(ctx); err != nil {
			p.logger.WithError(err).Warn("cloud sync push failed")
		}
	})
}

// Status reports the last outcome and when the last successful push happened.
func (p *Pusher) Status() (Status, *time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastSync == nil {
		return p.status, nil
	}
	last := *p.lastSync
	return p.status, &last
}

// Flush cancels a scheduled push and runs it now. Used on shutdown.
func (p *Pusher) Flush(ctx context.Context) error {
	p.mu.Lock()
	pending := p.pending
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.mu.Unlock()
	if !pending {
		return nil
	}
	return p.Push(ctx)
}

type envelope struct {
	StoreID  string  `json:"store_id"`
	LastSync string  `json:"last_sync"`
	Payload  payload `json:"payload"`
}

type payload struct {
	Products  []domain.Product  `json:"products"`
	Orders    []domain.Order    `json:"orders"`
	Agents    []domain.Agent    `json:"agents"`
	Workshops []domain.Workshop `json:"workshops"`
	Settings  settings          `json:"settings"`
}

type settings struct {
	domain.Settings
	Stores []domain.Store `json:"stores"`
}

// Push sends the current snapshot immediately. It is a no-op while sync is
// disabled or unconfigured.
func (p *Pusher) Push(ctx context.Context) error {
	p.pushMu.Lock()
	defer p.pushMu.Unlock()

	p.mu.Lock()
	p.pending = false
	p.mu.Unlock()

	snap, err := p.source(ctx)
	if err != nil {
		return err
	}
	cfg := snap.Settings.CloudSync
	apiURL := strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	if !cfg.Enabled || apiURL == "" {
		return nil
	}

	p.setStatus(StatusSyncing, nil)
	now := p.now().UTC()
	body, err := json.Marshal(envelope{
		StoreID:  p.storeID,
		LastSync: now.Format(time.RFC3339),
		Payload: payload{
			Products:  snap.Products,
			Orders:    snap.Orders,
			Agents:    snap.Agents,
			Workshops: snap.Workshops,
			Settings:  settings{Settings: snap.Settings.Public(), Stores: snap.Stores},
		},
	})
	if err != nil {
		p.setStatus(StatusOffline, nil)
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+tablePath, bytes.NewReader(body))
	if err != nil {
		p.setStatus(StatusOffline, nil)
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", cfg.APIKey)
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	req.Header.Set("Prefer", "resolution=merge-duplicates")

	resp, err := p.client.Do(req)
	if err != nil {
		p.setStatus(StatusOffline, nil)
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		p.setStatus(StatusOffline, nil)
		return fmt.Errorf("sync failed: remote returned %d", resp.StatusCode)
	}
	p.setStatus(StatusSynced, &now)
	p.logger.WithFields(logrus.Fields{"store_id": p.storeID, "orders": len(snap.Orders)}).Debug("cloud sync pushed")
	return nil
}

func (p *Pusher) setStatus(status Status, at *time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = status
	if at != nil {
		p.lastSync = at
	}
}
