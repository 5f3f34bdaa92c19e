package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/scholaris/scholaris/internal/db/models"
	"github.com/scholaris/scholaris/internal/telemetry"
)

// shipTimeout bounds one asynchronous ship of a persisted entry to external
// destinations.
const shipTimeout = 15 * time.Second

// Shipper forwards persisted audit entries to a destination outside the
// primary store, e.g. a compliance archive file or a SIEM webhook. Shipping is
// best effort: the entry is already durable in Postgres before Ship is called.
type Shipper interface {
	Ship(ctx context.Context, entry *models.AuditEntry) error
	Close() error
}

// ShipperConfig selects and configures one destination.
type ShipperConfig struct {
	Enabled bool           `mapstructure:"enabled" json:"enabled"`
	Type    string         `mapstructure:"type" json:"type"`
	Webhook *WebhookConfig `mapstructure:"webhook" json:"webhook,omitempty"`
	File    *FileConfig    `mapstructure:"file" json:"file,omitempty"`
}

// WebhookConfig configures a webhook destination.
type WebhookConfig struct {
	URL     string            `mapstructure:"url" json:"url"`
	Headers map[string]string `mapstructure:"headers" json:"headers,omitempty"`
	Timeout time.Duration     `mapstructure:"timeout" json:"timeout"`
}

// FileConfig configures an append-only JSONL file destination with size-based
// rotation.
type FileConfig struct {
	Path       string `mapstructure:"path" json:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" json:"max_backups"`
}

// MultiShipper fans one entry out to every configured destination. A failing
// destination does not stop delivery to the others.
type MultiShipper struct {
	shippers []Shipper
	mu       sync.RWMutex
}

// NewMultiShipper builds the fan-out from configuration, skipping disabled
// entries. It returns nil (a no-op) when no destination is enabled so callers
// can pass the result straight to NewRecorder.
func NewMultiShipper(configs []ShipperConfig) (*MultiShipper, error) {
	ms := &MultiShipper{}

	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}

		var (
			shipper Shipper
			err     error
		)
		switch cfg.Type {
		case "webhook":
			if cfg.Webhook == nil {
				return nil, fmt.Errorf("webhook config is required for webhook shipper")
			}
			shipper, err = NewWebhookShipper(cfg.Webhook)
		case "file":
			if cfg.File == nil {
				return nil, fmt.Errorf("file config is required for file shipper")
			}
			shipper, err = NewFileShipper(cfg.File)
		default:
			return nil, fmt.Errorf("unknown shipper type: %s", cfg.Type)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create %s shipper: %w", cfg.Type, err)
		}

		ms.shippers = append(ms.shippers, shipper)
	}

	if len(ms.shippers) == 0 {
		return nil, nil
	}
	return ms, nil
}

// Ship delivers the entry to every destination and returns the last failure,
// if any.
func (ms *MultiShipper) Ship(ctx context.Context, entry *models.AuditEntry) error {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var lastErr error
	for _, shipper := range ms.shippers {
		if err := shipper.Ship(ctx, entry); err != nil {
			lastErr = err
			telemetry.AuditShipFailuresTotal.WithLabelValues(shipperName(shipper)).Inc()
			slog.Error("audit shipper delivery failed", "shipper", shipperName(shipper), "error", err)
		}
	}
	return lastErr
}

// Close closes every destination.
func (ms *MultiShipper) Close() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	var lastErr error
	for _, shipper := range ms.shippers {
		if err := shipper.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func shipperName(s Shipper) string {
	switch s.(type) {
	case *WebhookShipper:
		return "webhook"
	case *FileShipper:
		return "file"
	default:
		return "unknown"
	}
}

// WebhookShipper posts each entry as a JSON object to a configured endpoint.
type WebhookShipper struct {
	cfg    *WebhookConfig
	client *http.Client
}

// NewWebhookShipper creates a webhook shipper. A zero timeout defaults to ten
// seconds.
func NewWebhookShipper(cfg *WebhookConfig) (*WebhookShipper, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook URL is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &WebhookShipper{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}, nil
}

// Ship posts the entry to the webhook endpoint.
func (ws *WebhookShipper) Ship(ctx context.Context, entry *models.AuditEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ws.cfg.URL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range ws.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := ws.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Close is a no-op; the webhook shipper holds no resources beyond the shared
// HTTP client.
func (ws *WebhookShipper) Close() error { return nil }

// FileShipper appends entries as JSON lines to a local file, rotating when the
// file exceeds the configured size.
type FileShipper struct {
	cfg  *FileConfig
	file *os.File
	mu   sync.Mutex
}

// NewFileShipper opens (or creates) the destination file for appending.
func NewFileShipper(cfg *FileConfig) (*FileShipper, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("file path is required")
	}
	file, err := os.OpenFile(cfg.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit file: %w", err)
	}
	return &FileShipper{cfg: cfg, file: file}, nil
}

// Ship writes the entry as one JSON line, rotating first if the file is over
// the size limit.
func (fs *FileShipper) Ship(ctx context.Context, entry *models.AuditEntry) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.cfg.MaxSizeMB > 0 {
		info, err := fs.file.Stat()
		if err == nil && info.Size() > int64(fs.cfg.MaxSizeMB)*1024*1024 {
			if err := fs.rotate(); err != nil {
				slog.Error("audit file rotation failed", "path", fs.cfg.Path, "error", err)
			}
		}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}
	if _, err := fs.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}
	return nil
}

// rotate shifts existing backups up one slot and starts a fresh file. The
// caller holds fs.mu.
func (fs *FileShipper) rotate() error {
	if err := fs.file.Close(); err != nil {
		return err
	}

	for i := fs.cfg.MaxBackups - 1; i >= 1; i-- {
		_ = os.Rename(
			fmt.Sprintf("%s.%d", fs.cfg.Path, i),
			fmt.Sprintf("%s.%d", fs.cfg.Path, i+1),
		)
	}
	_ = os.Rename(fs.cfg.Path, fs.cfg.Path+".1")
	if fs.cfg.MaxBackups > 0 {
		_ = os.Remove(fmt.Sprintf("%s.%d", fs.cfg.Path, fs.cfg.MaxBackups+1))
	}

	file, err := os.OpenFile(fs.cfg.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	fs.file = file
	return nil
}

// Close closes the underlying file.
func (fs *FileShipper) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.file.Close()
}
