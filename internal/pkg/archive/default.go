package archive

import (
	"time"

	"github.com/gofiber/fiber/v2/log"
)

var defaultClient *Client

// Setup initializes the shared archive client when the archive is enabled.
// A disabled or misconfigured archive is not fatal; delivery continues
// without mirroring.
func Setup() {
	cfg, err := LoadConfig()
	if err != nil {
		log.Warnf("[Archive] Invalid configuration, archive disabled: %v", err)
		return
	}
	if !cfg.IsEnabled() {
		return
	}

	client, err := NewClient(cfg)
	if err != nil {
		log.Warnf("[Archive] Initialization failed, archive disabled: %v", err)
		return
	}
	defaultClient = client
}

// Default returns the shared archive client, or nil when archiving is off.
func Default() *Client {
	return defaultClient
}

// Enabled reports whether a shared archive client is available.
func Enabled() bool {
	return defaultClient != nil
}

// Key builds the object key for an artifact. Keys are derived from the
// artifact's creation time so a mirror written at delivery can be found
// again during a restore.
func (c *Client) Key(fileID, filename string, at time.Time) string {
	return c.config.GetObjectKey(fileID, filename, at)
}
