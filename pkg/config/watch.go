package config

import (
	"crypto/tls"
	"fmt"

	"github.com/fsnotify/fsnotify"

	"github.com/openthread/otcommissioner/internal/logger"
)

// WatchCredentials watches the CCM certificate, key and trust-anchor files
// named in cfg.Credentials and invokes onRotate with the reloaded
// certificate/trust-anchor pair whenever any of them is rewritten, so a
// rotated certificate picked up by fsnotify takes effect (via the caller
// forwarding it to facade.Facade.SetCCMCredentials) without a restart. A
// no-op outside CCM mode, since there is nothing to rotate. Returns a stop
// function that closes the underlying watcher.
func WatchCredentials(cfg *Config, onRotate func(*tls.Certificate, [][]byte, error)) (func() error, error) {
	if !cfg.Commissioner.EnableCCM {
		return func() error { return nil }, nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating credential watcher: %w", err)
	}

	watched := append([]string{cfg.Credentials.CertFile, cfg.Credentials.KeyFile}, cfg.Credentials.TrustAnchorFiles...)
	for _, path := range watched {
		if path == "" {
			continue
		}
		if err := watcher.Add(path); err != nil {
			_ = watcher.Close()
			return nil, fmt.Errorf("watching %q: %w", path, err)
		}
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				logger.Info("config: credential file changed, reloading", "path", event.Name)

				cert, err := tls.LoadX509KeyPair(cfg.Credentials.CertFile, cfg.Credentials.KeyFile)
				if err != nil {
					onRotate(nil, nil, fmt.Errorf("reloading CCM certificate: %w", err))
					continue
				}
				anchors, err := loadTrustAnchors(cfg.Credentials.TrustAnchorFiles)
				if err != nil {
					onRotate(nil, nil, err)
					continue
				}
				onRotate(&cert, anchors, nil)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("config: credential watcher error", logger.Err(err))
			}
		}
	}()

	return watcher.Close, nil
}
