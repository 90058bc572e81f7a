package loader

import (
	"context"
	"time"

	"news_search/internal/logger"
	"news_search/internal/models"
)

// PreferencesFunc returns the preferences a scheduled refresh should use.
type PreferencesFunc func(ctx context.Context) (models.Preferences, error)

// StartPolling restarts l with the current preferences every interval until
// ctx is done. A refresh that is still running when the next tick fires is
// cancelled by the new Restart.
func StartPolling(ctx context.Context, l *Loader, prefs PreferencesFunc, interval time.Duration) {
	log := logger.Log.WithFields(logger.Fields{
		"service":  "poller",
		"interval": interval.String(),
	})

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p, err := prefs(ctx)
			if err != nil {
				log.WithError(err).Warn("Skipping refresh, preferences unavailable")
				continue
			}
			log.WithField("subject", p.Subject).Debug("Starting scheduled refresh")
			l.Restart(p)

		case <-ctx.Done():
			log.Info("Stopping poller by context")
			return
		}
	}
}
