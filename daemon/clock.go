package daemon

import (
	"context"
	"log/slog"
	"time"

	"github.com/beevik/ntp"
)

// Credential expiry is checked against the local clock, so heavy skew
// silently breaks trust decisions. The probe only warns; it never
// stops the node.
const (
	ntpPool          = "pool.ntp.org"
	clockProbePeriod = 15 * time.Minute
	skewThreshold    = 5 * time.Second
)

func probeClock(ctx context.Context) {
	ticker := time.NewTicker(clockProbePeriod)
	defer ticker.Stop()

	checkClockSkew()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			checkClockSkew()
		}
	}
}

func checkClockSkew() {
	res, err := ntp.Query(ntpPool)
	if err != nil {
		slog.Debug("Clock skew probe failed.", "err", err)
		return
	}
	offset := res.ClockOffset
	if offset < 0 {
		offset = -offset
	}
	if offset > skewThreshold {
		slog.Warn("System clock is skewed; credential expiry checks may misbehave.",
			"offset", res.ClockOffset)
	}
}
