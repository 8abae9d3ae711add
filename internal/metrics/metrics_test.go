package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	r := New()

	r.RecordAlert("ALPHA_ZONE", "INFO")
	r.RecordAlert("ALPHA_ZONE", "INFO")
	r.RecordAlert("HYPE_ZONE", "CRIT")
	r.RecordDismissed("HYPE_ZONE")
	r.RecordDay("processed")
	r.RecordDay("skipped")
	r.RecordDay("processed")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.alertsFired.WithLabelValues("ALPHA_ZONE", "INFO")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.alertsFired.WithLabelValues("HYPE_ZONE", "CRIT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.alertsSkipped.WithLabelValues("HYPE_ZONE")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.daysProcessed.WithLabelValues("processed")))
}

func TestSetSignalsReplacesStatuses(t *testing.T) {
	r := New()
	r.SetSignals(map[string]int{"emerging": 3, "dead": 1})
	r.SetSignals(map[string]int{"trending": 2})

	assert.Equal(t, 1, testutil.CollectAndCount(r.signals))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.signals.WithLabelValues("trending")))
}

func TestWriteTextfile(t *testing.T) {
	r := New()
	r.RecordRun("weekly", 1.5, 1770000000)
	r.RecordAlert("ROTATION", "WARN")

	path := filepath.Join(t.TempDir(), "textfile", "techpulse.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `techpulse_alerts_fired_total{alert_type="ROTATION",severity="WARN"} 1`)
	assert.Contains(t, string(data), `techpulse_last_run_timestamp_seconds{pipeline="weekly"}`)
	assert.Contains(t, string(data), "techpulse_run_duration_seconds_count")
}
