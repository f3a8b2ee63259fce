package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	Init()
	Init()

	ObserveCycle(150*time.Millisecond, 10, 2)
	IncNotification("CRITICAL", NotifySent)
	IncNotification("CRITICAL", NotifySent)
	IncACSRequest("list_devices", errors.New("timeout"))
	IncSkippedCycle()

	assert.Equal(t, 1.0, testutil.ToFloat64(monitorCycles))
	assert.Equal(t, 10.0, testutil.ToFloat64(devicesChecked))
	assert.Equal(t, 2.0, testutil.ToFloat64(deviceErrors))
	assert.Equal(t, 2.0, testutil.ToFloat64(rxNotifications.WithLabelValues("CRITICAL", NotifySent)))
	assert.Equal(t, 1.0, testutil.ToFloat64(acsRequests.WithLabelValues("list_devices", ResultError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(monitorSkippedCycles))
}
