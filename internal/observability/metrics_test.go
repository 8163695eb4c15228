package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/hostwire/hostwire/internal/testutil/testlog"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)

	RegisterMetrics()
	RegisterMetrics()

	RecordCommand("reliable", "get_info", nil, 12*time.Millisecond)
	RecordCommand("lossy", "set_param", errors.New("boom"), 3*time.Millisecond)
	RecordQueueDepth(7)
	RecordDroppedDatagram("queue_full")
	RecordUnsafeRejection("delete_track")
}
