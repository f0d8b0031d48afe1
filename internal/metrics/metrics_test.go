package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"
)

func TestRecordTaskOperation(t *testing.T) {
	taskOperationsTotal.Reset()

	RecordTaskOperation("create", ResultSuccess)
	RecordTaskOperation("create", ResultSuccess)
	RecordTaskOperation("create", ResultRejected)

	assert.Equal(t, 2.0, testutil.ToFloat64(taskOperationsTotal.WithLabelValues("create", ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(taskOperationsTotal.WithLabelValues("create", ResultRejected)))
}

func TestRecordTriggerRun(t *testing.T) {
	triggerRunsTotal.Reset()
	triggerDuration.Reset()

	RecordTriggerRun("week-close", ResultSuccess, 0.2)
	RecordTriggerRun("week-close", ResultSkipped, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(triggerRunsTotal.WithLabelValues("week-close", ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(triggerRunsTotal.WithLabelValues("week-close", ResultSkipped)))
	assert.Equal(t, 1, testutil.CollectAndCount(triggerDuration))
}

func TestRecordSnapshots(t *testing.T) {
	before := testutil.ToFloat64(snapshotsWrittenTotal)
	RecordSnapshots(3)
	RecordSnapshots(0)
	assert.Equal(t, before+3, testutil.ToFloat64(snapshotsWrittenTotal))
}

func TestHandler_ExposesMetrics(t *testing.T) {
	RecordTaskOperation("delete", ResultSuccess)

	ctx := &fasthttp.RequestCtx{}
	ctx.Request.SetRequestURI("/metrics")
	Handler()(ctx)

	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Contains(t, string(ctx.Response.Body()), "weeklytasks_task_operations_total")
}
