// Package telemetry emits pipeline metrics to AWS CloudWatch. Metric and
// dimension names live in internal/types so emitters and dashboards share
// one vocabulary.
package telemetry

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"skyfeed/internal/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchMetrics publishes pipeline telemetry to CloudWatch. Emission is
// best-effort: a failed put is logged and dropped, never surfaced to the
// publishing worker.
//
// Metrics emitted:
//   - PacketDropped: Dims {Station} -- queue-overflow drops, as a count
//   - PublishLatency: Dims {Station} -- render-plus-delivery time per tick
//   - PublishSuccess / PublishSkipped: Dims {Station} -- tick outcomes
//   - SinkFailure: Dims {Station, Sink} -- per-sink delivery failures
//   - DayRollover: Dims {Station} -- day-boundary resets
type CloudWatchMetrics struct {
	client    CloudWatchClient
	namespace string
	station   string
	logger    types.Logger
}

// NewCloudWatchMetrics creates a recorder publishing under the station
// dimension to the standard namespace.
func NewCloudWatchMetrics(client CloudWatchClient, station string, logger types.Logger) *CloudWatchMetrics {
	return &CloudWatchMetrics{
		client:    client,
		namespace: types.MetricNamespace,
		station:   station,
		logger:    logger,
	}
}

func (m *CloudWatchMetrics) stationDim() cwtypes.Dimension {
	return cwtypes.Dimension{
		Name:  aws.String(types.DimStation),
		Value: aws.String(m.station),
	}
}

func (m *CloudWatchMetrics) put(ctx context.Context, data ...cwtypes.MetricDatum) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	}
	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record metric",
			"error", err.Error(),
			"metric", aws.ToString(data[0].MetricName),
		)
	}
}

// RecordDropped emits a PacketDropped count for queue-overflow drops.
func (m *CloudWatchMetrics) RecordDropped(ctx context.Context, n int64) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricPacketDropped),
		Value:      aws.Float64(float64(n)),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{m.stationDim()},
	})
}

// RecordPublish emits a latency datum plus a success/skipped outcome count
// for one publish tick. Duration is recorded in milliseconds.
func (m *CloudWatchMetrics) RecordPublish(ctx context.Context, d time.Duration, success bool) {
	outcome := types.MetricPublishSuccess
	if !success {
		outcome = types.MetricPublishSkipped
	}
	m.put(ctx,
		cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricPublishLatency),
			Value:      aws.Float64(float64(d.Milliseconds())),
			Unit:       cwtypes.StandardUnitMilliseconds,
			Dimensions: []cwtypes.Dimension{m.stationDim()},
		},
		cwtypes.MetricDatum{
			MetricName: aws.String(outcome),
			Value:      aws.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: []cwtypes.Dimension{m.stationDim()},
		},
	)
}

// RecordSinkFailure emits a SinkFailure count with the Sink dimension.
func (m *CloudWatchMetrics) RecordSinkFailure(ctx context.Context, sink string) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricSinkFailure),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{
			m.stationDim(),
			{Name: aws.String(types.DimSink), Value: aws.String(sink)},
		},
	})
}

// RecordRollover emits a DayRollover count.
func (m *CloudWatchMetrics) RecordRollover(ctx context.Context) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricDayRollover),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{m.stationDim()},
	})
}
