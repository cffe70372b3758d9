package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skyfeed/internal/types"
)

// --- Test Doubles ---

// mockCloudWatchClient records PutMetricData inputs.
type mockCloudWatchClient struct {
	inputs []*cloudwatch.PutMetricDataInput
	err    error
}

func (m *mockCloudWatchClient) PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.inputs = append(m.inputs, params)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

// recordingLogger counts error logs.
type recordingLogger struct {
	errors int
}

func (l *recordingLogger) Info(msg string, args ...any)  {}
func (l *recordingLogger) Warn(msg string, args ...any)  {}
func (l *recordingLogger) Error(msg string, args ...any) { l.errors++ }
func (l *recordingLogger) With(args ...any) types.Logger { return l }

func dimValue(data cwtypes.MetricDatum, name string) string {
	for _, d := range data.Dimensions {
		if aws.ToString(d.Name) == name {
			return aws.ToString(d.Value)
		}
	}
	return ""
}

// --- Tests ---

func TestRecordDropped(t *testing.T) {
	client := &mockCloudWatchClient{}
	m := NewCloudWatchMetrics(client, "ridge", &recordingLogger{})

	m.RecordDropped(context.Background(), 3)

	require.Len(t, client.inputs, 1)
	input := client.inputs[0]
	assert.Equal(t, types.MetricNamespace, aws.ToString(input.Namespace))
	require.Len(t, input.MetricData, 1)
	datum := input.MetricData[0]
	assert.Equal(t, types.MetricPacketDropped, aws.ToString(datum.MetricName))
	assert.Equal(t, 3.0, aws.ToFloat64(datum.Value))
	assert.Equal(t, cwtypes.StandardUnitCount, datum.Unit)
	assert.Equal(t, "ridge", dimValue(datum, types.DimStation))
}

func TestRecordPublishSuccessAndSkipped(t *testing.T) {
	client := &mockCloudWatchClient{}
	m := NewCloudWatchMetrics(client, "ridge", &recordingLogger{})

	m.RecordPublish(context.Background(), 250*time.Millisecond, true)
	require.Len(t, client.inputs, 1)
	data := client.inputs[0].MetricData
	require.Len(t, data, 2)
	assert.Equal(t, types.MetricPublishLatency, aws.ToString(data[0].MetricName))
	assert.Equal(t, 250.0, aws.ToFloat64(data[0].Value))
	assert.Equal(t, cwtypes.StandardUnitMilliseconds, data[0].Unit)
	assert.Equal(t, types.MetricPublishSuccess, aws.ToString(data[1].MetricName))

	m.RecordPublish(context.Background(), time.Millisecond, false)
	require.Len(t, client.inputs, 2)
	data = client.inputs[1].MetricData
	assert.Equal(t, types.MetricPublishSkipped, aws.ToString(data[1].MetricName))
}

func TestRecordSinkFailureCarriesSinkDimension(t *testing.T) {
	client := &mockCloudWatchClient{}
	m := NewCloudWatchMetrics(client, "ridge", &recordingLogger{})

	m.RecordSinkFailure(context.Background(), "remote")

	require.Len(t, client.inputs, 1)
	datum := client.inputs[0].MetricData[0]
	assert.Equal(t, types.MetricSinkFailure, aws.ToString(datum.MetricName))
	assert.Equal(t, "remote", dimValue(datum, types.DimSink))
	assert.Equal(t, "ridge", dimValue(datum, types.DimStation))
}

func TestRecordRollover(t *testing.T) {
	client := &mockCloudWatchClient{}
	m := NewCloudWatchMetrics(client, "ridge", &recordingLogger{})

	m.RecordRollover(context.Background())
	require.Len(t, client.inputs, 1)
	assert.Equal(t, types.MetricDayRollover, aws.ToString(client.inputs[0].MetricData[0].MetricName))
}

func TestPutFailureIsLoggedNotPropagated(t *testing.T) {
	client := &mockCloudWatchClient{err: errors.New("throttled")}
	logger := &recordingLogger{}
	m := NewCloudWatchMetrics(client, "ridge", logger)

	// Must not panic or surface the error.
	m.RecordRollover(context.Background())
	m.RecordDropped(context.Background(), 1)
	assert.Equal(t, 2, logger.errors)
}
