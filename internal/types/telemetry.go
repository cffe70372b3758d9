package types

// Telemetry metric names for CloudWatch.
// All components MUST use these constants.
const (
	// Metric Names
	MetricPacketReceived = "PacketReceived"
	MetricPacketDropped  = "PacketDropped"
	MetricPublishLatency = "PublishLatency"
	MetricPublishSuccess = "PublishSuccess"
	MetricPublishSkipped = "PublishSkipped"
	MetricSinkFailure    = "SinkFailure"
	MetricDayRollover    = "DayRollover"

	// Dimension Keys
	DimSink    = "Sink"
	DimStation = "Station"

	// Metric Namespace
	MetricNamespace = "Skyfeed"
)
