package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with defaults on a private registry", func() {
			registry := prometheus.NewRegistry()
			m := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it is enabled with the default refresh interval", func() {
				So(m, ShouldNotBeNil)
				So(m.Enabled(), ShouldBeTrue)
				So(m.RefreshInterval(), ShouldEqual, defaultRefreshInterval)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			m := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithMetricPrefix("x"),
				WithHistogramBuckets([]float64{1, 2, 3}),
				WithMetricsEnabled(false),
				WithRefreshInterval(time.Second),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then the collectors are registered under the custom names", func() {
				So(m.Enabled(), ShouldBeFalse)
				So(m.RefreshInterval(), ShouldEqual, time.Second)
				m.recordsRead.Add(2)
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(names, ShouldContain, "test_unit_x_records_read_total")
			})
		})

		Convey("When invalid option values are given", func() {
			registry := prometheus.NewRegistry()
			m := NewManager(
				WithNamespace(""),
				WithRefreshInterval(-time.Second),
				WithHistogramBuckets(nil),
				WithPrometheusRegistry(registry),
			)

			Convey("Then defaults are kept", func() {
				So(m.namespace, ShouldEqual, "dayflow")
				So(m.RefreshInterval(), ShouldEqual, defaultRefreshInterval)
				So(m.histogramBuckets, ShouldResemble, prometheus.DefBuckets)
			})
		})
	})
}

func TestRecording(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording ingest counters", func() {
			before := testutil.ToFloat64(globalManager.recordsDropped)
			RecordRecordsDropped(3)
			RecordRecordsRead(10)
			RecordRecordsRemapped(7)
			RecordMalformedTimestamp()
			UpdateDaysAssigned(4)
			RecordDaysDiscretized(4)

			Convey("Then the values are observable", func() {
				So(testutil.ToFloat64(globalManager.recordsDropped)-before, ShouldEqual, 3)
				So(testutil.ToFloat64(globalManager.daysAssigned), ShouldEqual, 4)
			})
		})

		Convey("When recording model and stage metrics", func() {
			So(func() {
				RecordBlockBytesWritten(128)
				RecordBlockBytesRead(128)
				RecordTransitionsCounted(95)
				RecordSampleDrawn()
				RecordSampleFallback()
				RecordForecastsProduced("markov", 5)
				RecordModelSaved()
				RecordStageDuration("remap", 12.5)
				RecordStageError("decode", "truncated")
				UpdateWorkerActiveCount(4)
				RecordWorkerJobLatency(0.2)
				RecordWorkerError()
				RecordRepositoryQueryLatency(1.5)
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(12)
			}, ShouldNotPanic)

			So(testutil.ToFloat64(globalManager.forecastsProduced.WithLabelValues("markov")), ShouldBeGreaterThanOrEqualTo, 5)
		})

		Convey("When recording HTTP metrics", func() {
			RecordHTTPRequest("/forecast", "POST", "200")
			RecordHTTPRequestDuration("/forecast", "POST", "200", 3)
			RecordErrorByEndpoint("/sample", "GET", "client_error")

			Convey("Then the registry gathers without error", func() {
				_, err := GetRegistry().Gather()
				So(err, ShouldBeNil)
			})
		})
	})
}

func TestConfigure(t *testing.T) {
	Convey("Given a configured global manager", t, func() {
		Reset(func() { Configure() })
		Configure(
			WithMetricsEnabled(false),
			WithRefreshInterval(2*time.Second),
			WithCustomLabels(map[string]string{"site": "lab"}),
		)

		Convey("Then recording is switched off", func() {
			before := testutil.ToFloat64(globalManager.recordsRead)
			RecordRecordsRead(5)
			So(testutil.ToFloat64(globalManager.recordsRead), ShouldEqual, before)
			So(RefreshInterval(), ShouldEqual, 2*time.Second)
		})

		Convey("Then collectors carry the custom labels on the new registry", func() {
			families, err := GetRegistry().Gather()
			So(err, ShouldBeNil)
			So(families, ShouldNotBeEmpty)
			for _, f := range families {
				for _, m := range f.GetMetric() {
					labels := make(map[string]string)
					for _, l := range m.GetLabel() {
						labels[l.GetName()] = l.GetValue()
					}
					So(labels["site"], ShouldEqual, "lab")
				}
			}
		})

		Convey("When reconfigured with defaults", func() {
			Configure()
			RecordRecordsRead(5)
			So(testutil.ToFloat64(globalManager.recordsRead), ShouldEqual, 5)
			So(RefreshInterval(), ShouldEqual, defaultRefreshInterval)
		})
	})
}

func TestSince(t *testing.T) {
	Convey("Given a start time in the past", t, func() {
		start := time.Now().Add(-5 * time.Millisecond)
		So(Since(start), ShouldBeGreaterThanOrEqualTo, 5)
	})
}
