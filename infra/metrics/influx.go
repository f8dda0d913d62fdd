package metrics

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/homecharge/homecharge/core/metrics"
	"github.com/homecharge/homecharge/infra/logger"
)

// InfluxSink writes operational events to an InfluxDB instance using the
// official client. It also stores per-session energy points, which makes it
// the backing store for home-charging dashboards.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

var (
	_ coremetrics.Sink                  = (*InfluxSink)(nil)
	_ coremetrics.SessionEnergyRecorder = (*InfluxSink)(nil)
)

// NewInfluxSink creates a sink for the given InfluxDB endpoint. A full write
// URL is accepted and trimmed to its base.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a NopSink
// when the health check fails, so a down dashboard store never blocks a sync.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.Sink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordAPIRequest writes one vendor round trip.
func (s *InfluxSink) RecordAPIRequest(ev coremetrics.APIRequestEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("api_request").
		AddTag("op", ev.Op).
		AddTag("failed", strconv.FormatBool(ev.Failed)).
		AddField("duration_ms", round3(float64(ev.Duration)/float64(time.Millisecond))).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordCacheLookup writes one cache consultation.
func (s *InfluxSink) RecordCacheLookup(ev coremetrics.CacheLookupEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("cache_lookup").
		AddTag("tier", ev.Tier).
		AddTag("hit", strconv.FormatBool(ev.Hit)).
		AddField("count", 1).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordMonthSync writes the summary of one month fetch.
func (s *InfluxSink) RecordMonthSync(ev coremetrics.MonthSyncEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("month_sync").
		AddTag("month", fmt.Sprintf("%04d-%02d", ev.Year, int(ev.Month))).
		AddTag("from_cache", strconv.FormatBool(ev.FromCache)).
		AddField("pages", ev.Pages).
		AddField("sessions", ev.Sessions).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordChargeRun writes the terminal result of one charge-control run.
func (s *InfluxSink) RecordChargeRun(ev coremetrics.ChargeRunEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("charge_run").
		AddTag("outcome", ev.Outcome).
		AddTag("station_id", ev.StationID).
		AddField("attempts", ev.Attempts).
		AddField("duration_s", round3(ev.Duration.Seconds())).
		AddField("reason", ev.Reason).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordSessionEnergy writes one point per session, timestamped at the
// session start so re-syncing a month overwrites rather than duplicates.
func (s *InfluxSink) RecordSessionEnergy(evs []coremetrics.SessionEnergyEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, ev := range evs {
		p := write.NewPointWithMeasurement("session_energy").
			AddTag("session_id", ev.SessionID).
			AddTag("device_id", ev.DeviceID).
			AddTag("home", strconv.FormatBool(ev.Home)).
			AddField("energy_kwh", round3(ev.EnergyKWh)).
			SetTime(ev.Start)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying HTTP client.
func (s *InfluxSink) Close() error {
	s.client.Close()
	return nil
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
