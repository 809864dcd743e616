package metrics_test

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/NikitaDmitryuk/libria-media-server/internal/core/domain"
	"github.com/NikitaDmitryuk/libria-media-server/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func scrape(t *testing.T) string {
	t.Helper()
	recorder := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(recorder, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(recorder.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(body)
}

func TestRecorders(t *testing.T) {
	metrics.RecordPipelineRun(metrics.OutcomeDone)
	metrics.RecordFileDelivered(domain.VariantTranscoded)
	metrics.RecordPollFailure()
	metrics.RecordTranscode(2*time.Second, true)
	metrics.RecordJanitorRemoval(false)

	body := scrape(t)
	for _, want := range []string{
		`libria_pipeline_runs_total{outcome="done"}`,
		`libria_files_delivered_total{variant="transcoded"}`,
		`libria_poll_failures_total`,
		`libria_transcode_duration_seconds_count{result="ok"}`,
		`libria_janitor_removals_total{outcome="failed"}`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}
