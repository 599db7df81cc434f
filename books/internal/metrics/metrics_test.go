package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	t.Parallel()
	m := New(nil)

	m.RatingsTotal.WithLabelValues(OutcomeAccepted).Inc()
	m.RatingsTotal.WithLabelValues(OutcomeAccepted).Inc()
	m.RatingsTotal.WithLabelValues(OutcomeDuplicate).Inc()
	m.ImageReleaseFailures.Inc()

	require.Equal(t, 2.0, testutil.ToFloat64(m.RatingsTotal.WithLabelValues(OutcomeAccepted)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.ImageReleaseFailures))

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/manage/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	require.True(t, strings.Contains(body, `books_ratings_total{outcome="duplicate"} 1`))
	require.True(t, strings.Contains(body, "books_image_release_failures_total 1"))
}
