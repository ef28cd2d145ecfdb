package observability

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"loan-manager/internal/core"
	"loan-manager/internal/core/coretest"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsPublisher_CountsAndForwards(t *testing.T) {
	m := NewMetrics()
	next := &coretest.Publisher{}
	pub := m.Publisher(next)

	err := pub.Publish(context.Background(),
		core.LoanEvent{Type: core.EventLoanTransitioned, Status: core.LoanConfirmed},
		core.LoanEvent{Type: core.EventLoanTransitioned, Status: core.LoanConfirmed},
		core.LoanEvent{Type: core.EventRepaymentPaid, Sequence: 1},
	)
	require.NoError(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.LoanTransitions.WithLabelValues("confirmed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RepaymentsPaid))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoanEvents.WithLabelValues("loan.repayment_paid")))
	assert.Len(t, next.Events(), 3)

	next.Err = errors.New("broker down")
	assert.Error(t, pub.Publish(context.Background(), core.LoanEvent{Type: core.EventLoanCreated}))
}

func TestMetricsHandler_ExposesCollectors(t *testing.T) {
	m := NewMetrics()
	m.ObserveRequest(http.MethodGet, "/api/companies/{code}/loans", http.StatusOK, 20*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `http_requests_total{method="GET",route="/api/companies/{code}/loans",status="200"} 1`)
	assert.Contains(t, string(body), "http_request_duration_seconds_bucket")
}
