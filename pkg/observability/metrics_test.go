package observability_test

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/aretw0/thunder/pkg/domain"
	"github.com/aretw0/thunder/pkg/observability"
	"github.com/aretw0/thunder/pkg/reconcile"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordsReconcile(t *testing.T) {
	m := observability.NewMetrics()
	r := reconcile.New(reconcile.WithHooks(m.Hooks()))

	steps := []domain.Step{
		{ID: 1, Kind: domain.KindCreateFile, Path: "a", Status: domain.StepPending},
		{ID: 2, Kind: domain.KindCreateFile, Path: "a/b", Status: domain.StepPending},
		{ID: 3, Kind: domain.KindCreateFolder, Path: "c", Status: domain.StepPending},
	}
	r.Reconcile(context.Background(), "s", steps, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.StepsApplied.WithLabelValues(string(domain.KindCreateFile))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StepsApplied.WithLabelValues(string(domain.KindCreateFolder))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StepsFailed.WithLabelValues(string(domain.KindCreateFile))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Batches))
}

func TestMetrics_Mount(t *testing.T) {
	m := observability.NewMetrics()
	h := m.Hooks()
	h.OnMount(context.Background(), &domain.MountEvent{})
	h.OnMount(context.Background(), &domain.MountEvent{Err: errors.New("down")})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.MountFailures))
}

func TestMetrics_Handler(t *testing.T) {
	m := observability.NewMetrics()
	m.Batches.Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "thunder_batches_total 1")
}

func TestCompose(t *testing.T) {
	var calls []string
	a := domain.LifecycleHooks{
		OnBatchSettled: func(context.Context, *domain.BatchEvent) { calls = append(calls, "a") },
	}
	b := domain.LifecycleHooks{
		OnBatchSettled: func(context.Context, *domain.BatchEvent) { calls = append(calls, "b") },
		OnMount:        func(context.Context, *domain.MountEvent) { calls = append(calls, "mount") },
	}

	h := observability.Compose(a, domain.LifecycleHooks{}, b)
	h.OnBatchSettled(context.Background(), &domain.BatchEvent{})
	h.OnMount(context.Background(), &domain.MountEvent{})

	assert.Equal(t, []string{"a", "b", "mount"}, calls)
	assert.Nil(t, h.OnStepApplied)
}
