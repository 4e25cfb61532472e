// Copyright (c) 2025 Paul Cager
//
// This file is part of hid-proxy.
//
// hid-proxy is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@paulcager.org for commercial licensing options.

package health

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadyNoChecks(t *testing.T) {
	c := NewChecker()
	results := c.Ready(context.Background())
	require.Len(t, results, 1)
	assert.Equal(t, StatusHealthy, results[0].Status)
}

func TestIsHealthyRequiresStart(t *testing.T) {
	c := NewChecker()
	assert.False(t, c.IsHealthy(context.Background()))

	c.MarkStarted()
	assert.True(t, c.IsHealthy(context.Background()))
}

func TestFailingCheck(t *testing.T) {
	c := NewChecker()
	c.MarkStarted()
	c.RegisterCheck("storage", func(ctx context.Context) CheckResult {
		return CheckResult{Status: StatusUnhealthy, Error: "closed"}
	})

	assert.False(t, c.IsHealthy(context.Background()))

	results := c.Ready(context.Background())
	require.Len(t, results, 1)
	assert.Equal(t, "storage", results[0].Name)
	assert.Equal(t, StatusUnhealthy, AggregateStatus(results))
}

func TestReadinessHandler(t *testing.T) {
	c := NewChecker()

	rec := httptest.NewRecorder()
	c.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/readyz", nil))
	assert.Equal(t, 503, rec.Code)

	c.MarkStarted()
	rec = httptest.NewRecorder()
	c.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/readyz", nil))
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestLivenessHandler(t *testing.T) {
	c := NewChecker()
	rec := httptest.NewRecorder()
	c.LivenessHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	assert.Equal(t, 200, rec.Code)
}
