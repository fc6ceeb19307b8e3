package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type HealthReporter struct {
	mock.Mock
}

func (m *HealthReporter) ReportFailure(ctx context.Context, service string, reason string) {
	m.Called(ctx, service, reason)
}

func (m *HealthReporter) ReportRecovery(ctx context.Context, service string) {
	m.Called(ctx, service)
}
