package mocks

import (
	"context"

	"github.com/Vasteras-Stadsmission/matkassen-sub010/pkg/smsprovider"
	"github.com/stretchr/testify/mock"
)

type Provider struct {
	mock.Mock
}

func (m *Provider) Send(ctx context.Context, to string, text string) smsprovider.Outcome {
	args := m.Called(ctx, to, text)
	return args.Get(0).(smsprovider.Outcome)
}

func (m *Provider) DeliveryStatus(ctx context.Context, providerMsgID string) (string, error) {
	args := m.Called(ctx, providerMsgID)
	return args.String(0), args.Error(1)
}
