package provider

import (
	"context"

	"github.com/stretchr/testify/mock"

	"valutatradehub/internal/rates"
)

// MockProvider is a testify mock of RatesProvider.
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockProvider) FetchRates(ctx context.Context, codes []string) (rates.Table, error) {
	args := m.Called(ctx, codes)
	if t, ok := args.Get(0).(rates.Table); ok {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}

var _ RatesProvider = (*MockProvider)(nil)
