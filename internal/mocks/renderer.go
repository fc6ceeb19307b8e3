package mocks

import (
	"time"

	"github.com/Vasteras-Stadsmission/matkassen-sub010/internal/model"
	"github.com/stretchr/testify/mock"
)

type Renderer struct {
	mock.Mock
}

func (m *Renderer) Render(intent model.MessageIntent, locale string, earliest, latest time.Time) (string, error) {
	args := m.Called(intent, locale, earliest, latest)
	return args.String(0), args.Error(1)
}
