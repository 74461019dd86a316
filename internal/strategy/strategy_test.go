package strategy

import (
	"testing"

	"cryptocom-momo-bot-go/internal/config"
	"cryptocom-momo-bot-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubPositions is a PositionReader backed by a plain field.
type stubPositions struct {
	pos *models.Position
}

func (s *stubPositions) Position() *models.Position { return s.pos }

func TestNew(t *testing.T) {
	testCases := []struct {
		name     string
		strategy string
		want     string
		wantErr  bool
	}{
		{name: "momentum", strategy: config.StrategyMomentum, want: "momentum"},
		{name: "scalping", strategy: config.StrategyScalping, want: "scalping"},
		{name: "unknown", strategy: "grid", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &config.Config{Strategy: config.Strategy{Name: tc.strategy, EMALen: 12, ZScoreLen: 20}}

			s, err := New(cfg, &stubPositions{}, zap.NewNop())

			if tc.wantErr {
				assert.ErrorIs(t, err, config.ErrInvalidStrategy)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, s.Name())
		})
	}
}
