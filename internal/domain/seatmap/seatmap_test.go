package seatmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabels(t *testing.T) {
	t.Run("指定席数分のラベルを生成する", func(t *testing.T) {
		labels, err := Labels(6)

		require.NoError(t, err)
		assert.Equal(t, []Label{"S1", "S2", "S3", "S4", "S5", "S6"}, labels)
	})

	t.Run("生成順序は安定している", func(t *testing.T) {
		first, err := Labels(10)
		require.NoError(t, err)
		second, err := Labels(10)
		require.NoError(t, err)

		assert.Equal(t, first, second)
	})

	tests := []struct {
		name      string
		seatLimit int
	}{
		{"座席数0は無効", 0},
		{"座席数が負は無効", -3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Labels(tt.seatLimit)
			assert.ErrorIs(t, err, ErrInvalidCapacity)
		})
	}
}

func TestCapacityTable(t *testing.T) {
	t.Run("未設定のスケジュールはデフォルト座席数", func(t *testing.T) {
		table := NewCapacityTable()

		assert.Equal(t, DefaultSeatLimit, table.Capacity(101))
	})

	t.Run("デフォルト座席数を指定して作成できる", func(t *testing.T) {
		table := NewCapacityTableWithDefault(9)

		assert.Equal(t, 9, table.Capacity(101))
	})

	t.Run("無効なデフォルト座席数は標準値に丸める", func(t *testing.T) {
		table := NewCapacityTableWithDefault(0)

		assert.Equal(t, DefaultSeatLimit, table.Capacity(101))
	})

	t.Run("設定済みのスケジュールは設定値を返す", func(t *testing.T) {
		table := NewCapacityTable()
		require.NoError(t, table.Set(101, 8))

		assert.Equal(t, 8, table.Capacity(101))
		assert.Equal(t, DefaultSeatLimit, table.Capacity(102))
	})

	t.Run("無効な座席数は設定できない", func(t *testing.T) {
		table := NewCapacityTable()

		err := table.Set(101, 0)

		assert.ErrorIs(t, err, ErrInvalidCapacity)
		assert.Equal(t, DefaultSeatLimit, table.Capacity(101))
	})

	t.Run("LabelsForは設定座席数分のラベルを返す", func(t *testing.T) {
		table := NewCapacityTable()
		require.NoError(t, table.Set(7, 3))

		labels := table.LabelsFor(7)

		assert.Equal(t, []Label{"S1", "S2", "S3"}, labels)
	})
}
