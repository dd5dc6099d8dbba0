package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingConsolidator struct {
	count atomic.Int32
}

func (c *countingConsolidator) RunAll(_ context.Context) error {
	c.count.Add(1)
	return nil
}

func TestScheduler_TicksAndStops(t *testing.T) {
	c := &countingConsolidator{}
	sc := New(20*time.Millisecond, c, logrus.NewEntry(logrus.New()))

	sc.Start(context.Background())
	sc.Start(context.Background()) // double-start is a no-op

	time.Sleep(70 * time.Millisecond)
	sc.Stop(context.Background())

	assert.GreaterOrEqual(t, c.count.Load(), int32(2))
}

func TestScheduler_Trigger(t *testing.T) {
	c := &countingConsolidator{}
	sc := New(time.Hour, c, logrus.NewEntry(logrus.New()))

	require.NoError(t, sc.Trigger(context.Background()))
	assert.Equal(t, int32(1), c.count.Load())
}
