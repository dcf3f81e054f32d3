package handlers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestCompositeHealthChecker(t *testing.T) {
	c := NewCompositeHealthChecker("test")

	empty := c.Check(context.Background())
	assert.True(t, empty.Healthy)
	assert.Equal(t, "No health checks registered", empty.Message)

	c.AddCheck("postgres", NewPingCheck(pingerFunc(func(context.Context) error { return nil })))
	ok := c.Check(context.Background())
	assert.True(t, ok.Healthy)
	assert.Equal(t, "OK", ok.Checks["postgres"].Message)

	c.AddCheck("redis", NewPingCheck(pingerFunc(func(context.Context) error { return errors.New("refused") })))
	bad := c.Check(context.Background())
	assert.False(t, bad.Healthy)
	assert.Equal(t, "Some checks failed: redis", bad.Message)
	assert.Equal(t, "refused", bad.Checks["redis"].Message)
	assert.Equal(t, "test", bad.Version)
}

func TestCompositeHealthChecker_Timeout(t *testing.T) {
	c := NewCompositeHealthChecker("")
	c.SetTimeout(10 * time.Millisecond)
	c.AddCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	status := c.Check(context.Background())
	assert.False(t, status.Healthy)
	assert.Contains(t, status.Checks["slow"].Message, "deadline exceeded")
}
