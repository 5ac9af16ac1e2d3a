package cache

import (
	"context"
	"time"
)

// Nop is used when no Redis server is configured; every lookup misses
type Nop struct{}

func (Nop) Get(context.Context, string, any) (bool, int64, error) { return false, 0, nil }

func (Nop) Set(context.Context, string, int64, any, time.Duration) error { return nil }

func (Nop) Delete(context.Context, ...string) error { return nil }
