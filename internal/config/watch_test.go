package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWatchFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cidrvend.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: info\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan string, 8)
	require.NoError(t, WatchFile(ctx, path, zap.NewNop(), func(cfg *ServiceConf) {
		changes <- cfg.LogLevel
	}))

	require.NoError(t, os.WriteFile(path, []byte("log_level: debug\n"), 0o644))

	// a truncating write may be observed before the new content lands
	timeout := time.After(5 * time.Second)
	for {
		select {
		case lvl := <-changes:
			if lvl == "debug" {
				return
			}
		case <-timeout:
			t.Fatal("no change observed")
		}
	}
}
