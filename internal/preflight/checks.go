package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sys/unix"

	"kthgpt/internal/config"
	"kthgpt/internal/deps"
	"kthgpt/internal/services/llm"
)

// CheckLLM verifies that the AI backend is reachable and the key is valid.
// It uses a 30-second timeout and a single attempt (no retries).
func CheckLLM(ctx context.Context, name string, cfg config.LLM) Result {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := llm.NewClient(llm.Config{
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		Model:          cfg.Model,
		Referer:        cfg.Referer,
		Title:          cfg.Title,
		TimeoutSeconds: cfg.TimeoutSeconds,
	})

	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeLLMError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckRedis verifies the Redis dispatch backend answers PING.
func CheckRedis(ctx context.Context, cfg config.Dispatch) Result {
	const name = "Redis dispatch"

	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return Result{Name: name, Detail: "missing address"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		DialTimeout: 5 * time.Second,
	})
	defer client.Close()

	if err := client.Ping(checkCtx).Err(); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", addr, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (reachable)", addr)}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the external binaries the pipeline runs.
func CheckSystemDeps(_ context.Context, cfg *config.Config) []deps.Status {
	return deps.CheckAll(deps.Tools(cfg))
}

// summarizeLLMError produces a human-readable summary for LLM health check failures.
func summarizeLLMError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (AI backend unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (AI backend unreachable)"
	}
	var backendErr *llm.BackendError
	if errors.As(err, &backendErr) && backendErr.StatusCode != 0 {
		return fmt.Sprintf("AI backend rejected the request (http %d)", backendErr.StatusCode)
	}
	return err.Error()
}
