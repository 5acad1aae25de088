// Package rediscontainer starts a throwaway Redis container for integration
// tests. Set TEST_REDIS_ADDR to use an existing server instead.
package rediscontainer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	image         = "redis:7-alpine"
	containerName = "learning-backend-redis-test"
	hostPort      = "6390"

	envAddr = "TEST_REDIS_ADDR"
)

var (
	once     sync.Once
	setupErr error
	external bool
)

// Addr exposes the Redis host:port used by integration tests.
func Addr() string {
	if addr := os.Getenv(envAddr); addr != "" {
		return addr
	}
	return "127.0.0.1:" + hostPort
}

// Setup runs the container unless TEST_REDIS_ADDR is set and waits until the
// server answers PING. The returned error means the caller should skip.
func Setup() error {
	once.Do(func() {
		if os.Getenv(envAddr) != "" {
			external = true
			setupErr = waitForRedis(Addr(), 5*time.Second)
			return
		}
		if _, err := exec.LookPath("docker"); err != nil {
			setupErr = fmt.Errorf("docker executable not found: %w", err)
			return
		}
		_ = stopContainer()
		if err := runDocker(
			"run", "-d", "--rm",
			"--name", containerName,
			"-p", hostPort+":6379",
			image,
		); err != nil {
			setupErr = err
			return
		}
		setupErr = waitForRedis(Addr(), 10*time.Second)
	})
	return setupErr
}

// Teardown stops the container launched by Setup.
func Teardown() error {
	if setupErr != nil || external {
		return nil
	}
	return stopContainer()
}

func stopContainer() error {
	output, err := exec.Command("docker", "stop", containerName).CombinedOutput()
	if err != nil {
		if strings.Contains(string(output), "No such container") {
			return nil
		}
		return fmt.Errorf("docker stop failed: %w: %s", err, output)
	}
	return nil
}

func runDocker(args ...string) error {
	output, err := exec.Command("docker", args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("docker %s failed: %w: %s", args[0], err, output)
	}
	return nil
}

func waitForRedis(addr string, timeout time.Duration) error {
	client := goredis.NewClient(&goredis.Options{Addr: addr, DialTimeout: 200 * time.Millisecond})
	defer client.Close()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		err := client.Ping(ctx).Err()
		cancel()
		if err == nil {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return errors.New("redis did not respond to ping")
}
