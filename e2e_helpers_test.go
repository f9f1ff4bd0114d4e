//go:build !ci

package tinkerdeck_test

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
)

const headlessShellImage = "chromedp/headless-shell:stable"

// Browsers tried on PATH before falling back to Docker.
var chromeBinaries = []string{
	"headless-shell",
	"chromium",
	"chromium-browser",
	"google-chrome",
	"google-chrome-stable",
}

// ChromeContext is a browser tab for E2E tests.
type ChromeContext struct {
	Context context.Context
	// Docker is set when the browser runs in a container and must reach
	// the test server through a host alias.
	Docker bool
}

// SetupChrome starts headless Chrome for t. A local binary is preferred
// unless TINKERDECK_E2E_DOCKER is set; the test is skipped when neither a
// binary nor Docker is available.
func SetupChrome(t *testing.T, timeout time.Duration) (*ChromeContext, func()) {
	t.Helper()

	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
		stop        = func() {}
		docker      bool
	)
	if bin := localChrome(); bin != "" && os.Getenv("TINKERDECK_E2E_DOCKER") == "" {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.ExecPath(bin),
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
		)
		allocCtx, allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	} else {
		endpoint, cleanup := dockerChrome(t)
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(context.Background(), endpoint)
		stop, docker = cleanup, true
	}

	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(t.Logf))
	ctx, cancel := context.WithTimeout(tabCtx, timeout)
	return &ChromeContext{Context: ctx, Docker: docker}, func() {
		cancel()
		tabCancel()
		allocCancel()
		stop()
	}
}

// URL rewrites a test server address so the browser can reach it.
func (c *ChromeContext) URL(serverURL string) string {
	if !c.Docker || runtime.GOOS == "linux" {
		return serverURL
	}
	// Outside Linux the container is not on the host network.
	r := strings.NewReplacer("127.0.0.1", "host.docker.internal", "[::1]", "host.docker.internal")
	return r.Replace(serverURL)
}

func localChrome() string {
	for _, name := range chromeBinaries {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	return ""
}

// dockerChrome runs headless-shell in a container and returns its DevTools
// endpoint together with a func that removes the container.
func dockerChrome(t *testing.T) (string, func()) {
	t.Helper()
	if err := exec.Command("docker", "version").Run(); err != nil {
		t.Skip("no Chrome binary or Docker available")
	}

	port, err := freePort()
	if err != nil {
		t.Fatalf("allocate DevTools port: %v", err)
	}
	name := fmt.Sprintf("tinkerdeck-e2e-chrome-%d", port)
	remove := func() { _ = exec.Command("docker", "rm", "-f", name).Run() }
	remove()

	if exec.Command("docker", "image", "inspect", headlessShellImage).Run() != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if out, err := exec.CommandContext(ctx, "docker", "pull", headlessShellImage).CombinedOutput(); err != nil {
			t.Fatalf("docker pull %s: %v\n%s", headlessShellImage, err, out)
		}
	}

	args := []string{"run", "-d", "--rm", "--memory", "512m", "--name", name}
	if runtime.GOOS == "linux" {
		args = append(args, "--network", "host", headlessShellImage, fmt.Sprintf("--remote-debugging-port=%d", port))
	} else {
		args = append(args, "-p", fmt.Sprintf("%d:9222", port), headlessShellImage)
	}
	if out, err := exec.Command("docker", args...).CombinedOutput(); err != nil {
		t.Fatalf("docker run: %v\n%s", err, out)
	}

	endpoint := fmt.Sprintf("http://localhost:%d", port)
	client := &http.Client{Timeout: 2 * time.Second}
	deadline := time.Now().Add(time.Minute)
	for {
		resp, err := client.Get(endpoint + "/json/version")
		if err == nil {
			resp.Body.Close()
			return endpoint, remove
		}
		if time.Now().After(deadline) {
			if logs, lerr := exec.Command("docker", "logs", "--tail", "50", name).CombinedOutput(); lerr == nil {
				t.Logf("chrome container logs:\n%s", logs)
			}
			remove()
			t.Fatalf("chrome not ready at %s: %v", endpoint, err)
		}
		time.Sleep(500 * time.Millisecond)
	}
}

func freePort() (int, error) {
	l, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
