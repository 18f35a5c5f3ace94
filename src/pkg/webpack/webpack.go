// Package webpack adds HTTP requests to Sifzz
package webpack

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	sifzz "github.com/stuffzez/sifzz/src"
)

// DefaultTimeout applies until a script sets another
const DefaultTimeout = 10 * time.Second

// maxBody caps responses stored in variables
const maxBody = 16 << 20

// operand matches quoted text or a variable, optionally joined with +
const operand = `((?:"[^"]*"|\w+)(?:\s*\+\s*(?:"[^"]*"|\w+))*)`

// Pack is the web extension unit
type Pack struct {
	mu      sync.Mutex
	timeout time.Duration
	client  *http.Client

	// background requests outlive the statement that started them
	bg     context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates the web pack; a zero timeout means DefaultTimeout
func New(timeout time.Duration) *Pack {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	bg, cancel := context.WithCancel(context.Background())
	return &Pack{
		timeout: timeout,
		client:  &http.Client{},
		bg:      bg,
		cancel:  cancel,
	}
}

func (*Pack) Name() string        { return "web" }
func (*Pack) Description() string { return "HTTP requests" }

func (p *Pack) Commands(*sifzz.Host) []sifzz.Command {
	return []sifzz.Command{
		{
			Pattern:     `get ` + operand + ` in background and store in (\w+)$`,
			Description: "Start a GET request; the variable is set when it finishes",
			Handler:     p.getBackground,
		},
		{
			Pattern:     `get ` + operand + ` and store in (\w+)$`,
			Description: "HTTP GET; stores the response body (empty on failure)",
			Handler:     p.get,
		},
		{
			Pattern:     `post ` + operand + ` to ` + operand + ` and store in (\w+)$`,
			Description: "HTTP POST of text; stores the response body (empty on failure)",
			Handler:     p.post,
		},
		{
			Pattern:     `download ` + operand + ` as ` + operand + `$`,
			Description: "Save a URL to a local file",
			Handler:     p.download,
		},
		{
			Pattern:     `set http timeout to (.+)$`,
			Description: "Seconds before requests give up",
			Handler:     p.setTimeout,
		},
	}
}

// Timeout returns the current request timeout
func (p *Pack) Timeout() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timeout
}

func (p *Pack) request(ctx context.Context, method, url, body string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout())
	defer cancel()

	var reader io.Reader
	if method == http.MethodPost {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("User-Agent", "sifzz/"+sifzz.Version)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	return string(data), nil
}

func (p *Pack) get(c *sifzz.Context) error {
	url := c.EvalString(c.Arg(1))
	c.Logger().DebugCat(sifzz.CatNet, "GET %s", url)
	body, err := p.request(c.Context(), http.MethodGet, url, "")
	if err != nil {
		c.LogWarn(sifzz.CatNet, fmt.Sprintf("Error making GET request: %v", err))
		body = ""
	}
	c.Env.Set(c.Arg(2), body)
	return nil
}

func (p *Pack) post(c *sifzz.Context) error {
	data := c.EvalString(c.Arg(1))
	url := c.EvalString(c.Arg(2))
	c.Logger().DebugCat(sifzz.CatNet, "POST %s (%d bytes)", url, len(data))
	body, err := p.request(c.Context(), http.MethodPost, url, data)
	if err != nil {
		c.LogWarn(sifzz.CatNet, fmt.Sprintf("Error making POST request: %v", err))
		body = ""
	}
	c.Env.Set(c.Arg(3), body)
	return nil
}

// getBackground runs the request on its own goroutine and hands the result
// back through the host queue
func (p *Pack) getBackground(c *sifzz.Context) error {
	url := c.EvalString(c.Arg(1))
	name := c.Arg(2)
	logger := c.Logger()
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		body, err := p.request(p.bg, http.MethodGet, url, "")
		if err != nil {
			if p.bg.Err() != nil {
				return
			}
			logger.WarnCat(sifzz.CatNet, "Error making GET request: %v", err)
			body = ""
		}
		c.Post(sifzz.Message{
			Source: "web",
			Apply:  func(env *sifzz.Environment) { env.Set(name, body) },
		})
	}()
	return nil
}

func (p *Pack) download(c *sifzz.Context) error {
	url := c.EvalString(c.Arg(1))
	name := c.EvalString(c.Arg(2))

	ctx, cancel := context.WithTimeout(c.Context(), p.Timeout())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		c.LogWarn(sifzz.CatNet, fmt.Sprintf("Error downloading file: %v", err))
		return nil
	}
	resp, err := p.client.Do(req)
	if err != nil {
		c.LogWarn(sifzz.CatNet, fmt.Sprintf("Error downloading file: %v", err))
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		c.LogWarn(sifzz.CatNet, fmt.Sprintf("Error downloading file: HTTP %d", resp.StatusCode))
		return nil
	}

	f, err := os.Create(name)
	if err != nil {
		c.LogWarn(sifzz.CatNet, fmt.Sprintf("Error downloading file: %v", err))
		return nil
	}
	_, err = io.Copy(f, resp.Body)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		c.LogWarn(sifzz.CatNet, fmt.Sprintf("Error downloading file: %v", err))
		return nil
	}
	fmt.Fprintf(c.Out(), "Downloaded: %s\n", name)
	return nil
}

func (p *Pack) setTimeout(c *sifzz.Context) error {
	v := c.Eval(c.Arg(1))
	secs, ok := sifzz.ToFloat(v)
	if !ok || secs <= 0 {
		c.LogWarn(sifzz.CatNet, fmt.Sprintf("HTTP timeout must be a positive number, not %s", sifzz.FormatValue(v)))
		return nil
	}
	p.mu.Lock()
	p.timeout = time.Duration(secs * float64(time.Second))
	p.mu.Unlock()
	return nil
}

// Close cancels background requests and waits for them to finish
func (p *Pack) Close() error {
	p.cancel()
	p.wg.Wait()
	return nil
}
