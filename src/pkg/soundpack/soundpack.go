// Package soundpack adds sound playback to Sifzz. Files are played by an
// external player process (afplay, paplay, aplay, ffplay or mpg123, whichever
// is installed), one sound at a time.
package soundpack

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path"
	"runtime"
	"strconv"
	"sync"
	"time"

	sifzz "github.com/stuffzez/sifzz/src"
)

// Player builds the command that plays file at volume (0-100)
type Player func(file string, volume int) *exec.Cmd

// Pack is the sound extension unit
type Pack struct {
	mu        sync.Mutex
	volume    int
	player    Player
	current   *exec.Cmd
	tempFiles []string
	client    *http.Client
}

// New creates the sound pack with the first player found on PATH
func New() *Pack {
	return &Pack{volume: 100, player: findPlayer(), client: &http.Client{Timeout: 60 * time.Second}}
}

// WithPlayer replaces the player command, mainly for tests
func (p *Pack) WithPlayer(player Player) *Pack {
	p.player = player
	return p
}

func (*Pack) Name() string        { return "sound" }
func (*Pack) Description() string { return "Beeps and audio playback" }

func (p *Pack) Commands(*sifzz.Host) []sifzz.Command {
	return []sifzz.Command{
		{
			Pattern:     `play beep frequency (\d+) duration (\d+)$`,
			Description: "Ring the terminal bell and pause for the duration (ms)",
			Handler:     p.beep,
		},
		{
			Pattern:     `play sound (.+)$`,
			Description: "Play an audio file in the background",
			Handler: func(c *sifzz.Context) error {
				p.play(c, c.EvalString(c.Arg(1)))
				return nil
			},
		},
		{
			Pattern:     `play url (.+)$`,
			Description: "Download audio from a URL and play it",
			Handler:     p.playURL,
		},
		{
			Pattern:     `stop sound$`,
			Description: "Stop the sound that is playing",
			Handler: func(c *sifzz.Context) error {
				p.stop()
				return nil
			},
		},
		{
			Pattern:     `set volume (\d+)$`,
			Description: "Playback volume, 0 to 100",
			Handler:     p.setVolume,
		},
		{
			Pattern:     `get duration (.+?)(?: and store in (\w+))?$`,
			Description: "Print (or store) the length of a WAV file in seconds",
			Handler:     p.duration,
		},
	}
}

// Volume returns the playback volume
func (p *Pack) Volume() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

func (p *Pack) beep(c *sifzz.Context) error {
	freq, _ := strconv.Atoi(c.Arg(1))
	ms, _ := strconv.Atoi(c.Arg(2))
	c.Logger().DebugCat(sifzz.CatSound, "beep %d Hz for %d ms", freq, ms)
	if _, err := io.WriteString(c.Out(), "\a"); err != nil {
		c.Logger().DebugCat(sifzz.CatSound, "bell: %v", err)
	}
	timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-c.Context().Done():
		return c.Context().Err()
	case <-timer.C:
	}
	return nil
}

// play starts file on the player, replacing any sound already playing
func (p *Pack) play(c *sifzz.Context, file string) {
	if _, err := os.Stat(file); err != nil {
		c.LogWarn(sifzz.CatSound, fmt.Sprintf("File not found: %s", file))
		return
	}
	p.stop()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.player == nil {
		c.LogWarn(sifzz.CatSound, "No audio player found (install ffplay, paplay or aplay)")
		return
	}
	cmd := p.player(file, p.volume)
	if err := cmd.Start(); err != nil {
		c.LogWarn(sifzz.CatSound, fmt.Sprintf("Failed to play sound: %v", err))
		return
	}
	p.current = cmd
	logger := c.Logger()
	go func() {
		err := cmd.Wait()
		p.mu.Lock()
		if p.current == cmd {
			p.current = nil
		}
		p.mu.Unlock()
		if err != nil {
			logger.DebugCat(sifzz.CatSound, "player exited: %v", err)
		}
	}()
}

func (p *Pack) stop() {
	p.mu.Lock()
	cmd := p.current
	p.current = nil
	p.mu.Unlock()
	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}

func (p *Pack) playURL(c *sifzz.Context) error {
	url := c.EvalString(c.Arg(1))
	c.Logger().InfoCat(sifzz.CatSound, "Downloading %s...", url)
	file, err := p.fetch(c.Context(), url)
	if err != nil {
		c.LogWarn(sifzz.CatSound, fmt.Sprintf("Failed to play URL: %v", err))
		return nil
	}
	p.play(c, file)
	return nil
}

func (p *Pack) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	f, err := os.CreateTemp("", "sifzz-sound-*"+path.Ext(req.URL.Path))
	if err != nil {
		return "", err
	}
	_, err = io.Copy(f, resp.Body)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	p.mu.Lock()
	p.tempFiles = append(p.tempFiles, f.Name())
	p.mu.Unlock()
	if err != nil {
		return "", err
	}
	return f.Name(), nil
}

func (p *Pack) setVolume(c *sifzz.Context) error {
	v, err := strconv.Atoi(c.Arg(1))
	if err != nil || v < 0 || v > 100 {
		c.LogWarn(sifzz.CatSound, "Volume must be between 0 and 100")
		return nil
	}
	p.mu.Lock()
	p.volume = v
	p.mu.Unlock()
	c.Logger().InfoCat(sifzz.CatSound, "Volume set to %d%%", v)
	return nil
}

func (p *Pack) duration(c *sifzz.Context) error {
	file := c.EvalString(c.Arg(1))
	f, err := os.Open(file)
	if err != nil {
		c.LogWarn(sifzz.CatSound, fmt.Sprintf("File not found: %s", file))
		return nil
	}
	defer f.Close()

	secs, err := WAVDuration(f)
	if err != nil {
		c.LogWarn(sifzz.CatSound, fmt.Sprintf("Failed to get duration: %v", err))
		return nil
	}
	if name := c.Arg(2); name != "" {
		c.Env.Set(name, secs)
		return nil
	}
	fmt.Fprintf(c.Out(), "Duration: %.2f seconds\n", secs)
	return nil
}

// Close stops playback and removes downloaded files
func (p *Pack) Close() error {
	p.stop()
	p.mu.Lock()
	files := p.tempFiles
	p.tempFiles = nil
	p.mu.Unlock()

	var errs []error
	for _, f := range files {
		if err := os.Remove(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type playerSpec struct {
	bin  string
	args func(file string, volume int) []string
}

var players = []playerSpec{
	{"afplay", func(f string, v int) []string { return []string{"-v", fmt.Sprintf("%.2f", float64(v)/100), f} }},
	{"ffplay", func(f string, v int) []string {
		return []string{"-nodisp", "-autoexit", "-loglevel", "quiet", "-volume", strconv.Itoa(v), f}
	}},
	{"paplay", func(f string, v int) []string { return []string{"--volume", strconv.Itoa(v * 65536 / 100), f} }},
	{"mpg123", func(f string, v int) []string { return []string{"-q", "-f", strconv.Itoa(v * 32768 / 100), f} }},
	{"aplay", func(f string, _ int) []string { return []string{"-q", f} }},
}

func findPlayer() Player {
	if runtime.GOOS == "windows" {
		return func(file string, _ int) *exec.Cmd {
			script := fmt.Sprintf("(New-Object Media.SoundPlayer '%s').PlaySync()", file)
			return exec.Command("powershell", "-NoProfile", "-Command", script)
		}
	}
	for _, spec := range players {
		if bin, err := exec.LookPath(spec.bin); err == nil {
			args := spec.args
			return func(file string, volume int) *exec.Cmd {
				return exec.Command(bin, args(file, volume)...)
			}
		}
	}
	return nil
}
