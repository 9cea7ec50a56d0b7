package probe

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/zidane0ma/tagflow/internal/metrics"
)

// Resolution is a decoded width/height pair.
type Resolution struct {
	Width  int
	Height int
}

// ResolutionBatch decodes image/video resolution, bounded by ResolutionWorkers.
// Images are decoded in-process via image.DecodeConfig (covering jpeg, png,
// gif, bmp and webp through the blank-imported decoders); videos fall back
// to ffprobe. A file that cannot be decoded by either method yields nil.
func (p *Prober) ResolutionBatch(ctx context.Context, paths []string) (map[string]*Resolution, error) {
	results := make(map[string]*Resolution, len(paths))
	type outcome struct {
		path string
		res  *Resolution
	}
	out := make(chan outcome, len(paths))

	for _, path := range paths {
		path := path
		if err := p.resolutionSem.Acquire(ctx); err != nil {
			return nil, err
		}
		go func() {
			defer p.resolutionSem.Release()
			res, err := p.probeResolution(ctx, path)
			if err != nil {
				p.logger.Debug("resolution probe failed", zap.String("path", path), zap.Error(err))
				out <- outcome{path: path}
				return
			}
			out <- outcome{path: path, res: res}
		}()
	}

	for range paths {
		o := <-out
		results[o.path] = o.res
	}
	return results, nil
}

func (p *Prober) probeResolution(ctx context.Context, path string) (*Resolution, error) {
	start := time.Now()
	defer func() { metrics.RecordMediaProbe(time.Since(start)) }()

	mime, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, fmt.Errorf("detect mime for %s: %w", path, err)
	}

	if strings.HasPrefix(mime.String(), "image/") {
		return decodeImageResolution(path)
	}
	return p.probeVideoResolution(ctx, path)
}

func decodeImageResolution(path string) (*Resolution, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("decode image config for %s: %w", path, err)
	}
	return &Resolution{Width: cfg.Width, Height: cfg.Height}, nil
}

func (p *Prober) probeVideoResolution(ctx context.Context, path string) (*Resolution, error) {
	ctx, cancel := context.WithTimeout(ctx, p.probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "csv=s=x:p=0",
		path)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe: %w", err)
	}

	parts := strings.SplitN(strings.TrimSpace(stdout.String()), "x", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("unexpected ffprobe resolution output %q", stdout.String())
	}
	width, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil, fmt.Errorf("parse width: %w", err)
	}
	height, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, fmt.Errorf("parse height: %w", err)
	}
	return &Resolution{Width: width, Height: height}, nil
}
