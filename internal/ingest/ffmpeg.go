package ingest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/your-org/facerec/internal/models"
)

const maxFrameBytes = 32 * 1024 * 1024

// FFmpegDecoder probes the frame rate with ffprobe and streams every frame
// through ffmpeg as MJPEG over a pipe.
type FFmpegDecoder struct {
	FFmpegPath  string
	FFprobePath string
}

func NewFFmpegDecoder(ffmpegPath, ffprobePath string) *FFmpegDecoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpegDecoder{FFmpegPath: ffmpegPath, FFprobePath: ffprobePath}
}

func (d *FFmpegDecoder) Open(ctx context.Context, path string) (FrameSource, error) {
	fps, err := d.probeFPS(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open video %s: %w: %w", path, models.ErrDecode, err)
	}

	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-nostdin",
		"-i", path,
		"-map", "0:v:0",
		"-vsync", "0",
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "2",
		"pipe:1",
	}
	cmd := exec.CommandContext(ctx, d.FFmpegPath, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}
	stderr := &tailBuffer{max: 4096}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w: %w", models.ErrDecode, err)
	}

	return &ffmpegSource{
		cmd:    cmd,
		stdout: stdout,
		stderr: stderr,
		reader: bufio.NewReaderSize(stdout, 512*1024),
		fps:    fps,
	}, nil
}

type ffprobeOutput struct {
	Streams []struct {
		AvgFrameRate string `json:"avg_frame_rate"`
		RFrameRate   string `json:"r_frame_rate"`
	} `json:"streams"`
}

// probeFPS fails when the file has no readable video stream. A stream with
// an unknown rate yields 0.
func (d *FFmpegDecoder) probeFPS(ctx context.Context, path string) (float64, error) {
	out, err := exec.CommandContext(ctx, d.FFprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=avg_frame_rate,r_frame_rate",
		"-of", "json",
		path,
	).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return 0, fmt.Errorf("ffprobe: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return 0, fmt.Errorf("ffprobe: %w", err)
	}

	var probe ffprobeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		return 0, fmt.Errorf("parse ffprobe output: %w", err)
	}
	if len(probe.Streams) == 0 {
		return 0, errors.New("no video stream")
	}
	s := probe.Streams[0]
	if fps := parseRate(s.AvgFrameRate); fps > 0 {
		return fps, nil
	}
	return parseRate(s.RFrameRate), nil
}

// parseRate parses ffprobe rationals like "30000/1001". Invalid input is 0.
func parseRate(s string) float64 {
	num, den, found := strings.Cut(strings.TrimSpace(s), "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

type ffmpegSource struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *tailBuffer
	reader *bufio.Reader
	fps    float64
	frames int
	done   bool
}

func (s *ffmpegSource) FPS() float64 { return s.fps }

func (s *ffmpegSource) Next(ctx context.Context) (Frame, error) {
	if s.done {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := readJPEG(s.reader)
	if err == nil {
		s.frames++
		return jpegFrame(data), nil
	}
	if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("read frame %d: %w", s.frames, err)
	}

	s.done = true
	waitErr := s.cmd.Wait()
	if waitErr != nil {
		if s.frames == 0 {
			return nil, fmt.Errorf("ffmpeg produced no frames: %w: %s", models.ErrDecode, s.stderr.String())
		}
		// A broken tail after good frames ends the video early.
		slog.Warn("ffmpeg exited with error", "frames", s.frames, "error", waitErr, "stderr", s.stderr.String())
	}
	return nil, io.EOF
}

func (s *ffmpegSource) Close() error {
	if s.done {
		return nil
	}
	s.done = true
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	_ = s.stdout.Close()
	_ = s.cmd.Wait()
	return nil
}

// readJPEG returns the next complete JPEG image in a stream of
// concatenated images. io.EOF means the stream ended between images.
func readJPEG(r *bufio.Reader) ([]byte, error) {
	if err := findJPEGStart(r); err != nil {
		return nil, err
	}
	data, err := readUntilJPEGEnd(r)
	if errors.Is(err, io.EOF) {
		return nil, io.ErrUnexpectedEOF
	}
	return data, err
}

func findJPEGStart(r *bufio.Reader) error {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return err
		}
		if b != 0xFF {
			continue
		}
		b, err = r.ReadByte()
		if err != nil {
			return err
		}
		if b == 0xD8 {
			return nil
		}
		if b == 0xFF {
			_ = r.UnreadByte()
		}
	}
}

func readUntilJPEGEnd(r *bufio.Reader) ([]byte, error) {
	data := []byte{0xFF, 0xD8}

	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		data = append(data, b)

		if b == 0xFF {
			next, err := r.ReadByte()
			if err != nil {
				return nil, err
			}
			if next == 0xFF {
				// fill byte; the next one may start a marker
				_ = r.UnreadByte()
				continue
			}
			data = append(data, next)
			if next == 0xD9 {
				return data, nil
			}
		}

		if len(data) > maxFrameBytes {
			return nil, fmt.Errorf("jpeg frame exceeds %d bytes", maxFrameBytes)
		}
	}
}

// jpegFrame is one MJPEG frame from ffmpeg.
type jpegFrame []byte

func (f jpegFrame) Release() {}

func (f jpegFrame) RGB() (image.Image, error) {
	img, err := jpeg.Decode(bytes.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadFrame, err)
	}
	switch img.(type) {
	case *image.YCbCr, *image.RGBA, *image.NRGBA:
		return img, nil
	default:
		return nil, fmt.Errorf("%w: %T is not a 3-channel image", ErrBadFrame, img)
	}
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(string(t.buf))
}
