// Package gif 将有序的截图帧合成为循环播放的 GIF 动画
//
// 帧按 BatchSize 分批解码、量化并写出，同一时间只持有一批解码后的图像。
// 任一帧无法解码时整体失败，不会产出部分 GIF。
package gif

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// BatchSize 每批解码的帧数
const BatchSize = 10

// MaxDelay 单帧延迟上限（百分之一秒），图形控制扩展块中只有 16 位
const MaxDelay = 1<<16 - 1

var (
	// ErrInvalidFrame 帧无法解码为图像
	ErrInvalidFrame = errors.New("invalid frame")

	// ErrNoFrames 没有可合成的帧
	ErrNoFrames = errors.New("no frames to encode")

	// ErrInvalidDelay 帧延迟超出 [0, MaxDelay]
	ErrInvalidDelay = errors.New("invalid frame delay")
)

// InvalidFrameError 指明无法解码的帧序号（从 0 开始）
type InvalidFrameError struct {
	Index int
	Err   error
}

func (e *InvalidFrameError) Error() string {
	return fmt.Sprintf("invalid frame %d: %v", e.Index, e.Err)
}

func (e *InvalidFrameError) Unwrap() error { return e.Err }

// Is 使 errors.Is(err, ErrInvalidFrame) 成立
func (e *InvalidFrameError) Is(target error) bool { return target == ErrInvalidFrame }

// EncodedGIF 合成结果
type EncodedGIF struct {
	Bytes      []byte
	FrameCount int
	Width      int
	Height     int
}

// ProgressFunc 每写完一批回调一次
type ProgressFunc func(done, total int)

// EncodeOption Encode 可选项
type EncodeOption func(*encodeOptions)

type encodeOptions struct {
	progress ProgressFunc
}

// WithProgress 设置进度回调
func WithProgress(fn ProgressFunc) EncodeOption {
	return func(o *encodeOptions) { o.progress = fn }
}

// Encoder 帧合成器（无状态，可并发使用）
type Encoder struct {
	batchSize int
}

// NewEncoder 创建合成器
func NewEncoder() *Encoder {
	return &Encoder{batchSize: BatchSize}
}

// Validate 只解析每帧的头部，用于在上传和合成前快速失败
func (e *Encoder) Validate(frames [][]byte) error {
	if len(frames) == 0 {
		return ErrNoFrames
	}
	for i, f := range frames {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(f))
		if err != nil {
			return &InvalidFrameError{Index: i, Err: err}
		}
		if cfg.Width <= 0 || cfg.Height <= 0 {
			return &InvalidFrameError{Index: i, Err: fmt.Errorf("empty image %dx%d", cfg.Width, cfg.Height)}
		}
	}
	return nil
}

// Encode 按输入顺序把 frames 合成为无限循环的 GIF
//
// 画布尺寸取第 0 帧，每帧延迟 delayCentiseconds（1/100 秒）。
func (e *Encoder) Encode(ctx context.Context, frames [][]byte, delayCentiseconds int, opts ...EncodeOption) (*EncodedGIF, error) {
	if len(frames) == 0 {
		return nil, ErrNoFrames
	}
	if delayCentiseconds < 0 || delayCentiseconds > MaxDelay {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDelay, delayCentiseconds)
	}
	var o encodeOptions
	for _, opt := range opts {
		opt(&o)
	}

	var out bytes.Buffer
	var fw *frameWriter
	defer func() {
		if fw != nil {
			fw.release()
		}
	}()

	batch := make([]image.Image, 0, e.batchSize)
	for start := 0; start < len(frames); start += e.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+e.batchSize, len(frames))

		batch = batch[:0]
		for i := start; i < end; i++ {
			img, _, err := image.Decode(bytes.NewReader(frames[i]))
			if err != nil {
				clear(batch)
				return nil, &InvalidFrameError{Index: i, Err: err}
			}
			batch = append(batch, img)
		}

		if fw == nil {
			b := batch[0].Bounds()
			var err error
			if fw, err = newFrameWriter(&out, b.Dx(), b.Dy(), delayCentiseconds); err != nil {
				clear(batch)
				return nil, err
			}
		}
		for _, img := range batch {
			fw.writeFrame(img)
		}
		clear(batch)
		if fw.err != nil {
			return nil, fmt.Errorf("write frames: %w", fw.err)
		}

		if o.progress != nil {
			o.progress(end, len(frames))
		}
	}

	if err := fw.close(); err != nil {
		return nil, fmt.Errorf("finish gif: %w", err)
	}
	return &EncodedGIF{
		Bytes:      out.Bytes(),
		FrameCount: len(frames),
		Width:      fw.width,
		Height:     fw.height,
	}, nil
}
