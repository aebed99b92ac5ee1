package gif

import (
	"compress/lzw"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/color/palette"
	"io"

	"golang.org/x/image/draw"
)

// GIF89a 块标识
const (
	sExtension       = 0x21
	sImageDescriptor = 0x2C
	sTrailer         = 0x3B

	eGraphicControl = 0xF9
	eApplication    = 0xFF

	// 全局颜色表 256 色：bit7 有全局表，颜色分辨率 8 位，表大小 2^(7+1)
	globalTableFlags = 0x80 | 0x70 | 0x07
	litWidth         = 8
	maxDimension     = 1<<16 - 1
)

// framePalette 所有帧共用的全局调色板
var framePalette color.Palette = palette.Plan9

// frameWriter 逐帧写出 GIF89a 流
//
// 头部、全局调色板与循环扩展块只写一次，之后每帧写入
// 图形控制扩展 + 图像描述符 + LZW 数据，最后由 close 写入结束符。
type frameWriter struct {
	w      io.Writer
	width  int
	height int
	delay  int
	err    error
	tmp    [16]byte

	// 可复用的工作缓冲，release 后置空
	paletted *image.Paletted
	scaled   *image.RGBA
	bw       *blockWriter
}

func newFrameWriter(w io.Writer, width, height, delayCentiseconds int) (*frameWriter, error) {
	if width <= 0 || height <= 0 || width > maxDimension || height > maxDimension {
		return nil, fmt.Errorf("unsupported canvas size %dx%d", width, height)
	}
	fw := &frameWriter{
		w:        w,
		width:    width,
		height:   height,
		delay:    delayCentiseconds,
		paletted: image.NewPaletted(image.Rect(0, 0, width, height), framePalette),
		bw:       &blockWriter{w: w},
	}
	fw.writeHeader()
	return fw, fw.err
}

func (fw *frameWriter) write(p []byte) {
	if fw.err != nil {
		return
	}
	_, fw.err = fw.w.Write(p)
}

func (fw *frameWriter) writeHeader() {
	fw.write([]byte("GIF89a"))

	binary.LittleEndian.PutUint16(fw.tmp[0:2], uint16(fw.width))
	binary.LittleEndian.PutUint16(fw.tmp[2:4], uint16(fw.height))
	fw.tmp[4] = globalTableFlags
	fw.tmp[5] = 0 // 背景色索引
	fw.tmp[6] = 0 // 像素宽高比
	fw.write(fw.tmp[:7])

	table := make([]byte, 0, 3*256)
	for i := 0; i < 256; i++ {
		var r, g, b uint32
		if i < len(framePalette) {
			r, g, b, _ = framePalette[i].RGBA()
		}
		table = append(table, byte(r>>8), byte(g>>8), byte(b>>8))
	}
	fw.write(table)

	// NETSCAPE2.0 循环扩展，循环次数 0 表示无限循环
	fw.write([]byte{sExtension, eApplication, 0x0B})
	fw.write([]byte("NETSCAPE2.0"))
	fw.write([]byte{0x03, 0x01, 0x00, 0x00, 0x00})
}

// writeFrame 写入一帧，尺寸与画布不同的帧先缩放到画布大小
func (fw *frameWriter) writeFrame(img image.Image) {
	if fw.err != nil {
		return
	}

	src := img
	if b := img.Bounds(); b.Dx() != fw.width || b.Dy() != fw.height {
		if fw.scaled == nil {
			fw.scaled = image.NewRGBA(image.Rect(0, 0, fw.width, fw.height))
		}
		draw.ApproxBiLinear.Scale(fw.scaled, fw.scaled.Bounds(), img, b, draw.Src, nil)
		src = fw.scaled
	}
	draw.FloydSteinberg.Draw(fw.paletted, fw.paletted.Rect, src, src.Bounds().Min)

	// 图形控制扩展：disposal=none，无用户输入，无透明色
	fw.tmp[0] = sExtension
	fw.tmp[1] = eGraphicControl
	fw.tmp[2] = 0x04
	fw.tmp[3] = 0x00
	binary.LittleEndian.PutUint16(fw.tmp[4:6], uint16(fw.delay))
	fw.tmp[6] = 0x00
	fw.tmp[7] = 0x00
	fw.write(fw.tmp[:8])

	fw.tmp[0] = sImageDescriptor
	binary.LittleEndian.PutUint16(fw.tmp[1:3], 0)
	binary.LittleEndian.PutUint16(fw.tmp[3:5], 0)
	binary.LittleEndian.PutUint16(fw.tmp[5:7], uint16(fw.width))
	binary.LittleEndian.PutUint16(fw.tmp[7:9], uint16(fw.height))
	fw.tmp[9] = 0x00 // 无局部颜色表，非交错
	fw.tmp[10] = litWidth
	fw.write(fw.tmp[:11])
	if fw.err != nil {
		return
	}

	lw := lzw.NewWriter(fw.bw, lzw.LSB, litWidth)
	if _, err := lw.Write(fw.paletted.Pix); err != nil {
		lw.Close()
		fw.err = err
		return
	}
	if err := lw.Close(); err != nil {
		fw.err = err
		return
	}
	if err := fw.bw.flush(); err != nil {
		fw.err = err
		return
	}
	fw.write([]byte{0x00})
}

func (fw *frameWriter) close() error {
	fw.write([]byte{sTrailer})
	return fw.err
}

// release 释放工作缓冲
func (fw *frameWriter) release() {
	fw.paletted = nil
	fw.scaled = nil
	fw.bw = nil
}

// blockWriter 将字节流切分为 GIF 数据子块（每块最多 255 字节，带长度前缀）
type blockWriter struct {
	w   io.Writer
	buf [256]byte
	n   int
}

func (b *blockWriter) Write(p []byte) (int, error) {
	total := len(p)
	for len(p) > 0 {
		k := copy(b.buf[1+b.n:], p)
		b.n += k
		p = p[k:]
		if b.n == 255 {
			if err := b.flush(); err != nil {
				return total - len(p), err
			}
		}
	}
	return total, nil
}

func (b *blockWriter) flush() error {
	if b.n == 0 {
		return nil
	}
	b.buf[0] = byte(b.n)
	_, err := b.w.Write(b.buf[:1+b.n])
	b.n = 0
	return err
}
