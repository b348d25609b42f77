// Package imgcodec is the image decode boundary. Frames arrive as
// compressed bytes (JPEG in practice); Decode tries the OpenCV codec
// first and falls back to the standard library decoders. Failures never
// escape this boundary — an undecodable buffer simply yields no frame.
package imgcodec

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"gocv.io/x/gocv"

	"github.com/motionlab/facerelay/internal/monitoring"
)

// Frame is one decoded camera frame. Encoded retains the original
// compressed bytes so transports can forward the frame without
// re-encoding it.
type Frame struct {
	Raster  image.Image
	Encoded []byte
}

// Bounds returns the pixel dimensions of the decoded raster.
func (f Frame) Bounds() image.Rectangle {
	if f.Raster == nil {
		return image.Rectangle{}
	}
	return f.Raster.Bounds()
}

// Decode turns a compressed image buffer into a Frame. The primary path
// is the OpenCV decoder; when it fails the standard library codecs get a
// try. Both failing reports ok=false, never an error.
func Decode(buf []byte) (Frame, bool) {
	if len(buf) == 0 {
		return Frame{}, false
	}

	if img, ok := decodeOpenCV(buf); ok {
		return Frame{Raster: img, Encoded: buf}, true
	}

	img, _, err := image.Decode(bytes.NewReader(buf))
	if err != nil {
		monitoring.Logf("[Codec] frame undecodable by both codecs: %v", err)
		return Frame{}, false
	}
	return Frame{Raster: img, Encoded: buf}, true
}

// EncodeJPEG returns compressed bytes for a frame. The original encoded
// buffer is reused when present; otherwise the raster is re-encoded.
func EncodeJPEG(f Frame) ([]byte, error) {
	if len(f.Encoded) > 0 {
		return f.Encoded, nil
	}
	if f.Raster == nil {
		return nil, fmt.Errorf("frame has no raster to encode")
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, f.Raster, nil); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeOpenCV(buf []byte) (image.Image, bool) {
	mat, err := gocv.IMDecode(buf, gocv.IMReadColor)
	if err != nil {
		return nil, false
	}
	defer mat.Close()
	if mat.Empty() {
		return nil, false
	}
	img, err := mat.ToImage()
	if err != nil {
		return nil, false
	}
	return img, true
}
