// Package modelasset fetches the face landmark model bundle on first
// start so the detection engine has weights to load.
package modelasset

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/motionlab/facerelay/internal/monitoring"
)

// DefaultModelURL is the published MediaPipe FaceLandmarker bundle.
const DefaultModelURL = "https://storage.googleapis.com/mediapipe-models/face_landmarker/face_landmarker/float16/latest/face_landmarker.task"

// Ensure makes sure the model file exists at path, downloading it from
// url when absent. The download goes through a temp file and a rename
// so a partial fetch never leaves a truncated model behind.
func Ensure(path, url string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat model file: %w", err)
	}

	monitoring.Logf("[ModelAsset] downloading model to %s", path)

	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("download model: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download model: unexpected status %s", resp.Status)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create model directory: %w", err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".download-*")
	if err != nil {
		return fmt.Errorf("create temp model file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, resp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("write model file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("install model file: %w", err)
	}

	monitoring.Logf("[ModelAsset] model ready (%d bytes)", n)
	return nil
}
