package stt

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteWAVFile writes mono 16-bit PCM samples to path.
func WriteWAVFile(path string, samples []int16, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav file: %w", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: 1,
			SampleRate:  sampleRate,
		},
		Data:           make([]int, len(samples)),
		SourceBitDepth: 16,
	}
	for i := range samples {
		buf.Data[i] = int(samples[i])
	}
	if err := enc.Write(buf); err != nil {
		enc.Close()
		return fmt.Errorf("write wav data: %w", err)
	}
	return enc.Close()
}

// writeFloatWAV writes normalized [-1, 1] samples to path as 16-bit PCM.
func writeFloatWAV(path string, samples []float32, sampleRate int) error {
	pcm := make([]int16, len(samples))
	for i, s := range samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		pcm[i] = int16(s * 32767)
	}
	return WriteWAVFile(path, pcm, sampleRate)
}

// tempWAVPath returns a unique path for a scratch recording.
func tempWAVPath() string {
	return filepath.Join(os.TempDir(), fmt.Sprintf("hark_audio_%d.wav", time.Now().UnixNano()))
}
