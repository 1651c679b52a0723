package audiocapture

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// Init initializes the PortAudio runtime. Must be called once per process
// before Open or ListDevices; pair with Terminate on shutdown.
func Init() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initialize portaudio: %w", err)
	}
	return nil
}

// Terminate releases the PortAudio runtime.
func Terminate() {
	_ = portaudio.Terminate()
}

// ListDevices returns all input-capable devices. Indexes stay valid for Open
// as long as the runtime remains initialized.
func ListDevices() ([]Device, error) {
	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerate devices: %w", err)
	}
	def, _ := portaudio.DefaultInputDevice()

	var devices []Device
	for i, info := range infos {
		if info.MaxInputChannels < 1 {
			continue
		}
		devices = append(devices, Device{
			Index:    i,
			Name:     info.Name,
			Channels: info.MaxInputChannels,
			Default:  def != nil && info == def,
		})
	}
	return devices, nil
}

// paStream reads fixed-size int16 frames from a PortAudio input stream.
// Not safe for concurrent use; the capture loop is its only reader and closer.
type paStream struct {
	stream *portaudio.Stream
	in     []int16
	rate   int
	closed bool
}

func openStream(deviceIndex int, cfg Config) (*paStream, error) {
	dev, err := resolveDevice(deviceIndex)
	if err != nil {
		return nil, err
	}

	s := &paStream{
		in:   make([]int16, cfg.FrameSize),
		rate: cfg.SampleRate,
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: 1,
			Latency:  dev.DefaultHighInputLatency,
		},
		SampleRate:      float64(cfg.SampleRate),
		FramesPerBuffer: cfg.FrameSize,
	}

	stream, err := portaudio.OpenStream(params, s.in)
	if err != nil {
		return nil, fmt.Errorf("%w: open stream on %q: %v", ErrDeviceUnavailable, dev.Name, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("%w: start stream on %q: %v", ErrDeviceUnavailable, dev.Name, err)
	}
	s.stream = stream
	return s, nil
}

func resolveDevice(index int) (*portaudio.DeviceInfo, error) {
	if index == DefaultDevice {
		dev, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("%w: no default input: %v", ErrDeviceUnavailable, err)
		}
		return dev, nil
	}

	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerate devices: %w", err)
	}
	if index < 0 || index >= len(infos) {
		return nil, fmt.Errorf("%w: no device at index %d", ErrDeviceUnavailable, index)
	}
	dev := infos[index]
	if dev.MaxInputChannels < 1 {
		return nil, fmt.Errorf("%w: device %q has no input channels", ErrDeviceUnavailable, dev.Name)
	}
	return dev, nil
}

// ReadFrame blocks until a full frame has been captured. An overflowed read
// returns ErrOverflow and drops its frame; capture continues on the next call.
func (s *paStream) ReadFrame() (Frame, error) {
	if s.closed {
		return Frame{}, ErrClosed
	}
	if err := s.stream.Read(); err != nil {
		if err == portaudio.InputOverflowed {
			return Frame{}, ErrOverflow
		}
		return Frame{}, fmt.Errorf("read frame: %w", err)
	}
	samples := make([]int16, len(s.in))
	copy(samples, s.in)
	return Frame{Samples: samples, SampleRate: s.rate}, nil
}

func (s *paStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.stream.Stop(); err != nil {
		s.stream.Close()
		return fmt.Errorf("stop stream: %w", err)
	}
	if err := s.stream.Close(); err != nil {
		return fmt.Errorf("close stream: %w", err)
	}
	return nil
}
