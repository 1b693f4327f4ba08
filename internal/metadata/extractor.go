package metadata

import (
	"bytes"
	"crypto/md5"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/dhowden/tag"
	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
	"github.com/sirupsen/logrus"
	"github.com/tcolgate/mp3"
)

// ErrUnsupportedFormat is returned when media matches no known container
var ErrUnsupportedFormat = errors.New("unsupported media format")

// Info describes a probed media payload
type Info struct {
	Format      string        `json:"format"` // extension form, e.g. ".mp3"
	ContentType string        `json:"contentType"`
	Duration    time.Duration `json:"duration"`
	Title       string        `json:"title,omitempty"`
	Artist      string        `json:"artist,omitempty"`
	CoverID     string        `json:"coverId,omitempty"`
	Size        int64         `json:"size"`
}

// Prober identifies audio payloads and measures their duration
type Prober struct {
	supportedFormats []string
	logger           *logrus.Logger
}

// NewProber creates a prober accepting the given extensions
func NewProber(supportedFormats []string, logger *logrus.Logger) *Prober {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return &Prober{
		supportedFormats: supportedFormats,
		logger:           logger,
	}
}

// Probe inspects data. name (a filename or URL) is only used as a format
// hint when the content has no recognisable signature.
func (p *Prober) Probe(data []byte, name string) (Info, error) {
	startTime := time.Now()

	format := DetectFormat(data)
	if format == "" {
		format = strings.ToLower(filepath.Ext(stripQuery(name)))
	}
	if !p.isSupported(format) {
		return Info{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	info := Info{
		Format:      format,
		ContentType: GetContentType(format),
		Size:        int64(len(data)),
	}

	duration, err := p.calculateDuration(data, format)
	if err != nil {
		p.logger.WithFields(logrus.Fields{
			"name":   name,
			"format": format,
			"error":  err.Error(),
		}).Warn("Failed to calculate duration, setting to 0")
		duration = 0
	}
	info.Duration = duration

	if md, err := tag.ReadFrom(bytes.NewReader(data)); err == nil {
		info.Title = md.Title()
		info.Artist = md.Artist()
		if pic := md.Picture(); pic != nil && len(pic.Data) > 0 {
			info.CoverID = fmt.Sprintf("%x", md5.Sum(pic.Data))
		}
	}

	p.logger.WithFields(logrus.Fields{
		"name":           name,
		"format":         format,
		"duration":       duration,
		"processingTime": time.Since(startTime),
	}).Debug("Probed media")

	return info, nil
}

func (p *Prober) isSupported(format string) bool {
	for _, f := range p.supportedFormats {
		if f == format {
			return true
		}
	}
	return false
}

// DetectFormat sniffs a container signature, returning "" when unknown
func DetectFormat(data []byte) string {
	switch {
	case len(data) >= 4 && string(data[:4]) == "fLaC":
		return ".flac"
	case len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return ".wav"
	case len(data) >= 4 && string(data[:4]) == "OggS":
		return ".ogg"
	case len(data) >= 8 && string(data[4:8]) == "ftyp":
		return ".m4a"
	case len(data) >= 3 && string(data[:3]) == "ID3":
		return ".mp3"
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return ".mp3"
	default:
		return ""
	}
}

// calculateDuration dispatches on the detected format
func (p *Prober) calculateDuration(data []byte, format string) (time.Duration, error) {
	switch format {
	case ".mp3":
		return durationMP3(data)
	case ".flac":
		return durationFLAC(data)
	case ".wav":
		return durationWAV(data)
	case ".m4a":
		return durationM4A(data)
	default:
		return 0, fmt.Errorf("no duration support for %s", format)
	}
}

// MP3 duration using frame decoding; fallback to average bitrate estimation only if frames fail entirely.
func durationMP3(data []byte) (time.Duration, error) {
	dec := mp3.NewDecoder(bytes.NewReader(data))
	var total time.Duration
	var skipped int
	frames := 0
	for {
		var fr mp3.Frame
		if err := dec.Decode(&fr, &skipped); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if frames == 0 {
				return estimateFromSize(int64(len(data)), 192000)
			}
			break // partial decode; use what we have
		}
		total += fr.Duration()
		frames++
	}
	return total, nil
}

// FLAC duration via STREAMINFO metadata block
func durationFLAC(data []byte) (time.Duration, error) {
	stream, err := flac.New(bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	defer stream.Close()
	si := stream.Info
	if si.NSamples > 0 && si.SampleRate > 0 {
		secs := float64(si.NSamples) / float64(si.SampleRate)
		return time.Duration(secs * float64(time.Second)), nil
	}
	return 0, fmt.Errorf("flac stream missing sample info")
}

// WAV duration from the header and payload size
func durationWAV(data []byte) (time.Duration, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return 0, fmt.Errorf("invalid wav file")
	}
	if dec.SampleRate == 0 || dec.BitDepth == 0 || dec.NumChans == 0 {
		return 0, fmt.Errorf("invalid wav header")
	}
	pcmBytes := int64(len(data)) - 44
	if pcmBytes < 0 {
		pcmBytes = 0
	}
	bytesPerSampleFrame := int64(dec.BitDepth/8) * int64(dec.NumChans)
	if bytesPerSampleFrame <= 0 {
		return 0, fmt.Errorf("invalid sample frame size")
	}
	sampleFrames := pcmBytes / bytesPerSampleFrame
	secs := float64(sampleFrames) / float64(dec.SampleRate)
	return time.Duration(secs * float64(time.Second)), nil
}

// M4A duration from the 'mvhd' timescale and duration. Best-effort atom scan.
func durationM4A(data []byte) (time.Duration, error) {
	r := bytes.NewReader(data)
	for {
		head := make([]byte, 8)
		if _, err := io.ReadFull(r, head); err != nil {
			return 0, err
		}
		size := binary.BigEndian.Uint32(head[0:4])
		atom := string(head[4:8])
		if size < 8 {
			return 0, fmt.Errorf("invalid atom size")
		}
		if atom != "moov" {
			if _, err := r.Seek(int64(size)-8, io.SeekCurrent); err != nil {
				return 0, err
			}
			continue
		}

		limit := int64(size) - 8
		for read := int64(0); read < limit; {
			subHead := make([]byte, 8)
			if _, err := io.ReadFull(r, subHead); err != nil {
				return 0, err
			}
			subSize := binary.BigEndian.Uint32(subHead[0:4])
			if string(subHead[4:8]) == "mvhd" {
				version, err := r.ReadByte()
				if err != nil {
					return 0, err
				}
				skip := int64(3 + 4 + 4) // flags + 32-bit times
				if version == 1 {
					skip = 3 + 8 + 8
				}
				if _, err := r.Seek(skip, io.SeekCurrent); err != nil {
					return 0, err
				}
				var timescale, units uint32
				if err := binary.Read(r, binary.BigEndian, &timescale); err != nil {
					return 0, err
				}
				if err := binary.Read(r, binary.BigEndian, &units); err != nil {
					return 0, err
				}
				if timescale == 0 {
					return 0, fmt.Errorf("invalid timescale")
				}
				secs := float64(units) / float64(timescale)
				return time.Duration(secs * float64(time.Second)), nil
			}
			if subSize < 8 {
				return 0, fmt.Errorf("invalid sub-atom size")
			}
			if _, err := r.Seek(int64(subSize)-8, io.SeekCurrent); err != nil {
				return 0, err
			}
			read += int64(subSize)
		}
		return 0, fmt.Errorf("mvhd atom not found")
	}
}

// estimateFromSize provides last-resort estimation if parsing fails
func estimateFromSize(size int64, bitrate int) (time.Duration, error) {
	if bitrate <= 0 {
		return 0, fmt.Errorf("invalid bitrate")
	}
	secs := float64(size*8) / float64(bitrate)
	return time.Duration(secs * float64(time.Second)), nil
}

// IsAudioFile checks if a filename has a supported extension
func (p *Prober) IsAudioFile(filePath string) bool {
	return p.isSupported(strings.ToLower(filepath.Ext(filePath)))
}

// GetContentType returns the MIME type for an extension or filename
func GetContentType(name string) string {
	switch strings.ToLower(filepath.Ext(stripQuery(name))) {
	case ".mp3":
		return "audio/mpeg"
	case ".flac":
		return "audio/flac"
	case ".wav":
		return "audio/wav"
	case ".m4a":
		return "audio/mp4"
	case ".ogg":
		return "audio/ogg"
	default:
		return "application/octet-stream"
	}
}

func stripQuery(name string) string {
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		return name[:i]
	}
	return name
}
