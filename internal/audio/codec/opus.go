package codec

import (
	"encoding/binary"

	"github.com/pion/opus"
)

// OpusFrameDecoder decodes single Opus packets into 16kHz mono float32
// sample frames ready for the pipeline. Opus decodes internally at 48kHz;
// the decoder downsamples 3:1 and folds stereo to mono.
type OpusFrameDecoder struct {
	decoder  *opus.Decoder
	pcmBuf48 []byte    // 48kHz decoded S16LE samples
	out16    []float32 // 16kHz mono output
}

// NewOpusFrameDecoder creates a decoder for 20ms Opus packets.
func NewOpusFrameDecoder() *OpusFrameDecoder {
	return &OpusFrameDecoder{
		decoder: &opus.Decoder{},
		// 20ms at 48kHz stereo = 1920 samples, 2 bytes each.
		pcmBuf48: make([]byte, 960*2*2),
		// 20ms at 16kHz mono.
		out16: make([]float32, 320),
	}
}

// Decode decodes one Opus packet and returns the 16kHz mono samples. The
// returned slice is reused by the next call; copy it if it must outlive
// the call.
func (d *OpusFrameDecoder) Decode(opusPacket []byte) ([]float32, error) {
	_, isStereo, err := d.decoder.Decode(opusPacket, d.pcmBuf48)
	if err != nil {
		return nil, err
	}

	channels := 1
	if isStereo {
		channels = 2
	}
	samplesPerChannel := 960 // 20ms at 48kHz
	outSamples := samplesPerChannel / 3

	if len(d.out16) < outSamples {
		d.out16 = make([]float32, outSamples)
	}

	for i := 0; i < outSamples; i++ {
		srcIdx := i * 3 * channels * 2
		if srcIdx+1 >= len(d.pcmBuf48) {
			outSamples = i
			break
		}
		sample := int16(binary.LittleEndian.Uint16(d.pcmBuf48[srcIdx:]))
		if isStereo && srcIdx+3 < len(d.pcmBuf48) {
			right := int16(binary.LittleEndian.Uint16(d.pcmBuf48[srcIdx+2:]))
			sample = int16((int32(sample) + int32(right)) / 2)
		}
		d.out16[i] = float32(sample) / 32768.0
	}

	return d.out16[:outSamples], nil
}

// PCM16ToFloat32 converts little-endian 16-bit PCM bytes to float32 samples.
func PCM16ToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		out[i] = float32(s) / 32768.0
	}
	return out
}
