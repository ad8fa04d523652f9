package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

// DecodeSample reads a single sample of format f from the beginning of p
// and returns it scaled to [-1, 1].
func DecodeSample(f PCMFormat, p []byte) float64 {
	switch f {
	case PCMFormatU8:
		return (float64(p[0]) - 128) / 128
	case PCMFormatS16LE:
		return float64(int16(binary.LittleEndian.Uint16(p))) / 32768
	case PCMFormatS16BE:
		return float64(int16(binary.BigEndian.Uint16(p))) / 32768
	case PCMFormatS24LE:
		val := int32(uint32(p[0]) | uint32(p[1])<<8 | uint32(p[2])<<16)
		if val&0x800000 != 0 {
			val |= -16777216
		}
		return float64(val) / 8388608
	case PCMFormatS24BE:
		val := int32(uint32(p[2]) | uint32(p[1])<<8 | uint32(p[0])<<16)
		if val&0x800000 != 0 {
			val |= -16777216
		}
		return float64(val) / 8388608
	case PCMFormatS32LE:
		return float64(int32(binary.LittleEndian.Uint32(p))) / 2147483648
	case PCMFormatS32BE:
		return float64(int32(binary.BigEndian.Uint32(p))) / 2147483648
	case PCMFormatS64LE:
		return float64(int64(binary.LittleEndian.Uint64(p))) / 9223372036854775808
	case PCMFormatS64BE:
		return float64(int64(binary.BigEndian.Uint64(p))) / 9223372036854775808
	case PCMFormatFloat32LE:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(p)))
	case PCMFormatFloat32BE:
		return float64(math.Float32frombits(binary.BigEndian.Uint32(p)))
	case PCMFormatFloat64LE:
		return math.Float64frombits(binary.LittleEndian.Uint64(p))
	case PCMFormatFloat64BE:
		return math.Float64frombits(binary.BigEndian.Uint64(p))
	default:
		panic(fmt.Sprintf("unknown format: %v", f))
	}
}

// EncodeSample writes v (expected within [-1, 1]) as a single sample of format f
// into the beginning of p. Integer formats are clipped.
func EncodeSample(f PCMFormat, p []byte, v float64) {
	switch f {
	case PCMFormatU8:
		p[0] = byte(clip(math.Round(v*128+128), 0, 255))
	case PCMFormatS16LE:
		binary.LittleEndian.PutUint16(p, uint16(int16(clip(math.Round(v*32768), -32768, 32767))))
	case PCMFormatS16BE:
		binary.BigEndian.PutUint16(p, uint16(int16(clip(math.Round(v*32768), -32768, 32767))))
	case PCMFormatS24LE:
		val := int32(clip(math.Round(v*8388608), -8388608, 8388607))
		p[0] = byte(val)
		p[1] = byte(val >> 8)
		p[2] = byte(val >> 16)
	case PCMFormatS24BE:
		val := int32(clip(math.Round(v*8388608), -8388608, 8388607))
		p[0] = byte(val >> 16)
		p[1] = byte(val >> 8)
		p[2] = byte(val)
	case PCMFormatS32LE:
		binary.LittleEndian.PutUint32(p, uint32(int32(clip(math.Round(v*2147483648), -2147483648, 2147483647))))
	case PCMFormatS32BE:
		binary.BigEndian.PutUint32(p, uint32(int32(clip(math.Round(v*2147483648), -2147483648, 2147483647))))
	case PCMFormatS64LE:
		binary.LittleEndian.PutUint64(p, uint64(int64(math.Round(clip(v, -1, 1)*9223372036854775807))))
	case PCMFormatS64BE:
		binary.BigEndian.PutUint64(p, uint64(int64(math.Round(clip(v, -1, 1)*9223372036854775807))))
	case PCMFormatFloat32LE:
		binary.LittleEndian.PutUint32(p, math.Float32bits(float32(v)))
	case PCMFormatFloat32BE:
		binary.BigEndian.PutUint32(p, math.Float32bits(float32(v)))
	case PCMFormatFloat64LE:
		binary.LittleEndian.PutUint64(p, math.Float64bits(v))
	case PCMFormatFloat64BE:
		binary.BigEndian.PutUint64(p, math.Float64bits(v))
	default:
		panic(fmt.Sprintf("unknown format: %v", f))
	}
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ToMono decodes interleaved PCM data and averages all channels of each frame.
// A trailing incomplete frame is an error.
func ToMono(
	format PCMFormat,
	channels Channel,
	data []byte,
) ([]float64, error) {
	sampleSize := int(format.Size())
	if sampleSize == 0 {
		return nil, fmt.Errorf("unsupported PCM format: %v", format)
	}
	if channels == 0 {
		return nil, fmt.Errorf("channels must be greater than 0")
	}
	frameSize := sampleSize * int(channels)
	if len(data)%frameSize != 0 {
		return nil, fmt.Errorf("data length %d is not a multiple of the frame size %d", len(data), frameSize)
	}

	numFrames := len(data) / frameSize
	out := make([]float64, numFrames)
	for frameIdx := 0; frameIdx < numFrames; frameIdx++ {
		frame := data[frameIdx*frameSize:]
		var sum float64
		for channelIdx := 0; channelIdx < int(channels); channelIdx++ {
			sum += DecodeSample(format, frame[channelIdx*sampleSize:])
		}
		out[frameIdx] = sum / float64(channels)
	}
	return out, nil
}

// MixDown averages the interleaved float frames into a single channel.
func MixDown(interleaved []float64, channels Channel) []float64 {
	if channels <= 1 {
		out := make([]float64, len(interleaved))
		copy(out, interleaved)
		return out
	}
	numFrames := len(interleaved) / int(channels)
	out := make([]float64, numFrames)
	for frameIdx := range out {
		var sum float64
		frame := interleaved[frameIdx*int(channels) : (frameIdx+1)*int(channels)]
		for _, v := range frame {
			sum += v
		}
		out[frameIdx] = sum / float64(channels)
	}
	return out
}
