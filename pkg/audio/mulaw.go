package audio

// G.711 mu-law encoding. The media stream speaks 8kHz mono mu-law; synthesis
// providers that only emit linear PCM get transcoded through here.

const (
	muLawBias = 0x84
	muLawClip = 32635
)

// EncodeMuLawSample compresses one 16-bit linear PCM sample to G.711 mu-law.
func EncodeMuLawSample(sample int16) byte {
	s := int32(sample)
	sign := byte(0)
	if s < 0 {
		s = -s
		sign = 0x80
	}
	if s > muLawClip {
		s = muLawClip
	}
	s += muLawBias

	exponent := byte(7)
	for mask := int32(0x4000); s&mask == 0 && exponent > 0; mask >>= 1 {
		exponent--
	}
	mantissa := byte((s >> (exponent + 3)) & 0x0F)
	return ^(sign | exponent<<4 | mantissa)
}

// PCM16ToMuLaw converts little-endian 16-bit mono PCM to mu-law, decimating
// by the given factor (e.g. 3 for 24kHz input, 1 for 8kHz input). A trailing
// odd byte is dropped.
func PCM16ToMuLaw(pcm []byte, decimate int) []byte {
	if decimate < 1 {
		decimate = 1
	}
	samples := len(pcm) / 2
	out := make([]byte, 0, samples/decimate+1)
	for i := 0; i < samples; i += decimate {
		sample := int16(uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8)
		out = append(out, EncodeMuLawSample(sample))
	}
	return out
}
