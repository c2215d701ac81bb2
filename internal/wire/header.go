package wire

import "encoding/binary"

// streamingSize marks RIFF/data sizes as unknown for a length-open stream.
const streamingSize = 0xFFFFFFFF

// HeaderSize is the byte length of the streaming WAV header.
const HeaderSize = 44

// StreamHeader builds the one-time WAV/RIFF header that precedes streamed PCM.
//
// Total length is unknown while streaming, so both the RIFF size and the data
// chunk size are pinned to 0xFFFFFFFF.
func StreamHeader(sampleRate int, channels int, sampleWidth int) []byte {
	byteRate := sampleRate * channels * sampleWidth
	blockAlign := channels * sampleWidth

	header := make([]byte, HeaderSize)
	copy(header[0:4], []byte("RIFF"))
	binary.LittleEndian.PutUint32(header[4:8], streamingSize)
	copy(header[8:12], []byte("WAVE"))
	copy(header[12:16], []byte("fmt "))
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], uint16(sampleWidth*8))
	copy(header[36:40], []byte("data"))
	binary.LittleEndian.PutUint32(header[40:44], streamingSize)

	return header
}
