package laz

import (
	"encoding/binary"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Magic starts every container.
const Magic = "LZPC"

// Version is the container version written by this package.
const Version = 1

// footerSize is the size of the trailing chunk table offset.
const footerSize = 8

// Header describes a container.
type Header struct {
	Version    uint64
	Format     PointFormat
	ChunkSize  int
	PointCount uint64
	// LASHeader optionally holds the LAS header and variable length
	// records preceding the point data of the source file.
	LASHeader []byte
}

// Header fields.
const (
	headerVersion    protowire.Number = 1
	headerFormat     protowire.Number = 2
	headerChunkSize  protowire.Number = 3
	headerPointCount protowire.Number = 4
	headerLASHeader  protowire.Number = 5
)

// Chunk table fields.
const (
	tableChunk      protowire.Number = 1
	chunkPointCount protowire.Number = 1
	chunkByteLength protowire.Number = 2
)

// Chunk describes one compressed chunk.
type Chunk struct {
	Offset int64
	Points int
	Length int64
}

func appendHeader(b []byte, h *Header) []byte {
	b = protowire.AppendTag(b, headerVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, h.Version)
	b = protowire.AppendTag(b, headerFormat, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(h.Format))
	b = protowire.AppendTag(b, headerChunkSize, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(h.ChunkSize))
	b = protowire.AppendTag(b, headerPointCount, protowire.VarintType)
	b = protowire.AppendVarint(b, h.PointCount)
	if len(h.LASHeader) > 0 {
		b = protowire.AppendTag(b, headerLASHeader, protowire.BytesType)
		b = protowire.AppendBytes(b, h.LASHeader)
	}
	return b
}

func parseHeader(b []byte) (*Header, error) {
	h := &Header{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: header: %v", ErrFormat, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case typ == protowire.VarintType && num <= headerPointCount:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: header field %d: %v", ErrFormat, num, protowire.ParseError(n))
			}
			b = b[n:]
			switch num {
			case headerVersion:
				h.Version = v
			case headerFormat:
				if v > 0xFF {
					return nil, fmt.Errorf("%w: point format %d", ErrFormat, v)
				}
				h.Format = PointFormat(v)
			case headerChunkSize:
				if v == 0 || v > MaxChunkSize {
					return nil, fmt.Errorf("%w: chunk size %d", ErrFormat, v)
				}
				h.ChunkSize = int(v)
			case headerPointCount:
				h.PointCount = v
			}
		case typ == protowire.BytesType && num == headerLASHeader:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: header field %d: %v", ErrFormat, num, protowire.ParseError(n))
			}
			b = b[n:]
			h.LASHeader = append([]byte(nil), v...)
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("%w: header field %d: %v", ErrFormat, num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}

	if h.Version != Version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrFormat, h.Version)
	}
	if !h.Format.Valid() {
		return nil, fmt.Errorf("%w: unsupported point format %d", ErrFormat, h.Format)
	}
	if h.ChunkSize == 0 {
		return nil, fmt.Errorf("%w: missing chunk size", ErrFormat)
	}
	return h, nil
}

func appendChunkTable(b []byte, chunks []Chunk) []byte {
	var entry []byte
	for _, c := range chunks {
		entry = entry[:0]
		entry = protowire.AppendTag(entry, chunkPointCount, protowire.VarintType)
		entry = protowire.AppendVarint(entry, uint64(c.Points))
		entry = protowire.AppendTag(entry, chunkByteLength, protowire.VarintType)
		entry = protowire.AppendVarint(entry, uint64(c.Length))

		b = protowire.AppendTag(b, tableChunk, protowire.BytesType)
		b = protowire.AppendBytes(b, entry)
	}
	return b
}

func parseChunkTable(b []byte) ([]Chunk, error) {
	var chunks []Chunk
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: chunk table: %v", ErrFormat, protowire.ParseError(n))
		}
		b = b[n:]

		if num != tableChunk || typ != protowire.BytesType {
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("%w: chunk table: %v", ErrFormat, protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}

		entry, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: chunk %d: %v", ErrFormat, len(chunks), protowire.ParseError(n))
		}
		b = b[n:]

		c, err := parseChunk(entry)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", len(chunks), err)
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}

func parseChunk(b []byte) (Chunk, error) {
	var c Chunk
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return c, fmt.Errorf("%w: %v", ErrFormat, protowire.ParseError(n))
		}
		b = b[n:]

		if typ != protowire.VarintType {
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return c, fmt.Errorf("%w: %v", ErrFormat, protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}

		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return c, fmt.Errorf("%w: %v", ErrFormat, protowire.ParseError(n))
		}
		b = b[n:]
		if v > 1<<62 {
			return c, fmt.Errorf("%w: field %d out of range", ErrFormat, num)
		}
		switch num {
		case chunkPointCount:
			c.Points = int(v)
		case chunkByteLength:
			c.Length = int64(v)
		}
	}
	return c, nil
}

// appendMessage appends a length prefixed message.
func appendMessage(b, msg []byte) []byte {
	b = binary.AppendUvarint(b, uint64(len(msg)))
	return append(b, msg...)
}

func appendFooter(b []byte, tableOffset int64) []byte {
	return binary.LittleEndian.AppendUint64(b, uint64(tableOffset))
}
