package chunks

import (
	"encoding/binary"
	"fmt"
	"math"
)

// FormatVersion is the current chunk wire-format version byte.
const FormatVersion = 1

const headerSize = 1 + 2 + 8 + 8 // version, resolution, min, max

// SerializedSize returns the byte length of a chunk at resolution R.
func SerializedSize(resolution int) int {
	grid := resolution + 1
	return headerSize + 4*grid*grid
}

// Serialize encodes a chunk into the versioned little-endian wire
// format. The encoding is deterministic: the same chunk always yields
// byte-identical output.
func Serialize(c *TerrainChunk) ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	buf := make([]byte, SerializedSize(c.Resolution))
	buf[0] = FormatVersion
	binary.LittleEndian.PutUint16(buf[1:], uint16(c.Resolution))
	binary.LittleEndian.PutUint64(buf[3:], math.Float64bits(c.MinElevation))
	binary.LittleEndian.PutUint64(buf[11:], math.Float64bits(c.MaxElevation))
	for i, h := range c.Heights {
		binary.LittleEndian.PutUint32(buf[headerSize+4*i:], math.Float32bits(h))
	}
	return buf, nil
}

// Deserialize decodes chunk bytes. The chunk coordinates are not part
// of the wire format; callers supply them from the request context.
func Deserialize(data []byte, chunkX, chunkZ int) (*TerrainChunk, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the header", ErrSizeMismatch, len(data))
	}
	if data[0] != FormatVersion {
		return nil, fmt.Errorf("%w: version %d", ErrUnsupportedVersion, data[0])
	}

	resolution := int(binary.LittleEndian.Uint16(data[1:]))
	if want := SerializedSize(resolution); len(data) != want {
		return nil, fmt.Errorf("%w: %d bytes for resolution %d (want %d)", ErrSizeMismatch, len(data), resolution, want)
	}

	grid := resolution + 1
	c := &TerrainChunk{
		ChunkX:       chunkX,
		ChunkZ:       chunkZ,
		Resolution:   resolution,
		Heights:      make([]float32, grid*grid),
		MinElevation: math.Float64frombits(binary.LittleEndian.Uint64(data[3:])),
		MaxElevation: math.Float64frombits(binary.LittleEndian.Uint64(data[11:])),
	}
	for i := range c.Heights {
		c.Heights[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[headerSize+4*i:]))
	}
	return c, nil
}
