package exr

import (
	"github.com/fursund/exrs/compression"
)

// codecFor returns the codec for compression tag c.
func codecFor(c Compression) (compression.Codec, error) {
	switch c {
	case CompressionNone:
		return compression.None{}, nil
	case CompressionRLE:
		return compression.RLE{}, nil
	case CompressionZIPS, CompressionZIP:
		return compression.ZIP{}, nil
	case CompressionPIZ:
		return compression.PIZ{}, nil
	case CompressionPXR24:
		return compression.PXR24{}, nil
	case CompressionB44:
		return compression.B44{}, nil
	case CompressionB44A:
		return compression.B44{Flat: true}, nil
	case CompressionHTJ2K256:
		return compression.HTJ2K{BlockSize: 128}, nil
	case CompressionHTJ2K32:
		return compression.HTJ2K{BlockSize: 32}, nil
	case CompressionZSTD:
		return compression.Zstd{}, nil
	}
	return nil, unsupportedf("%s compression", c)
}
