// Package exrutil provides file level helpers built on the exr package:
// summaries, validation, comparison and re-encoding.
//
// Example usage:
//
//	info, _ := exrutil.GetFileInfo("render.exr")
//	fmt.Printf("Size: %dx%d, Channels: %v\n", info.Width, info.Height, info.Channels)
//
//	img, _ := exr.Read().FromFile("render.exr")
//	depth, _ := exrutil.ExtractChannel(img.Layers[0], "Z")
package exrutil

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/fursund/exrs/exr"
)

// ===========================================
// File Information
// ===========================================

// PartInfo summarizes one part of a file.
type PartInfo struct {
	Name        string
	Width       int
	Height      int
	Compression exr.Compression
	IsTiled     bool
	TileWidth   int
	TileHeight  int
	Levels      int
	IsDeep      bool
	Channels    []string
}

// FileInfo provides a summary of an EXR file. The top level fields
// describe the first part.
type FileInfo struct {
	Path        string
	Width       int
	Height      int
	Compression exr.Compression
	IsTiled     bool
	TileWidth   int
	TileHeight  int
	IsDeep      bool
	IsMultiPart bool
	NumParts    int
	Channels    []string
	FileSize    int64
	Parts       []PartInfo
}

// GetFileInfo reads the headers of the file at path and summarizes them.
// No pixel data is decoded.
func GetFileInfo(path string) (*FileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	headers, err := exr.ReadHeaders(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("exrutil: %s: %w", path, err)
	}

	info := &FileInfo{
		Path:        path,
		IsMultiPart: len(headers) > 1,
		NumParts:    len(headers),
		FileSize:    stat.Size(),
	}
	for _, h := range headers {
		info.Parts = append(info.Parts, partInfo(h))
	}

	first := info.Parts[0]
	info.Width, info.Height = first.Width, first.Height
	info.Compression = first.Compression
	info.IsTiled = first.IsTiled
	info.TileWidth, info.TileHeight = first.TileWidth, first.TileHeight
	info.IsDeep = first.IsDeep
	info.Channels = first.Channels
	return info, nil
}

func partInfo(h *exr.Header) PartInfo {
	p := PartInfo{
		Name:        h.Name,
		Width:       h.DataWindow.Width(),
		Height:      h.DataWindow.Height(),
		Compression: h.Compression,
		IsTiled:     h.Tiled(),
		IsDeep:      h.Deep,
		Levels:      1,
	}
	for _, c := range h.Channels {
		p.Channels = append(p.Channels, c.Name)
	}
	if h.Tiles != nil {
		p.TileWidth = int(h.Tiles.XSize)
		p.TileHeight = int(h.Tiles.YSize)
		if !h.Deep {
			p.Levels = len(h.Levels())
		}
	}
	return p
}

// ===========================================
// Channel Utilities
// ===========================================

// ExtractChannel returns the full resolution samples of one channel as
// float32 values in row-major order. Uint samples are converted
// numerically.
func ExtractChannel(l *exr.Layer, channelName string) ([]float32, error) {
	ch := exr.FindChannel(l.Channels, channelName)
	if ch < 0 {
		return nil, fmt.Errorf("exrutil: channel %q not found", channelName)
	}
	if len(l.Levels) == 0 || l.Levels[0].Pixels == nil {
		return nil, fmt.Errorf("exrutil: layer %q has no pixels", l.Name)
	}

	pixels := l.LevelPixels(0)
	size := exr.ChannelSize(l.Channels[ch], l.Levels[0].Size)
	result := make([]float32, 0, size.X*size.Y)
	for y := 0; y < size.Y; y++ {
		for x := 0; x < size.X; x++ {
			s := pixels.Get(ch, x, y)
			if s.Type() == exr.PixelTypeUint {
				result = append(result, float32(s.Uint32()))
			} else {
				result = append(result, s.Float32())
			}
		}
	}
	return result, nil
}

// ExtractChannels extracts multiple channels, returning a map of channel
// name to samples.
func ExtractChannels(l *exr.Layer, channelNames ...string) (map[string][]float32, error) {
	result := make(map[string][]float32, len(channelNames))
	for _, name := range channelNames {
		data, err := ExtractChannel(l, name)
		if err != nil {
			return nil, err
		}
		result[name] = data
	}
	return result, nil
}

// SplitLayers returns channel base names grouped by their dot-separated
// prefix. Channels without a prefix are grouped under "".
func SplitLayers(channels []exr.Channel) map[string][]string {
	layers := make(map[string][]string)
	for _, ch := range channels {
		layer, name := "", ch.Name
		if idx := strings.LastIndex(ch.Name, "."); idx >= 0 {
			layer = ch.Name[:idx]
			name = ch.Name[idx+1:]
		}
		layers[layer] = append(layers[layer], name)
	}
	return layers
}

// ListLayers returns the sorted channel name prefixes of channels, not
// including the empty prefix.
func ListLayers(channels []exr.Channel) []string {
	var layers []string
	for layer := range SplitLayers(channels) {
		if layer != "" {
			layers = append(layers, layer)
		}
	}
	sort.Strings(layers)
	return layers
}

// ===========================================
// Validation
// ===========================================

// ValidationResult contains the results of file validation.
type ValidationResult struct {
	Valid    bool
	Warnings []string
	Errors   []string
}

func (r *ValidationResult) fail(format string, args ...any) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// ValidateFile checks the headers of the file at path and then decodes
// every chunk in pedantic mode. Problems with the file are reported in
// the result; the error is reserved for failures to access it.
func ValidateFile(path string) (*ValidationResult, error) {
	result := &ValidationResult{Valid: true}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	headers, err := exr.ReadHeaders(f, stat.Size())
	if err != nil {
		result.fail("header: %v", err)
		return result, nil
	}

	deep := 0
	for _, h := range headers {
		name := h.Name
		if name == "" {
			name = "part"
		}
		if h.Deep {
			deep++
			result.warn("%s: deep data is not decoded", name)
			continue
		}
		if w, ht := h.DataWindow.Width(), h.DataWindow.Height(); w > 32768 || ht > 32768 {
			result.warn("%s: very large image dimensions %dx%d", name, w, ht)
		}
		if len(h.Channels) > 100 {
			result.warn("%s: large number of channels: %d", name, len(h.Channels))
		}
		if h.Compression.IsLossy() {
			result.warn("%s: lossy compression %v", name, h.Compression)
		}
	}
	if deep == len(headers) {
		return result, nil
	}

	img, err := exr.Read().Pedantic().FromReaderAt(f, stat.Size())
	if err != nil {
		result.fail("pixels: %v", err)
		return result, nil
	}
	if img.ContainsNaN() {
		result.warn("image contains NaN samples")
	}
	return result, nil
}

// ===========================================
// Comparison
// ===========================================

// CompareOptions configures file comparison behavior.
type CompareOptions struct {
	Tolerance      float32 // Maximum allowed difference for sample values
	IgnoreMetadata bool    // If true, only compare pixel data
}

// CompareFiles checks if two EXR files have equivalent content. It returns
// true if the files match within tolerance, along with the differences
// found. With zero tolerance and metadata included this is exr.Image.Equal,
// so NaN samples compare equal to each other.
func CompareFiles(path1, path2 string, opts CompareOptions) (bool, []string, error) {
	img1, err := exr.Read().FromFile(path1)
	if err != nil {
		return false, nil, fmt.Errorf("cannot read %s: %w", path1, err)
	}
	img2, err := exr.Read().FromFile(path2)
	if err != nil {
		return false, nil, fmt.Errorf("cannot read %s: %w", path2, err)
	}
	if opts.Tolerance == 0 && !opts.IgnoreMetadata && img1.Equal(img2) {
		return true, nil, nil
	}
	diffs := CompareImages(img1, img2, opts)
	return len(diffs) == 0, diffs, nil
}

// CompareImages lists the differences between two decoded images.
func CompareImages(img1, img2 *exr.Image, opts CompareOptions) []string {
	var diffs []string
	if len(img1.Layers) != len(img2.Layers) {
		return append(diffs, fmt.Sprintf("layer count differs: %d vs %d", len(img1.Layers), len(img2.Layers)))
	}
	if !opts.IgnoreMetadata && !img1.Attributes.Equal(img2.Attributes) {
		diffs = append(diffs, "image attributes differ")
	}
	for i, l1 := range img1.Layers {
		diffs = append(diffs, compareLayers(l1, img2.Layers[i], opts)...)
	}
	return diffs
}

func compareLayers(l1, l2 *exr.Layer, opts CompareOptions) []string {
	var diffs []string
	prefix := ""
	if l1.Name != "" {
		prefix = l1.Name + ": "
	}
	if l1.Name != l2.Name {
		diffs = append(diffs, fmt.Sprintf("layer names differ: %q vs %q", l1.Name, l2.Name))
	}
	if s1, s2 := l1.DataWindow.Size(), l2.DataWindow.Size(); s1 != s2 {
		return append(diffs, fmt.Sprintf("%sdimensions differ: %dx%d vs %dx%d", prefix, s1.X, s1.Y, s2.X, s2.Y))
	}

	if !opts.IgnoreMetadata {
		if l1.Encoding.Compression != l2.Encoding.Compression {
			diffs = append(diffs, fmt.Sprintf("%scompression differs: %v vs %v",
				prefix, l1.Encoding.Compression, l2.Encoding.Compression))
		}
		if !l1.Attributes.Equal(l2.Attributes) {
			diffs = append(diffs, prefix+"attributes differ")
		}
	}

	for _, c := range l2.Channels {
		if exr.FindChannel(l1.Channels, c.Name) < 0 {
			diffs = append(diffs, fmt.Sprintf("%schannel %q in file2 but not file1", prefix, c.Name))
		}
	}
	for _, c := range l1.Channels {
		if exr.FindChannel(l2.Channels, c.Name) < 0 {
			diffs = append(diffs, fmt.Sprintf("%schannel %q in file1 but not file2", prefix, c.Name))
			continue
		}
		data1, err1 := ExtractChannel(l1, c.Name)
		data2, err2 := ExtractChannel(l2, c.Name)
		if err1 != nil || err2 != nil || len(data1) != len(data2) {
			diffs = append(diffs, fmt.Sprintf("%schannel %q cannot be compared", prefix, c.Name))
			continue
		}

		var maxDiff float64
		count := 0
		for i := range data1 {
			a, b := float64(data1[i]), float64(data2[i])
			if math.IsNaN(a) && math.IsNaN(b) {
				continue
			}
			d := math.Abs(a - b)
			if math.IsNaN(d) || d > float64(opts.Tolerance) {
				count++
				if d > maxDiff || math.IsNaN(d) {
					maxDiff = d
				}
			}
		}
		if count > 0 {
			diffs = append(diffs, fmt.Sprintf("%schannel %q: %d samples differ (max diff: %f)",
				prefix, c.Name, count, maxDiff))
		}
	}
	return diffs
}

// ===========================================
// Conversion Utilities
// ===========================================

// ConvertCompression reads an EXR file and writes it with every layer
// re-encoded using compression. Converting to a lossy method is allowed
// and changes the samples accordingly.
func ConvertCompression(input, output string, compression exr.Compression) error {
	img, err := exr.Read().FromFile(input)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	for _, l := range img.Layers {
		l.Encoding.Compression = compression
	}
	if err := img.Write().ToFile(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// CopyMetadata copies the non-structural attributes of src into dst,
// replacing attributes with the same name.
func CopyMetadata(src exr.Attributes, dst *exr.Attributes) {
	for _, attr := range src.Clone() {
		if !exr.IsReservedAttribute(attr.Name) {
			dst.Put(attr)
		}
	}
}
