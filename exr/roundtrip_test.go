package exr

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fursund/exrs/half"
)

// encodeImage writes img with o and returns the file bytes.
func encodeImage(t testing.TB, o WriteOptions) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := o.ToWriter(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	return buf.Bytes()
}

func decodeImage(o ReadOptions, data []byte) (*Image, error) {
	return o.FromReaderAt(bytes.NewReader(data), int64(len(data)))
}

// newTestLayer builds a layer with every level of its layout filled with
// random samples.
func newTestLayer(rng *rand.Rand, name string, channels []Channel, window Box2i, enc Encoding) *Layer {
	l := &Layer{
		Name:              name,
		Channels:          channels,
		DataWindow:        window,
		ScreenWindowWidth: 1,
		Encoding:          enc,
	}
	h := l.header(&Image{PixelAspectRatio: 1, DisplayWindow: window}, false)
	for _, info := range h.Levels() {
		fc := NewFlatChannels(channels, info.Size)
		for _, p := range fc.Planes {
			for i := range p.F16 {
				p.F16[i] = half.FromBits(uint16(rng.Uint32()))
			}
			for i := range p.F32 {
				p.F32[i] = math.Float32frombits(rng.Uint32())
			}
			for i := range p.U32 {
				p.U32[i] = rng.Uint32()
			}
		}
		l.Levels = append(l.Levels, &Level{Index: info.Index, Size: info.Size, Pixels: fc})
	}
	return l
}

// boundHalves refills HALF samples with finite values within +-1000. B44
// decodes its own output unchanged for such samples.
func boundHalves(rng *rand.Rand, l *Layer) {
	for _, level := range l.Levels {
		for _, p := range level.Pixels.(*FlatChannels).Planes {
			for i := range p.F16 {
				p.F16[i] = half.FromFloat32(float32(rng.Float64()*2000 - 1000))
			}
		}
	}
}

func colorType(rng *rand.Rand) PixelType {
	if rng.Intn(2) == 0 {
		return PixelTypeHalf
	}
	return PixelTypeFloat
}

type corpusFile struct {
	name string
	img  *Image
}

var corpusCompressions = []Compression{
	CompressionNone,
	CompressionRLE,
	CompressionZIPS,
	CompressionZIP,
	CompressionPXR24,
	CompressionZSTD,
	CompressionPIZ,
	CompressionB44,
	CompressionB44A,
}

var corpusTiles = []*TileDescription{
	nil,
	{XSize: 8, YSize: 8, Mode: LevelModeOne},
	{XSize: 5, YSize: 3, Mode: LevelModeMipmap, RoundingMode: LevelRoundDown},
	{XSize: 4, YSize: 7, Mode: LevelModeMipmap, RoundingMode: LevelRoundUp},
	{XSize: 6, YSize: 6, Mode: LevelModeRipmap, RoundingMode: LevelRoundDown},
	{XSize: 3, YSize: 5, Mode: LevelModeRipmap, RoundingMode: LevelRoundUp},
}

// generateCorpus returns images covering every compression, layout, line
// order and sample type, with and without subsampling, holding one to
// three layers.
func generateCorpus() []corpusFile {
	rng := rand.New(rand.NewSource(7<<32 | 13))
	var files []corpusFile
	n := 0
	for _, c := range corpusCompressions {
		for ti, tiles := range corpusTiles {
			for _, order := range []LineOrder{LineOrderIncreasing, LineOrderDecreasing, LineOrderRandom} {
				for _, subsampled := range []bool{false, true} {
					if subsampled && tiles != nil {
						continue
					}
					n++
					var layers []*Layer
					count := 1 + n%3
					for li := 0; li < count; li++ {
						name := ""
						if count > 1 || n%2 == 0 {
							name = fmt.Sprintf("layer%d", li)
						}
						enc := Encoding{Compression: c, LineOrder: order}
						if tiles != nil {
							td := *tiles
							enc.Tiles = &td
						}
						var channels []Channel
						var window Box2i
						if subsampled {
							channels = []Channel{
								{Name: "A", Type: colorType(rng), XSampling: 2, YSampling: 2},
								{Name: "B", Type: colorType(rng), XSampling: 1, YSampling: 2},
								{Name: "G", Type: colorType(rng), XSampling: 2, YSampling: 1},
								{Name: "R", Type: colorType(rng), XSampling: 1, YSampling: 1},
								{Name: "id", Type: PixelTypeUint, XSampling: 2, YSampling: 2},
							}
							origin := V2i{2 * (rng.Intn(5) - 2), 2 * (rng.Intn(5) - 2)}
							window = NewBox2i(origin, V2i{2 + 2*rng.Intn(12), 2 + 2*rng.Intn(20)})
						} else {
							channels = []Channel{
								NewChannel("B", colorType(rng)),
								NewChannel("G", colorType(rng)),
								NewChannel("R", colorType(rng)),
								NewChannel("Z", PixelTypeFloat),
								NewChannel("id", PixelTypeUint),
							}
							if rng.Intn(2) == 0 {
								channels = append(channels, NewChannel("A", colorType(rng)))
								SortChannels(channels)
							}
							origin := V2i{rng.Intn(7) - 3, rng.Intn(7) - 3}
							window = NewBox2i(origin, V2i{1 + rng.Intn(40), 1 + rng.Intn(40)})
						}
						l := newTestLayer(rng, name, channels, window, enc)
						if c == CompressionB44 || c == CompressionB44A {
							boundHalves(rng, l)
						}
						l.Attributes.Set("software", fmt.Sprintf("corpus %d", n))
						l.ScreenWindowCenter = V2f{float32(li), 0.5}
						layers = append(layers, l)
					}
					img := NewImage(layers...)
					img.Attributes.Set("owner", "exrs")
					img.Attributes.Set("comments", fmt.Sprintf("tiles %d", ti))
					files = append(files, corpusFile{
						name: fmt.Sprintf("%03d-%s-%d-%s-%d", n, c, ti, order, count),
						img:  img,
					})
				}
			}
		}
	}
	return files
}

// roundTrip reads data with o, writes the result with w and reads it
// again. Both decoded images must be equal.
func roundTrip(data []byte, o ReadOptions, w func(*Image) WriteOptions) (*Image, error) {
	img1, err := decodeImage(o, data)
	if err != nil {
		return nil, fmt.Errorf("first read: %w", err)
	}
	var buf bytes.Buffer
	if err := w(img1).ToWriter(&buf); err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}
	img2, err := decodeImage(o, buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("second read: %w", err)
	}
	if !img1.Equal(img2) {
		return nil, errors.New("images differ after round trip")
	}
	return img1, nil
}

func writeDefault(img *Image) WriteOptions { return img.Write().NonParallel() }

func writeLossy(img *Image) WriteOptions { return img.Write().LossyConversion() }

type roundTripMode struct {
	name  string
	read  ReadOptions
	write func(*Image) WriteOptions
}

var roundTripModes = []roundTripMode{
	{"full", Read().NonParallel(), writeDefault},
	{"largest", Read().LargestResolutionLevel().NonParallel(), writeDefault},
	{"rgba", Read().RGBAChannels(CreateFlattenedF32), writeLossy},
	{"pedantic", Read().Pedantic().Workers(4), writeDefault},
}

func TestCorpusRoundTrip(t *testing.T) {
	files := generateCorpus()
	if len(files) < 100 {
		t.Fatalf("corpus has %d files, want at least 100", len(files))
	}
	unsupported := 0
	for _, f := range files {
		data := encodeImage(t, f.img.Write().NonParallel())
		for _, mode := range roundTripModes {
			img1, err := roundTrip(data, mode.read, mode.write)
			if errors.Is(err, ErrNotSupported) {
				unsupported++
				continue
			}
			if err != nil {
				t.Errorf("%s %s: %v", f.name, mode.name, err)
				continue
			}
			if mode.name == "full" && !f.img.Layers[0].Encoding.Compression.IsLossy() && !f.img.Equal(img1) {
				t.Errorf("%s: decoded image differs from the written one", f.name)
			}
			if mode.name == "largest" {
				for _, l := range img1.Layers {
					if len(l.Levels) != 1 {
						t.Errorf("%s: layer %q has %d levels", f.name, l.Name, len(l.Levels))
					}
					if l.Encoding.Tiles != nil && l.Encoding.Tiles.Mode != LevelModeOne {
						t.Errorf("%s: layer %q reports level mode %d", f.name, l.Name, l.Encoding.Tiles.Mode)
					}
				}
			}
		}
	}
	t.Logf("%d files, %d unsupported round trips", len(files), unsupported)
}

// TestCorpusDirectory round trips every file under testdata/corpus when
// that directory exists.
func TestCorpusDirectory(t *testing.T) {
	paths, _ := filepath.Glob(filepath.Join("testdata", "corpus", "*.exr"))
	if len(paths) == 0 {
		t.Skip("no files in testdata/corpus")
	}
	unsupported := 0
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		for _, mode := range roundTripModes {
			_, err := roundTrip(data, mode.read, mode.write)
			switch {
			case errors.Is(err, ErrNotSupported):
				unsupported++
			case err != nil && strings.Contains(filepath.Base(path), "invalid"):
			case err != nil:
				t.Errorf("%s %s: %v", filepath.Base(path), mode.name, err)
			}
		}
	}
	t.Logf("%d files, %d unsupported round trips", len(paths), unsupported)
}

func TestRGBAScenario(t *testing.T) {
	values := []float32{0.1, 0.4, 5.0, 0.3, 0.8, 4.0, 0.2, 0.6, 2.0, 0.8, 0.2, 21.0, 0.9, 0.0, 64.0}
	size := V2i{2, 4}
	channels := []Channel{
		NewChannel("B", PixelTypeFloat),
		NewChannel("G", PixelTypeFloat),
		NewChannel("R", PixelTypeHalf),
	}
	fc := NewFlatChannels(channels, size)
	value := func(x, y, c int) float32 {
		return values[((y*size.X+x)*3+c)%len(values)]
	}
	for y := 0; y < size.Y; y++ {
		for x := 0; x < size.X; x++ {
			fc.Set(2, x, y, HalfSample(half.FromFloat32(value(x, y, 0))))
			fc.Set(1, x, y, FloatSample(value(x, y, 1)))
			fc.Set(0, x, y, FloatSample(value(x, y, 2)))
		}
	}
	layer := &Layer{
		Channels:          channels,
		DataWindow:        NewBox2i(V2i{}, size),
		ScreenWindowWidth: 1,
		Encoding:          Encoding{Compression: CompressionNone},
		Levels:            []*Level{{Size: size, Pixels: fc}},
	}
	data := encodeImage(t, NewImage(layer).Write())

	img, err := decodeImage(Read().RGBAChannels(CreateFlattenedF32), data)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	pixels, ok := img.Layers[0].Levels[0].Pixels.(*FlatRGBA[float32])
	if !ok {
		t.Fatalf("pixels are %T", img.Layers[0].Levels[0].Pixels)
	}
	for y := 0; y < size.Y; y++ {
		for x := 0; x < size.X; x++ {
			r, g, b, a := pixels.Pixel(x, y)
			if want := half.FromFloat32(value(x, y, 0)).Float32(); math.Float32bits(r) != math.Float32bits(want) {
				t.Errorf("R(%d,%d) = %v, want %v", x, y, r, want)
			}
			if want := value(x, y, 1); math.Float32bits(g) != math.Float32bits(want) {
				t.Errorf("G(%d,%d) = %v, want %v", x, y, g, want)
			}
			if want := value(x, y, 2); math.Float32bits(b) != math.Float32bits(want) {
				t.Errorf("B(%d,%d) = %v, want %v", x, y, b, want)
			}
			if a != 1 {
				t.Errorf("A(%d,%d) = %v, want 1", x, y, a)
			}
		}
	}
}

func TestRGBAMissingChannels(t *testing.T) {
	rng := rand.New(rand.NewSource(1<<32 | 2))
	channels := []Channel{NewChannel("B", PixelTypeHalf), NewChannel("R", PixelTypeHalf)}
	layer := newTestLayer(rng, "", channels, NewBox2i(V2i{}, V2i{5, 3}), Encoding{Compression: CompressionZIP})
	data := encodeImage(t, NewImage(layer).Write())

	img, err := decodeImage(Read().RGBAChannels(CreateFlattenedF16), data)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	pixels := img.Layers[0].Levels[0].Pixels.(*FlatRGBA[half.Half])
	if pixels.Channels != 3 {
		t.Errorf("Channels = %d, want 3", pixels.Channels)
	}
	src := layer.Levels[0].Pixels.(*FlatChannels)
	for y := 0; y < 3; y++ {
		for x := 0; x < 5; x++ {
			r, g, b, a := pixels.Pixel(x, y)
			if g != 0 {
				t.Errorf("G(%d,%d) = %v, want 0", x, y, g)
			}
			if a != half.One {
				t.Errorf("A(%d,%d) = %v, want 1", x, y, a)
			}
			if r != src.Planes[1].F16[y*5+x] || b != src.Planes[0].F16[y*5+x] {
				t.Errorf("pixel (%d,%d) = %v %v, want %v %v", x, y, r, b, src.Planes[1].F16[y*5+x], src.Planes[0].F16[y*5+x])
			}
		}
	}
}

func TestRGBALayerWrite(t *testing.T) {
	pixels := NewFlatRGBA[float32](V2i{4, 2}, true)
	for y := 0; y < 2; y++ {
		for x := 0; x < 4; x++ {
			pixels.SetPixel(x, y, float32(x), float32(y), 0.5, 0.25)
		}
	}
	alpha := PixelTypeHalf
	layer := NewRGBALayer("rgba", pixels, RGBASampleTypes{
		R: PixelTypeFloat, G: PixelTypeFloat, B: PixelTypeFloat, A: &alpha,
	}, Encoding{Compression: CompressionZIPS})

	if err := NewImage(layer).Write().ToWriter(&bytes.Buffer{}); err == nil || !strings.Contains(err.Error(), `"A"`) {
		t.Fatalf("write without lossy conversion: got %v, want an error for channel A", err)
	}
	data := encodeImage(t, NewImage(layer).Write().LossyConversion())
	img, err := decodeImage(Read().RGBAChannels(CreateFlattenedF32), data)
	if err != nil {
		t.Fatal(err)
	}
	got := img.Layers[0].Levels[0].Pixels.(*FlatRGBA[float32])
	for i, v := range pixels.Samples {
		if got.Samples[i] != v {
			t.Fatalf("sample %d = %v, want %v", i, got.Samples[i], v)
		}
	}
}

func TestReadRGBANeedsLossyConversion(t *testing.T) {
	rgb := func(r PixelType) []Channel {
		return []Channel{NewChannel("B", PixelTypeHalf), NewChannel("G", PixelTypeHalf), NewChannel("R", r)}
	}
	withUintAlpha := append([]Channel{NewChannel("A", PixelTypeUint)}, rgb(PixelTypeHalf)...)
	tests := []struct {
		name     string
		channels []Channel
		factory  StorageFactory
		lossy    bool
	}{
		{"half into f32", rgb(PixelTypeHalf), CreateFlattenedF32, false},
		{"float into f32", rgb(PixelTypeFloat), CreateFlattenedF32, false},
		{"float into f16", rgb(PixelTypeFloat), CreateFlattenedF16, true},
		{"uint into f32", withUintAlpha, CreateFlattenedF32, true},
		{"uint into f16", withUintAlpha, CreateFlattenedF16, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			size := V2i{3, 2}
			fc := NewFlatChannels(tt.channels, size)
			for _, p := range fc.Planes {
				for i := range p.F16 {
					p.F16[i] = half.FromFloat32(0.5)
				}
				for i := range p.F32 {
					p.F32[i] = 0.5
				}
				for i := range p.U32 {
					p.U32[i] = 1
				}
			}
			layer := &Layer{
				Channels:          tt.channels,
				DataWindow:        NewBox2i(V2i{}, size),
				ScreenWindowWidth: 1,
				Encoding:          Encoding{Compression: CompressionZIPS},
				Levels:            []*Level{{Size: size, Pixels: fc}},
			}
			data := encodeImage(t, NewImage(layer).Write())

			_, err := decodeImage(Read().RGBAChannels(tt.factory), data)
			if tt.lossy && !errors.Is(err, ErrNotSupported) {
				t.Fatalf("strict read: got %v, want ErrNotSupported", err)
			}
			if !tt.lossy && err != nil {
				t.Fatalf("strict read: %v", err)
			}

			img, err := decodeImage(Read().RGBAChannels(tt.factory).LossyConversion(), data)
			if err != nil {
				t.Fatal(err)
			}
			l := img.Layers[0]
			pixels := l.LevelPixels(0)
			for ch, c := range l.Channels {
				want := float32(0.5)
				if c.Type == PixelTypeUint {
					want = 1
				}
				if got := pixels.Get(ch, 2, 1).Float32(); got != want {
					t.Errorf("channel %s = %v, want %v", c.Name, got, want)
				}
			}
		})
	}
}

func TestWriteSchedulingIndependence(t *testing.T) {
	for _, f := range generateCorpus()[:30] {
		sequential := encodeImage(t, f.img.Write().NonParallel())
		for _, workers := range []int{2, 3, 8} {
			parallel := encodeImage(t, f.img.Write().Workers(workers))
			if !bytes.Equal(sequential, parallel) {
				t.Errorf("%s: output with %d workers differs from sequential output", f.name, workers)
			}
		}
	}
}

func TestReadSchedulingIndependence(t *testing.T) {
	for _, f := range generateCorpus()[30:60] {
		data := encodeImage(t, f.img.Write())
		want, err := decodeImage(Read().NonParallel(), data)
		if err != nil {
			t.Fatalf("%s: %v", f.name, err)
		}
		for _, workers := range []int{2, 5, 16} {
			got, err := decodeImage(Read().Workers(workers), data)
			if err != nil {
				t.Fatalf("%s: %v", f.name, err)
			}
			if !want.Equal(got) {
				t.Errorf("%s: image read with %d workers differs", f.name, workers)
			}
		}
	}
}

// scanlineFile returns a NONE compressed scanline file with several chunks
// and the offset of its offset table.
func scanlineFile(t *testing.T) ([]byte, int) {
	t.Helper()
	rng := rand.New(rand.NewSource(3<<32 | 4))
	channels := []Channel{NewChannel("Y", PixelTypeHalf)}
	layer := newTestLayer(rng, "", channels, NewBox2i(V2i{}, V2i{7, 5}), Encoding{Compression: CompressionNone})
	data := encodeImage(t, NewImage(layer).Write())
	set, err := readHeaderSet(bytes.NewReader(data), int64(len(data)), false)
	if err != nil {
		t.Fatal(err)
	}
	return data, set.end
}

func TestPedanticStricterThanFast(t *testing.T) {
	data, tables := scanlineFile(t)
	want, err := decodeImage(Read().Pedantic(), data)
	if err != nil {
		t.Fatalf("pedantic read of a valid file: %v", err)
	}

	corrupt := bytes.Clone(data)
	for i := 0; i < 8; i++ {
		corrupt[tables+i] = 0xff
	}
	got, err := decodeImage(Read().Fast(), corrupt)
	if err != nil {
		t.Fatalf("fast read with a broken offset table: %v", err)
	}
	if !want.Equal(got) {
		t.Error("fast read with a reconstructed offset table differs")
	}
	if _, err := decodeImage(Read().Pedantic(), corrupt); !errors.Is(err, ErrInvalid) {
		t.Errorf("pedantic read with a broken offset table: got %v, want ErrInvalid", err)
	}
}

func TestSwappedOffsetsRejected(t *testing.T) {
	data, tables := scanlineFile(t)
	corrupt := bytes.Clone(data)
	first := bytes.Clone(corrupt[tables : tables+8])
	copy(corrupt[tables:tables+8], corrupt[tables+8:tables+16])
	copy(corrupt[tables+8:tables+16], first)
	for _, o := range []ReadOptions{Read().Fast(), Read().Pedantic()} {
		if _, err := decodeImage(o, corrupt); !errors.Is(err, ErrInvalid) {
			t.Errorf("got %v, want ErrInvalid", err)
		}
	}
}

func TestTruncatedFile(t *testing.T) {
	data, tables := scanlineFile(t)
	for _, n := range []int{0, 3, 8, tables - 1, tables + 4, len(data) - 1} {
		_, err := decodeImage(Read(), data[:n])
		if !errors.Is(err, ErrInvalid) {
			t.Errorf("file truncated to %d bytes: got %v, want ErrInvalid", n, err)
		}
	}
}

func TestProgressAndAbort(t *testing.T) {
	data, _ := scanlineFile(t)
	var reports []float64
	_, err := decodeImage(Read().NonParallel().OnProgress(func(p float64) bool {
		reports = append(reports, p)
		return false
	}), data)
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) == 0 || reports[len(reports)-1] != 1 {
		t.Fatalf("progress reports %v do not end at 1", reports)
	}
	for i := 1; i < len(reports); i++ {
		if reports[i] <= reports[i-1] {
			t.Fatalf("progress reports %v are not increasing", reports)
		}
	}

	abort := func(p float64) bool { return p >= 0.5 }
	if _, err := decodeImage(Read().NonParallel().OnProgress(abort), data); !errors.Is(err, ErrAborted) {
		t.Errorf("read: got %v, want ErrAborted", err)
	}
	if _, err := decodeImage(Read().Workers(4).OnProgress(abort), data); !errors.Is(err, ErrAborted) {
		t.Errorf("parallel read: got %v, want ErrAborted", err)
	}
	img, err := decodeImage(Read(), data)
	if err != nil {
		t.Fatal(err)
	}
	if err := img.Write().OnProgress(abort).ToWriter(&bytes.Buffer{}); !errors.Is(err, ErrAborted) {
		t.Errorf("write: got %v, want ErrAborted", err)
	}
}

func multiLayerFile(t *testing.T) []byte {
	t.Helper()
	rng := rand.New(rand.NewSource(5<<32 | 6))
	diffuse := newTestLayer(rng, "diffuse", []Channel{
		NewChannel("B", PixelTypeHalf), NewChannel("G", PixelTypeHalf), NewChannel("R", PixelTypeHalf),
	}, NewBox2i(V2i{}, V2i{9, 9}), Encoding{Compression: CompressionRLE})
	depth := newTestLayer(rng, "depth", []Channel{NewChannel("Z", PixelTypeFloat)},
		NewBox2i(V2i{-2, -2}, V2i{13, 11}),
		Encoding{Compression: CompressionZIP, Tiles: &TileDescription{XSize: 4, YSize: 4, Mode: LevelModeMipmap}})
	depth.Attributes.Set("software", "depth pass")
	img := NewImage(diffuse, depth)
	img.Attributes.Set("owner", "exrs")
	return encodeImage(t, img.Write())
}

func TestLayerSelection(t *testing.T) {
	data := multiLayerFile(t)

	img, err := decodeImage(Read().FirstValidLayer(), data)
	if err != nil {
		t.Fatal(err)
	}
	if len(img.Layers) != 1 || img.Layers[0].Name != "diffuse" {
		t.Errorf("FirstValidLayer read %d layers", len(img.Layers))
	}

	img, err = decodeImage(Read().FilterLayers(func(h *Header) bool { return h.Name == "depth" }), data)
	if err != nil {
		t.Fatal(err)
	}
	if len(img.Layers) != 1 || img.Layers[0].Name != "depth" || len(img.Layers[0].Levels) != 4 {
		t.Fatalf("FilterLayers read %+v", img.Layers)
	}
	if v := img.Layers[0].Attributes.Value("software"); v != "depth pass" {
		t.Errorf("software = %v", v)
	}
	if v := img.Attributes.Value("owner"); v != "exrs" {
		t.Errorf("owner = %v", v)
	}

	img, err = decodeImage(Read().RGBAChannels(nil), data)
	if err != nil {
		t.Fatal(err)
	}
	if len(img.Layers) != 1 || img.Layers[0].Name != "diffuse" {
		t.Errorf("RGBAChannels read %d layers", len(img.Layers))
	}

	img, err = decodeImage(Read().FilterChannels(func(c Channel) bool { return c.Name == "G" || c.Name == "Z" }), data)
	if err != nil {
		t.Fatal(err)
	}
	if len(img.Layers) != 2 || len(img.Layers[0].Channels) != 1 || img.Layers[0].Channels[0].Name != "G" {
		t.Errorf("FilterChannels read %+v", img.Layers)
	}

	_, err = decodeImage(Read().FilterLayers(func(*Header) bool { return false }), data)
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("no matching layer: got %v, want ErrInvalid", err)
	}
}

func TestOnlyRequiredAttributes(t *testing.T) {
	data := multiLayerFile(t)
	img, err := decodeImage(Read().OnlyRequiredAttributes(), data)
	if err != nil {
		t.Fatal(err)
	}
	if len(img.Attributes) != 0 {
		t.Errorf("image attributes %v", img.Attributes)
	}
	for _, l := range img.Layers {
		if len(l.Attributes) != 0 {
			t.Errorf("layer %q attributes %v", l.Name, l.Attributes)
		}
	}

	full, err := decodeImage(Read(), data)
	if err != nil {
		t.Fatal(err)
	}
	stripped, err := decodeImage(Read(), encodeImage(t, full.Write().OnlyRequiredAttributes()))
	if err != nil {
		t.Fatal(err)
	}
	if len(stripped.Attributes) != 0 || len(stripped.Layers[1].Attributes) != 0 {
		t.Error("OnlyRequiredAttributes wrote custom attributes")
	}
}

func TestDeepPartsNotSupported(t *testing.T) {
	deep := &Header{
		Type:       TypeDeepScanline,
		Deep:       true,
		Channels:   []Channel{NewChannel("Z", PixelTypeFloat)},
		DataWindow: NewBox2i(V2i{}, V2i{2, 2}),
	}
	_, err := Read().plan(&headerSet{headers: []*Header{deep}})
	if !errors.Is(err, ErrNotSupported) {
		t.Errorf("got %v, want ErrNotSupported", err)
	}
}

func TestWriteValidation(t *testing.T) {
	rng := rand.New(rand.NewSource(9<<32 | 9))
	newLayer := func(name string) *Layer {
		return newTestLayer(rng, name, []Channel{NewChannel("Y", PixelTypeHalf)},
			NewBox2i(V2i{}, V2i{4, 4}), Encoding{Compression: CompressionRLE})
	}
	tests := []struct {
		name string
		img  *Image
	}{
		{"no layers", NewImage()},
		{"unnamed layer", NewImage(newLayer("a"), newLayer(""))},
		{"duplicate names", NewImage(newLayer("a"), newLayer("a"))},
		{"missing level", func() *Image {
			l := newLayer("")
			l.Levels = nil
			return NewImage(l)
		}()},
		{"unsorted channels", func() *Image {
			l := newLayer("")
			l.Channels = []Channel{NewChannel("b", PixelTypeHalf), NewChannel("a", PixelTypeHalf)}
			return NewImage(l)
		}()},
		{"empty window", func() *Image {
			l := newLayer("")
			l.DataWindow = Box2i{Min: V2i{1, 1}, Max: V2i{0, 0}}
			return NewImage(l)
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.img.Write().ToWriter(&bytes.Buffer{})
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("got %v, want ErrInvalid", err)
			}
		})
	}
}

func TestUnsupportedCompression(t *testing.T) {
	rng := rand.New(rand.NewSource(1<<32 | 1))
	l := newTestLayer(rng, "", []Channel{NewChannel("Y", PixelTypeHalf)},
		NewBox2i(V2i{}, V2i{4, 4}), Encoding{Compression: CompressionDWAA})
	err := NewImage(l).Write().ToWriter(&bytes.Buffer{})
	if !errors.Is(err, ErrNotSupported) {
		t.Errorf("got %v, want ErrNotSupported", err)
	}
}

func TestFileRoundTrip(t *testing.T) {
	f := generateCorpus()[17]
	path := filepath.Join(t.TempDir(), "image.exr")
	if err := f.img.Write().ToFile(path); err != nil {
		t.Fatal(err)
	}
	fromFile, err := Read().FromFile(path)
	if err != nil {
		t.Fatal(err)
	}
	file, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	fromReader, err := Read().FromReader(file)
	if err != nil {
		t.Fatal(err)
	}
	if !fromFile.Equal(fromReader) {
		t.Error("FromFile and FromReader disagree")
	}
	if _, err := Read().FromFile(filepath.Join(t.TempDir(), "missing.exr")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file: got %v", err)
	}
}

func TestNaNAwareEquality(t *testing.T) {
	rng := rand.New(rand.NewSource(2<<32 | 2))
	l := newTestLayer(rng, "", []Channel{NewChannel("Y", PixelTypeFloat)},
		NewBox2i(V2i{}, V2i{2, 1}), Encoding{})
	fc := l.Levels[0].Pixels.(*FlatChannels)
	fc.Planes[0].F32[0] = math.Float32frombits(0x7fc00001)
	fc.Planes[0].F32[1] = 1
	img := NewImage(l)
	if !img.ContainsNaN() {
		t.Fatal("ContainsNaN = false")
	}
	back, err := decodeImage(Read(), encodeImage(t, img.Write()))
	if err != nil {
		t.Fatal(err)
	}
	back.Layers[0].Levels[0].Pixels.(*FlatChannels).Planes[0].F32[0] = float32(math.NaN())
	if !img.Equal(back) {
		t.Error("images with different NaN payloads compare unequal")
	}
	back.Layers[0].Levels[0].Pixels.(*FlatChannels).Planes[0].F32[1] = 2
	if img.Equal(back) {
		t.Error("images with different samples compare equal")
	}
}
