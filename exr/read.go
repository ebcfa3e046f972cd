package exr

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fursund/exrs/compression"
	"github.com/fursund/exrs/internal/xdr"
)

type channelSelection uint8

const (
	selectAllChannels channelSelection = iota
	selectFilteredChannels
	selectRGBAChannels
)

type layerSelection uint8

const (
	selectAllLayers layerSelection = iota
	selectFirstValidLayer
)

// ReadOptions configures how a file is read. The zero value is not useful;
// start from Read. Every method returns a modified copy, so a ReadOptions
// value can be shared between goroutines and reused.
type ReadOptions struct {
	largestLevelOnly bool
	channels         channelSelection
	channelFilter    func(Channel) bool
	factory          StorageFactory
	layers           layerSelection
	layerFilter      func(*Header) bool
	requiredOnly     bool
	parallel         bool
	config           ParallelConfig
	pedantic         bool
	lossy            bool
	progress         ProgressFunc
}

// Read returns the default read configuration: all layers, channels,
// resolution levels and attributes, stored in FlatChannels, decoded in
// parallel without pedantic checks.
func Read() ReadOptions {
	return ReadOptions{parallel: true, config: DefaultParallelConfig()}
}

// NoDeepData skips deep parts. Deep data is never read; a file with only
// deep parts fails with ErrNotSupported.
func (o ReadOptions) NoDeepData() ReadOptions { return o }

// LargestResolutionLevel reads only level (0,0). Layers read this way
// report LevelModeOne.
func (o ReadOptions) LargestResolutionLevel() ReadOptions {
	o.largestLevelOnly = true
	return o
}

// AllResolutionLevels reads every resolution level.
func (o ReadOptions) AllResolutionLevels() ReadOptions {
	o.largestLevelOnly = false
	return o
}

// AllChannels reads every channel.
func (o ReadOptions) AllChannels() ReadOptions {
	o.channels, o.channelFilter = selectAllChannels, nil
	return o
}

// FilterChannels reads the channels for which keep returns true. Layers
// without a matching channel are skipped.
func (o ReadOptions) FilterChannels(keep func(Channel) bool) ReadOptions {
	o.channels, o.channelFilter = selectFilteredChannels, keep
	return o
}

// RGBAChannels reads the channels named R, G, B and A (or red, green, blue
// and alpha, in any case) into storage created by factory. A nil factory
// selects CreateFlattenedF32. Layers without any of these channels are
// skipped.
func (o ReadOptions) RGBAChannels(factory StorageFactory) ReadOptions {
	if factory == nil {
		factory = CreateFlattenedF32
	}
	o.channels, o.channelFilter, o.factory = selectRGBAChannels, nil, factory
	return o
}

// CustomPixels stores samples in storage created by factory.
func (o ReadOptions) CustomPixels(factory StorageFactory) ReadOptions {
	o.factory = factory
	return o
}

// AllLayers reads every layer that has selected channels.
func (o ReadOptions) AllLayers() ReadOptions {
	o.layers, o.layerFilter = selectAllLayers, nil
	return o
}

// FirstValidLayer reads only the first layer that has selected channels.
func (o ReadOptions) FirstValidLayer() ReadOptions {
	o.layers, o.layerFilter = selectFirstValidLayer, nil
	return o
}

// FilterLayers reads the layers whose header keep accepts.
func (o ReadOptions) FilterLayers(keep func(*Header) bool) ReadOptions {
	o.layers, o.layerFilter = selectAllLayers, keep
	return o
}

// AllAttributes keeps every optional attribute.
func (o ReadOptions) AllAttributes() ReadOptions {
	o.requiredOnly = false
	return o
}

// OnlyRequiredAttributes drops every attribute that is not required to
// decode the pixels.
func (o ReadOptions) OnlyRequiredAttributes() ReadOptions {
	o.requiredOnly = true
	return o
}

// Parallel decodes chunks on a worker pool.
func (o ReadOptions) Parallel() ReadOptions {
	o.parallel = true
	return o
}

// NonParallel decodes chunks one by one on the calling goroutine, in file
// order.
func (o ReadOptions) NonParallel() ReadOptions {
	o.parallel = false
	return o
}

// Workers decodes chunks on n workers. n <= 0 uses runtime.GOMAXPROCS(0).
func (o ReadOptions) Workers(n int) ReadOptions {
	o.parallel = true
	o.config.NumWorkers = n
	return o
}

// Pedantic rebuilds the offset tables from the chunks and rejects files
// whose tables disagree, as well as headers with duplicate attributes.
func (o ReadOptions) Pedantic() ReadOptions {
	o.pedantic = true
	return o
}

// Fast trusts the offset tables as long as they point into the file.
func (o ReadOptions) Fast() ReadOptions {
	o.pedantic = false
	return o
}

// LossyConversion allows storage types that cannot hold every value of
// the file's sample type.
func (o ReadOptions) LossyConversion() ReadOptions {
	o.lossy = true
	return o
}

// OnProgress reports progress after every chunk.
func (o ReadOptions) OnProgress(fn ProgressFunc) ReadOptions {
	o.progress = fn
	return o
}

// FromFile reads the file at path. The file is memory mapped where the
// platform allows it.
func (o ReadOptions) FromFile(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if m, err := newMmapReader(f); err == nil {
		defer m.Close()
		return o.FromReaderAt(m, m.Size())
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return o.FromReaderAt(f, info.Size())
}

// FromReader reads a file from r. Readers that also implement io.ReaderAt
// and io.Seeker are read in place; anything else is buffered in memory.
func (o ReadOptions) FromReader(r io.Reader) (*Image, error) {
	if rs, ok := r.(interface {
		io.ReaderAt
		io.Seeker
	}); ok {
		size, err := rs.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, err
		}
		return o.FromReaderAt(rs, size)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return o.FromReaderAt(bytes.NewReader(data), int64(len(data)))
}

// headerPrefixSize is the first amount of data read when parsing headers.
const headerPrefixSize = 64 << 10

// readHeaderSet parses the headers at the start of r, reading a growing
// prefix until they fit.
func readHeaderSet(r io.ReaderAt, size int64, pedantic bool) (*headerSet, error) {
	for prefix := int64(headerPrefixSize); ; prefix *= 2 {
		n := min(prefix, size)
		buf := make([]byte, n)
		if truncated, err := readAtFull(r, buf, 0); err != nil {
			return nil, err
		} else if truncated {
			return nil, invalidf("file shorter than its size of %d bytes", size)
		}
		set, err := parseHeaders(buf, pedantic)
		if errors.Is(err, xdr.ErrShortBuffer) {
			if n == size {
				return nil, invalidf("file truncated in header")
			}
			continue
		}
		return set, err
	}
}

// ReadHeaders parses the headers of a file without reading pixels.
func ReadHeaders(r io.ReaderAt, size int64) ([]*Header, error) {
	set, err := readHeaderSet(r, size, false)
	if err != nil {
		return nil, err
	}
	return set.headers, nil
}

// layerPlan is a part selected for reading.
type layerPlan struct {
	part     int
	header   *Header
	channels []Channel
	mapping  channelMapping
	codec    compression.Codec
	layout   []compression.Channel
	layer    *Layer
	stores   map[LevelIndex]PixelStorage
}

// selectChannels returns the channels of h that o reads.
func (o ReadOptions) selectChannels(h *Header) []Channel {
	switch o.channels {
	case selectRGBAChannels:
		return rgbaSelection(h.Channels)
	case selectFilteredChannels:
		var out []Channel
		for _, c := range h.Channels {
			if o.channelFilter(c) {
				out = append(out, c)
			}
		}
		return out
	}
	return append([]Channel(nil), h.Channels...)
}

// plan selects the parts to read and creates their storage.
func (o ReadOptions) plan(set *headerSet) ([]*layerPlan, error) {
	factory := o.factory
	if factory == nil {
		factory = CreateFlatChannels
	}
	var plans []*layerPlan
	sawDeep := false
	for i, h := range set.headers {
		if h.Deep {
			sawDeep = true
			continue
		}
		if o.layerFilter != nil && !o.layerFilter(h) {
			continue
		}
		channels := o.selectChannels(h)
		if len(channels) == 0 {
			continue
		}
		codec, err := codecFor(h.Compression)
		if err != nil {
			return nil, fmt.Errorf("part %d: %w", i, err)
		}
		p := &layerPlan{
			part:     i,
			header:   h,
			channels: channels,
			mapping:  newChannelMapping(h.Channels, channels),
			codec:    codec,
			layout:   codecChannels(h.Channels),
			stores:   make(map[LevelIndex]PixelStorage),
		}
		if err := o.createLayer(p, factory); err != nil {
			return nil, err
		}
		plans = append(plans, p)
		if o.layers == selectFirstValidLayer {
			break
		}
	}
	if len(plans) == 0 {
		if sawDeep {
			return nil, unsupportedf("deep data")
		}
		return nil, invalidf("no layer matches the read options")
	}
	return plans, nil
}

// createLayer builds the Layer of p and the storage of its levels.
func (o ReadOptions) createLayer(p *layerPlan, factory StorageFactory) error {
	h := p.header
	layer := &Layer{
		Name:               h.Name,
		Channels:           p.channels,
		DataWindow:         h.DataWindow,
		ScreenWindowCenter: h.ScreenWindowCenter,
		ScreenWindowWidth:  h.ScreenWindowWidth,
		Encoding: Encoding{
			Compression: h.Compression,
			LineOrder:   h.LineOrder,
		},
	}
	if h.Tiles != nil {
		tiles := *h.Tiles
		if o.largestLevelOnly {
			tiles.Mode = LevelModeOne
		}
		layer.Encoding.Tiles = &tiles
	}
	if !o.requiredOnly {
		for _, attr := range h.Attributes {
			if !imageAttributes[attr.Name] {
				layer.Attributes = append(layer.Attributes, attr)
			}
		}
	}
	levels := h.Levels()
	if o.largestLevelOnly {
		levels = levels[:1]
	}
	for _, info := range levels {
		if n := levelSamples(p.channels, info.Size); n > maxLevelSamples {
			return invalidf("part %d: level %v of %dx%d needs %d samples, limit is %d",
				p.part, info.Index, info.Size.X, info.Size.Y, n, maxLevelSamples)
		}
		store, err := factory(StorageRequest{Header: h, Channels: p.channels, Level: info})
		if err != nil {
			return err
		}
		if store == nil {
			return invalidf("part %d: storage factory returned no storage", p.part)
		}
		store = bindStorage(p.channels, store)
		if err := checkReadStorage(p.mapping, h.Channels, store, o.lossy); err != nil {
			return fmt.Errorf("part %d: %w", p.part, err)
		}
		p.stores[info.Index] = store
		layer.Levels = append(layer.Levels, &Level{Index: info.Index, Size: info.Size, Pixels: store})
	}
	p.layer = layer
	return nil
}

// maxLevelSamples bounds the samples allocated for one level before any
// chunk is read.
const maxLevelSamples = 1 << 32

// levelSamples counts the samples of channels in a level of the given size,
// saturating at maxLevelSamples+1. Flattened storage holds four samples per
// pixel whatever the channels.
func levelSamples(channels []Channel, size V2i) int {
	pixels := size.X * size.Y
	if pixels > maxLevelSamples {
		return maxLevelSamples + 1
	}
	n := 4 * pixels
	for _, c := range channels {
		n += (size.X / max(c.XSampling, 1)) * (size.Y / max(c.YSampling, 1))
		if n > maxLevelSamples {
			return maxLevelSamples + 1
		}
	}
	return n
}

// readJob is one chunk to decode.
type readJob struct {
	plan  *layerPlan
	block BlockIndex
}

// FromReaderAt reads a file of the given size from r.
func (o ReadOptions) FromReaderAt(r io.ReaderAt, size int64) (*Image, error) {
	set, err := readHeaderSet(r, size, o.pedantic)
	if err != nil {
		return nil, err
	}
	ot, err := readOffsetTables(r, size, set)
	if err != nil {
		return nil, err
	}
	plans, err := o.plan(set)
	if err != nil {
		return nil, err
	}

	parts := make([]int, len(plans))
	for i, p := range plans {
		parts[i] = p.part
	}
	switch {
	case o.pedantic:
		scanned, err := scanChunks(r, size, set, ot.end, true)
		if err != nil {
			return nil, err
		}
		if err := crossCheck(ot.tables, scanned); err != nil {
			return nil, err
		}
	case !ot.inRange(parts, size):
		scanned, err := scanChunks(r, size, set, ot.end, false)
		if err != nil {
			return nil, err
		}
		ot.tables = scanned
	}

	var jobs []readJob
	for _, p := range plans {
		for _, b := range p.header.WriteOrder() {
			if _, ok := p.stores[b.Level]; ok {
				b.Layer = p.part
				jobs = append(jobs, readJob{plan: p, block: b})
			}
		}
	}
	err = runChunks(o.config, o.parallel, len(jobs), func(i int) error {
		return o.readChunk(r, size, set, ot, jobs[i])
	}, o.progress)
	if err != nil {
		return nil, err
	}

	first := set.headers[0]
	img := &Image{DisplayWindow: first.DisplayWindow, PixelAspectRatio: first.PixelAspectRatio}
	if !o.requiredOnly {
		for _, attr := range first.Attributes {
			if imageAttributes[attr.Name] {
				img.Attributes = append(img.Attributes, attr)
			}
		}
	}
	for _, p := range plans {
		img.Layers = append(img.Layers, p.layer)
	}
	return img, nil
}

// readChunk fetches, decompresses and decodes one chunk.
func (o ReadOptions) readChunk(r io.ReaderAt, size int64, set *headerSet, ot *offsetTables, job readJob) error {
	p, b := job.plan, job.block
	h := p.header
	off := ot.tables[p.part][b.Index]
	if off == 0 {
		return invalidf("part %d: chunk %d is missing", p.part, b.Index)
	}
	ch, err := readChunkHeader(r, int64(off), size, set)
	if err != nil {
		return err
	}
	if ch.part != p.part {
		return invalidf("part %d: chunk %d belongs to part %d", p.part, b.Index, ch.part)
	}
	if index, ok := h.BlockAt(ch.coords); !ok || index != b.Index {
		return invalidf("part %d: chunk %d has coordinates %+v", p.part, b.Index, ch.coords)
	}
	expected := h.BlockByteSize(b)
	if ch.payload > int64(expected) {
		return invalidf("part %d: chunk %d holds %d bytes, more than its %d uncompressed bytes",
			p.part, b.Index, ch.payload, expected)
	}

	buf := chunkBuffers.get(int(ch.payload))
	defer chunkBuffers.put(buf)
	if truncated, err := readAtFull(r, buf, int64(off)+int64(ch.headerSize)); err != nil {
		return err
	} else if truncated {
		return invalidf("part %d: chunk %d truncated", p.part, b.Index)
	}
	data := buf
	if len(buf) != expected {
		data, err = p.codec.Decompress(buf, h.blockLayout(b, p.layout), expected)
		if err != nil {
			return fmt.Errorf("part %d chunk %d: %w", p.part, b.Index, codecError(h.Compression, err))
		}
	}
	return decodeBlock(data, h, b, p.mapping, p.stores[b.Level])
}
