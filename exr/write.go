package exr

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/fursund/exrs/compression"
)

// WriteOptions configures how an image is written. Every method returns a
// modified copy.
type WriteOptions struct {
	img          *Image
	parallel     bool
	config       ParallelConfig
	lossy        bool
	progress     ProgressFunc
	requiredOnly bool
}

// Write returns the default write configuration for img: parallel
// compression with every attribute.
func (img *Image) Write() WriteOptions {
	return WriteOptions{img: img, parallel: true, config: DefaultParallelConfig()}
}

// Parallel compresses chunks on a worker pool.
func (o WriteOptions) Parallel() WriteOptions {
	o.parallel = true
	return o
}

// NonParallel compresses chunks one by one on the calling goroutine.
func (o WriteOptions) NonParallel() WriteOptions {
	o.parallel = false
	return o
}

// Workers compresses chunks on n workers. n <= 0 uses runtime.GOMAXPROCS(0).
func (o WriteOptions) Workers(n int) WriteOptions {
	o.parallel = true
	o.config.NumWorkers = n
	return o
}

// LossyConversion allows storage samples that the file sample type cannot
// hold exactly.
func (o WriteOptions) LossyConversion() WriteOptions {
	o.lossy = true
	return o
}

// OnProgress reports progress after every compressed chunk.
func (o WriteOptions) OnProgress(fn ProgressFunc) WriteOptions {
	o.progress = fn
	return o
}

// OnlyRequiredAttributes omits image and layer attributes.
func (o WriteOptions) OnlyRequiredAttributes() WriteOptions {
	o.requiredOnly = true
	return o
}

// ToFile writes the image to path. The file is removed if writing fails.
func (o WriteOptions) ToFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := o.ToWriter(f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

// encodedChunk is the stored payload of one block.
type encodedChunk struct {
	payload []byte
	pooled  bool
}

type writeJob struct {
	layer int
	block BlockIndex
}

// ToWriter writes the image to w. All chunks are compressed before the
// first byte is written, so w does not need to seek.
func (o WriteOptions) ToWriter(w io.Writer) error {
	img := o.img
	if err := img.validate(); err != nil {
		return err
	}
	headers := make([]*Header, len(img.Layers))
	codecs := make([]compression.Codec, len(img.Layers))
	layouts := make([][]compression.Channel, len(img.Layers))
	results := make([][]encodedChunk, len(img.Layers))
	var jobs []writeJob
	for i, l := range img.Layers {
		h := l.header(img, !o.requiredOnly)
		if err := h.validate(); err != nil {
			return fmt.Errorf("layer %q: %w", l.Name, err)
		}
		if err := l.validateLevels(h); err != nil {
			return err
		}
		for _, level := range l.Levels {
			if err := checkWriteStorage(l.Channels, bindStorage(l.Channels, level.Pixels), o.lossy); err != nil {
				return fmt.Errorf("layer %q: %w", l.Name, err)
			}
		}
		codec, err := codecFor(h.Compression)
		if err != nil {
			return fmt.Errorf("layer %q: %w", l.Name, err)
		}
		headers[i], codecs[i], layouts[i] = h, codec, codecChannels(h.Channels)
		blocks := h.WriteOrder()
		results[i] = make([]encodedChunk, len(blocks))
		for _, b := range blocks {
			b.Layer = i
			jobs = append(jobs, writeJob{layer: i, block: b})
		}
	}
	headerBytes, err := writeHeaders(headers)
	if err != nil {
		return err
	}

	levelIndex := make([]map[LevelIndex]PixelStorage, len(img.Layers))
	for i, l := range img.Layers {
		levelIndex[i] = make(map[LevelIndex]PixelStorage, len(l.Levels))
		for _, level := range l.Levels {
			levelIndex[i][level.Index] = bindStorage(l.Channels, level.Pixels)
		}
	}
	err = runChunks(o.config, o.parallel, len(jobs), func(j int) error {
		job := jobs[j]
		h, b := headers[job.layer], job.block
		size := h.BlockByteSize(b)
		raw := encodeBlock(chunkBuffers.get(size)[:0], h, b, levelIndex[job.layer][b.Level])
		packed, err := codecs[job.layer].Compress(raw, h.blockLayout(b, layouts[job.layer]))
		if err != nil {
			return fmt.Errorf("layer %d chunk %d: %w", job.layer, b.Index, codecError(h.Compression, err))
		}
		if len(packed) >= len(raw) {
			results[job.layer][b.Index] = encodedChunk{payload: raw, pooled: true}
			return nil
		}
		chunkBuffers.put(raw)
		results[job.layer][b.Index] = encodedChunk{payload: packed}
		return nil
	}, o.progress)
	if err != nil {
		return err
	}

	multipart := len(headers) > 1
	total := 0
	for _, r := range results {
		total += len(r)
	}
	pos := uint64(len(headerBytes) + 8*total)
	tables := make([]byte, 0, 8*total)
	for i, h := range headers {
		offsets := make([]uint64, len(results[i]))
		for _, b := range h.WriteOrder() {
			offsets[b.Index] = pos
			pos += uint64(len(appendChunkHeader(nil, multipart, i, h, b, 0)) + len(results[i][b.Index].payload))
		}
		for _, off := range offsets {
			tables = binary.LittleEndian.AppendUint64(tables, off)
		}
	}

	bw := bufio.NewWriterSize(w, 1<<20)
	if _, err := bw.Write(headerBytes); err != nil {
		return err
	}
	if _, err := bw.Write(tables); err != nil {
		return err
	}
	var prefix []byte
	for i, h := range headers {
		for _, b := range h.WriteOrder() {
			chunk := results[i][b.Index]
			prefix = appendChunkHeader(prefix[:0], multipart, i, h, b, len(chunk.payload))
			if _, err := bw.Write(prefix); err != nil {
				return err
			}
			if _, err := bw.Write(chunk.payload); err != nil {
				return err
			}
			if chunk.pooled {
				chunkBuffers.put(chunk.payload)
			}
		}
	}
	return bw.Flush()
}
