package exr

import (
	"encoding/binary"
	"io"
)

// offsetTables holds the chunk offset table of every part.
type offsetTables struct {
	tables [][]uint64

	// end is the offset of the first byte after the tables.
	end int64
}

// readOffsetTables reads one table per part, starting right after the
// headers. Each table has one entry per block of its part.
func readOffsetTables(r io.ReaderAt, size int64, set *headerSet) (*offsetTables, error) {
	total := int64(0)
	counts := make([]int, len(set.headers))
	for i, h := range set.headers {
		counts[i] = h.blockCount()
		total += int64(counts[i])
	}
	start := int64(set.end)
	if total > (size-start)/8 {
		return nil, invalidf("offset tables with %d entries do not fit in the file", total)
	}
	buf := make([]byte, total*8)
	if truncated, err := readAtFull(r, buf, start); err != nil {
		return nil, err
	} else if truncated {
		return nil, invalidf("offset tables truncated")
	}
	ot := &offsetTables{tables: make([][]uint64, len(counts)), end: start + total*8}
	pos := 0
	for i, n := range counts {
		table := make([]uint64, n)
		for j := range table {
			table[j] = binary.LittleEndian.Uint64(buf[pos:])
			pos += 8
		}
		ot.tables[i] = table
	}
	return ot, nil
}

// inRange reports whether every entry of the tables of the given parts
// points into the chunk area of the file.
func (ot *offsetTables) inRange(parts []int, size int64) bool {
	for _, p := range parts {
		for _, off := range ot.tables[p] {
			if off < uint64(ot.end) || off >= uint64(size) {
				return false
			}
		}
	}
	return true
}

// scanChunks rebuilds the offset tables by walking the chunks that follow
// the tables. With strict set, every chunk must be present exactly once and
// the walk must not fail; otherwise the walk stops at the first unreadable
// chunk and missing entries stay zero.
func scanChunks(r io.ReaderAt, size int64, set *headerSet, end int64, strict bool) ([][]uint64, error) {
	tables := make([][]uint64, len(set.headers))
	total := 0
	for i, h := range set.headers {
		tables[i] = make([]uint64, h.blockCount())
		total += len(tables[i])
	}
	pos := end
	for found := 0; found < total && pos < size; found++ {
		ch, err := readChunkHeader(r, pos, size, set)
		if err != nil {
			if strict {
				return nil, err
			}
			break
		}
		h := set.headers[ch.part]
		index, ok := h.BlockAt(ch.coords)
		if !ok {
			if strict {
				return nil, invalidf("chunk at offset %d: coordinates %+v outside part %d", pos, ch.coords, ch.part)
			}
			break
		}
		if tables[ch.part][index] != 0 {
			if strict {
				return nil, invalidf("chunk at offset %d: duplicate chunk %d of part %d", pos, index, ch.part)
			}
			break
		}
		tables[ch.part][index] = uint64(pos)
		pos += int64(ch.headerSize) + ch.payload
	}
	if strict {
		for p, table := range tables {
			for i, off := range table {
				if off == 0 {
					return nil, invalidf("chunk %d of part %d is missing", i, p)
				}
			}
		}
	}
	return tables, nil
}

// crossCheck compares recorded tables with scanned ones.
func crossCheck(recorded, scanned [][]uint64) error {
	for p := range recorded {
		for i, off := range recorded[p] {
			if off != scanned[p][i] {
				return invalidf("offset table of part %d: chunk %d recorded at %d, found at %d", p, i, off, scanned[p][i])
			}
		}
	}
	return nil
}
