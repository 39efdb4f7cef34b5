// Package mp4 classifies stored media blobs by walking the ISO base media
// container structure without downloading the whole object.
package mp4

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"

	"hearingvault/internal/blob"
)

const (
	// MimeVideo is reported when any track carries a video handler.
	MimeVideo = "video/mp4"
	// MimeAudio is reported when a sound handler is present and no video
	// handler is.
	MimeAudio = "audio/mp4"

	// cacheWindow bounds the read-through cache. Requests larger than the
	// window bypass it.
	cacheWindow = 4096

	// maxDepth stops runaway recursion on hostile containers.
	maxDepth = 32
)

// Source provides ranged access to a stored object.
type Source interface {
	Head(ctx context.Context, key string) (blob.ObjectInfo, bool, error)
	GetRange(ctx context.Context, key string, start, end int64) (io.ReadCloser, error)
}

// Classifier walks moov/trak/mdia atoms looking for handler declarations.
type Classifier struct {
	source Source
	logger *slog.Logger
}

// NewClassifier builds a classifier reading through the provided source.
func NewClassifier(source Source, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{source: source, logger: logger}
}

// Classify returns MimeVideo, MimeAudio, or the empty string when the
// container cannot be identified. Classification never fails: any I/O or
// parse problem degrades to the empty string.
func (c *Classifier) Classify(ctx context.Context, key string) string {
	info, ok, err := c.source.Head(ctx, key)
	if err != nil {
		c.logger.Warn("classification metadata fetch failed", "key", key, "error", err)
		return ""
	}
	if !ok || info.SizeBytes < boxHeaderSize {
		return ""
	}
	reader := newWindowReader(ctx, c.source, key, info.SizeBytes)

	header, err := reader.read(0, boxHeaderSize)
	if err != nil {
		return ""
	}
	if string(header[4:8]) != "ftyp" {
		return ""
	}

	found := walkBoxes(reader, 0, info.SizeBytes, handlerFlags{}, 0)
	switch {
	case found.video:
		return MimeVideo
	case found.audio:
		return MimeAudio
	default:
		return ""
	}
}

const boxHeaderSize = 8

// handlerFlags accumulates handler subtypes seen during the walk. The value
// is threaded through each recursive call and returned, never shared.
type handlerFlags struct {
	video bool
	audio bool
}

func (f handlerFlags) merge(other handlerFlags) handlerFlags {
	return handlerFlags{video: f.video || other.video, audio: f.audio || other.audio}
}

// walkBoxes scans the [start, end) byte span for atoms. A malformed atom
// halts the walk for that branch; whatever was found up to that point is
// still reported.
func walkBoxes(r *windowReader, start, end int64, found handlerFlags, depth int) handlerFlags {
	if depth > maxDepth {
		return found
	}
	offset := start
	for offset+boxHeaderSize <= end {
		header, err := r.read(offset, boxHeaderSize)
		if err != nil {
			return found
		}
		size := int64(binary.BigEndian.Uint32(header[:4]))
		boxType := string(header[4:8])

		headerLen := int64(boxHeaderSize)
		switch size {
		case 0:
			// Box extends to the end of the enclosing span.
			size = end - offset
		case 1:
			extended, err := r.read(offset+boxHeaderSize, 8)
			if err != nil {
				return found
			}
			size = int64(binary.BigEndian.Uint64(extended))
			headerLen = boxHeaderSize + 8
		}
		if size < headerLen || offset+size > end {
			return found
		}

		switch boxType {
		case "moov", "trak", "mdia":
			found = found.merge(walkBoxes(r, offset+headerLen, offset+size, handlerFlags{}, depth+1))
		case "hdlr":
			found = found.merge(readHandler(r, offset+headerLen, offset+size))
		}

		offset += size
	}
	return found
}

// readHandler extracts the handler subtype from an hdlr payload: a fixed
// 8-byte prefix (version/flags and pre_defined) followed by the 4-byte type.
func readHandler(r *windowReader, payloadStart, payloadEnd int64) handlerFlags {
	const prefix = 8
	if payloadStart+prefix+4 > payloadEnd {
		return handlerFlags{}
	}
	subtype, err := r.read(payloadStart+prefix, 4)
	if err != nil {
		return handlerFlags{}
	}
	switch string(subtype) {
	case "vide":
		return handlerFlags{video: true}
	case "soun":
		return handlerFlags{audio: true}
	default:
		return handlerFlags{}
	}
}

var errOutOfBounds = errors.New("mp4: read out of bounds")

// windowReader serves small reads out of the most recently fetched byte
// range. Reads larger than the window bypass the cache entirely.
type windowReader struct {
	ctx    context.Context
	source Source
	key    string
	size   int64

	buf    []byte
	bufOff int64
}

func newWindowReader(ctx context.Context, source Source, key string, size int64) *windowReader {
	return &windowReader{ctx: ctx, source: source, key: key, size: size}
}

func (r *windowReader) read(offset, length int64) ([]byte, error) {
	if offset < 0 || length <= 0 || offset+length > r.size {
		return nil, errOutOfBounds
	}
	if length > cacheWindow {
		return r.fetch(offset, offset+length-1)
	}
	if r.buf != nil && offset >= r.bufOff && offset+length <= r.bufOff+int64(len(r.buf)) {
		cached := r.buf[offset-r.bufOff : offset-r.bufOff+length]
		return cached, nil
	}
	windowEnd := offset + cacheWindow
	if windowEnd > r.size {
		windowEnd = r.size
	}
	data, err := r.fetch(offset, windowEnd-1)
	if err != nil {
		return nil, err
	}
	r.buf = data
	r.bufOff = offset
	if int64(len(data)) < length {
		return nil, io.ErrUnexpectedEOF
	}
	return data[:length], nil
}

func (r *windowReader) fetch(start, end int64) ([]byte, error) {
	body, err := r.source.GetRange(r.ctx, r.key, start, end)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = body.Close()
	}()
	return io.ReadAll(body)
}
