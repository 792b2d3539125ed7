package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dray-io/objaccess/internal/compress"
	"github.com/dray-io/objaccess/internal/objectstore"
	"github.com/dray-io/objaccess/internal/writer"
)

type putOptions struct {
	compression string
	contentType string
	chunkSize   string
	metadata    map[string]string
	blocking    bool
	noSuffix    bool
}

func newPutCmd(a *app) *cobra.Command {
	var opts putOptions

	cmd := &cobra.Command{
		Use:   "put <key> [file]",
		Short: "Stream a file (or stdin) to an object in fixed-size blocks",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := io.Reader(cmd.InOrStdin())
			if len(args) == 2 && args[1] != "-" {
				f, err := os.Open(args[1])
				if err != nil {
					return err
				}
				defer f.Close()
				src = f
			}
			return a.put(cmd, objectstore.NormalizeKey(args[0]), src, opts)
		},
	}

	cmd.Flags().StringVar(&opts.compression, "compress", "", "compression codec (none, gzip, zstd, lz4, snappy); default from config")
	cmd.Flags().StringVar(&opts.contentType, "content-type", "", "content type recorded with the object; default from config")
	cmd.Flags().StringVar(&opts.chunkSize, "chunk-size", "", `block size, e.g. "8MiB"; default from config`)
	cmd.Flags().StringToStringVar(&opts.metadata, "meta", nil, "user metadata as key=value pairs")
	cmd.Flags().BoolVar(&opts.blocking, "blocking", false, "use the synchronous writer")
	cmd.Flags().BoolVar(&opts.noSuffix, "no-suffix", false, "do not append the codec extension to the key")

	return cmd
}

// chunker cuts a byte stream into blocks of exactly size bytes; only the
// block emitted by Flush may be shorter.
type chunker struct {
	w      io.Writer
	buf    []byte
	size   int
	blocks int
	bytes  int64
}

func newChunker(w io.Writer, size int) *chunker {
	return &chunker{w: w, buf: make([]byte, 0, size), size: size}
}

func (c *chunker) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		n := min(c.size-len(c.buf), len(p))
		c.buf = append(c.buf, p[:n]...)
		p = p[n:]
		written += n
		if len(c.buf) == c.size {
			if err := c.emit(); err != nil {
				return written, err
			}
		}
	}
	return written, nil
}

// Flush emits the buffered tail, if any.
func (c *chunker) Flush() error {
	if len(c.buf) == 0 {
		return nil
	}
	return c.emit()
}

func (c *chunker) emit() error {
	n, err := c.w.Write(c.buf)
	if err != nil {
		return err
	}
	c.blocks++
	c.bytes += int64(n)
	c.buf = c.buf[:0]
	return nil
}

func (a *app) put(cmd *cobra.Command, key string, src io.Reader, opts putOptions) error {
	ctx := cmd.Context()

	if opts.chunkSize != "" {
		a.cfg.Writer.ChunkSize = opts.chunkSize
	}
	chunkSize, err := a.cfg.ChunkSizeBytes()
	if err != nil {
		return err
	}
	if opts.compression == "" {
		opts.compression = a.cfg.Writer.Compression
	}
	codec, err := compress.ParseCodec(opts.compression)
	if err != nil {
		return err
	}
	if ext := codec.Extension(); ext != "" && !opts.noSuffix && !strings.HasSuffix(key, ext) {
		key += ext
	}

	wopts := objectstore.WriteOptions{
		ContentType: opts.contentType,
		Metadata:    map[string]string{},
	}
	if wopts.ContentType == "" {
		wopts.ContentType = a.cfg.Writer.ContentType
	}
	for k, v := range opts.metadata {
		wopts.Metadata[k] = v
	}
	if enc := codec.ContentEncoding(); enc != "" {
		wopts.Metadata["content-encoding"] = enc
	}

	stop, err := a.startMetrics()
	if err != nil {
		return err
	}
	defer stop()

	store, err := a.store(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	var sink io.WriteCloser
	fields := map[string]any{"key": key, "chunkSize": chunkSize, "codec": string(codec)}
	if opts.blocking {
		bw, err := writer.CreateBlocking(ctx, store, key, wopts)
		if err != nil {
			return err
		}
		sink = bw
	} else {
		ow, err := writer.Create(ctx, store, key, wopts)
		if err != nil {
			return err
		}
		fields["sessionId"] = ow.ID()
		sink = ow
	}
	a.logger.Debugf("upload started", fields)

	chunks := newChunker(sink, chunkSize)
	zw, err := compress.NewWriter(codec, chunks)
	if err != nil {
		return err
	}

	read, err := io.Copy(zw, src)
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	if err := chunks.Flush(); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	if err := sink.Close(); err != nil {
		return fmt.Errorf("close %s: %w", key, err)
	}

	a.logger.Infof("upload completed", map[string]any{
		"key":    key,
		"read":   read,
		"stored": chunks.bytes,
		"blocks": chunks.blocks,
	})
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s read, %s stored in %d blocks\n",
		key, humanize.IBytes(uint64(read)), humanize.IBytes(uint64(chunks.bytes)), chunks.blocks)
	return nil
}
