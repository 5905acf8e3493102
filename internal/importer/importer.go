// Package importer bulk-loads purchase orders from JSON-lines files.
//
// Each line holds one record in the POST /purchase body shape. Records whose
// reference is already stored, or that repeat a reference seen earlier in the
// same input, are skipped. Stored references are loaded into a bloom filter up
// front so only probable duplicates cost a database round trip.
package importer

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"sync/atomic"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/clinic-purchase/internal/domain/purchase"
	"github.com/xenking/clinic-purchase/internal/wire"
)

const (
	defaultWorkers = 4
	bloomFPR       = 0.001
	minBloomSize   = 1024
	maxLineSize    = 1 << 20
	progressEvery  = 10_000
)

var gzipMagic = []byte{0x1f, 0x8b}

// Service is the subset of *purchase.Service used by the importer.
type Service interface {
	Create(ctx context.Context, order *purchase.OrderInput, items []purchase.ItemInput) (string, error)
	ReferenceExists(ctx context.Context, reference string) (bool, error)
	References(ctx context.Context) ([]string, error)
}

var _ Service = (*purchase.Service)(nil)

// Summary counts the outcome of an import.
type Summary struct {
	Read    int
	Created int
	Skipped int
	Failed  int
}

type counters struct {
	read, created, skipped, failed atomic.Int64
}

func (c *counters) summary() Summary {
	return Summary{
		Read:    int(c.read.Load()),
		Created: int(c.created.Load()),
		Skipped: int(c.skipped.Load()),
		Failed:  int(c.failed.Load()),
	}
}

// Option configures an Importer.
type Option func(*Importer)

// WithWorkers sets the number of concurrent Create calls.
func WithWorkers(n int) Option {
	return func(im *Importer) {
		if n > 0 {
			im.workers = n
		}
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(lg *zap.Logger) Option {
	return func(im *Importer) {
		im.lg = lg
	}
}

// Importer creates purchase orders from JSON-lines input.
type Importer struct {
	svc     Service
	workers int
	lg      *zap.Logger
}

// New returns an Importer that writes through svc.
func New(svc Service, opts ...Option) *Importer {
	im := &Importer{
		svc:     svc,
		workers: defaultWorkers,
		lg:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

type record struct {
	line int
	req  *wire.CreateRequest
}

// ImportFile imports the file at path, which may be gzip-compressed.
func (im *Importer) ImportFile(ctx context.Context, path string) (Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Summary{}, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	return im.Import(ctx, f)
}

// Import reads records from r until EOF. Gzip input is detected by its magic
// bytes. Per-record failures are counted; only read errors and context
// cancellation abort the import.
func (im *Importer) Import(ctx context.Context, r io.Reader) (Summary, error) {
	var c counters

	src, err := decompress(r)
	if err != nil {
		return c.summary(), err
	}
	defer func() { _ = src.Close() }()

	stored, err := im.loadReferences(ctx)
	if err != nil {
		return c.summary(), err
	}

	records := make(chan record)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(records)
		return im.scan(gctx, src, records, &c)
	})
	for range im.workers {
		g.Go(func() error {
			for rec := range records {
				if err := im.create(gctx, rec, stored, &c); err != nil {
					return err
				}
			}
			return nil
		})
	}

	err = g.Wait()
	s := c.summary()
	im.lg.Info("Import finished",
		zap.Int("read", s.Read),
		zap.Int("created", s.Created),
		zap.Int("skipped", s.Skipped),
		zap.Int("failed", s.Failed),
	)
	return s, err
}

// loadReferences builds the bloom filter of stored order references.
func (im *Importer) loadReferences(ctx context.Context) (*bloom.BloomFilter, error) {
	refs, err := im.svc.References(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load references")
	}
	filter := bloom.NewWithEstimates(uint(max(len(refs), minBloomSize)), bloomFPR)
	for _, ref := range refs {
		filter.AddString(ref)
	}
	im.lg.Info("Loaded stored references", zap.Int("count", len(refs)))
	return filter, nil
}

// scan decodes lines and drops references repeated within the input.
func (im *Importer) scan(ctx context.Context, r io.Reader, out chan<- record, c *counters) error {
	seen := make(map[string]struct{})
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	line := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line++
		raw := scanner.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		if n := c.read.Add(1); n%progressEvery == 0 {
			im.lg.Info("Import progress", zap.Int64("read", n))
		}

		req, err := wire.DecodeCreateRequest(raw)
		if err != nil {
			c.failed.Add(1)
			im.lg.Warn("Malformed record", zap.Int("line", line), zap.Error(err))
			continue
		}
		if req.Order != nil && req.Order.Reference != "" {
			if _, dup := seen[req.Order.Reference]; dup {
				c.skipped.Add(1)
				im.lg.Debug("Duplicate reference in input",
					zap.Int("line", line),
					zap.String("reference", req.Order.Reference),
				)
				continue
			}
			seen[req.Order.Reference] = struct{}{}
		}

		select {
		case out <- record{line: line, req: req}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "scan input")
	}
	return nil
}

// create skips stored references and creates the rest. Only context errors
// are returned; everything else counts as a failed record.
func (im *Importer) create(ctx context.Context, rec record, stored *bloom.BloomFilter, c *counters) error {
	lg := im.lg.With(zap.Int("line", rec.line))

	if ref := referenceOf(rec.req); ref != "" && stored.TestString(ref) {
		exists, err := im.svc.ReferenceExists(ctx, ref)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.failed.Add(1)
			lg.Warn("Check reference", zap.String("reference", ref), zap.Error(err))
			return nil
		}
		if exists {
			c.skipped.Add(1)
			lg.Debug("Reference already stored", zap.String("reference", ref))
			return nil
		}
	}

	id, err := im.svc.Create(ctx, rec.req.Order, rec.req.Items)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.failed.Add(1)
		lg.Warn("Create purchase", zap.Error(err))
		return nil
	}
	c.created.Add(1)
	lg.Debug("Created purchase", zap.String("uuid", id))
	return nil
}

func referenceOf(req *wire.CreateRequest) string {
	if req.Order == nil {
		return ""
	}
	return req.Order.Reference
}

// decompress wraps r in a gzip reader when it starts with the gzip magic.
func decompress(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(len(gzipMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "peek input")
	}
	if len(magic) == len(gzipMagic) && magic[0] == gzipMagic[0] && magic[1] == gzipMagic[1] {
		gz, err := pgzip.NewReader(br)
		if err != nil {
			return nil, errors.Wrap(err, "create gzip reader")
		}
		return gz, nil
	}
	return io.NopCloser(br), nil
}
