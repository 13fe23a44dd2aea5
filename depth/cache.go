package depth

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"math"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pthm-cable/depthcloud/raster"
	"github.com/pthm-cable/depthcloud/telemetry"
)

const cacheSchema = `
CREATE TABLE IF NOT EXISTS depth_cache (
	key        TEXT PRIMARY KEY,
	width      INTEGER NOT NULL,
	height     INTEGER NOT NULL,
	data       BLOB NOT NULL,
	created_at INTEGER NOT NULL
)`

// Cache persists depth buffers in SQLite, keyed by image content and provider.
type Cache struct {
	db *sql.DB
}

// OpenCache opens (or creates) a cache database. Use ":memory:" for a
// process-local cache.
func OpenCache(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening depth cache: %w", err)
	}
	// A single connection keeps :memory: databases shared and serializes writes.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(cacheSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating depth cache schema: %w", err)
	}
	return &Cache{db: db}, nil
}

// Key derives the cache key for img estimated by the named provider.
func Key(provider string, img image.Image) (string, error) {
	rgba, err := raster.NewDecoder(img).Decode()
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write([]byte(provider))
	var dims [8]byte
	binary.LittleEndian.PutUint32(dims[0:4], uint32(rgba.Rect.Dx()))
	binary.LittleEndian.PutUint32(dims[4:8], uint32(rgba.Rect.Dy()))
	h.Write(dims[:])
	h.Write(rgba.Pix)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Get returns the cached buffer for key. ok is false on a miss.
func (c *Cache) Get(ctx context.Context, key string) (buf *Buffer, ok bool, err error) {
	var w, h int
	var data []byte
	err = c.db.QueryRowContext(ctx,
		`SELECT width, height, data FROM depth_cache WHERE key = ?`, key,
	).Scan(&w, &h, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading depth cache: %w", err)
	}

	buf, err = decodeValues(w, h, data)
	if err != nil {
		return nil, false, err
	}
	return buf, true, nil
}

// Put stores buf under key, replacing any existing entry.
func (c *Cache) Put(ctx context.Context, key string, buf *Buffer) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO depth_cache (key, width, height, data, created_at) VALUES (?, ?, ?, ?, ?)`,
		key, buf.Width, buf.Height, encodeValues(buf.Values), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("writing depth cache: %w", err)
	}
	return nil
}

// Len returns the number of cached entries.
func (c *Cache) Len(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM depth_cache`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting depth cache: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// encodeValues packs float32 values little-endian.
func encodeValues(values []float32) []byte {
	out := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func decodeValues(w, h int, data []byte) (*Buffer, error) {
	if w <= 0 || h <= 0 || len(data) != 4*w*h {
		return nil, fmt.Errorf("depth cache: corrupt entry (%dx%d, %d bytes)", w, h, len(data))
	}
	buf := NewBuffer(w, h)
	for i := range buf.Values {
		buf.Values[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return buf, nil
}

// Cached wraps a provider with a read-through cache. Cache failures are
// recorded and otherwise ignored.
type Cached struct {
	Inner Provider
	Cache *Cache
	Rec   telemetry.Recorder
}

// Name implements Provider.
func (c *Cached) Name() string {
	return c.Inner.Name()
}

// Estimate implements Provider.
func (c *Cached) Estimate(ctx context.Context, img image.Image) (*Buffer, error) {
	rec := c.Rec
	if rec == nil {
		rec = telemetry.Nop
	}

	key, err := Key(c.Inner.Name(), img)
	if err != nil {
		return nil, estimationErr(c.Name(), fmt.Errorf("%w: %v", ErrUnsupportedFormat, err))
	}

	if buf, ok, err := c.Cache.Get(ctx, key); err != nil {
		rec.Record(telemetry.NewEvent(telemetry.LevelWarn, telemetry.KindDepthCacheError,
			"depth cache read failed", "error", err.Error()))
	} else if ok {
		rec.Record(telemetry.NewEvent(telemetry.LevelDebug, telemetry.KindDepthCacheHit,
			"depth cache hit", "provider", c.Inner.Name(), "key", key[:12]))
		return buf, nil
	}

	buf, err := c.Inner.Estimate(ctx, img)
	if err != nil {
		return nil, err
	}
	if err := c.Cache.Put(ctx, key, buf); err != nil {
		rec.Record(telemetry.NewEvent(telemetry.LevelWarn, telemetry.KindDepthCacheError,
			"depth cache write failed", "error", err.Error()))
	}
	return buf, nil
}
