package store

import (
	"main/internal/model/enum"
	"main/pkg/conn"
)

// Factory mints the production store handles: postgres for price history and
// a local sqlite file for cached state. Every call opens fresh handles, which
// is what lets forked environments hand each goroutine its own.
type Factory struct {
	pg        *conn.Client
	cachePath string
}

func NewFactory(pg *conn.Client, cachePath string) *Factory {
	return &Factory{pg: pg, cachePath: cachePath}
}

func (f *Factory) NewPriceStore(t enum.EnvType) (PriceStore, error) {
	return NewPgPriceStore(f.pg, t)
}

func (f *Factory) NewCacheStore(t enum.EnvType) (CacheStore, error) {
	return OpenSqliteCacheStore(f.cachePath, t)
}
