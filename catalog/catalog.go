package catalog

import (
	"sync"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"dbcore/storage/buffer"
	"dbcore/storage/index"
	"dbcore/storage/tuple"
)

// OID identifies a table or index within a Catalog.
type OID int32

// TableInfo is a table's full metadata: name, schema, and its heap.
type TableInfo struct {
	OID    OID
	Name   string
	Schema *tuple.Schema
	Heap   *TableHeap
}

// IndexInfo is an index's full metadata: name, owning table, key column,
// and the underlying tree.
type IndexInfo struct {
	OID       OID
	Name      string
	TableName string
	KeyColumn string
	Tree      *index.BPlusTree
}

// Catalog is the single point of truth for table/index metadata. Repeated
// name/oid lookups are memoized in a ristretto cache so hot query-planning
// paths (resolving a table name for every statement) don't retake the
// catalog mutex on every call.
type Catalog struct {
	mu  sync.RWMutex
	bp  *buffer.PoolManager
	log *zap.Logger

	tables         map[OID]*TableInfo
	tablesByName   map[string]OID
	indexes        map[OID]*IndexInfo
	indexesByTable map[string][]OID
	nextOID        OID

	cache *ristretto.Cache[string, any]
}

// New constructs an empty catalog backed by bp.
func New(bp *buffer.PoolManager, log *zap.Logger) (*Catalog, error) {
	if log == nil {
		log = zap.NewNop()
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, any]{
		NumCounters: 1e4,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, errors.Wrap(err, "construct catalog cache")
	}
	return &Catalog{
		bp:             bp,
		log:            log,
		tables:         make(map[OID]*TableInfo),
		tablesByName:   make(map[string]OID),
		indexes:        make(map[OID]*IndexInfo),
		indexesByTable: make(map[string][]OID),
		cache:          cache,
	}, nil
}

func (c *Catalog) tableCacheKey(oid OID) string    { return "table#" + itoa(int(oid)) }
func (c *Catalog) nameCacheKey(name string) string { return "table@" + name }
func (c *Catalog) indexCacheKey(oid OID) string    { return "index#" + itoa(int(oid)) }

// CreateTable registers a new table with a fresh heap and returns its info.
func (c *Catalog) CreateTable(name string, schema *tuple.Schema) (*TableInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.tablesByName[name]; exists {
		return nil, errors.Errorf("table %q already exists", name)
	}
	heap, err := NewTableHeap(c.bp, schema)
	if err != nil {
		return nil, errors.Wrapf(err, "create heap for table %q", name)
	}
	oid := c.nextOID
	c.nextOID++
	info := &TableInfo{OID: oid, Name: name, Schema: schema, Heap: heap}
	c.tables[oid] = info
	c.tablesByName[name] = oid
	c.cache.Set(c.tableCacheKey(oid), info, 1)
	c.cache.Set(c.nameCacheKey(name), info, 1)
	c.log.Debug("created table", zap.String("name", name), zap.Int32("oid", int32(oid)))
	return info, nil
}

// GetTable resolves a table by oid, consulting the cache first.
func (c *Catalog) GetTable(oid OID) (*TableInfo, bool) {
	if v, ok := c.cache.Get(c.tableCacheKey(oid)); ok {
		return v.(*TableInfo), true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.tables[oid]
	if ok {
		c.cache.Set(c.tableCacheKey(oid), info, 1)
	}
	return info, ok
}

// GetTableByName resolves a table by name, consulting the cache first.
func (c *Catalog) GetTableByName(name string) (*TableInfo, bool) {
	if v, ok := c.cache.Get(c.nameCacheKey(name)); ok {
		return v.(*TableInfo), true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	oid, ok := c.tablesByName[name]
	if !ok {
		return nil, false
	}
	info := c.tables[oid]
	c.cache.Set(c.nameCacheKey(name), info, 1)
	return info, true
}

// CreateIndex builds a new empty B+Tree index over keyColumn of table.
func (c *Catalog) CreateIndex(name, tableName, keyColumn string) (*IndexInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tableOID, ok := c.tablesByName[tableName]
	if !ok {
		return nil, errors.Errorf("create index %q: table %q not found", name, tableName)
	}
	table := c.tables[tableOID]
	if table.Schema.IndexOf(keyColumn) == -1 {
		return nil, errors.Errorf("create index %q: column %q not found on table %q", name, keyColumn, tableName)
	}

	tree, err := index.NewBPlusTree(c.bp)
	if err != nil {
		return nil, errors.Wrapf(err, "create tree for index %q", name)
	}
	oid := c.nextOID
	c.nextOID++
	info := &IndexInfo{OID: oid, Name: name, TableName: tableName, KeyColumn: keyColumn, Tree: tree}
	c.indexes[oid] = info
	c.indexesByTable[tableName] = append(c.indexesByTable[tableName], oid)
	c.cache.Set(c.indexCacheKey(oid), info, 1)
	c.log.Debug("created index", zap.String("name", name), zap.String("table", tableName))
	return info, nil
}

// GetIndex resolves an index by oid, consulting the cache first.
func (c *Catalog) GetIndex(oid OID) (*IndexInfo, bool) {
	if v, ok := c.cache.Get(c.indexCacheKey(oid)); ok {
		return v.(*IndexInfo), true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.indexes[oid]
	if ok {
		c.cache.Set(c.indexCacheKey(oid), info, 1)
	}
	return info, ok
}

// GetTableIndexes returns every index built over tableName.
func (c *Catalog) GetTableIndexes(tableName string) []*IndexInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	oids := c.indexesByTable[tableName]
	out := make([]*IndexInfo, 0, len(oids))
	for _, oid := range oids {
		out = append(out, c.indexes[oid])
	}
	return out
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
