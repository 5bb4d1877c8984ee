package catalog

import (
	"testing"

	"dbcore/storage/buffer"
	"dbcore/storage/page"
	"dbcore/storage/tuple"
)

type memDisk struct {
	pages map[page.ID][]byte
	next  int64
}

func newMemDisk() *memDisk { return &memDisk{pages: make(map[page.ID][]byte)} }

func (m *memDisk) ReadPage(id page.ID, out []byte) error {
	data, ok := m.pages[id]
	if !ok {
		for i := range out {
			out[i] = 0
		}
		return nil
	}
	copy(out, data)
	return nil
}

func (m *memDisk) WritePage(id page.ID, in []byte) error {
	buf := make([]byte, len(in))
	copy(buf, in)
	m.pages[id] = buf
	return nil
}

func (m *memDisk) AllocatePage() page.ID {
	id := page.ID(m.next)
	m.next++
	return id
}
func (m *memDisk) DeallocatePage(id page.ID) {}
func (m *memDisk) Shutdown() error           { return nil }

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	bp := buffer.NewPoolManager(32, newMemDisk(), nil)
	cat, err := New(bp, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return cat
}

func TestCatalogCreateAndLookupTable(t *testing.T) {
	cat := newTestCatalog(t)
	schema := tuple.NewSchema(tuple.Column{Name: "id", Type: tuple.TypeInteger})

	info, err := cat.CreateTable("users", schema)
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}

	byOID, ok := cat.GetTable(info.OID)
	if !ok || byOID.Name != "users" {
		t.Fatalf("GetTable failed: %+v ok=%v", byOID, ok)
	}
	byName, ok := cat.GetTableByName("users")
	if !ok || byName.OID != info.OID {
		t.Fatalf("GetTableByName failed: %+v ok=%v", byName, ok)
	}

	if _, err := cat.CreateTable("users", schema); err == nil {
		t.Fatalf("expected duplicate table name to fail")
	}
}

func TestCatalogCreateIndex(t *testing.T) {
	cat := newTestCatalog(t)
	schema := tuple.NewSchema(tuple.Column{Name: "id", Type: tuple.TypeInteger})
	if _, err := cat.CreateTable("t", schema); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	idx, err := cat.CreateIndex("t_id_idx", "t", "id")
	if err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}
	got := cat.GetTableIndexes("t")
	if len(got) != 1 || got[0].OID != idx.OID {
		t.Fatalf("expected one index for t, got %+v", got)
	}
	if _, err := cat.CreateIndex("bad", "nope", "id"); err == nil {
		t.Fatalf("expected error for unknown table")
	}
	if _, err := cat.CreateIndex("bad", "t", "nope"); err == nil {
		t.Fatalf("expected error for unknown column")
	}
}

func TestTableHeapInsertAndScan(t *testing.T) {
	bp := buffer.NewPoolManager(32, newMemDisk(), nil)
	schema := tuple.NewSchema(
		tuple.Column{Name: "id", Type: tuple.TypeInteger},
		tuple.Column{Name: "name", Type: tuple.TypeVarchar},
	)
	heap, err := NewTableHeap(bp, schema)
	if err != nil {
		t.Fatalf("NewTableHeap: %v", err)
	}

	var rids []tuple.RID
	for i := 0; i < 50; i++ {
		rid, err := heap.InsertTuple(tuple.Tuple{Values: []tuple.Value{
			tuple.NewInteger(int64(i)), tuple.NewVarchar("row"),
		}})
		if err != nil {
			t.Fatalf("InsertTuple: %v", err)
		}
		rids = append(rids, rid)
	}

	if err := heap.UpdateTupleMeta(rids[5], TupleMeta{Deleted: true}); err != nil {
		t.Fatalf("UpdateTupleMeta: %v", err)
	}

	it, err := heap.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer it.Close()

	count, deleted := 0, 0
	for {
		_, meta, ok, err := it.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		count++
		if meta.Deleted {
			deleted++
		}
	}
	if count != 50 {
		t.Fatalf("expected 50 tuples, got %d", count)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted tuple, got %d", deleted)
	}
}
