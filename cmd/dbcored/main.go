// Command dbcored wires the storage stack to the execution engine and runs
// a small demo query end to end: create a table and index, seed a few
// rows, run a sorted scan through the optimizer, and print the results.
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"dbcore/catalog"
	"dbcore/execution"
	"dbcore/optimizer"
	"dbcore/storage/buffer"
	"dbcore/storage/disk"
	"dbcore/storage/tuple"
	"dbcore/txn"
)

var (
	dataFile = flag.String("data", "dbcore.data", "path to the page file")
	poolSize = flag.Int("pool-size", 128, "number of buffer pool frames")
)

func main() {
	flag.Parse()

	log, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init:", err)
		os.Exit(1)
	}
	defer log.Sync()

	dm, err := disk.NewFileManager(*dataFile, log)
	if err != nil {
		log.Fatal("open data file", zap.Error(err))
	}
	defer dm.Shutdown()

	bp := buffer.NewPoolManager(*poolSize, dm, log)

	cat, err := catalog.New(bp, log)
	if err != nil {
		log.Fatal("construct catalog", zap.Error(err))
	}

	txnMgr, err := txn.NewManager(0, log)
	if err != nil {
		log.Fatal("construct transaction manager", zap.Error(err))
	}
	lockMgr := txn.NewSimpleLockManager()

	schema := tuple.NewSchema(
		tuple.Column{Name: "id", Type: tuple.TypeInteger},
		tuple.Column{Name: "name", Type: tuple.TypeVarchar},
	)
	table, err := cat.CreateTable("greeting", schema)
	if err != nil {
		log.Fatal("create table", zap.Error(err))
	}
	if _, err := cat.CreateIndex("greeting_id_idx", "greeting", "id"); err != nil {
		log.Fatal("create index", zap.Error(err))
	}
	for i, name := range []string{"alice", "bob", "carol"} {
		if _, err := table.Heap.InsertTuple(tuple.Tuple{Values: []tuple.Value{
			tuple.NewInteger(int64(i)), tuple.NewVarchar(name),
		}}); err != nil {
			log.Fatal("seed insert", zap.Error(err))
		}
	}

	tx := txnMgr.Begin(txn.ReadCommitted)
	ctx := execution.NewContext(cat, bp, lockMgr, tx, log)

	plan := &execution.SortPlan{
		Schema: schema,
		Child:  &execution.SeqScanPlan{Schema: schema, TableName: "greeting"},
		OrderBy: []execution.OrderByExpr{
			{Expr: execution.ColumnValueExpr{ColIdx: 0}, Desc: true},
		},
	}
	optimized := optimizer.Optimize(plan, optimizer.DefaultRules)

	rows, err := execution.Execute(optimized, ctx)
	if err != nil {
		log.Fatal("execute demo query", zap.Error(err))
	}
	for _, row := range rows {
		fmt.Printf("%d\t%s\n", row.GetValue(0).Integer, row.GetValue(1).Str)
	}

	if err := txnMgr.Commit(tx); err != nil {
		log.Fatal("commit demo transaction", zap.Error(err))
	}
	if err := bp.FlushAllPages(); err != nil {
		log.Fatal("flush pages", zap.Error(err))
	}
}
