// mpt-bench bulk-loads a trie over a leveldb backend with random key/value
// pairs and reports the resulting root, timing the run. It exists to
// exercise the engine facade and the leveldb-backed store end to end
// outside of the test suite.
package main

import (
	"encoding/hex"
	"fmt"
	"math/rand"
	"os"
	"time"

	fuzz "github.com/google/gofuzz"
	isatty "github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"gopkg.in/cheggaaa/pb.v1"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/vladchernenko/go-mpt/accdb/leveldb"
	"github.com/vladchernenko/go-mpt/trie"
	"github.com/vladchernenko/go-mpt/triedb"
)

var (
	version   string
	gitCommit string

	flags = []cli.Flag{
		cli.StringFlag{
			Name:  "datadir",
			Value: "",
			Usage: "leveldb directory (empty runs entirely in memory)",
		},
		cli.IntFlag{
			Name:  "count",
			Value: 100000,
			Usage: "number of key/value pairs to load",
		},
		cli.IntFlag{
			Name:  "keysize",
			Value: 32,
			Usage: "byte length of generated keys",
		},
		cli.IntFlag{
			Name:  "seed",
			Value: 1,
			Usage: "random seed, for reproducible runs",
		},
		cli.BoolFlag{
			Name:  "delete-half",
			Usage: "after loading, delete every other key and report the resulting root too",
		},
	}
)

func run(ctx *cli.Context) error {
	store, closeStore, err := openStore(ctx.String("datadir"))
	if err != nil {
		return errors.Wrap(err, "open store")
	}
	defer closeStore()

	t := trie.NewEmpty(store)

	count := ctx.Int("count")
	keySize := ctx.Int("keysize")
	fz := fuzz.NewWithSeed(int64(ctx.Int("seed"))).NilChance(0)
	rng := rand.New(rand.NewSource(int64(ctx.Int("seed"))))

	var bar *pb.ProgressBar
	if isatty.IsTerminal(os.Stdout.Fd()) {
		bar = pb.New(count).SetMaxWidth(90).Start()
		defer bar.Finish()
	}

	keys := make([][]byte, 0, count)
	started := time.Now()
	for i := 0; i < count; i++ {
		key := make([]byte, keySize)
		rng.Read(key)
		var value []byte
		fz.NumElements(8, 128).Fuzz(&value)
		if len(value) == 0 {
			value = []byte{0}
		}
		if err := t.Put(key, value); err != nil {
			return errors.Wrapf(err, "put #%d", i)
		}
		keys = append(keys, key)
		if bar != nil {
			bar.Increment()
		}
	}
	loadElapsed := time.Since(started)
	fmt.Printf("loaded %d pairs in %s, root %s\n", count, loadElapsed, hex.EncodeToString(t.Root()))

	if ctx.Bool("delete-half") {
		started = time.Now()
		for i, key := range keys {
			if i%2 != 0 {
				continue
			}
			if err := t.Del(key); err != nil {
				return errors.Wrapf(err, "del #%d", i)
			}
		}
		fmt.Printf("deleted half in %s, root %s\n", time.Since(started), hex.EncodeToString(t.Root()))
	}

	if !t.CheckRoot() {
		return errors.New("final root is not resolvable from the store")
	}
	return nil
}

func openStore(datadir string) (*triedb.Store, func(), error) {
	if datadir == "" {
		db, err := leveldb.NewMem()
		if err != nil {
			return nil, nil, err
		}
		return triedb.New(db), func() { db.Close() }, nil
	}
	db, err := leveldb.New(datadir, leveldb.Options{CacheSizeMB: 64, OpenFilesCacheSize: 64})
	if err != nil {
		return nil, nil, err
	}
	return triedb.New(db), func() { db.Close() }, nil
}

func main() {
	versionMeta := "release"
	if gitCommit == "" {
		versionMeta = "dev"
	}
	app := cli.App{
		Version: fmt.Sprintf("%s-%s-%s", version, gitCommit, versionMeta),
		Name:    "mpt-bench",
		Usage:   "bulk-load a Merkle-Patricia trie and report timings",
		Flags:   flags,
		Action:  run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
