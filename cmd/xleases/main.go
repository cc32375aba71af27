package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	"golang.org/x/exp/mmap"

	"github.com/openvol/xleases/pkg/config"
	"github.com/openvol/xleases/pkg/directio"
	"github.com/openvol/xleases/pkg/metrics"
	"github.com/openvol/xleases/pkg/xlease"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	args := flag.Args()
	if len(args) < 1 {
		usage()
		os.Exit(2)
	}

	if cfg.EnableExporter {
		metrics.StartMetricsServer(cfg.ExporterPort)
	}

	var cmdErr error
	switch args[0] {
	case "create":
		cmdErr = runCreate(cfg, args[1:])
	case "format":
		cmdErr = runFormat(cfg, args[1:])
	case "dump":
		cmdErr = runDump(args[1:])
	case "list":
		cmdErr = runList(cfg, args[1:])
	case "lookup":
		cmdErr = runLookup(cfg, args[1:])
	default:
		usage()
		os.Exit(2)
	}
	if cmdErr != nil {
		log.Fatalf("%s failed: %v", args[0], cmdErr)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: xleases [flags] <command> [args]

commands:
  create <lockspace> <path>    create and format a lease volume
  format <lockspace> <path>    write a fresh empty index on an existing volume
  dump <path>                  print the index header and records
  list <path>                  list leases
  lookup <path> <resource>     resolve one lease

flags:
`)
	flag.PrintDefaults()
}

// openVolumeFile opens path with the configured file strategy. The caller
// closes the returned file first, then calls closer to release the pool
// when one is used.
func openVolumeFile(cfg *config.Config, path string) (directio.File, func(), error) {
	if cfg.IOWorkers > 0 {
		pool := directio.NewPool("xleases", cfg.IOWorkers)
		f, err := pool.OpenFile(path, cfg.DirectIO, cfg.IOTimeout())
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return f, pool.Close, nil
	}
	f, err := directio.OpenFile(path, cfg.DirectIO)
	if err != nil {
		return nil, nil, err
	}
	return f, func() {}, nil
}

func runCreate(cfg *config.Config, args []string) (err error) {
	if len(args) != 2 {
		return errors.New("usage: create <lockspace> <path>")
	}
	lockspace, path := args[0], args[1]
	if cfg.VolumeSize < xlease.MinVolumeSize {
		return fmt.Errorf("volume size %d below minimum %d", cfg.VolumeSize, int64(xlease.MinVolumeSize))
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0660)
	if err != nil {
		return err
	}
	// A failed create must not leave the half-initialized volume behind;
	// a retry would fail with EEXIST.
	defer func() {
		if err != nil {
			os.Remove(path)
		}
	}()

	if err := directio.Preallocate(f, cfg.VolumeSize); err != nil {
		f.Close()
		return fmt.Errorf("preallocating %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return formatPath(cfg, lockspace, path)
}

func runFormat(cfg *config.Config, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: format <lockspace> <path>")
	}
	return formatPath(cfg, args[0], args[1])
}

func formatPath(cfg *config.Config, lockspace, path string) error {
	file, closer, err := openVolumeFile(cfg, path)
	if err != nil {
		return err
	}
	defer closer()
	defer file.Close()
	return xlease.FormatIndex(lockspace, file)
}

func slotOffset(recnum int) int64 {
	return xlease.UserResourceBase + int64(recnum)*xlease.SlotSize
}

// runDump prints the index best effort, so a damaged index can still be
// inspected before a rebuild.
func runDump(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: dump <path>")
	}
	r, err := mmap.Open(args[0])
	if err != nil {
		return err
	}
	defer r.Close()

	block := make([]byte, xlease.BlockSize)
	if _, err := r.ReadAt(block, xlease.IndexBase); err != nil {
		return err
	}
	md, err := xlease.ParseMetadata(block)
	if err != nil {
		fmt.Printf("index header invalid: %v\n", err)
	} else {
		fmt.Printf("lockspace=%s version=%d mtime=%d\n", md.Lockspace, md.Version, md.MTime)
	}

	buf := make([]byte, xlease.RecordSize)
	for recnum := 0; recnum < xlease.MaxRecords; recnum++ {
		offset := int64(xlease.IndexBase+xlease.BlockSize) + int64(recnum*xlease.RecordSize)
		if _, err := r.ReadAt(buf, offset); err != nil {
			return err
		}
		rec, err := xlease.ParseRecord(buf)
		if err != nil {
			fmt.Printf("%6d record invalid: %v\n", recnum, err)
			continue
		}
		if rec.IsFree() {
			continue
		}
		flag := "-"
		if rec.Updating {
			flag = "u"
		}
		fmt.Printf("%6d %12d %s %s\n", recnum, slotOffset(recnum), flag, rec.Resource)
	}
	return nil
}

func runList(cfg *config.Config, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: list <path>")
	}
	file, closer, err := openVolumeFile(cfg, args[0])
	if err != nil {
		return err
	}
	defer closer()
	defer file.Close()

	vol, err := xlease.NewVolume(file, nil)
	if err != nil {
		return err
	}
	defer vol.Close()

	leases, err := vol.Leases()
	if err != nil {
		return err
	}
	metrics.SetLeaseCount(len(leases))

	resources := make([]string, 0, len(leases))
	for r := range leases {
		resources = append(resources, r)
	}
	sort.Strings(resources)
	for _, r := range resources {
		status := leases[r]
		flag := "-"
		if status.Updating {
			flag = "u"
		}
		fmt.Printf("%12d %s %s\n", status.Offset, flag, r)
	}
	return nil
}

func runLookup(cfg *config.Config, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: lookup <path> <resource>")
	}
	file, closer, err := openVolumeFile(cfg, args[0])
	if err != nil {
		return err
	}
	defer closer()
	defer file.Close()

	vol, err := xlease.NewVolume(file, nil)
	if err != nil {
		return err
	}
	defer vol.Close()

	info, err := vol.Lookup(args[1])
	if err != nil {
		return err
	}
	fmt.Printf("lockspace=%s resource=%s path=%s offset=%d\n",
		info.Lockspace, info.Resource, info.Path, info.Offset)
	return nil
}
