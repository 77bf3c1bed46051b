/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2026 Markus Stenberg
 *
 * Created:       Mon Oct 19 21:05:48 2026 mstenber
 * Last modified: Mon Oct 19 22:30:02 2026 mstenber
 * Edit time:     77 min
 *
 */

package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/fingon/go-flashcache/cache"
	"github.com/fingon/go-flashcache/device"
)

func parseObjectId(s string) (cache.ObjectId, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil || v == 0 {
		return cache.NoObject, errors.Errorf("invalid object id %q", s)
	}
	return cache.ObjectId(v), nil
}

// copyIn writes r to o in blockSize pieces.
func copyIn(o *device.Object, r io.Reader, blockSize int) (int64, error) {
	buf := make([]byte, blockSize)
	var off int64
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			if _, err := o.WriteAt(buf[:n], off); err != nil {
				return off, err
			}
			off += int64(n)
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return off, nil
		}
		if err != nil {
			return off, err
		}
	}
}

func printStats(d *device.Device) {
	cs := d.CacheStats()
	ss := d.StoreStats()
	fmt.Printf("cache: %s hits, %s flushes, %s evictions, %d failures\n",
		humanize.Comma(int64(cs.Hits)), humanize.Comma(int64(cs.Flushes)),
		humanize.Comma(int64(cs.Evictions)), cs.FlushFailures)
	fmt.Printf("flash: %s chunk writes (%s), %s chunk reads (%s)\n",
		humanize.Comma(ss.ChunkWrites), humanize.Bytes(uint64(ss.BytesWritten)),
		humanize.Comma(ss.ChunkReads), humanize.Bytes(uint64(ss.BytesRead)))
}

func writeCommand() *cobra.Command {
	var blockSize int
	c := &cobra.Command{
		Use:   "write FILE [ID]",
		Short: "Write FILE to object ID, or to a new object",
		Args:  cobra.RangeArgs(1, 2),
	}
	c.Flags().IntVar(&blockSize, "block-size", 4096, "Size of individual writes")
	c.RunE = withDevice(func(d *device.Device, args []string) error {
		if blockSize <= 0 {
			return errors.Errorf("invalid block size %d", blockSize)
		}
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		var o *device.Object
		if len(args) > 1 {
			id, err := parseObjectId(args[1])
			if err != nil {
				return err
			}
			if o, err = d.GetObject(id); err != nil {
				return err
			}
			if err = o.Truncate(0); err != nil {
				return err
			}
		} else if o, err = d.CreateObject(); err != nil {
			return err
		}
		n, err := copyIn(o, f, blockSize)
		if err != nil {
			return err
		}
		if err = o.Flush(); err != nil {
			return err
		}
		fmt.Printf("%d: wrote %s\n", o.Id(), humanize.Bytes(uint64(n)))
		return nil
	})
	return c
}

func readCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "read ID",
		Short: "Write content of object ID to standard output",
		Args:  cobra.ExactArgs(1),
	}
	c.RunE = withDevice(func(d *device.Device, args []string) error {
		id, err := parseObjectId(args[0])
		if err != nil {
			return err
		}
		o, err := d.GetObject(id)
		if err != nil {
			return err
		}
		_, err = io.Copy(os.Stdout, io.NewSectionReader(o, 0, o.Size()))
		return err
	})
	return c
}

func lsCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "ls",
		Short: "List objects",
		Args:  cobra.NoArgs,
	}
	c.RunE = withDevice(func(d *device.Device, args []string) error {
		var total int64
		for _, id := range d.Objects() {
			o, err := d.GetObject(id)
			if err != nil {
				return err
			}
			total += o.Size()
			fmt.Printf("%8d %10s\n", id, humanize.Bytes(uint64(o.Size())))
		}
		fmt.Printf("total %s, %s used on flash\n",
			humanize.Bytes(uint64(total)), humanize.Bytes(d.GetBytesUsed()))
		return nil
	})
	return c
}

func rmCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "rm ID...",
		Short: "Delete objects",
		Args:  cobra.MinimumNArgs(1),
	}
	c.RunE = withDevice(func(d *device.Device, args []string) error {
		for _, arg := range args {
			id, err := parseObjectId(arg)
			if err != nil {
				return err
			}
			if err = d.DeleteObject(id); err != nil {
				return errors.Wrapf(err, "deleting %d", id)
			}
		}
		return nil
	})
	return c
}

func benchCommand() *cobra.Command {
	var size, blockSize int
	c := &cobra.Command{
		Use:   "bench",
		Short: "Write and read back a new object in small pieces",
		Args:  cobra.NoArgs,
	}
	c.Flags().IntVar(&blockSize, "block-size", 1, "Size of individual operations")
	c.Flags().IntVar(&size, "size", 1<<20, "Size of the object")
	c.RunE = withDevice(func(d *device.Device, args []string) error {
		if blockSize <= 0 || size < 0 {
			return errors.New("invalid block size or size")
		}
		o, err := d.CreateObject()
		if err != nil {
			return err
		}
		buf := make([]byte, blockSize)
		for i := range buf {
			buf[i] = byte(i)
		}
		start := time.Now()
		for off := 0; off < size; off += len(buf) {
			if _, err = o.WriteAt(buf[:min(len(buf), size-off)], int64(off)); err != nil {
				return err
			}
		}
		if err = o.Flush(); err != nil {
			return err
		}
		written := time.Now()
		for off := 0; off < size; off += len(buf) {
			if _, err = o.ReadAt(buf[:min(len(buf), size-off)], int64(off)); err != nil {
				return err
			}
		}
		read := time.Now()
		fmt.Printf("%s in %s blocks: write %v, read %v\n",
			humanize.Bytes(uint64(size)), humanize.Bytes(uint64(blockSize)),
			written.Sub(start), read.Sub(written))
		printStats(d)
		return d.DeleteObject(o.Id())
	})
	return c
}
