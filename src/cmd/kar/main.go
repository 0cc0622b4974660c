// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/mmap"

	"github.com/devblok/vkcompute/src/utility/kar"
)

func currentUserName() string {
	u, err := user.Current()
	if err != nil {
		return "unknown"
	}
	return u.Username
}

var (
	author   = flag.String("author", currentUserName(), "Set the author of the package when compressing")
	version  = flag.Int64("version", 1, "Archive version number to create it with")
	extract  = flag.String("e", "", "Extract the archive given")
	compress = flag.String("c", "", "Compress the given file/folder")
	list     = flag.String("l", "", "List the files of the archive given")
	dstFile  = flag.String("f", "out.kar", "Destination archive when compressing, destination folder when extracting")
	silent   = flag.Bool("s", false, "Silent")
)

func main() {
	flag.Parse()
	if *silent {
		log.SetLevel(log.WarnLevel)
	}

	ops := 0
	for _, op := range []string{*extract, *compress, *list} {
		if op != "" {
			ops++
		}
	}
	if ops > 1 {
		log.Fatal("only one operation at a time")
	}

	var err error
	switch {
	case *extract != "":
		err = extractFiles(*extract, *dstFile)
	case *compress != "":
		err = compressFiles(*compress, *dstFile)
	case *list != "":
		err = listFiles(*list, os.Stdout)
	default:
		flag.PrintDefaults()
		return
	}
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func compressFiles(src, dst string) error {
	if _, err := os.Stat(dst); err == nil {
		return errors.Newf("destination file %s exists, will not overwrite", dst)
	}

	var filesToCompress []string
	err := filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		filesToCompress = append(filesToCompress, path)
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "walking %s", src)
	}

	karBuilder, err := kar.NewBuilder(kar.Header{
		Author:      *author,
		DateCreated: time.Now().Unix(),
		Version:     *version,
	})
	if err != nil {
		return err
	}
	defer karBuilder.Close()

	for _, ftc := range filesToCompress {
		if err := addFile(karBuilder, entryName(src, ftc), ftc); err != nil {
			return err
		}
		log.WithField("file", ftc).Info("added")
	}

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	written, err := karBuilder.WriteTo(out)
	if err != nil {
		out.Close()
		return err
	}
	log.WithFields(log.Fields{"archive": dst, "bytes": written, "files": karBuilder.Len()}).Info("archive written")
	return out.Close()
}

// entryName is path relative to the compressed root, a single
// compressed file keeps its base name.
func entryName(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		rel = filepath.Base(path)
	}
	return filepath.ToSlash(rel)
}

func addFile(b *kar.Builder, name, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return b.Add(name, f)
}

func openArchive(path string) (*kar.Archive, *mmap.ReaderAt, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, nil, err
	}
	ar, err := kar.Open(r)
	if err != nil {
		r.Close()
		return nil, nil, errors.Wrapf(err, "opening %s", path)
	}
	return ar, r, nil
}

func extractFiles(src, dstDir string) error {
	ar, r, err := openArchive(src)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, name := range ar.List() {
		target := filepath.Join(dstDir, filepath.FromSlash(name))
		if err := extractFile(ar, name, target); err != nil {
			return err
		}
		log.WithField("file", target).Info("extracted")
	}
	return nil
}

func extractFile(ar *kar.Archive, name, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	f, err := ar.Open(name)
	if err != nil {
		return err
	}
	out, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, f); err != nil {
		out.Close()
		return errors.Wrapf(err, "extracting %s", name)
	}
	return out.Close()
}

func listFiles(src string, w io.Writer) error {
	ar, r, err := openArchive(src)
	if err != nil {
		return err
	}
	defer r.Close()

	header := ar.Header()
	fmt.Fprintf(w, "author %s, version %d, created %s\n",
		header.Author, header.Version, time.Unix(header.DateCreated, 0).Format(time.RFC3339))
	for _, e := range header.Index {
		fmt.Fprintf(w, "%10d %10d %s\n", e.Size, e.CompressedSize, e.Name)
	}
	return nil
}
