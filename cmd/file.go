package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/ganderhq/gander/pkg/clierr"
	"github.com/ganderhq/gander/pkg/hasher"
	"github.com/ganderhq/gander/pkg/pool"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// fileCmd groups file utilities for verifying downloaded payloads.
func fileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "file",
		Short: "Perform various file operations",
	}

	cmd.AddCommand(hashCmd())
	return cmd
}

// hashCmd creates the command that hashes game files in a directory,
// optionally writing <file>.<algo> digest files next to them.
func hashCmd() *cobra.Command {
	var algo string
	var recursive bool
	var save bool
	var clean bool

	cmd := &cobra.Command{
		Use:   "hash [fileDir]",
		Short: "Generate hash values for game files in a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			if !hasher.IsValidAlgo(algo) {
				return clierr.New(clierr.Usage,
					fmt.Sprintf("Unsupported hash algorithm %q; use one of %s.", algo, strings.Join(hasher.Algorithms, ", ")), nil)
			}
			if clean {
				removeHashFiles(dir, recursive)
			}
			return generateHashes(cmd.Context(), cmd, dir, algo, recursive, save)
		},
	}

	cmd.Flags().StringVarP(&algo, "algo", "a", "sha256", "Hash algorithm to use [crc32, md5, sha1, sha256, sha512]")
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", true, "Process files in subdirectories? [true, false]")
	cmd.Flags().BoolVarP(&save, "save", "s", false, "Save hash to files? [true, false]")
	cmd.Flags().BoolVarP(&clean, "clean", "c", false, "Remove old hash files before generating new ones? [true, false]")

	return cmd
}

// isHashFile reports whether the path is a digest file written by a
// previous run.
func isHashFile(path string) bool {
	for _, algo := range hasher.Algorithms {
		if strings.HasSuffix(path, "."+algo) {
			return true
		}
	}
	return false
}

func removeHashFiles(dir string, recursive bool) {
	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			if !recursive && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if isHashFile(path) {
			if err := os.Remove(path); err != nil {
				log.Warn().Err(err).Msgf("Failed to remove old hash file %s", path)
			}
		}
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to clean old hash files")
	}
}

func generateHashes(ctx context.Context, cmd *cobra.Command, dir, algo string, recursive, save bool) error {
	var files []string
	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			if !recursive && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if !isHashFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return clierr.New(clierr.Internal, "Failed to walk the directory.", err)
	}
	if len(files) == 0 {
		cmd.Println("No files to hash.")
		return nil
	}

	var mu sync.Mutex
	workerFunc := func(ctx context.Context, path string) error {
		digest, err := hasher.FileHash(path, algo)
		if err != nil {
			return fmt.Errorf("hashing %s: %w", path, err)
		}
		mu.Lock()
		cmd.Printf("%s  %s\n", digest, path)
		mu.Unlock()
		if save {
			if err := os.WriteFile(path+"."+algo, []byte(digest+"\n"), 0o644); err != nil {
				return fmt.Errorf("saving digest for %s: %w", path, err)
			}
		}
		return nil
	}

	failures := pool.Run(ctx, files, runtime.NumCPU(), workerFunc)
	for _, ferr := range failures {
		cmd.PrintErrln("Error:", ferr)
	}
	if len(failures) > 0 {
		return clierr.New(clierr.Internal, fmt.Sprintf("%d file(s) failed to hash.", len(failures)), nil)
	}
	return nil
}
