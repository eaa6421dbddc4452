package updater

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	goupdate "github.com/doitdistributed/go-update"
	"github.com/mitchellh/go-ps"

	"github.com/oshokin/update-manifest/internal/logger"
	"github.com/oshokin/update-manifest/internal/service/builder"
)

const (
	// DefaultDirMode is used for directories created in the local directory.
	DefaultDirMode os.FileMode = 0o755
	// DefaultFileMode is used for the updated binary.
	DefaultFileMode os.FileMode = 0o755
)

var (
	errBinaryRunning  = errors.New("binary is running")
	errNotDownloaded  = errors.New("file was not downloaded")
	errBadChecksumHex = errors.New("checksum is not hex")
)

// installFiles moves downloaded files from the temporary directory into place.
func (u *runner) installFiles(ctx context.Context, keys []string) error {
	for _, key := range keys {
		downloaded, ok := u.downloadedFiles[key]
		if !ok {
			return fmt.Errorf("%s: %w", key, errNotDownloaded)
		}

		target := localPath(u.opts.LocalDir, key)
		if err := os.MkdirAll(filepath.Dir(target), DefaultDirMode); err != nil {
			return err
		}

		if err := os.Rename(downloaded, target); err != nil {
			return err
		}

		logger.DebugKV(ctx, "Installed file", "key", key, "path", target)
	}

	return nil
}

// applyBinary replaces BinaryPath with the downloaded binary using go-update,
// which keeps the previous version until the new one is in place.
func (u *runner) applyBinary(ctx context.Context) error {
	downloaded, ok := u.downloadedFiles[u.remote.Binary]
	if !ok {
		return fmt.Errorf("%s: %w", u.remote.Binary, errNotDownloaded)
	}

	if err := u.stopRunningBinary(ctx); err != nil {
		return err
	}

	data, err := os.ReadFile(filepath.Clean(downloaded))
	if err != nil {
		return err
	}

	checksum, err := hex.DecodeString(u.binaryChecksum)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", u.binaryChecksum, errBadChecksumHex, err)
	}

	target := u.opts.BinaryPath

	if _, err = os.Stat(target); errors.Is(err, os.ErrNotExist) {
		if err = os.MkdirAll(filepath.Dir(target), DefaultDirMode); err != nil {
			return err
		}

		var created *os.File

		if created, err = os.Create(filepath.Clean(target)); err != nil {
			return err
		}

		_ = created.Close()
	}

	logger.InfoKV(ctx, "Applying binary update", "binary", target)

	options := goupdate.Options{
		TargetPath: target,
		TargetMode: DefaultFileMode,
		Checksum:   checksum,
		Hash:       builder.DefaultChecksumFunction,
	}

	if err = goupdate.Apply(bytes.NewReader(data), options); err != nil {
		return err
	}

	oldFileName := target + ".old"
	if _, err = os.Stat(oldFileName); err == nil {
		_ = os.Remove(oldFileName)
	}

	return nil
}

// stopRunningBinary looks for other processes running the binary.
// They are killed when TerminateRunning is set, otherwise the update is refused.
func (u *runner) stopRunningBinary(ctx context.Context) error {
	processName := filepath.Base(u.opts.BinaryPath)

	processList, err := ps.Processes()
	if err != nil {
		return err
	}

	thisProcessID := os.Getpid()

	for _, process := range processList {
		if process.Pid() == thisProcessID || process.Executable() != processName {
			continue
		}

		if !u.opts.TerminateRunning {
			return fmt.Errorf("%s (pid %d): %w", processName, process.Pid(), errBinaryRunning)
		}

		logger.WarnKV(ctx, "Terminating running binary", "binary", processName, "pid", process.Pid())

		var runningProcess *os.Process

		runningProcess, err = os.FindProcess(process.Pid())
		if err != nil {
			return err
		}

		if err = runningProcess.Kill(); err != nil {
			return err
		}
	}

	return nil
}
