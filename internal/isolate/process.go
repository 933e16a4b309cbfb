package isolate

import (
	"errors"
	"io"
	"os"
	"os/exec"
)

type Cmd struct {
	cmd          *exec.Cmd
	stdout       io.ReadCloser
	stderr       io.ReadCloser
	started      bool
	metaFilePath string
	Constraints  Constraints
}

func (process *Cmd) Wait() (*Metrics, error) {
	if !process.started {
		panic("process should be started before waiting")
	}

	err := process.cmd.Wait()
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, err
		}
	}

	metaFileBytes, err := os.ReadFile(process.metaFilePath)
	if err != nil {
		return nil, err
	}
	defer os.Remove(process.metaFilePath)

	metrics, err := parseMetaFile(metaFileBytes)
	if err != nil {
		return nil, err
	}

	return metrics, nil
}

func (process *Cmd) Stdout() io.ReadCloser {
	if process.stdout == nil {
		panic("process should be started before retrieving stdout")
	}
	return process.stdout
}

func (process *Cmd) Stderr() io.ReadCloser {
	if process.stderr == nil {
		panic("process should be started before retrieving stderr")
	}
	return process.stderr
}
