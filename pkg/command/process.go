package command

import (
	"bufio"
	"github.com/pkg/errors"
	"os"
	"path/filepath"
	"time"
)

func shutdownProcess(p *Processor, _ time.Time, _ []string) error {
	p.logger.Info("Shutdown requested by external command")

	if p.shutdown == nil {
		return errors.New("shutdown not supported")
	}

	p.shutdown()

	return nil
}

// processFile executes all command lines of a file and deletes it afterwards if requested.
// A file which is already being processed, e.g. because it includes itself, is rejected.
func processFile(p *Processor, _ time.Time, args []string) error {
	remove, err := parseBool(args[1], "delete")
	if err != nil {
		return err
	}

	path, err := filepath.Abs(args[0])
	if err != nil {
		return errors.Wrap(err, "can't resolve command file path")
	}

	if !p.enterFile(path) {
		return errors.Errorf("command file %q is already being processed", args[0])
	}
	defer p.leaveFile(path)

	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "can't open command file")
	}

	var lines int
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			p.Execute(line)
			lines++
		}
	}

	_ = f.Close()

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "can't read command file %q", args[0])
	}

	p.logger.Infof("Processed %d commands from %q", lines, args[0])

	if remove {
		if err := os.Remove(path); err != nil {
			return errors.Wrap(err, "can't delete command file")
		}
	}

	return nil
}

// enterFile marks path as being processed and reports whether it was not already.
func (p *Processor) enterFile(path string) bool {
	p.filesMu.Lock()
	defer p.filesMu.Unlock()

	if _, ok := p.files[path]; ok {
		return false
	}

	p.files[path] = struct{}{}

	return true
}

func (p *Processor) leaveFile(path string) {
	p.filesMu.Lock()
	defer p.filesMu.Unlock()

	delete(p.files, path)
}
