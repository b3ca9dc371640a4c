//go:build !unix

package command

import "github.com/pkg/errors"

func mkfifo(string, uint32) error {
	return errors.New("named pipes are not supported on this platform")
}
