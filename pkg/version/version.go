// Package version derives version information from release tags, git archive placeholders and build metadata.
package version

import (
	"bufio"
	"fmt"
	"github.com/pkg/errors"
	"io"
	"os"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
)

// hashLen is the commit hash length git describe abbreviates to.
const hashLen = 7

// Info describes the running build.
type Info struct {
	Version string
	Commit  string
}

// Version returns the build information.
//
// gitDescribe and gitHash are meant to be git archive placeholders, i.e. "$Format:%(describe)$" and
// "$Format:%H$" in a file with the export-subst attribute. Once expanded, they take precedence.
// Otherwise release is used and augmented with the commit from the Go build metadata.
func Version(release, gitDescribe, gitHash string) *Info {
	if !strings.HasPrefix(gitDescribe, "$") && !strings.HasPrefix(gitHash, "$") {
		// Git before 2.32 leaves %(describe) as is.
		if strings.HasPrefix(gitDescribe, "%") {
			gitDescribe = release + suffix(gitHash)
		}

		return &Info{Version: gitDescribe, Commit: gitHash}
	}

	info := &Info{Version: release}

	if bi, ok := debug.ReadBuildInfo(); ok {
		var modified bool

		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				info.Commit = s.Value
			case "vcs.modified":
				modified, _ = strconv.ParseBool(s.Value)
			}
		}

		if len(info.Commit) >= hashLen {
			info.Version += suffix(info.Commit)

			if modified {
				info.Version += "-dirty"
				info.Commit += " (modified)"
			}
		}
	}

	return info
}

// Print writes verbose version output of the named application to w.
func (i *Info) Print(w io.Writer, name string) {
	_, _ = fmt.Fprintf(w, "%s version: %s\n\n", name, i.Version)

	_, _ = fmt.Fprintln(w, "Build information:")
	_, _ = fmt.Fprintf(w, "  Go version: %s (%s, %s)\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	if i.Commit != "" {
		_, _ = fmt.Fprintln(w, "  Git commit:", i.Commit)
	}

	if r, err := readOsRelease(); err == nil {
		_, _ = fmt.Fprintln(w)
		_, _ = fmt.Fprintln(w, "System information:")
		_, _ = fmt.Fprintln(w, "  Platform:", r.Name)
		_, _ = fmt.Fprintln(w, "  Platform version:", r.DisplayVersion())
	}
}

func suffix(hash string) string {
	if len(hash) < hashLen {
		return ""
	}

	return "-g" + hash[:hashLen]
}

// osRelease holds the fields of an os-release(5) file.
type osRelease struct {
	Name      string
	Version   string
	VersionId string
	BuildId   string
}

// DisplayVersion returns VERSION, VERSION_ID or BUILD_ID, whichever is set first.
func (o *osRelease) DisplayVersion() string {
	for _, v := range []string{o.Version, o.VersionId, o.BuildId} {
		if v != "" {
			return v
		}
	}

	return "(unknown)"
}

func readOsRelease() (*osRelease, error) {
	for _, path := range []string{"/etc/os-release", "/usr/lib/os-release"} {
		f, err := os.Open(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}

			return nil, errors.Wrap(err, "can't open os-release file")
		}

		o, err := parseOsRelease(f)
		_ = f.Close()

		return o, err
	}

	return nil, errors.New("os-release file not found")
}

func parseOsRelease(r io.Reader) (*osRelease, error) {
	// Default as per os-release(5).
	o := &osRelease{Name: "Linux"}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key, val, ok := strings.Cut(scanner.Text(), "=")
		if !ok || strings.HasPrefix(key, "#") {
			continue
		}

		// Shell escapes aren't supported, quotes usually only protect whitespace.
		if len(val) >= 2 && (val[0] == '"' || val[0] == '\'') && val[0] == val[len(val)-1] {
			val = val[1 : len(val)-1]
		}

		switch key {
		case "NAME":
			o.Name = val
		case "VERSION":
			o.Version = val
		case "VERSION_ID":
			o.VersionId = val
		case "BUILD_ID":
			o.BuildId = val
		}
	}

	return o, errors.Wrap(scanner.Err(), "can't read os-release file")
}
