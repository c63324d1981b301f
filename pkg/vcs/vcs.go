// Package vcs looks up the revision of the source tree a firmware was built
// from, to be recorded in the image header.
package vcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/golang/glog"
)

// DirtySuffix is appended to the hash if the working tree has uncommitted
// changes to tracked files.
const DirtySuffix = "-dirty"

var ErrUnavailable = errors.New("vcs: revision unavailable")

// GitHash returns the abbreviated commit hash of HEAD in the repository
// containing dir, with DirtySuffix if the tree is modified.
func GitHash(ctx context.Context, dir string) (string, error) {
	hash, err := git(ctx, dir, "rev-parse", "--short", "HEAD")
	if err != nil {
		return "", err
	}
	if hash == "" {
		return "", fmt.Errorf("%w: empty revision", ErrUnavailable)
	}
	status, err := git(ctx, dir, "status", "--porcelain", "--untracked-files=no")
	if err != nil {
		return "", err
	}
	if status != "" {
		glog.Warningf("Working tree %s has uncommitted changes", dir)
		hash += DirtySuffix
	}
	glog.V(1).Infof("Source revision %s", hash)
	return hash, nil
}

func git(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", dir}, args...)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("%w: git %s: %s", ErrUnavailable, strings.Join(args, " "), msg)
	}
	return strings.TrimSpace(string(out)), nil
}
