package readiness

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ShellPackages checks installed packages with `pm list packages`. It uses the
// handle's own shell when the handle has one and Fallback otherwise.
type ShellPackages struct {
	Fallback Sheller
}

func (s ShellPackages) HasPackage(ctx context.Context, h Handle, pkg string) (bool, error) {
	sh, ok := h.(Sheller)
	if !ok {
		sh = s.Fallback
	}
	if sh == nil {
		return false, errors.New("no shell available for package query")
	}
	out, err := sh.Shell(ctx, fmt.Sprintf("pm list packages %s", pkg))
	if err != nil {
		return false, errors.Wrap(err, "pm list packages")
	}
	return ListsPackage(out, pkg), nil
}

// ListsPackage reports whether `pm list packages` output contains pkg exactly.
func ListsPackage(output, pkg string) bool {
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == "package:"+pkg {
			return true
		}
	}
	return false
}
