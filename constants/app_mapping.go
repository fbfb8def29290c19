package constants

import (
	_ "embed"
	"errors"
	"sort"
	"strings"
	"sync"

	json "github.com/bytedance/sonic"
	"github.com/samber/lo"
)

//go:embed app_aliases.json
var aliasesJSON []byte

var (
	pkg2AliasesMap map[string][]string
	alias2PkgMap   map[string]string
	errLoad        error
	once           = new(sync.Once)
)

// Load loads the app mapping from the embedded JSON
func Load() (map[string][]string, error) {
	once.Do(func() {
		pkg2AliasesMap = make(map[string][]string)
		if err := json.Unmarshal(aliasesJSON, &pkg2AliasesMap); err != nil {
			errLoad = errors.Join(err, errors.New("failed to unmarshal embedded app_aliases.json"))
			return
		}

		alias2PkgMap = make(map[string]string)
		for pkg, aliases := range pkg2AliasesMap {
			for _, alias := range aliases {
				alias2PkgMap[strings.ToLower(alias)] = pkg
			}
		}
	})
	return pkg2AliasesMap, errLoad
}

// GetPackageByAlias returns the package name for a given alias
func GetPackageByAlias(alias string) (string, bool) {
	if _, err := Load(); err != nil {
		return "", false
	}
	pkg, ok := alias2PkgMap[strings.ToLower(strings.TrimSpace(alias))]
	return pkg, ok
}

// GetAliasesByPackage returns the aliases for a given package name
func GetAliasesByPackage(pkg string) ([]string, bool) {
	if _, err := Load(); err != nil {
		return nil, false
	}
	aliases, ok := pkg2AliasesMap[pkg]
	return aliases, ok
}

// ResolvePackage accepts an alias such as "instagram" or a package name and
// returns the package name.
func ResolvePackage(nameOrPkg string) string {
	if pkg, ok := GetPackageByAlias(nameOrPkg); ok {
		return pkg
	}
	return strings.TrimSpace(nameOrPkg)
}

// Packages returns every known package name, sorted.
func Packages() []string {
	m, err := Load()
	if err != nil {
		return nil
	}
	pkgs := lo.Keys(m)
	sort.Strings(pkgs)
	return pkgs
}
