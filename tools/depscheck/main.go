package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
)

const module = "platform-fighter/server/"

type packageInfo struct {
	ImportPath string
	Imports    []string
}

// simulationPackages run on the loop and must stay transport-agnostic.
var simulationPackages = []string{
	module + "internal/sim",
	module + "internal/state",
	module + "internal/world",
	module + "internal/events",
	module + "internal/movement",
	module + "internal/combat",
	module + "internal/lifecycle",
	module + "internal/rooms",
}

var forbiddenImports = []string{
	module + "internal/net",
	module + "internal/app",
	module + "internal/identity",
	module + "internal/matchstats",
	"github.com/gorilla/websocket",
	"github.com/go-chi/chi",
	"net/http",
}

func main() {
	cmd := exec.Command("go", "list", "-json", "./internal/...")
	cmd.Env = os.Environ()
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			os.Stderr.Write(exitErr.Stderr)
		}
		fmt.Fprintf(os.Stderr, "depscheck: failed to list packages: %v\n", err)
		os.Exit(1)
	}

	pkgs, err := decodePackages(bytes.NewReader(output))
	if err != nil {
		fmt.Fprintf(os.Stderr, "depscheck: failed to decode package info: %v\n", err)
		os.Exit(1)
	}

	if found := violations(pkgs); len(found) > 0 {
		fmt.Fprintln(os.Stderr, "depscheck: found forbidden imports:")
		for _, violation := range found {
			fmt.Fprintf(os.Stderr, "  %s\n", violation)
		}
		os.Exit(1)
	}
}

func decodePackages(r io.Reader) ([]packageInfo, error) {
	decoder := json.NewDecoder(r)
	var pkgs []packageInfo
	for {
		var pkg packageInfo
		if err := decoder.Decode(&pkg); err != nil {
			if errors.Is(err, io.EOF) {
				return pkgs, nil
			}
			return nil, err
		}
		pkgs = append(pkgs, pkg)
	}
}

func violations(pkgs []packageInfo) []string {
	var out []string
	for _, pkg := range pkgs {
		if !within(pkg.ImportPath, simulationPackages) {
			continue
		}
		for _, imp := range pkg.Imports {
			if within(imp, forbiddenImports) {
				out = append(out, fmt.Sprintf("%s -> %s", pkg.ImportPath, imp))
			}
		}
	}
	sort.Strings(out)
	return out
}

// within reports whether path is one of roots or nested below one.
func within(path string, roots []string) bool {
	for _, root := range roots {
		if path == root || strings.HasPrefix(path, root+"/") {
			return true
		}
	}
	return false
}
