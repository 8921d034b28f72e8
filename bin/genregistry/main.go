// Binary genregistry writes the Register function for the annotated tests of
// a package. Run it through go generate:
//
//	//go:generate go run ../bin/genregistry -out registry_gen.go
package main

import (
	"bytes"
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/zond/worldtest/genregistry"
	"golang.org/x/tools/go/packages"
)

func main() {
	dir := flag.String("dir", ".", "Package directory to scan.")
	out := flag.String("out", "registry_gen.go", "File to write, relative to -dir.")

	flag.Parse()

	pkgs, err := packages.Load(&packages.Config{
		Mode: packages.NeedName | packages.NeedFiles | packages.NeedSyntax,
		Dir:  *dir,
	}, ".")
	if err != nil {
		log.Fatal(err)
	}
	if packages.PrintErrors(pkgs) > 0 || len(pkgs) != 1 {
		log.Fatalf("expected one loadable package in %q", *dir)
	}
	pkg := pkgs[0]

	// The previously generated file carries no directives, so scanning it is harmless.
	manifest, err := genregistry.Scan(pkg.Name, pkg.Syntax)
	if err != nil {
		log.Fatal(err)
	}
	buf := &bytes.Buffer{}
	if err := manifest.Render(buf); err != nil {
		log.Fatal(err)
	}
	outPath := filepath.Join(*dir, *out)
	if err := os.WriteFile(outPath, buf.Bytes(), 0644); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %d tests and %d hooks to %q", len(manifest.Tests), len(manifest.Hooks), outPath)
}
