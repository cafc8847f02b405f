// admitgate fails a CI job unless a pinned remote authority allows the change.
package main

import "github.com/ppiankov/admitgate/internal/cli"

func main() {
	cli.Execute()
}
