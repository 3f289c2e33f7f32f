// Command authctl agrupa tareas de operacion: migraciones, alta de admins y
// hashing de passwords.
package main

import (
	"os"
)

func main() {
	if err := NewRootCmd(defaultDeps()).Execute(); err != nil {
		os.Exit(1)
	}
}
