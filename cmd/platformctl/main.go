package main

import (
	"github.com/autopeer-io/platformctl/cmd/platformctl/app"
)

func main() {
	app.NewApp().Run()
}
