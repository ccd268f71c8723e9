package main

import "github.com/openlibgis/geoporter/internal/cmd"

func main() {
	cmd.Execute()
}
