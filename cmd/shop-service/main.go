package main

import "github.com/vasiliy-maslov/shop-service/internal/cmd"

func main() {
	cmd.Execute()
}
