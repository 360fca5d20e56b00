package main

import (
	"os"

	"github.com/architeacher/svc-icqueue/internal/runtime"
)

func main() {
	os.Exit(runtime.NewSubscriber().Run())
}
