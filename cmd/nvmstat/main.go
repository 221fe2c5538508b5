// Command nvmstat opens a demo nvmalloc region, runs a small allocation
// workload against it, and prints occupancy stats. It exists to exercise
// the library end to end, not as part of the public API surface.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"

	"github.com/ohnvm/nvmalloc"
)

func main() {
	dataPages := flag.Int("data-pages", 4096, "number of data-arena pages")
	path := flag.String("path", "", "file to back the region (empty = volatile anonymous mapping)")
	ops := flag.Int("ops", 10000, "number of random allocate/free operations to run")
	seed := flag.Int64("seed", 1, "PRNG seed for the workload")
	flag.Parse()

	logger := log.New(os.Stderr, "nvmstat: ", log.LstdFlags)

	cfg := nvmalloc.Defaults(*dataPages)
	cfg.Path = *path

	a, err := nvmalloc.Open(cfg, nil, logger)
	if err != nil {
		logger.Fatalf("open: %v", err)
	}
	defer a.Close()

	rng := rand.New(rand.NewSource(*seed))
	live := make([]nvmalloc.Pointer, 0, *ops)

	for i := 0; i < *ops; i++ {
		if len(live) > 0 && rng.Intn(3) == 0 {
			j := rng.Intn(len(live))
			if err := a.Deallocate(live[j]); err != nil {
				logger.Printf("deallocate: %v", err)
				continue
			}
			live[j] = live[len(live)-1]
			live = live[:len(live)-1]
			continue
		}

		n := 1 + rng.Intn(8192)
		p, err := a.Allocate(n)
		if err != nil {
			logger.Printf("allocate(%d): %v", n, err)
			continue
		}
		live = append(live, p)
	}

	fmt.Println(a.Stats())
}
